package metrics

import (
	"strings"
	"testing"
	"time"

	"httpwire/application/http/actor/client"
	"httpwire/application/http/transfer"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ client.Observer = (*Metrics)(nil)

func TestObserver(t *testing.T) {
	m := New()

	m.Completed("GET", 200, 30*time.Millisecond)
	m.Completed("GET", 200, time.Second)
	m.Completed("BREW", 0, 0)
	m.Redirected(301)
	m.AuthRetried("Digest")
	m.DecodeFellBack(transfer.CodingGzip)
	m.DecodeFellBack("br")
	m.Failed("connection")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("other", "0")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RedirectsTotal.WithLabelValues("301")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthRetries.WithLabelValues("Digest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFallbacks.WithLabelValues("gzip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeFallbacks.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("connection")))

	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))

	expected := `
# HELP httpwire_redirects_total Followed redirects by status code.
# TYPE httpwire_redirects_total counter
httpwire_redirects_total{status_code="301"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "httpwire_redirects_total"))
}

func TestNormalizeMethod(t *testing.T) {
	testcases := []struct {
		method   string
		expected string
	}{
		{"GET", "GET"},
		{"OPTIONS", "OPTIONS"},
		{"get", "other"},
		{"PROPFIND", "other"},
		{"", "other"},
	}

	for _, tc := range testcases {
		t.Run(tc.method, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeMethod(tc.method))
		})
	}
}
