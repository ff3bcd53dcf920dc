package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.4.1
	base, err := Parse("http://a/b/c/d;p?q")
	require.NoError(t, err)

	testcases := []struct {
		ref      string
		expected string
	}{
		{ref: "g", expected: "http://a/b/c/g"},
		{ref: "./g", expected: "http://a/b/c/g"},
		{ref: "g/", expected: "http://a/b/c/g/"},
		{ref: "/g", expected: "http://a/g"},
		{ref: "//g", expected: "http://g"},
		{ref: "?y", expected: "http://a/b/c/d;p?y"},
		{ref: "g?y", expected: "http://a/b/c/g?y"},
		{ref: "#s", expected: "http://a/b/c/d;p?q#s"},
		{ref: "", expected: "http://a/b/c/d;p?q"},
		{ref: "..", expected: "http://a/b/"},
		{ref: "../g", expected: "http://a/b/g"},
		{ref: "../../g", expected: "http://a/g"},
		{ref: "../../../g", expected: "http://a/g"},
		{ref: "https://other:8443/z", expected: "https://other:8443/z"},
	}

	for _, tc := range testcases {
		t.Run(tc.ref, func(t *testing.T) {
			ref, err := Parse(tc.ref)
			require.NoError(t, err)

			got, err := Resolve(base, ref)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got.String())
		})
	}
}

func TestResolveKeepsAuthority(t *testing.T) {
	base, err := Parse("http://u:p@h:8080/old?x=1")
	require.NoError(t, err)
	ref, err := Parse("/new")
	require.NoError(t, err)

	got, err := Resolve(base, ref)
	require.NoError(t, err)
	assert.Equal(t, "http://u:p@h:8080/new", got.String())
}

func TestResolveRelativeBase(t *testing.T) {
	base, err := Parse("/relative")
	require.NoError(t, err)

	_, err = Resolve(base, Target{Path: "/x"})
	assert.Error(t, err)
}

func TestRemoveDotSegments(t *testing.T) {
	testcases := []struct {
		input    string
		expected string
	}{
		{input: "/a/b/c/./../../g", expected: "/a/g"},
		{input: "mid/content=5/../6", expected: "mid/6"},
		{input: "/..", expected: "/"},
		{input: "", expected: ""},
	}

	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, removeDotSegments(tc.input))
		})
	}
}
