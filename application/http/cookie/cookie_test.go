package cookie

import (
	"testing"
	"time"

	"httpwire/application/util/uri"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var now = time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)

func mustTarget(t *testing.T, raw string) uri.Target {
	t.Helper()
	target, err := uri.Parse(raw)
	require.NoError(t, err)
	return target
}

func TestParse(t *testing.T) {
	expires := time.Date(2030, time.October, 21, 7, 28, 0, 0, time.UTC)
	maxAge := now.Add(time.Hour)

	testcases := []struct {
		desc     string
		line     string
		expected Cookie
		wantErr  bool
	}{
		{
			desc:     "name and value",
			line:     "sid=abc123",
			expected: Cookie{Name: "sid", Value: "abc123"},
		},
		{
			desc: "all attributes",
			line: `sid=abc; Domain=.Example.com; Path=/app; Expires=Mon, 21 Oct 2030 07:28:00 GMT; Secure; Comment="hi"; Version=1; HttpOnly`,
			expected: Cookie{
				Name:    "sid",
				Value:   "abc",
				Domain:  "example.com",
				Path:    "/app",
				Expires: &expires,
				Secure:  true,
				Comment: "hi",
				Version: "1",
			},
		},
		{
			desc:     "netscape expires layout",
			line:     "a=1; expires=Monday, 21-Oct-30 07:28:00 GMT",
			expected: Cookie{Name: "a", Value: "1", Expires: &expires},
		},
		{
			desc:     "max-age wins over expires",
			line:     "a=1; expires=Mon, 21 Oct 2030 07:28:00 GMT; max-age=3600",
			expected: Cookie{Name: "a", Value: "1", Expires: &maxAge},
		},
		{
			desc:     "unparseable expires ignored",
			line:     "a=1; expires=someday",
			expected: Cookie{Name: "a", Value: "1"},
		},
		{
			desc:     "empty value",
			line:     "a=; path=/",
			expected: Cookie{Name: "a", Path: "/"},
		},
		{
			desc:    "no name",
			line:    "=value; path=/",
			wantErr: true,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			c, err := Parse(tc.line, now)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrMissingName)
				return
			}

			require.NoError(t, err)
			if tc.expected.Expires != nil {
				require.NotNil(t, c.Expires)
				assert.True(t, tc.expected.Expires.Equal(*c.Expires))
				tc.expected.Expires, c.Expires = nil, nil
			}
			assert.Equal(t, tc.expected, c)
		})
	}
}

func TestValidFor(t *testing.T) {
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	testcases := []struct {
		desc     string
		cookie   Cookie
		target   string
		expected bool
	}{
		{desc: "plain", cookie: Cookie{Name: "a"}, target: "http://example.com/", expected: true},
		{desc: "expired", cookie: Cookie{Name: "a", Expires: &past}, target: "http://example.com/", expected: false},
		{desc: "not yet expired", cookie: Cookie{Name: "a", Expires: &future}, target: "http://example.com/", expected: true},
		{desc: "exact domain", cookie: Cookie{Name: "a", Domain: "example.com"}, target: "http://example.com/", expected: true},
		{desc: "subdomain", cookie: Cookie{Name: "a", Domain: "example.com"}, target: "http://sub.example.com/", expected: true},
		{desc: "other domain", cookie: Cookie{Name: "a", Domain: "example.com"}, target: "http://other.com/", expected: false},
		{desc: "suffix without dot", cookie: Cookie{Name: "a", Domain: "example.com"}, target: "http://badexample.com/", expected: false},
		{desc: "path prefix", cookie: Cookie{Name: "a", Path: "/app"}, target: "http://example.com/app/x", expected: true},
		{desc: "path mismatch", cookie: Cookie{Name: "a", Path: "/app"}, target: "http://example.com/other", expected: false},
		{desc: "secure over https", cookie: Cookie{Name: "a", Secure: true}, target: "https://example.com/", expected: true},
		{desc: "secure over http", cookie: Cookie{Name: "a", Secure: true}, target: "http://example.com/", expected: false},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			target := mustTarget(t, tc.target)
			assert.Equal(t, tc.expected, tc.cookie.ValidFor(target, target.FullPath("GET"), now))
		})
	}
}

type JarTestSuite struct {
	suite.Suite

	clock *clock.Mock
	jar   *Jar
}

func TestJarTestSuite(t *testing.T) {
	suite.Run(t, new(JarTestSuite))
}

func (s *JarTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.clock.Set(now)
	s.jar = NewJar(s.clock)
}

func (s *JarTestSuite) target(raw string) uri.Target {
	return mustTarget(s.T(), raw)
}

func (s *JarTestSuite) TestSetFromHeader() {
	target := s.target("http://sub.example.com/app")

	stored, err := s.jar.SetFromHeader("a=1; domain=example.com", target, target.FullPath("GET"))
	s.Require().NoError(err)
	s.True(stored)

	stored, err = s.jar.SetFromHeader("b=2; domain=other.com", target, target.FullPath("GET"))
	s.Require().NoError(err)
	s.False(stored)

	stored, err = s.jar.SetFromHeader("c=3; expires=Thu, 01 Jan 1970 00:00:00 GMT", target, target.FullPath("GET"))
	s.Require().NoError(err)
	s.False(stored)

	_, err = s.jar.SetFromHeader("; path=/", target, target.FullPath("GET"))
	s.ErrorIs(err, ErrMissingName)

	s.Equal(1, s.jar.Len())
}

func (s *JarTestSuite) TestLastWriteWins() {
	target := s.target("http://example.com/")

	_, err := s.jar.SetFromHeader("a=1", target, "/")
	s.Require().NoError(err)
	_, err = s.jar.SetFromHeader("b=2", target, "/")
	s.Require().NoError(err)
	_, err = s.jar.SetFromHeader("a=3", target, "/")
	s.Require().NoError(err)

	value, ok := s.jar.Header(target, "/")
	s.True(ok)
	s.Equal("a=3; b=2", value)
}

func (s *JarTestSuite) TestHeaderFiltersOnEmission() {
	expires := now.Add(time.Hour)
	s.jar.Add(
		Cookie{Name: "a", Value: "1", Domain: "example.com"},
		Cookie{Name: "b", Value: "2", Expires: &expires},
		Cookie{Name: "c", Value: "3", Path: "/admin"},
	)

	value, ok := s.jar.Header(s.target("http://sub.example.com/"), "/")
	s.True(ok)
	s.Equal("a=1; b=2", value)

	value, ok = s.jar.Header(s.target("http://other.com/admin"), "/admin")
	s.True(ok)
	s.Equal("b=2; c=3", value)

	s.clock.Add(2 * time.Hour)

	value, ok = s.jar.Header(s.target("http://other.com/"), "/")
	s.False(ok)
	s.Empty(value)

	// Expired cookies are filtered, never removed.
	s.Len(s.jar.Cookies(), 3)
}

func (s *JarTestSuite) TestNilClock() {
	jar := NewJar(nil)
	jar.Add(Cookie{Name: "a", Value: "1"})

	value, ok := jar.Header(s.target("http://example.com/"), "/")
	s.True(ok)
	s.Equal("a=1", value)
}
