package uri

import (
	"strings"

	"github.com/pkg/errors"
)

// Resolve resolves ref against base component by component.
// Components missing from ref are carried over from base, so a redirect to
// "/new" keeps the scheme, userinfo, host and port of the original target.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.2
func Resolve(base, ref Target) (out Target, err error) {
	if base.IsRelativeRef() {
		return Target{}, errors.New("base cannot be relative ref")
	}

	out = ref
	defer func() { out.Path = removeDotSegments(out.Path) }()

	if out.Scheme != "" {
		return out, nil
	}
	out.Scheme = base.Scheme

	if out.Host != "" {
		return out, nil
	}
	out.UserInfo, out.Host, out.Port = base.UserInfo, base.Host, base.Port

	if out.Path != "" {
		if !strings.HasPrefix(out.Path, "/") {
			out.Path = mergePath(base, out)
		}
		return out, nil
	}
	out.Path = base.Path

	if out.Query != nil {
		return out, nil
	}
	out.Query = base.Query

	return out, nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.3
func mergePath(base, ref Target) string {
	if base.Host != "" && base.Path == "" {
		return "/" + ref.Path
	}

	if idx := strings.LastIndexByte(base.Path, '/'); idx >= 0 {
		return base.Path[:idx+1] + ref.Path
	}

	return ref.Path
}

// Reference: https://datatracker.ietf.org/doc/html/rfc3986#section-5.2.4
func removeDotSegments(path string) string {
	out := make([]string, 0)
	pop := func() {
		if len(out) > 0 {
			out = out[:len(out)-1]
		}
	}

	for len(path) > 0 {
		var found bool
		// A. drop a leading "../" or "./".
		if path, found = strings.CutPrefix(path, "../"); found {
			continue
		}
		if path, found = strings.CutPrefix(path, "./"); found {
			continue
		}

		// B. "/./" or a trailing "/." become "/".
		if path, found = strings.CutPrefix(path, "/./"); found {
			path = "/" + path
			continue
		} else if path == "/." {
			path = "/"
			continue
		}

		// C. "/../" or a trailing "/.." become "/" and drop the last output segment.
		if path, found = strings.CutPrefix(path, "/../"); found {
			pop()
			path = "/" + path
			continue
		} else if path == "/.." {
			pop()
			path = "/"
			continue
		}

		// D. a lone "." or "..".
		if path == ".." || path == "." {
			break
		}

		// E. move the first segment, with its leading "/", to the output.
		idx := strings.IndexByte(path[1:], '/') + 1
		if idx == 0 {
			idx = len(path)
		}
		out = append(out, path[:idx])
		path = path[idx:]
	}

	return strings.Join(out, "")
}
