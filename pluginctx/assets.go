package pluginctx

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/vinayprograms/pluginkit/errors"
)

// Assets builds URLs for files under a plugin's asset root.
type Assets struct {
	base string
}

// NewAssets validates base, which must be an absolute http(s) URL or an
// absolute path, and normalizes it to end in "/".
func NewAssets(base string) (Assets, error) {
	u, err := url.Parse(base)
	if err != nil {
		return Assets{}, errors.InvalidInput("invalid assets base", errors.WithCause(err),
			errors.WithMetadata("base", base))
	}
	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		if u.Host == "" {
			return Assets{}, errors.InvalidInput("assets base has no host", errors.WithMetadata("base", base))
		}
	case u.Scheme == "" && u.Host == "" && strings.HasPrefix(u.Path, "/"):
	default:
		return Assets{}, errors.InvalidInput("assets base must be an http(s) URL or an absolute path",
			errors.WithMetadata("base", base))
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return Assets{}, errors.InvalidInput("assets base must not have a query or fragment",
			errors.WithMetadata("base", base))
	}

	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return Assets{base: base}, nil
}

// Base returns the asset root, always ending in "/".
func (a Assets) Base() string {
	return a.base
}

// Resolve returns the URL of a file relative to the asset root. Leading
// slashes are ignored. Any ".." segment is rejected, including
// percent-encoded ones, as are backslashes and absolute URLs.
func (a Assets) Resolve(p string) (string, error) {
	reject := func(reason string) (string, error) {
		return "", errors.InvalidInput(fmt.Sprintf("asset path %q %s", p, reason),
			errors.WithMetadata("path", p))
	}

	if strings.Contains(p, "\\") {
		return reject("contains a backslash")
	}
	ref, err := url.Parse(strings.TrimLeft(p, "/"))
	if err != nil {
		return reject("is not a valid URL path")
	}
	if ref.Scheme != "" || ref.Host != "" || ref.Opaque != "" {
		return reject("is not relative")
	}

	// ref.Path is already unescaped, so %2e%2e is seen as "..".
	if strings.Contains(ref.Path, "\\") {
		return reject("contains a backslash")
	}
	if hasDotDot(ref.Path) {
		return reject("escapes the asset root")
	}

	out := a.base + (&url.URL{Path: ref.Path}).EscapedPath()
	if ref.RawQuery != "" {
		out += "?" + ref.RawQuery
	}
	if ref.Fragment != "" {
		out += "#" + ref.EscapedFragment()
	}
	return out, nil
}

func hasDotDot(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
