package pluginctx

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/pkg/browser"

	"github.com/vinayprograms/pluginkit/errors"
)

// URLOpener opens a URL outside the plugin's view.
type URLOpener interface {
	OpenURL(ctx context.Context, rawURL string) error
}

// BrowserOpener opens URLs in the user's default browser.
type BrowserOpener struct{}

// OpenURL hands rawURL to the operating system.
func (BrowserOpener) OpenURL(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := browser.OpenURL(rawURL); err != nil {
		return errors.New(errors.ErrCodeUnavailable, "open browser", errors.WithCause(err))
	}
	return nil
}

func init() {
	// The launcher's own output would interleave with the host's logs.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// ValidateURL accepts absolute http and https URLs with a host.
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, errors.InvalidInput("invalid URL", errors.WithCause(err),
			errors.WithMetadata("url", rawURL))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.InvalidInput("only http and https URLs can be opened",
			errors.WithMetadata("url", rawURL), errors.WithMetadata("scheme", u.Scheme))
	}
	if u.Host == "" {
		return nil, errors.InvalidInput("URL has no host", errors.WithMetadata("url", rawURL))
	}
	return u, nil
}
