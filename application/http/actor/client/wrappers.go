package client

import (
	"context"
	"strings"

	"httpwire/application/http/multipart"
	"httpwire/application/util/uri"
)

const (
	formURLEncoded = "application/x-www-form-urlencoded"
)

// Get sends a GET request for rawURL with default settings.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := NewRequest("GET", rawURL)
	if err != nil {
		return failed(err)
	}
	return c.Send(ctx, *req)
}

// GetURLEncoded sends a GET request with data appended to the query of rawURL.
func (c *Client) GetURLEncoded(ctx context.Context, rawURL string, data map[string][]string) (*Response, error) {
	if query := uri.EncodeForm(data); query != "" {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL += sep + query
	}
	return c.Get(ctx, rawURL)
}

// Post sends body with the given content type.
func (c *Client) Post(ctx context.Context, rawURL, bodyType string, body []byte) (*Response, error) {
	req, err := NewRequest("POST", rawURL)
	if err != nil {
		return failed(err)
	}
	return c.Send(ctx, *req.WithBody(body, bodyType))
}

// PostURLEncoded sends data as an urlencoded form.
func (c *Client) PostURLEncoded(ctx context.Context, rawURL string, data map[string][]string) (*Response, error) {
	return c.Post(ctx, rawURL, formURLEncoded, []byte(uri.EncodeForm(data)))
}

// PostMultipart compiles form and sends it as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, rawURL string, form *multipart.Form) (*Response, error) {
	if form == nil {
		return failed(ErrNilForm)
	}

	body, err := form.Compile()
	if err != nil {
		return failed(err)
	}
	return c.Post(ctx, rawURL, form.ContentType(false), body)
}

func failed(err error) (*Response, error) {
	return &Response{ErrorText: err.Error()}, err
}
