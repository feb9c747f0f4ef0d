package main

import (
	"fmt"
	"net/http"
)

// BearerTransport wraps a RoundTripper and stamps every outgoing request with the
// gateway credentials and a fixed set of extra headers.
type BearerTransport struct {
	BaseTransport http.RoundTripper
	Token         string
	Headers       map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid side effects on retries
	reqClone := req.Clone(req.Context())

	if t.Token != "" {
		reqClone.Header.Set("Authorization", fmt.Sprintf("Bearer %s", t.Token))
	}
	for k, v := range t.Headers {
		if reqClone.Header.Get(k) == "" {
			reqClone.Header.Set(k, v)
		}
	}

	base := t.BaseTransport
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(reqClone)
}

// NewHttpClientWithBearerTransport returns a client that authenticates with token.
func NewHttpClientWithBearerTransport(token string, headers map[string]string) *http.Client {
	return &http.Client{
		Transport: &BearerTransport{
			BaseTransport: http.DefaultTransport,
			Token:         token,
			Headers:       headers,
		},
	}
}
