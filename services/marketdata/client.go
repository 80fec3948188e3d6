package marketdata

import (
	"context"
	"io"
	"net/http"
	"time"
)

// browserUserAgent is sent on every provider call. Both upstreams reject
// obvious non-browser agents intermittently.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewHTTPClient returns the http.Client shared by the adapters. No cookie
// jar: session cookies are carried explicitly in the CredentialSession.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// getBody issues a GET with browser headers and returns the body. Non-2xx
// statuses yield an *UpstreamError carrying the status code.
func getBody(ctx context.Context, client *http.Client, endpoint, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	return body, nil
}
