package marketdata

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/WIGMarkets/wigmarkets-sub001/models"
)

const (
	defaultLandingURL = "https://fc.yahoo.com/"
	defaultCrumbURL   = "https://query1.finance.yahoo.com/v1/test/getcrumb"

	// Crumbs are short opaque tokens; anything longer is an error page.
	maxCrumbLength = 20
)

// SessionNegotiator obtains the cookie+crumb session the authenticated
// quote API requires. It performs no retries itself: callers decide whether
// to renegotiate or drop to the unauthenticated tier.
type SessionNegotiator struct {
	client     *http.Client
	landingURL string
	crumbURL   string
}

// NewSessionNegotiator creates a negotiator against the production
// endpoints.
func NewSessionNegotiator(client *http.Client) *SessionNegotiator {
	return &SessionNegotiator{
		client:     client,
		landingURL: defaultLandingURL,
		crumbURL:   defaultCrumbURL,
	}
}

// NewSessionNegotiatorURLs is the injectable variant used by tests and the
// screener controller wiring.
func NewSessionNegotiatorURLs(client *http.Client, landingURL, crumbURL string) *SessionNegotiator {
	return &SessionNegotiator{client: client, landingURL: landingURL, crumbURL: crumbURL}
}

// Negotiate fetches the landing page to harvest session cookies, then
// exchanges them for a crumb. Any violation of the crumb sanity rules
// returns an *AuthError.
func (n *SessionNegotiator) Negotiate(ctx context.Context) (*models.CredentialSession, error) {
	cookieHeader, err := n.fetchCookies(ctx)
	if err != nil {
		return nil, err
	}
	if cookieHeader == "" {
		return nil, &AuthError{Reason: "landing page set no cookies"}
	}

	crumb, err := n.fetchCrumb(ctx, cookieHeader)
	if err != nil {
		return nil, err
	}

	return &models.CredentialSession{CookieHeader: cookieHeader, Crumb: crumb}, nil
}

// fetchCookies GETs the landing page and joins every Set-Cookie pair with
// "; ". The landing page deliberately answers with an error status, so the
// status code is ignored here; only the cookies matter.
func (n *SessionNegotiator) fetchCookies(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.landingURL, nil)
	if err != nil {
		return "", &AuthError{Reason: err.Error()}
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "landing page request failed: " + err.Error()}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	raw := resp.Header.Values("Set-Cookie")
	if len(raw) == 1 {
		// Some proxies fold multiple cookies into one comma-joined header.
		raw = splitFoldedCookies(raw[0])
	}

	pairs := make([]string, 0, len(raw))
	for _, c := range raw {
		if pair := strings.TrimSpace(strings.SplitN(c, ";", 2)[0]); pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; "), nil
}

func (n *SessionNegotiator) fetchCrumb(ctx context.Context, cookieHeader string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.crumbURL, nil)
	if err != nil {
		return "", &AuthError{Reason: err.Error()}
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Cookie", cookieHeader)

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &AuthError{Reason: "crumb request failed: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Reason: "crumb read failed: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &AuthError{Reason: "crumb endpoint answered " + resp.Status}
	}

	crumb := strings.TrimSpace(string(body))
	switch {
	case crumb == "":
		return "", &AuthError{Reason: "empty crumb"}
	case strings.HasPrefix(crumb, "{"):
		return "", &AuthError{Reason: "crumb endpoint returned an error body"}
	case len(crumb) >= maxCrumbLength:
		return "", &AuthError{Reason: "crumb exceeds sanity bound"}
	}
	return crumb, nil
}

// splitFoldedCookies splits a comma-joined Set-Cookie value on commas not
// followed by a space. Cookie attributes like `Expires=Mon, 01 Jan`
// contain a comma followed by a space, which must not split.
func splitFoldedCookies(raw string) []string {
	var out []string
	start := 0
	for i := 0; i < len(raw); i++ {
		if raw[i] == ',' && i+1 < len(raw) && raw[i+1] != ' ' {
			out = append(out, raw[start:i])
			start = i + 1
		}
	}
	out = append(out, raw[start:])
	return out
}
