// Package credential fetches room credentials from the token service.
package credential

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/dkeye/Reception/internal/core"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/rs/zerolog/log"
)

// maxBody caps how much of a token response is read.
const maxBody = 64 << 10

var _ core.CredentialFetcher = (*HTTPFetcher)(nil)

// Response is the token service body. WSURL is optional.
type Response struct {
	Token string `json:"token"`
	WSURL string `json:"wsUrl,omitempty"`
}

// HTTPFetcher issues GET <url>?identity=..&room=.. once per call. No caching.
type HTTPFetcher struct {
	URL    string
	Client *http.Client
}

func NewHTTPFetcher(rawURL string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		URL:    rawURL,
		Client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, identity string, room domain.RoomID) (domain.Credential, error) {
	u, err := url.Parse(f.URL)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: bad token url: %w", core.ErrCredential, err)
	}
	q := u.Query()
	q.Set("identity", identity)
	q.Set("room", string(room))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %w", core.ErrCredential, err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: %w", core.ErrCredential, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Credential{}, fmt.Errorf("%w: token service status %d", core.ErrCredential, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.Credential{}, fmt.Errorf("%w: read body: %w", core.ErrCredential, err)
	}
	var r Response
	if err := json.Unmarshal(body, &r); err != nil {
		return domain.Credential{}, fmt.Errorf("%w: malformed response: %w", core.ErrCredential, err)
	}
	if r.Token == "" {
		return domain.Credential{}, fmt.Errorf("%w: response has no token", core.ErrCredential)
	}

	log.Debug().Str("module", "credential").Str("room", string(room)).Str("identity", identity).Bool("has_endpoint", r.WSURL != "").Msg("credential fetched")
	return domain.Credential{
		Endpoint: r.WSURL,
		Token:    r.Token,
		Identity: identity,
		Room:     room,
	}, nil
}
