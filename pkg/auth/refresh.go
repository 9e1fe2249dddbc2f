package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/remotia/remotia/pkg/observability"
)

// RefreshTokenHeader carries the refresh token on refresh requests.
const RefreshTokenHeader = "X-Refresh-Token"

const refreshTimeout = 15 * time.Second

// Refresher exchanges the stored refresh token for a new access token.
type Refresher struct {
	url    string
	client *http.Client
	store  *Store
	logger *observability.Logger
}

// NewRefresher creates a Refresher against the given refresh endpoint.
func NewRefresher(url string, store *Store, logger *observability.Logger) *Refresher {
	return &Refresher{
		url:    url,
		client: &http.Client{Timeout: refreshTimeout},
		store:  store,
		logger: logger,
	}
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Refresh performs the token refresh round trip and updates the store on
// success. Returns the new access token.
func (r *Refresher) Refresh(ctx context.Context) (string, error) {
	refresh := r.store.Get().Refresh
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, nil)
	if err != nil {
		return "", fmt.Errorf("building refresh request: %w", err)
	}
	req.Header.Set(RefreshTokenHeader, refresh)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("refresh response missing access token")
	}

	r.store.Set(Tokens{Access: body.AccessToken, Refresh: body.RefreshToken})
	r.logger.Debug("access token refreshed", slog.Bool("rotated_refresh", body.RefreshToken != ""))
	return body.AccessToken, nil
}

// AccessToken returns a usable access token: the stored one when present and
// unexpired, otherwise the result of a refresh round trip.
func (r *Refresher) AccessToken(ctx context.Context) (string, error) {
	tokens := r.store.Get()
	if tokens.Access != "" && !r.store.AccessExpired(time.Now()) {
		return tokens.Access, nil
	}
	return r.Refresh(ctx)
}
