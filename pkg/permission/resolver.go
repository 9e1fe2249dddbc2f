package permission

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/remotia/remotia/pkg/auth"
	"github.com/remotia/remotia/pkg/observability"
)

const resolveTimeout = 15 * time.Second

// Resolver fetches the capability set for a device from the sharing backend.
type Resolver struct {
	baseURL string
	client  *http.Client
	store   *auth.Store
	logger  *observability.Logger
}

// NewResolver creates a Resolver against the REST backend base URL.
func NewResolver(baseURL string, store *auth.Store, logger *observability.Logger) *Resolver {
	return &Resolver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: resolveTimeout},
		store:   store,
		logger:  logger,
	}
}

// shareRecord mirrors the sharing backend's share shape. Permission flags are
// pointers so an absent flag maps to false rather than a decode error.
type shareRecord struct {
	PermissionGroup struct {
		SeeScreen      *bool `json:"see_screen"`
		SeeSystemInfo  *bool `json:"see_system_info"`
		AccessMouse    *bool `json:"access_mouse"`
		AccessKeyboard *bool `json:"access_keyboard"`
		AccessTerminal *bool `json:"access_terminal"`
		ManagePower    *bool `json:"manage_power"`
	} `json:"permission_group"`
}

// Resolve returns the capability set for the device. Owners get the full set
// without a network call. Non-owners get the first active share record's
// permission group; no share or any fetch error yields the empty set, never
// a nil result, so callers are not stuck in a loading state.
func (r *Resolver) Resolve(ctx context.Context, deviceID string, isOwner bool) Set {
	if isOwner {
		return AllGranted()
	}

	set, err := r.fetchShare(ctx, deviceID)
	if err != nil {
		r.logger.Warn("share lookup failed, denying all capabilities",
			slog.String("device_id", deviceID),
			slog.String("error", err.Error()))
		return None()
	}
	return set
}

func (r *Resolver) fetchShare(ctx context.Context, deviceID string) (Set, error) {
	endpoint := fmt.Sprintf("%s/devices/%s/shares", r.baseURL, url.PathEscape(deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return None(), fmt.Errorf("building share request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.store.Get().Access)

	resp, err := r.client.Do(req)
	if err != nil {
		return None(), fmt.Errorf("share request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return None(), fmt.Errorf("share endpoint returned %d", resp.StatusCode)
	}

	var shares []shareRecord
	if err := json.NewDecoder(resp.Body).Decode(&shares); err != nil {
		return None(), fmt.Errorf("decoding share response: %w", err)
	}
	if len(shares) == 0 {
		return None(), nil
	}

	// Server ordering is arbitrary when more than one active share exists;
	// the first record wins.
	group := shares[0].PermissionGroup
	return Set{
		SeeScreen:      deref(group.SeeScreen),
		SeeSystemInfo:  deref(group.SeeSystemInfo),
		AccessMouse:    deref(group.AccessMouse),
		AccessKeyboard: deref(group.AccessKeyboard),
		AccessTerminal: deref(group.AccessTerminal),
		ManagePower:    deref(group.ManagePower),
	}, nil
}

func deref(b *bool) bool {
	return b != nil && *b
}
