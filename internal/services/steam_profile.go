package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/codyseavey/inventory-valuator/internal/models"
)

var steamID64Tag = regexp.MustCompile(`<steamID64>(\d+)</steamID64>`)

// maxProfileBody caps how much of a profile XML document is read.
const maxProfileBody = 1 << 20

// SteamProfileResolver turns profile URLs and vanity names into SteamID64s.
type SteamProfileResolver struct {
	client  *http.Client
	baseURL string
	logger  *zap.Logger
}

func NewSteamProfileResolver(client *http.Client, baseURL string, logger *zap.Logger) *SteamProfileResolver {
	if baseURL == "" {
		baseURL = DefaultSteamBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SteamProfileResolver{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.Named("SteamProfile"),
	}
}

// Resolve accepts a SteamID64, a .../profiles/<id> URL, a .../id/<vanity>
// URL or a bare vanity name. Only the vanity forms call Steam.
func (r *SteamProfileResolver) Resolve(ctx context.Context, profile string) (string, error) {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return "", fmt.Errorf("empty profile: %w", ErrInvalidAccountID)
	}
	if models.IsValidSteamID64(profile) {
		return profile, nil
	}

	if _, rest, ok := strings.Cut(profile, "/profiles/"); ok {
		id := firstSegment(rest)
		if !models.IsValidSteamID64(id) {
			return "", fmt.Errorf("profile URL %q: %w", profile, ErrInvalidAccountID)
		}
		return id, nil
	}

	vanity := lastSegment(profile)
	if vanity == "" {
		return "", fmt.Errorf("profile URL %q: %w", profile, ErrInvalidAccountID)
	}
	return r.lookupVanity(ctx, vanity)
}

func (r *SteamProfileResolver) lookupVanity(ctx context.Context, vanity string) (string, error) {
	reqURL := fmt.Sprintf("%s/id/%s/?xml=1", r.baseURL, url.PathEscape(vanity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("profile %s: %w", vanity, ErrUpstreamThrottled)
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Info("Profile lookup failed", zap.String("vanity", vanity), zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("profile %s returned status %d: %w", vanity, resp.StatusCode, ErrInvalidAccountID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return "", fmt.Errorf("failed to read profile: %w", err)
	}

	match := steamID64Tag.FindSubmatch(body)
	if match == nil || !models.IsValidSteamID64(string(match[1])) {
		return "", fmt.Errorf("no SteamID64 for profile %s: %w", vanity, ErrInvalidAccountID)
	}
	return string(match[1]), nil
}

func firstSegment(path string) string {
	path = strings.TrimLeft(path, "/")
	if i := strings.IndexAny(path, "/?#"); i >= 0 {
		path = path[:i]
	}
	return path
}

func lastSegment(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	return path
}
