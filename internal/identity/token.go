package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenCacheKey = "idp:admin-token"

// tokenResponse is the provider's password-grant reply. The refresh token
// is persisted by the provider but unused here; a fresh grant is cheaper
// than refresh-token bookkeeping at our call volume.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// TokenSource acquires and caches the administrative access token used by
// all admin API calls. The token is cached in-process until shortly before
// expiry, and shared through redis across instances when one is configured.
type TokenSource struct {
	http     *resty.Client
	username string
	password string
	rdb      *redis.Client
	lg       *zap.SugaredLogger

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource builds a source against the provider base URL. rdb may be
// nil, in which case caching is in-process only.
func NewTokenSource(baseURL, username, password string, rdb *redis.Client, lg *zap.SugaredLogger) *TokenSource {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)
	return &TokenSource{
		http:     client,
		username: username,
		password: password,
		rdb:      rdb,
		lg:       lg,
	}
}

// Token returns a valid admin access token, fetching a new one when the
// cached token is within 30s of expiry.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && time.Now().Before(t.expiry.Add(-30*time.Second)) {
		return t.token, nil
	}

	if t.rdb != nil {
		if v, err := t.rdb.Get(ctx, tokenCacheKey).Result(); err == nil && v != "" {
			ttl, terr := t.rdb.TTL(ctx, tokenCacheKey).Result()
			if terr == nil && ttl > 30*time.Second {
				t.token = v
				t.expiry = time.Now().Add(ttl)
				return t.token, nil
			}
		}
	}

	var tr tokenResponse
	resp, err := t.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"client_id":  "admin-cli",
			"username":   t.username,
			"password":   t.password,
		}).
		SetResult(&tr).
		Post("/realms/master/protocol/openid-connect/token")
	if err != nil {
		return "", fmt.Errorf("admin token: %w: %v", ErrUnavailable, err)
	}
	if resp.IsError() || tr.AccessToken == "" {
		return "", fmt.Errorf("admin token: %w: status %d", ErrUnavailable, resp.StatusCode())
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Minute
	}
	t.token = tr.AccessToken
	t.expiry = time.Now().Add(ttl)

	if t.rdb != nil {
		// Best effort: a failed cache write only costs other instances a
		// token fetch of their own.
		if err := t.rdb.Set(ctx, tokenCacheKey, tr.AccessToken, ttl-30*time.Second).Err(); err != nil {
			t.lg.Warnw("failed to cache admin token", "error", err)
		}
	}
	return t.token, nil
}

// Invalidate drops the cached token, forcing a refetch on next use.
func (t *TokenSource) Invalidate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = ""
	t.expiry = time.Time{}
	if t.rdb != nil {
		_ = t.rdb.Del(ctx, tokenCacheKey).Err()
	}
}
