package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// identityResponse is the body of GET /v1/identity.
type identityResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsGuest     bool   `json:"isGuest"`
}

// RemoteAuthenticator asks an external identity service who a bearer token belongs to.
type RemoteAuthenticator struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*RemoteAuthenticator)

func WithTimeout(d time.Duration) Option {
	return func(a *RemoteAuthenticator) { a.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(a *RemoteAuthenticator) { a.retryMax = max }
}

func WithMaxConnsPerHost(n int) Option {
	return func(a *RemoteAuthenticator) { a.http.MaxConnsPerHost = n }
}

// WithDial replaces the network dialer, e.g. with an in-memory listener.
func WithDial(d fasthttp.DialFunc) Option {
	return func(a *RemoteAuthenticator) { a.http.Dial = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(a *RemoteAuthenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

func NewRemoteAuthenticator(baseURL string, opts ...Option) *RemoteAuthenticator {
	a := &RemoteAuthenticator{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 64},
		logger:         zap.NewNop(),
		defaultTimeout: 5 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RemoteAuthenticator) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Identity{}, ErrUnauthorized
	}
	var resp identityResponse
	if err := a.get(ctx, "/v1/identity", token, &resp); err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(resp.UserID) == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty user id", ErrUnauthorized)
	}
	name := strings.TrimSpace(resp.DisplayName)
	if name == "" {
		name = resp.UserID
	}
	return domain.Identity{UserID: resp.UserID, DisplayName: name, IsGuest: resp.IsGuest}, nil
}

// Ping checks that the identity service answers at all.
func (a *RemoteAuthenticator) Ping(ctx context.Context) error {
	return a.get(ctx, "/healthz", "", nil)
}

func (a *RemoteAuthenticator) get(ctx context.Context, path, token string, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(a.baseURL + path)
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	attempts := a.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := a.http.DoDeadline(req, resp, a.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("identity request failed: %w", err)
		} else {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusUnauthorized || status == fasthttp.StatusForbidden:
				return ErrUnauthorized
			case status >= 200 && status < 300:
				if out != nil {
					if err := json.Unmarshal(resp.Body(), out); err != nil {
						return fmt.Errorf("decode identity response: %w", err)
					}
				}
				return nil
			}
			lastErr = fmt.Errorf("identity api error: status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return lastErr
			}
		}
		if attempt == attempts {
			break
		}
		a.logger.Debug("identity_retry", zap.Int("attempt", attempt), zap.Error(lastErr))
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (a *RemoteAuthenticator) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(a.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
