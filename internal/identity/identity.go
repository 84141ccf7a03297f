package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/park285/cheese-xiangqi/internal/domain"
)

// ErrUnauthorized means the credential did not resolve to an identity.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator resolves an opaque bearer credential into a trusted identity.
type Authenticator interface {
	Resolve(ctx context.Context, token string) (domain.Identity, error)
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) string {
	h := strings.TrimSpace(header)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Chain tries each authenticator in order and returns the first identity.
type Chain []Authenticator

func (c Chain) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return domain.Identity{}, ErrUnauthorized
	}
	var lastErr error
	for _, a := range c {
		if a == nil {
			continue
		}
		id, err := a.Resolve(ctx, token)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrUnauthorized) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return domain.Identity{}, lastErr
	}
	return domain.Identity{}, ErrUnauthorized
}

const guestPrefix = "guest:"

var guestName = regexp.MustCompile(`^[\p{L}\p{N}_\-]{1,24}$`)

// GuestAuthenticator accepts "guest:<name>" credentials. Guest ids are
// derived from the name, so two guests picking the same name share a seat.
type GuestAuthenticator struct{}

func (GuestAuthenticator) Resolve(_ context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, guestPrefix) {
		return domain.Identity{}, ErrUnauthorized
	}
	name := strings.TrimSpace(strings.TrimPrefix(token, guestPrefix))
	if !guestName.MatchString(name) {
		return domain.Identity{}, ErrUnauthorized
	}
	return domain.Identity{
		UserID:      guestPrefix + strings.ToLower(name),
		DisplayName: name,
		IsGuest:     true,
	}, nil
}
