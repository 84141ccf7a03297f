package identity

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/park285/cheese-xiangqi/internal/domain"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestRemote(t *testing.T) (*RemoteAuthenticator, *atomic.Int32) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	var flaky atomic.Int32
	handler := func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/healthz" {
			ctx.SetStatusCode(fasthttp.StatusOK)
			return
		}
		if string(ctx.Path()) != "/v1/identity" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		switch string(ctx.Request.Header.Peek("Authorization")) {
		case "Bearer good":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"userId":"u-1","displayName":"Alice"}`)
		case "Bearer flaky":
			if flaky.Add(1) == 1 {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				return
			}
			ctx.SetBodyString(`{"userId":"u-2","displayName":"","isGuest":true}`)
		case "Bearer down":
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		case "Bearer broken":
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
		default:
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		}
	}
	go func() { _ = fasthttp.Serve(ln, handler) }()
	t.Cleanup(func() { _ = ln.Close() })

	a := NewRemoteAuthenticator("http://identity.test/",
		WithDial(func(addr string) (net.Conn, error) { return ln.Dial() }),
		WithRetry(3),
	)
	return a, &flaky
}

func TestRemoteResolve(t *testing.T) {
	a, _ := newTestRemote(t)
	id, err := a.Resolve(context.Background(), "good")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id != (domain.Identity{UserID: "u-1", DisplayName: "Alice"}) {
		t.Fatalf("identity = %+v", id)
	}
	if err := a.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestRemoteRejectsUnknownToken(t *testing.T) {
	a, _ := newTestRemote(t)
	if _, err := a.Resolve(context.Background(), "nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := a.Resolve(context.Background(), ""); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("empty token: %v", err)
	}
}

func TestRemoteRetriesServerErrors(t *testing.T) {
	a, flaky := newTestRemote(t)
	id, err := a.Resolve(context.Background(), "flaky")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if flaky.Load() != 2 {
		t.Fatalf("attempts = %d", flaky.Load())
	}
	// empty display name falls back to the id
	if id.DisplayName != "u-2" || !id.IsGuest {
		t.Fatalf("identity = %+v", id)
	}

	_, err = a.Resolve(context.Background(), "down")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected service error, got %v", err)
	}
	_, err = a.Resolve(context.Background(), "broken")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected non-retried client error, got %v", err)
	}
}

func TestGuestAuthenticator(t *testing.T) {
	var g GuestAuthenticator
	id, err := g.Resolve(context.Background(), "guest:Mei")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.UserID != "guest:mei" || id.DisplayName != "Mei" || !id.IsGuest {
		t.Fatalf("identity = %+v", id)
	}
	for _, tok := range []string{"Mei", "guest:", "guest:has space", "guest:waaaaaaaaaaaaaaaaaaaaaaaaaaaaytoolong"} {
		if _, err := g.Resolve(context.Background(), tok); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("%q accepted", tok)
		}
	}
}

type stubAuth struct {
	id  domain.Identity
	err error
}

func (s stubAuth) Resolve(context.Context, string) (domain.Identity, error) { return s.id, s.err }

func TestChain(t *testing.T) {
	ctx := context.Background()
	down := errors.New("identity down")

	c := Chain{GuestAuthenticator{}, stubAuth{id: domain.Identity{UserID: "u-9"}}}
	if id, err := c.Resolve(ctx, "guest:bo"); err != nil || id.UserID != "guest:bo" {
		t.Fatalf("guest via chain: %+v %v", id, err)
	}
	if id, err := c.Resolve(ctx, "opaque"); err != nil || id.UserID != "u-9" {
		t.Fatalf("remote via chain: %+v %v", id, err)
	}

	c = Chain{GuestAuthenticator{}, stubAuth{err: down}}
	if _, err := c.Resolve(ctx, "opaque"); !errors.Is(err, down) {
		t.Fatalf("expected service error to surface, got %v", err)
	}
	c = Chain{GuestAuthenticator{}, stubAuth{err: ErrUnauthorized}}
	if _, err := c.Resolve(ctx, "opaque"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.Resolve(ctx, " "); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("blank token: %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"":             "",
	}
	for in, want := range cases {
		if got := BearerToken(in); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
