package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/park285/cheese-xiangqi/internal/identity"
	"github.com/park285/cheese-xiangqi/internal/results"
	"github.com/park285/cheese-xiangqi/internal/store"
	"github.com/park285/cheese-xiangqi/pkg/xiangqidto"
	"github.com/park285/cheese-xiangqi/pkg/xqclient"
)

// xqcheck checks the backing services and, when XQ_WS_URL is set, a running
// server's websocket endpoint.
func main() {
	failed := false

	if url := os.Getenv("REDIS_URL"); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a, err := store.NewRedisArchive(ctx, url, 0, nil)
		cancel()
		if err != nil {
			log.Printf("redis error: %v", err)
			failed = true
		} else {
			log.Println("redis ok")
			_ = a.Close()
		}
	} else {
		log.Println("REDIS_URL not set; skipping redis check")
	}

	if url := os.Getenv("DATABASE_URL"); url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		repo, err := results.NewPostgresRepository(ctx, url)
		cancel()
		if err != nil {
			log.Printf("postgres error: %v", err)
			failed = true
		} else {
			log.Println("postgres ok")
			_ = repo.Close()
		}
	} else {
		log.Println("DATABASE_URL not set; skipping postgres check")
	}

	if base := os.Getenv("IDENTITY_BASE_URL"); base != "" {
		auth := identity.NewRemoteAuthenticator(base, identity.WithTimeout(5*time.Second))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := auth.Ping(ctx)
		cancel()
		if err != nil {
			log.Printf("identity error: %v", err)
			failed = true
		} else {
			log.Println("identity ok")
		}
	} else {
		log.Println("IDENTITY_BASE_URL not set; skipping identity check")
	}

	if wsURL := os.Getenv("XQ_WS_URL"); wsURL != "" {
		if err := checkWS(wsURL, os.Getenv("XQ_TOKEN")); err != nil {
			log.Printf("WS error: %v", err)
			failed = true
		} else {
			log.Println("WS ok")
		}
	}

	if failed {
		os.Exit(1)
	}
}

// checkWS connects and expects an answer to leave_matchmaking, which every
// authenticated session can send.
func checkWS(wsURL, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if token == "" {
		token = "guest:xqcheck"
	}
	c := xqclient.New(wsURL, token, xqclient.WithMaxReconnect(0))
	c.OnStateChange(func(s xqclient.State) { log.Printf("WS state: %s", s) })
	left := make(chan struct{}, 1)
	c.OnMessage(func(env xiangqidto.Envelope) {
		log.Printf("WS msg type=%s room=%s", env.Type, env.RoomID)
		if env.Type == xiangqidto.TypeMatchmakingLeft {
			select {
			case left <- struct{}{}:
			default:
			}
		}
	})
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = c.Close(context.Background()) }()

	if err := c.Send(ctx, xiangqidto.TypeLeaveMatchmaking, "", nil); err != nil {
		return err
	}
	select {
	case <-left:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
