package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/atmx/roulette-engine/internal/admin"
	"github.com/atmx/roulette-engine/internal/api"
	"github.com/atmx/roulette-engine/internal/clock"
	"github.com/atmx/roulette-engine/internal/events"
	"github.com/atmx/roulette-engine/internal/live"
	"github.com/atmx/roulette-engine/internal/randomness"
	"github.com/atmx/roulette-engine/internal/round"
	"github.com/atmx/roulette-engine/internal/store"
)

// uuidGenerator adapts github.com/google/uuid to round.IDGenerator.
type uuidGenerator struct{}

func (uuidGenerator) NewID() string { return uuid.New().String() }

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	// --- Redis: cache layer and durable event sink ---
	var rdb *redis.Client
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })

		if _, ok := st.(*store.MemoryStore); !ok {
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("REDIS_URL not set, running without a cache or durable event sink")
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Admin capability ---
	var cap admin.Capability
	if token := os.Getenv("OPERATOR_TOKEN"); token != "" {
		c, err := admin.FromToken(token)
		if err != nil {
			slog.Error("invalid OPERATOR_TOKEN", "err", err)
			os.Exit(1)
		}
		cap = c
	} else {
		c, err := admin.New()
		if err != nil {
			slog.Error("failed to mint admin capability", "err", err)
			os.Exit(1)
		}
		cap = c
		slog.Warn("OPERATOR_TOKEN not set, minted a fresh capability for this run", "token", cap.String())
	}

	// --- Beacon verifier ---
	pubkeyHex := os.Getenv("BEACON_PUBKEY")
	if pubkeyHex == "" {
		slog.Error("BEACON_PUBKEY must be set to a hex-encoded 48-byte min-pk BLS12-381 public key")
		os.Exit(1)
	}
	pubkeyBytes, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		slog.Error("BEACON_PUBKEY is not valid hex", "err", err)
		os.Exit(1)
	}
	verifier, err := randomness.NewVerifier(pubkeyBytes)
	if err != nil {
		slog.Error("failed to construct beacon verifier", "err", err)
		os.Exit(1)
	}

	// --- Live WebSocket hub ---
	hub := live.NewHub()
	var group errgroup.Group
	group.Go(func() error {
		hub.Run()
		return nil
	})

	// --- Event channel: durable sink + live broadcast ---
	var sink events.Publisher = events.NopPublisher{}
	if rdb != nil {
		sink = events.NewRedisSink(rdb, "roulette:events")
	}
	fanOut := events.NewFanOut(sink, hub)

	// --- Round engine ---
	engine := round.NewEngine(cap, st, fanOut, verifier, uuidGenerator{}, clock.NewSystem(),
		randomness.Selector, randomness.Derive)

	// --- HTTP router ---
	apiSrv := api.NewServer(engine, st)
	r := api.NewRouter(apiSrv, hub)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("roulette-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down roulette-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("roulette-engine stopped")
}
