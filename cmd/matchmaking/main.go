package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"landkeeper/pkg/cluster"
	"landkeeper/pkg/config"
	"landkeeper/pkg/gateway"
	"landkeeper/pkg/matchmaking"
	"landkeeper/pkg/provisioning"
	"landkeeper/pkg/server"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := loadAndConfigureSystem()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr()})
	defer rdb.Close()

	store := matchmaking.NewStore(rdb)
	registry := provisioning.NewRegistry(rdb)
	seedProvisioningRegistry(registry)
	directory := cluster.NewDirectory(rdb, time.Duration(cfg.ClusterDirectoryTTLSeconds)*time.Second)
	hub := gateway.NewHub()
	sessions := newKickRegistry()
	publisher := gateway.NewRedisPublisher(rdb, hub, directory, cfg.NodeID, cfg.UseNodeInboxForMatchAssigned, sessions.kick)

	issuer, err := matchmaking.NewTokenIssuer()
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize match token issuer")
	}

	metrics := server.NewMetrics("matchmaking")
	handler := buildHandler(cfg, store, registry, issuer, hub, metrics)

	ctx, cancel := context.WithCancel(context.Background())
	runBackgroundLoops(ctx, cfg, store, registry, issuer, publisher, hub, metrics)

	srv, listener := initializeServer(cfg, handler)
	executeServerLifecycle(srv, listener, cancel)
}

// kickRegistry is a placeholder single-process session tracker; the
// gameserver process owns the real transport.SessionRegistry. In a
// deployment where matchmaking and gameserver share a process, wire
// sessions.kick to that registry's CloseByClientID instead.
type kickRegistry struct{}

func newKickRegistry() *kickRegistry { return &kickRegistry{} }

func (k *kickRegistry) kick(userID string) {
	logrus.WithField("userId", userID).Info("received duplicate-login kick (no local session registry wired)")
}

// seedProvisioningRegistry optionally bootstraps the provisioning
// registry from a static server list, so pickServer has candidates
// before any real gameserver heartbeat arrives. No-op when
// PROVISIONING_SEED_FILE is unset.
func seedProvisioningRegistry(registry *provisioning.Registry) {
	path := os.Getenv("PROVISIONING_SEED_FILE")
	if path == "" {
		return
	}

	seeds, err := config.LoadServerSeeds(path)
	if err != nil {
		logrus.WithError(err).Warn("failed to load provisioning seed file")
		return
	}

	if err := registry.SeedFromConfig(context.Background(), seeds); err != nil {
		logrus.WithError(err).Warn("failed to seed provisioning registry")
		return
	}
	logrus.WithField("count", len(seeds)).Info("seeded provisioning registry from static file")
}

func buildHandler(cfg *config.Config, store *matchmaking.Store, registry *provisioning.Registry, issuer *matchmaking.TokenIssuer, hub *gateway.Hub, metrics *server.Metrics) http.Handler {
	gin.SetMode(ginModeFor(cfg))
	engine := gin.New()
	engine.Use(gin.Recovery())

	var rateLimiter *server.RateLimiter
	if cfg.RateLimitEnabled {
		rateLimiter = server.NewRateLimiter(cfg)
	}

	v1 := engine.Group("/v1")

	if cfg.MatchmakingRole == config.RoleAPI || cfg.MatchmakingRole == config.RoleAll {
		mmHandlers := matchmaking.NewHandlers(store, issuer)
		mmHandlers.Register(v1)
		engine.GET("/.well-known/jwks.json", mmHandlers.JWKS)
		provisioning.NewHandlers(registry).Register(v1)
	}

	mux := http.NewServeMux()
	mux.Handle("/v1/", server.Middleware(rateLimiter)(engine))
	mux.Handle("/.well-known/", engine)
	mux.Handle("/realtime", hub)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return metrics.Middleware(mux)
}

func ginModeFor(cfg *config.Config) string {
	if cfg.EnableDevMode {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func runBackgroundLoops(ctx context.Context, cfg *config.Config, store *matchmaking.Store, registry *provisioning.Registry, issuer *matchmaking.TokenIssuer, publisher *gateway.RedisPublisher, hub *gateway.Hub, metrics *server.Metrics) {
	if !cfg.UseNodeInboxForMatchAssigned {
		go publisher.SubscribeBroadcast(ctx)
	} else {
		go publisher.SubscribeInbox(ctx)
	}

	if cfg.MatchmakingRole == config.RoleQueueWorker || cfg.MatchmakingRole == config.RoleAll {
		strategy := matchmaking.NewFillGroupStrategy()
		worker := matchmaking.NewWorker(store, strategy, registry, issuer, publisher, cfg)
		worker.SetMetrics(metrics)
		go worker.Run(ctx)
	}

	go runQueueGaugeLoop(ctx, store, metrics)
}

func runQueueGaugeLoop(ctx context.Context, store *matchmaking.Store, metrics *server.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	report := func() {
		keys, err := store.QueueKeys(ctx)
		if err != nil {
			return
		}
		total := 0
		for _, key := range keys {
			tickets, err := store.QueuedTickets(ctx, key)
			if err != nil {
				continue
			}
			total += len(tickets)
		}
		metrics.SetActiveTickets(total)
	}

	report()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report()
		}
	}
}

func loadAndConfigureSystem() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	logrus.WithFields(logrus.Fields{
		"port":     cfg.ServerPort,
		"nodeId":   cfg.NodeID,
		"role":     cfg.MatchmakingRole,
		"logLevel": cfg.LogLevel,
	}).Info("starting landkeeper matchmaking process")

	return cfg
}

func initializeServer(cfg *config.Config, handler http.Handler) (*http.Server, net.Listener) {
	srv := &http.Server{Handler: handler}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ServerPort))
	if err != nil {
		logrus.WithError(err).Fatal("failed to start listener")
	}
	return srv, listener
}

func executeServerLifecycle(srv *http.Server, listener net.Listener, cancelBackground context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	errChan := make(chan error, 1)

	go func() {
		logrus.WithField("address", listener.Addr()).Info("matchmaking process listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-sigChan:
		logrus.WithField("signal", sig).Info("received shutdown signal")
	case err := <-errChan:
		logrus.WithError(err).Error("server error")
	}

	cancelBackground()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logrus.Info("shutting down matchmaking process gracefully...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("error during server shutdown")
	}
	logrus.Info("matchmaking process shutdown completed")
}
