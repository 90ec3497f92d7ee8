package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"landkeeper/pkg/admin"
	"landkeeper/pkg/config"
	"landkeeper/pkg/integration"
	"landkeeper/pkg/land"
	"landkeeper/pkg/landtypes/arena"
	"landkeeper/pkg/matchmaking"
	"landkeeper/pkg/realm"
	"landkeeper/pkg/replay"
	"landkeeper/pkg/server"
	"landkeeper/pkg/syncengine"
	"landkeeper/pkg/transport"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const heartbeatInterval = 30 * time.Second

func gameserverHost() string {
	if host := os.Getenv("GAMESERVER_HOST"); host != "" {
		return host
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "localhost"
}

func main() {
	cfg := loadAndConfigureSystem()

	registry := realm.NewRegistry()
	registerLandTypes(registry)

	replayManager := replay.NewManager("data/replays")
	runner := replay.NewRunner(replayManager, registry)

	sessions := transport.NewSessionRegistry()
	jwksURL := cfg.ProvisioningBaseURL + "/.well-known/jwks.json"
	jwksValidator := matchmaking.NewJWKSValidator(jwksURL)

	metrics := server.NewMetrics("gameserver")
	handler := buildHandler(cfg, registry, replayManager, runner, sessions, jwksValidator, metrics)

	srv, listener := initializeServer(cfg, handler)

	heartbeatCtx, stopHeartbeat := context.WithCancel(context.Background())
	go runHeartbeatLoop(heartbeatCtx, cfg)
	go runRetirementSweep(heartbeatCtx, registry, cfg.RetirementGrace)
	go runGaugeLoop(heartbeatCtx, registry, metrics)

	executeServerLifecycle(srv, listener, replayManager, cfg, stopHeartbeat)
}

func runRetirementSweep(ctx context.Context, registry *realm.Registry, grace time.Duration) {
	ticker := time.NewTicker(grace / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.SweepRetirements(grace); n > 0 {
				logrus.WithField("count", n).Info("retired idle land instances")
			}
		}
	}
}

func runGaugeLoop(ctx context.Context, registry *realm.Registry, metrics *server.Metrics) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	report := func() {
		instances := registry.Instances()
		sessions := 0
		for _, k := range instances {
			sessions += k.Stats().SessionCount
		}
		metrics.SetActiveLands(len(instances))
		metrics.SetActiveSessions(sessions)
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

func registerLandTypes(registry *realm.Registry) {
	def, err := arena.NewDefinition()
	if err != nil {
		logrus.WithError(err).Fatal("failed to build arena land definition")
	}

	factory := func(instanceID string, options map[string]any) (*land.Keeper, error) {
		seed := time.Now().UnixNano()
		if s, ok := options["seed"].(int64); ok {
			seed = s
		}
		return land.NewKeeper(def, instanceID, seed)
	}

	if err := registry.Register(arena.LandType, "/game/"+arena.LandType, factory); err != nil {
		logrus.WithError(err).Fatal("failed to register arena land type")
	}
	if err := registry.RegisterReplay(arena.LandType, "/game/"+arena.LandType, factory); err != nil {
		logrus.WithError(err).Fatal("failed to register arena replay alias")
	}
}

func buildHandler(cfg *config.Config, registry *realm.Registry, replayManager *replay.Manager, runner *replay.Runner, sessions *transport.SessionRegistry, jwksValidator *matchmaking.JWKSValidator, metrics *server.Metrics) http.Handler {
	router := realm.NewRouter(registry, true)

	var rateLimiter *server.RateLimiter
	if cfg.RateLimitEnabled {
		rateLimiter = server.NewRateLimiter(cfg)
	}

	adapter := transport.NewAdapter(router, transport.AdapterConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		DefaultEncoding: syncengine.Encoding(cfg.TransportEncoding),
		ActionTimeout:   cfg.RequestTimeout,
		Recorder:        replayManager,
		MaxPayloadSize:  cfg.MaxRequestSize,
		Sessions:        sessions,
		TokenValidator: func(token string) (string, error) {
			claims, err := jwksValidator.Validate(context.Background(), token)
			if err != nil {
				return "", err
			}
			return claims.LandID, nil
		},
	})

	gin.SetMode(ginModeFor(cfg))
	engine := gin.New()
	engine.Use(gin.Recovery())

	keys := admin.KeyStore{cfg.NodeID: admin.RoleAdmin}
	adminHandlers := admin.NewHandlers(registry, runner, keys)
	adminGroup := engine.Group("/admin")
	adminHandlers.Mount(adminGroup)

	mux := http.NewServeMux()
	mux.Handle("/game/", adapter)
	mux.Handle("/admin/", server.Middleware(rateLimiter)(engine))
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return metrics.Middleware(mux)
}

func ginModeFor(cfg *config.Config) string {
	if cfg.EnableDevMode {
		return gin.DebugMode
	}
	return gin.ReleaseMode
}

func runHeartbeatLoop(ctx context.Context, cfg *config.Config) {
	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	send := func() {
		body, err := json.Marshal(map[string]any{
			"serverId":    cfg.NodeID,
			"host":        gameserverHost(),
			"port":        cfg.ServerPort,
			"connectHost": gameserverHost(),
			"connectPort": cfg.ServerPort,
			"landTypes":   []string{arena.LandType},
		})
		if err != nil {
			logrus.WithError(err).Warn("failed to encode heartbeat body")
			return
		}

		err = integration.ExecuteProvisioningOperation(ctx, func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost,
				cfg.ProvisioningBaseURL+"/v1/provisioning/servers/register", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("heartbeat rejected with status %d", resp.StatusCode)
			}
			return nil
		})
		if err != nil {
			logrus.WithError(err).Warn("provisioning heartbeat failed")
		}
	}

	send()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			send()
		}
	}
}

// loadAndConfigureSystem loads configuration and sets up logging.
func loadAndConfigureSystem() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	configureLogging(cfg.LogLevel)
	logStartupInfo(cfg)
	return cfg
}

func configureLogging(logLevel string) {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.WithError(err).Warn("invalid log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

func logStartupInfo(cfg *config.Config) {
	logrus.WithFields(logrus.Fields{
		"port":     cfg.ServerPort,
		"nodeId":   cfg.NodeID,
		"logLevel": cfg.LogLevel,
		"devMode":  cfg.EnableDevMode,
	}).Info("starting landkeeper gameserver")
}

func initializeServer(cfg *config.Config, handler http.Handler) (*http.Server, net.Listener) {
	srv := &http.Server{Handler: handler}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.ServerPort))
	if err != nil {
		logrus.WithError(err).Fatal("failed to start listener")
	}
	return srv, listener
}

func executeServerLifecycle(srv *http.Server, listener net.Listener, replayManager *replay.Manager, cfg *config.Config, stopHeartbeat context.CancelFunc) {
	sigChan, errChan := setupShutdownHandling()
	startServerAsync(srv, listener, errChan)
	waitForShutdownSignal(sigChan, errChan)
	stopHeartbeat()
	performGracefulShutdown(srv, replayManager)
}

func setupShutdownHandling() (chan os.Signal, chan error) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	errChan := make(chan error, 1)
	return sigChan, errChan
}

func startServerAsync(srv *http.Server, listener net.Listener, errChan chan error) {
	go func() {
		logrus.WithField("address", listener.Addr()).Info("gameserver listening")
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server failed: %w", err)
		}
	}()
}

func waitForShutdownSignal(sigChan chan os.Signal, errChan chan error) {
	select {
	case sig := <-sigChan:
		logrus.WithField("signal", sig).Info("received shutdown signal")
	case err := <-errChan:
		logrus.WithError(err).Error("server error")
	}
}

func performGracefulShutdown(srv *http.Server, replayManager *replay.Manager) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logrus.Info("shutting down gameserver gracefully...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("error during server shutdown")
	}

	replayManager.Flush()
	logrus.Info("gameserver shutdown completed")
}
