// monocanvas is the server-side core of a collaborative AI-artist
// canvas platform: per-user workspaces, an orchestrated agent loop,
// and a WebSocket/WebTransport fan-out, served over HTTPS + HTTP/3.
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/quic-go/quic-go/http3"
	wt "github.com/quic-go/webtransport-go"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/agent/anthropicsession"
	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/blobstore"
	"github.com/fawa-io/monocanvas/internal/config"
	"github.com/fawa-io/monocanvas/internal/cors"
	"github.com/fawa-io/monocanvas/internal/dispatcher"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/idgen"
	"github.com/fawa-io/monocanvas/internal/imagegen"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
	"github.com/fawa-io/monocanvas/internal/ratelimit"
	"github.com/fawa-io/monocanvas/internal/registry"
	"github.com/fawa-io/monocanvas/internal/shutdown"
	"github.com/fawa-io/monocanvas/internal/storage"
	"github.com/fawa-io/monocanvas/internal/toolhandlers"
	"github.com/fawa-io/monocanvas/internal/transport"
)

const version = "0.3.0"

func main() {
	if err := config.InitConfig(); err != nil {
		fwlog.Fatalf("Failed to initialize configuration: %v", err)
	}
	cfg := config.Get()

	logLevel, err := fwlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		fwlog.Warnf("Invalid initial log level '%s': %v. Using default.", cfg.LogLevel, err)
	}
	fwlog.SetLevel(logLevel)
	fwlog.Infof("Logger initialized with level: %s", cfg.LogLevel)

	tlsConfig := &tls.Config{}
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		fwlog.Fatalf("Failed to load TLS certificate: %v", err)
	}
	tlsConfig.Certificates = []tls.Certificate{cert}

	// Counter store for rate limiting: Redis when configured, in-process
	// otherwise.
	var store storage.Storage
	if cfg.RateLimitBackend == "redis" && cfg.RedisAddr != "" {
		rs, err := storage.NewRedisStorage(cfg.RedisAddr)
		if err != nil {
			fwlog.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
		store = rs
	} else {
		store = storage.NewMemoryStorage()
	}
	limiter := ratelimit.New(store, ratelimit.Rule{
		Name: dispatcher.RuleStroke, Limit: cfg.MaxStrokesPerMin, Window: time.Minute,
	})

	// Blobstore for imagine() references.
	var refs blobstore.Store
	if cfg.BlobstoreBackend == "minio" && cfg.MinioEndpoint != "" {
		refs, err = blobstore.NewMinioStore(context.Background(), cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			fwlog.Fatalf("Failed to connect to MinIO at %s: %v", cfg.MinioEndpoint, err)
		}
	} else {
		refs, err = blobstore.NewFilesystemStore(cfg.WorkspaceRoot)
		if err != nil {
			fwlog.Fatalf("Failed to initialize filesystem blobstore: %v", err)
		}
	}

	var images toolhandlers.ImageProvider
	if cfg.ImageGenEndpoint != "" {
		images = imagegen.NewHTTPProvider(cfg.ImageGenEndpoint, cfg.ImageGenAPIKey)
	}

	sessionFactory := func(userID string) agent.Session {
		return anthropicsession.New(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}

	reg := registry.New(registry.Options{
		WorkspaceRoot:     cfg.WorkspaceRoot,
		MaxWorkspaceBytes: cfg.MaxWorkspaceBytes,
		MaxPendingStrokes: cfg.MaxPendingStrokes,
		MaxConnsPerUser:   cfg.MaxConnsPerUser,
		IdleGracePeriod:   cfg.IdleGracePeriod(),
		Orchestrator: orchestrator.Config{
			PathStepsPerUnit: cfg.PathStepsPerUnit,
			ClientFPS:        cfg.ClientFPS,
			AnimWaitBuffer:   time.Duration(cfg.AnimWaitBufferMS) * time.Millisecond,
			MaxAnimWait:      time.Duration(cfg.MaxAnimWaitS * float64(time.Second)),
			AgentInterval:    cfg.AgentInterval(),
			ImageGenTimeout:  time.Duration(cfg.ImageGenTimeoutS * float64(time.Second)),
		},
		SessionFactory: sessionFactory,
		Images:         images,
		Refs:           refs,
		Limiter:        limiter,
	})

	coord := shutdown.New(10 * time.Second)
	coord.RegisterCleanup(func(ctx context.Context) {
		reg.ShutdownAll()
	})

	handler := transport.NewHandler(reg, validateToken, coord, cfg.WorkspaceRoot, version)
	handler.PublicBaseURL = cfg.PublicBaseURL

	h3Server := &http3.Server{
		Addr:      cfg.Addr,
		TLSConfig: tlsConfig,
	}
	wtServer := &wt.Server{
		H3: *h3Server,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	handler.WTServer = wtServer

	mux := http.NewServeMux()
	mux.HandleFunc("/webtransport/canvas", handler.HandleWebTransport)
	mux.HandleFunc("/ws", handler.HandleWebSocket)
	handler.RegisterRoutes(mux)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: cors.Handler(mux),
	}

	coord.RegisterCleanup(func(ctx context.Context) {
		if err := h3Server.Close(); err != nil {
			fwlog.Errorf("HTTP/3 server shutdown error: %v", err)
		}
		if err := httpServer.Shutdown(ctx); err != nil {
			fwlog.Errorf("HTTP server shutdown error: %v", err)
		}
	})

	go func() {
		<-coord.Notify()
		coord.Run()
	}()

	fwlog.Infof("monocanvas server starting on %v", cfg.Addr)
	fwlog.Infof("WebTransport endpoint: https://%s/webtransport/canvas", cfg.Addr)
	fwlog.Infof("WebSocket endpoint: wss://%s/ws", cfg.Addr)

	go func() {
		if err := h3Server.ListenAndServe(); err != nil && err.Error() != "server closed" {
			fwlog.Errorf("HTTP/3 server error: %v", err)
		}
	}()

	if err := httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fwlog.Fatalf("Failed to start HTTP server: %v", err)
	}
}

// validateToken is the development-mode identity: the token IS the
// user id. Production deployments replace this with the external
// auth service's JWT validation (spec.md §1: auth is consumed as an
// opaque `user_id = validate(token)` capability).
func validateToken(token string) (string, error) {
	if !idgen.ValidUserID(token) {
		return "", apperror.New(apperror.KindPermissionDenied, "invalid token")
	}
	return token, nil
}
