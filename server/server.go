// Package server exposes the memory gateway over HTTP, WebSocket and gRPC.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"

	"github.com/becomeliminal/nim-memory-gateway/tools"
)

// DefaultMaxBodyBytes caps request bodies.
const DefaultMaxBodyBytes = 1 << 20

// Service is the gateway the server fronts.
type Service interface {
	Add(ctx context.Context, repo string, text string) error
	SystemPrompt(ctx context.Context, repo string, conversation string) (string, error)
}

// Config configures a Server.
type Config struct {
	Gateway Service

	// Tools are listed at /mirix/tools. Defaults to the memory tools of Gateway.
	Tools *tools.Registry

	// ServiceName labels traces.
	ServiceName string

	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Server serves the gateway API.
type Server struct {
	cfg      Config
	handler  http.Handler
	upgrader websocket.Upgrader
	grpc     *grpc.Server
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("server: gateway is required")
	}
	if cfg.Tools == nil {
		cfg.Tools = tools.NewRegistry(tools.MemoryTools(cfg.Gateway)...)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "mirix-gateway"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mirix/add", s.handleAdd)
	mux.HandleFunc("POST /mirix/system_prompt", s.handleSystemPrompt)
	mux.HandleFunc("GET /mirix/tools", s.handleListTools)
	mux.HandleFunc("POST /mirix/tools/{name}", s.handleExecuteTool)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = otelhttp.NewHandler(metricsMiddleware(mux), cfg.ServiceName,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}),
	)

	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve serves HTTP on httpAddr and, when grpcAddr is not empty, gRPC on
// grpcAddr. It shuts both down gracefully when ctx is cancelled.
func (s *Server) Serve(ctx context.Context, httpAddr, grpcAddr string) error {
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)

	go func() {
		log.Printf("[HTTP] Listening on %s", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			httpSrv.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
		s.grpc = s.NewGRPCServer()
		go func() {
			log.Printf("[GRPC] Listening on %s", grpcAddr)
			if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		s.stopGRPC()
		httpSrv.Close()
		return err
	case <-ctx.Done():
	}

	log.Printf("[HTTP] Shutting down (timeout %s)", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.stopGRPC()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func (s *Server) stopGRPC() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
}
