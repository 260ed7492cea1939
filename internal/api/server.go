// Package api serves the HTTP status API.
package api

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/smazurov/uvcrtsp/internal/api/models"
	"github.com/smazurov/uvcrtsp/internal/capture"
	"github.com/smazurov/uvcrtsp/internal/events"
	"github.com/smazurov/uvcrtsp/internal/lifecycle"
	"github.com/smazurov/uvcrtsp/internal/logging"
	"github.com/smazurov/uvcrtsp/internal/version"
)

// SessionSource reports the lifecycle state.
type SessionSource interface {
	Snapshot() lifecycle.Snapshot
}

// Options configures the API server.
type Options struct {
	AuthUsername string
	AuthPassword string
	Session      SessionSource
	Devices      func() []capture.Device
	BasePort     int
	Host         string // host advertised in stream URLs
	EventBus     *events.Bus
	Metrics      http.Handler // Prometheus handler, optional
}

// Server is the huma API server.
type Server struct {
	api        huma.API
	mux        *http.ServeMux
	httpServer *http.Server
	options    Options
	eventBus   *events.Bus
	logger     *slog.Logger
}

// NewServer creates the API server and registers its routes.
func NewServer(opts Options) *Server {
	if opts.BasePort == 0 {
		opts.BasePort = lifecycle.DefaultBasePort
	}
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}

	mux := http.NewServeMux()
	addCORSHandler(mux)

	config := huma.DefaultConfig("uvcrtsp API", version.Version)
	config.Info.Description = "Status of the USB camera RTSP publisher"
	config.Servers = []*huma.Server{}
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"basicAuth": {
			Type:   "http",
			Scheme: "basic",
		},
	}

	api := humago.New(mux, config)

	server := &Server{
		api:      api,
		mux:      mux,
		options:  opts,
		eventBus: opts.EventBus,
		logger:   logging.GetLogger("api"),
	}

	api.UseMiddleware(corsMiddleware)
	api.UseMiddleware(HTTPLoggingMiddleware)
	if opts.AuthUsername != "" && opts.AuthPassword != "" {
		api.UseMiddleware(server.basicAuthMiddleware(opts.AuthUsername, opts.AuthPassword))
	}

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	server.registerRoutes()
	return server
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves the API on addr until Stop is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("Starting API server", "addr", addr)
	s.logger.Info("OpenAPI documentation available", "url", "http://"+addr+"/docs")

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down without waiting for open connections.
func (s *Server) Stop() error {
	s.logger.Info("Stopping API server")
	if s.httpServer != nil {
		return s.httpServer.Close()
	}
	return nil
}

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health",
		Description: "Check API health status",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.HealthResponse, error) {
		return &models.HealthResponse{
			Body: models.HealthData{
				Status:  "ok",
				Message: "API is healthy",
			},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "get-version",
		Method:      http.MethodGet,
		Path:        "/api/version",
		Summary:     "Version",
		Description: "Get application version information",
		Tags:        []string{"system"},
		Security:    []map[string][]string{},
	}, func(_ context.Context, _ *struct{}) (*models.VersionResponse, error) {
		info := version.Get()
		return &models.VersionResponse{
			Body: models.VersionData{
				Version:   info.Version,
				GitCommit: info.GitCommit,
				BuildDate: info.BuildDate,
				GoVersion: info.GoVersion,
				Platform:  info.Platform,
			},
		}, nil
	})

	s.registerSessionRoutes()
	s.registerLogRoutes()
	s.registerSSERoutes()
}

// basicAuthMiddleware checks credentials on operations that declare security.
// SSE clients may pass base64 credentials in the auth query parameter.
func (s *Server) basicAuthMiddleware(username, password string) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		op := ctx.Operation()
		if op != nil && len(op.Security) == 0 {
			next(ctx)
			return
		}

		encoded := ""
		if header := ctx.Header("Authorization"); header != "" {
			const prefix = "Basic "
			if !strings.HasPrefix(header, prefix) {
				s.unauthorized(ctx, "Invalid authentication type")
				return
			}
			encoded = header[len(prefix):]
		} else {
			encoded = ctx.Query("auth")
		}
		if encoded == "" {
			s.unauthorized(ctx, "Authentication required")
			return
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.unauthorized(ctx, "Invalid credentials format")
			return
		}
		user, pass, ok := strings.Cut(string(decoded), ":")
		if !ok || user != username || pass != password {
			s.unauthorized(ctx, "Invalid credentials")
			return
		}

		next(ctx)
	}
}

func (s *Server) unauthorized(ctx huma.Context, msg string) {
	ctx.SetHeader("WWW-Authenticate", `Basic realm="uvcrtsp"`)
	_ = huma.WriteErr(s.api, ctx, http.StatusUnauthorized, msg)
}

// withAuth returns the basic auth security requirement.
func withAuth() []map[string][]string {
	return []map[string][]string{
		{"basicAuth": {}},
	}
}

const (
	corsMethods = "GET, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-Requested-With, Accept, Origin"
	corsMaxAge  = 86400
)

func setCORSHeaders(set func(name, value string)) {
	set("Access-Control-Allow-Origin", "*")
	set("Access-Control-Allow-Methods", corsMethods)
	set("Access-Control-Allow-Headers", corsHeaders)
	set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
}

func corsMiddleware(ctx huma.Context, next func(huma.Context)) {
	setCORSHeaders(ctx.SetHeader)
	if ctx.Method() == http.MethodOptions {
		ctx.SetStatus(http.StatusNoContent)
		return
	}
	next(ctx)
}

// addCORSHandler answers preflight requests, which huma middleware never sees.
func addCORSHandler(mux *http.ServeMux) {
	mux.HandleFunc("OPTIONS /", func(w http.ResponseWriter, _ *http.Request) {
		setCORSHeaders(w.Header().Set)
		w.WriteHeader(http.StatusNoContent)
	})
}
