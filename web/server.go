package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mbocsi/lightwaverf/app"
	"github.com/mbocsi/lightwaverf/client"
	"github.com/mbocsi/lightwaverf/proto"
	"github.com/mbocsi/lightwaverf/queue"
	"github.com/sethvargo/go-limiter"
	"github.com/sethvargo/go-limiter/httplimit"
	"github.com/sethvargo/go-limiter/memorystore"
)

// Controller is the device façade the API drives.
type Controller interface {
	TurnOn(ctx context.Context, d proto.Device) error
	TurnOff(ctx context.Context, d proto.Device) error
	Dim(ctx context.Context, d proto.Device, percentage int) error
	Command(ctx context.Context, command string) (proto.Response, error)
	Devices(ctx context.Context) ([]app.DeviceState, error)
	Device(room, device int) proto.Device
}

type HubInfo interface {
	Hub() client.HubState
	Target() string
	Stats() queue.Stats
	Connected() bool
}

type EventSource interface {
	Subscribe(buffer int, kinds ...proto.EventKind) (string, <-chan proto.Event)
	Unsubscribe(id string)
}

type Options struct {
	// RateLimit is requests per minute per client IP; zero disables it.
	RateLimit int
}

type Server struct {
	ctrl   Controller
	hub    HubInfo
	events EventSource

	limiter limiter.Store
	handler http.Handler
	srv     *http.Server
}

func NewServer(ctrl Controller, hub HubInfo, events EventSource, opts Options) (*Server, error) {
	s := &Server{ctrl: ctrl, hub: hub, events: events}
	if opts.RateLimit > 0 {
		store, err := memorystore.New(&memorystore.Config{
			Tokens:   uint64(opts.RateLimit),
			Interval: time.Minute,
		})
		if err != nil {
			return nil, err
		}
		s.limiter = store
	}
	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.handler = handler
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	if s.limiter != nil {
		limit, err := httplimit.NewMiddleware(s.limiter, httplimit.IPKeyFunc())
		if err != nil {
			return nil, err
		}
		r.Use(limit.Handle)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/hub", s.HandleHub)
		r.Get("/devices", s.HandleDevices)
		r.Post("/devices/{room}/{device}/on", s.HandleTurnOn)
		r.Post("/devices/{room}/{device}/off", s.HandleTurnOff)
		r.Post("/devices/{room}/{device}/dim", s.HandleDim)
		r.Post("/commands", s.HandleCommand)
		r.Get("/events", s.HandleEvents)
	})
	return r, nil
}

// Start serves on addr until Shutdown. It returns the bound address once
// the listener is up.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.srv = &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	slog.Info("Starting HTTP API", "addr", ln.Addr().String())
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP API stopped", "error", err)
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP API")
	var errs []error
	if s.srv != nil {
		errs = append(errs, s.srv.Shutdown(ctx))
	}
	if s.limiter != nil {
		errs = append(errs, s.limiter.Close(ctx))
	}
	return errors.Join(errs...)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		slog.Debug("HTTP request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
