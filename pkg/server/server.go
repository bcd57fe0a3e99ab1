// Package server implements the HTTP read API of spec §4.5/§6: a thin
// Fiber layer over the telemetry store that never holds a lock longer than
// a bounded timeout.
package server

import (
	"context"
	"time"

	fiber "github.com/gofiber/fiber/v3"
	recovermiddleware "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/log"
	"github.com/ldiy/Kwartiwi-P1-firmware/pkg/store"
)

// DefaultLockTimeout is W_max from spec §4.5: the longest a read handler
// waits to acquire a store lock before surfacing a server error.
const DefaultLockTimeout = 250 * time.Millisecond

// APIVersion is the api-version-string served by /api/version.
const APIVersion = "1.0"

// Config collects Server's construction parameters.
type Config struct {
	Store           *store.Store
	StaticDir       string
	FirmwareVersion string
	LockTimeout     time.Duration
}

// Server wraps a Fiber app bound to a telemetry store.
type Server struct {
	app             *fiber.App
	store           *store.Store
	staticDir       string
	firmwareVersion string
	lockTimeout     time.Duration
}

// New builds a Server and registers all routes from spec §6.
func New(cfg Config) *Server {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	s := &Server{
		store:           cfg.Store,
		staticDir:       cfg.StaticDir,
		firmwareVersion: cfg.FirmwareVersion,
		lockTimeout:     cfg.LockTimeout,
	}

	app := fiber.New(fiber.Config{
		ServerHeader: "kwartiwi-p1",
	})
	app.Use(recovermiddleware.New())

	app.Get("/api/version", s.handleVersion)
	app.Get("/api/system/info", s.handleSystemInfo)
	app.Get("/api/p1/data/basic", s.handleBasic)
	app.Get("/api/p1/data/complete", s.handleComplete)
	app.Get("/api/meter-data", s.handleMeterData)
	app.Get("/api/meter-data-history", s.handleMeterDataHistory)
	app.Get("/*", s.handleStatic)

	s.app = app
	return s
}

// Run serves addr until ctx is done, then shuts the app down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	go func() {
		<-ctx.Done()
		_ = s.app.Shutdown()
	}()
	log.Logger.Info().Str("addr", addr).Msg("http api listening")
	return s.app.Listen(addr)
}

// lockCtx derives the bounded-timeout context one request handler uses for
// its store calls, per spec §4.5's W_max.
func (s *Server) lockCtx(c fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.RequestCtx(), s.lockTimeout)
}

// errLockTimeout is the 5xx surfaced when a store lock can't be acquired
// within W_max, per spec §7's "Lock acquisition timeout" error kind.
var errLockTimeout = fiber.NewError(fiber.StatusServiceUnavailable, "timed out acquiring telemetry lock")
