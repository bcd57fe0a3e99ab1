package server

import (
	"os"
	"path/filepath"
	"strings"

	fiber "github.com/gofiber/fiber/v3"
)

// staticContentTypes maps extensions to response content types, per spec
// §6's explicit list; anything else serves as text/plain.
var staticContentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".ico":  "image/x-icon",
	".svg":  "image/svg+xml",
	".json": "application/json; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
}

// handleStatic serves files from the configured static directory using
// byte-mode reads, so binary assets (images, favicons) are returned intact
// — unlike the line-oriented I/O the design notes flag as unable to serve
// binary content.
func (s *Server) handleStatic(c fiber.Ctx) error {
	reqPath := c.Path()
	if reqPath == "" || reqPath == "/" {
		reqPath = "/index.html"
	}

	clean := filepath.Clean(reqPath)
	if clean == "." || strings.Contains(clean, "..") {
		return fiber.ErrNotFound
	}

	full := filepath.Join(s.staticDir, clean)
	data, err := os.ReadFile(full)
	if err != nil {
		return fiber.ErrNotFound
	}

	ct, ok := staticContentTypes[strings.ToLower(filepath.Ext(full))]
	if !ok {
		ct = "text/plain; charset=utf-8"
	}
	c.Set("Content-Type", ct)
	return c.Send(data)
}
