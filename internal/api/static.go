package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/unklstewy/flightmap/internal/logger"
)

// staticHandler serves the map page, falling back to index.html for
// unknown paths.
type staticHandler struct {
	dir   string
	files http.Handler
	log   *logger.Logger
}

func newStaticHandler(dir string, log *logger.Logger) *staticHandler {
	return &staticHandler{
		dir:   dir,
		files: http.FileServer(http.Dir(dir)),
		log:   log,
	}
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// http.Dir already refuses paths escaping dir
	path := filepath.FromSlash(strings.TrimPrefix(filepath.Clean("/"+r.URL.Path), "/"))
	if path != "" && path != "." {
		if info, err := os.Stat(filepath.Join(h.dir, path)); err == nil && !info.IsDir() {
			h.files.ServeHTTP(w, r)
			return
		}
	}

	index := filepath.Join(h.dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		h.log.Debug("Static file not found", logger.String("path", r.URL.Path))
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}
