package transcoder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/voicenotes-backend/internal/logger"
)

// Arena owns every intermediate file one pipeline invocation produces.
// Paths are registered as they are created so that Cleanup can remove them
// all, including after a failure partway through the chain. There is no
// process-wide temp directory: each invocation gets its own.
type Arena struct {
	dir   string
	paths []string
}

func NewArena(baseDir string) (*Arena, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir arena base: %w", err)
	}
	dir, err := os.MkdirTemp(baseDir, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("mkdir arena: %w", err)
	}
	return &Arena{dir: dir}, nil
}

func (a *Arena) Dir() string { return a.dir }

// NewPath reserves a path inside the arena with the given suffix and
// registers it for cleanup before any tool writes to it.
func (a *Arena) NewPath(name string) string {
	p := filepath.Join(a.dir, name)
	a.Register(p)
	return p
}

func (a *Arena) Register(path string) {
	if path == "" {
		return
	}
	a.paths = append(a.paths, path)
}

// Cleanup removes all registered paths and the arena directory. It never
// returns an error: a cleanup problem must not mask the pipeline's own
// failure, so it is logged and swallowed.
func (a *Arena) Cleanup(log *logger.Logger) {
	for _, p := range a.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if log != nil {
				log.Warn("Failed to remove intermediate file", "path", p, "error", err)
			}
		}
	}
	a.paths = nil
	if err := os.RemoveAll(a.dir); err != nil {
		if log != nil {
			log.Warn("Failed to remove arena directory", "dir", a.dir, "error", err)
		}
	}
}
