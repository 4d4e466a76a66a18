package specs

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LoadDir registers every *.json pack file found directly under dir.
// Files are read in name order so registration is reproducible. Any invalid
// pack aborts the load; a directory of packs either registers fully or not
// at all from the caller's point of view.
func LoadDir(r *Resolver, dir string, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read spec dir %s: %w", dir, err)
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return count, fmt.Errorf("read pack %s: %w", path, err)
		}
		pack, err := r.RegisterJSON(data)
		if err != nil {
			return count, fmt.Errorf("register pack %s: %w", path, err)
		}
		logger.Debug("specs.load.pack", "path", path, "pack_id", pack.ID)
		count++
	}

	logger.Info("specs.load.ok", "dir", dir, "packs", count)
	return count, nil
}
