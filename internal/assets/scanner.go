package assets

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
)

// recognizedExtension reports whether the file looks like importable
// media. The scanner is stricter than KindForPath: it only imports
// known extensions instead of defaulting to video.
func recognizedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return videoExtensions[ext] || audioExtensions[ext] || imageExtensions[ext]
}

// ScanResult summarizes one directory scan.
type ScanResult struct {
	Registered int `json:"registered"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Scanner imports every media file under a directory into the
// library. Registration (stat, tag read, probe) runs on a worker pool;
// the walk itself is sequential.
type Scanner struct {
	library *Library
	watcher *Watcher
	logger  hclog.Logger
	workers int
}

// NewScanner creates a scanner. The watcher may be nil; imported
// assets are then not watched for removal. Zero workers picks a pool
// size from the CPU count.
func NewScanner(library *Library, watcher *Watcher, workers int, logger hclog.Logger) *Scanner {
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 2 {
			workers = 2
		}
		if workers > 8 {
			workers = 8
		}
	}
	return &Scanner{
		library: library,
		watcher: watcher,
		logger:  logger.Named("scanner"),
		workers: workers,
	}
}

// Scan walks root and registers recognized media files. Hidden files
// and directories are skipped. Individual registration failures are
// counted, not fatal; walk errors and context cancellation are.
func (s *Scanner) Scan(ctx context.Context, root string) (ScanResult, error) {
	var registered, skipped, failed atomic.Int64

	paths := make(chan string, s.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				asset, err := s.library.Register(path)
				if err != nil {
					s.logger.Warn("failed to register file", "path", path, "error", err)
					failed.Add(1)
					continue
				}
				if s.watcher != nil {
					if err := s.watcher.Watch(asset); err != nil {
						s.logger.Warn("failed to watch file", "path", path, "error", err)
					}
				}
				registered.Add(1)
			}
		}()
	}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !recognizedExtension(path) {
			skipped.Add(1)
			return nil
		}
		select {
		case paths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(paths)
	wg.Wait()

	result := ScanResult{
		Registered: int(registered.Load()),
		Skipped:    int(skipped.Load()),
		Failed:     int(failed.Load()),
	}
	if walkErr != nil {
		return result, fmt.Errorf("scan of %s failed: %w", root, walkErr)
	}
	s.logger.Info("scan finished", "root", root,
		"registered", result.Registered, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}
