// Package archive keeps the final save of every finished run.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"openidle.dev/internal/persistence/savefile"
)

type RunMeta struct {
	Run           int    `json:"run"`
	EndTick       uint64 `json:"end_tick"`
	TotalTimeMs   int64  `json:"total_time_ms"`
	CatalogDigest string `json:"catalog_digest"`
	Save          string `json:"save"`
	CreatedAt     string `json:"created_at"`
}

// ArchiveRun copies the save at savePath into dataDir/archives/run_<NNN>/,
// numbering runs from 1, and writes a meta.json next to it.
func ArchiveRun(dataDir, savePath string, h savefile.Header) (run int, archivedPath string, err error) {
	root := filepath.Join(dataDir, "archives")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, "", err
	}
	run, err = nextRun(root)
	if err != nil {
		return 0, "", err
	}

	dir := filepath.Join(root, fmt.Sprintf("run_%03d", run))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, "", err
	}
	dst := filepath.Join(dir, filepath.Base(savePath))
	if err := copyFile(savePath, dst); err != nil {
		return 0, "", err
	}

	meta := RunMeta{
		Run:           run,
		EndTick:       h.Tick,
		TotalTimeMs:   h.TotalTimeMs,
		CatalogDigest: h.CatalogDigest,
		Save:          filepath.Base(dst),
		CreatedAt:     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return run, dst, nil
}

func nextRun(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "run_") {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), "run_")); err == nil && n > last {
			last = n
		}
	}
	return last + 1, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
