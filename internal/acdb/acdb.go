// Package acdb discovers calibration database (.acdb) files for the engine
// to load at graph-open time (spec.md §6, §1: "ACDB (calibration data) file
// loading — pure data", out of scope; only *discovery* is implemented).
//
// Grounded on the teacher's internal/config directory-scan idioms (plain
// os.ReadDir + slog diagnostics, no third-party filesystem library) and on
// SPEC_FULL.md §12's supplemented feature: the original caps the number of
// .acdb files handed to the engine and warns rather than silently
// truncating when the directory holds more.
package acdb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxFiles is the cap applied when a [Scan] caller passes maxFiles
// <= 0, matching the original implementation's fixed calibration-file
// ceiling.
const DefaultMaxFiles = 64

// Scan returns the paths of every regular file under dir whose name ends
// in ".acdb", in lexical order, capped at maxFiles (DefaultMaxFiles if
// maxFiles <= 0). If the directory holds more than the cap, Scan logs a
// warning naming the true count and returns only the first maxFiles paths
// — the engine's maximum calibration file count is a hard ceiling, not a
// suggestion, so silent truncation here would hide which files were
// actually dropped.
func Scan(dir string, maxFiles int) ([]string, error) {
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("acdb: read dir %q: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".acdb") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	if len(paths) > maxFiles {
		slog.Warn("acdb: directory holds more calibration files than the engine maximum, truncating",
			"dir", dir, "found", len(paths), "max", maxFiles)
		paths = paths[:maxFiles]
	}

	return paths, nil
}
