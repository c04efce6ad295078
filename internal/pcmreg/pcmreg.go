// Package pcmreg parses the platform PCM registry: a line-oriented text
// file enumerating the physical PCM devices a [pkg/device.Registry] should
// enumerate at init (spec.md §4.2, §6).
//
// Grounded on the teacher's internal/config loader idiom (os.Open +
// line-oriented decode + diagnostic-and-skip on a malformed entry, see
// internal/config/loader.go), generalized from YAML decoding to the
// registry's own line grammar since the platform file predates AGM and is
// not YAML.
package pcmreg

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/qti-audio/agm/pkg/device"
)

// lineRE matches "<card:2>-<pcm:2>: <name:<=80>" — spec.md §6's grammar.
// The name is captured permissively; the playback/capture token is found
// by substring search over the remainder per the spec's own wording
// ("followed by either the substring playback or capture"), not by a
// fixed-width field.
var lineRE = regexp.MustCompile(`^(\d{1,2})-(\d{1,2}):\s*(.*)$`)

const maxNameLen = 80

// Parse reads a platform PCM registry from r and returns one [device.Entry]
// per successfully parsed non-empty line. A line that fails to parse, or
// whose direction token is ambiguous (both or neither of "playback"/
// "capture" present), is skipped with a slog.Warn diagnostic rather than
// aborting the scan — spec.md §6: "Unparseable lines are skipped with a
// diagnostic." This does NOT carry forward the original's pcm_flags bug of
// defaulting to PCM_IN/capture whenever "playback" is absent (spec.md §9);
// both tokens are checked explicitly.
func Parse(r io.Reader) []device.Entry {
	var entries []device.Entry
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			slog.Warn("pcmreg: skipping unparseable registry line", "line", lineNo, "text", line, "error", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		slog.Warn("pcmreg: registry scan stopped early", "error", err)
	}
	return entries
}

// ParseFile opens path and parses it per [Parse].
func ParseFile(path string) ([]device.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pcmreg: open %q: %w", path, err)
	}
	defer f.Close()
	return Parse(f), nil
}

func parseLine(line string) (device.Entry, error) {
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return device.Entry{}, fmt.Errorf("does not match <card>-<pcm>: <name> grammar")
	}

	cardID, err := strconv.Atoi(m[1])
	if err != nil {
		return device.Entry{}, fmt.Errorf("card id: %w", err)
	}
	pcmID, err := strconv.Atoi(m[2])
	if err != nil {
		return device.Entry{}, fmt.Errorf("pcm id: %w", err)
	}

	rest := m[3]
	hasPlayback := strings.Contains(rest, "playback")
	hasCapture := strings.Contains(rest, "capture")
	var dir device.Direction
	switch {
	case hasPlayback && !hasCapture:
		dir = device.RX
	case hasCapture && !hasPlayback:
		dir = device.TX
	default:
		return device.Entry{}, fmt.Errorf("ambiguous or missing playback/capture token in %q", rest)
	}

	name := strings.TrimSpace(strings.NewReplacer("playback", "", "capture", "").Replace(rest))
	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}

	return device.Entry{CardID: cardID, PCMID: pcmID, Name: name, Direction: dir}, nil
}
