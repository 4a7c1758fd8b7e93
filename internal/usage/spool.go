package usage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fernwell-systems/appscout/internal/store"
)

// The launch spool is the chosen usage-capture mechanism: desktop
// integration (a .desktop exec wrapper or launcher hook) appends one line
// per application launch, and appscout consumes it both in batch
// (`appscout run --usage`) and live (`appscout watch`).
//
// Spool format, one entry per line:
//
//	<unix_nano>,<app_id>
//
// Example:
//
//	1709012345678901234,org.mozilla.firefox
const (
	SpoolFile  = "launches.log"
	offsetFile = "launches.offset"
)

// ReadSpool reads up to maxLines entries appended since the persisted byte
// offset and returns them with the new offset. The offset is NOT persisted
// here: callers commit it with CommitOffset only after the events are
// durably stored, so a crash re-reads rather than loses entries. A missing
// spool file is not an error. Malformed lines are skipped with a warning
// but still consumed.
func ReadSpool(dataDir string, maxLines int) ([]store.UsageEvent, int64, error) {
	spoolPath := filepath.Join(dataDir, SpoolFile)

	f, err := os.Open(spoolPath)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open launch spool: %w", err)
	}
	defer f.Close()

	offset, err := readOffset(filepath.Join(dataDir, offsetFile))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read spool offset: %w", err)
	}

	// A stale offset past EOF means the spool was rotated; start over.
	if info, err := f.Stat(); err == nil && offset > info.Size() {
		log.Warn("spool offset past end of file, resetting", "offset", offset, "size", info.Size())
		offset = 0
	}

	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("failed to seek launch spool: %w", err)
		}
	}

	var events []store.UsageEvent
	reader := bufio.NewReader(f)

	for maxLines <= 0 || len(events) < maxLines {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, 0, fmt.Errorf("failed to read launch spool: %w", err)
		}
		if err != nil && !strings.HasSuffix(line, "\n") {
			// Partial trailing line: a writer may still be appending it.
			// Leave it unconsumed for the next pass.
			break
		}

		offset += int64(len(line))

		entry := strings.TrimSpace(line)
		if entry == "" {
			continue
		}

		ts, appID, ok := parseSpoolLine(entry)
		if !ok {
			log.Warn("skipping malformed spool line", "line", entry)
			continue
		}

		events = append(events, store.UsageEvent{
			Package:   NormalizeAppID(appID),
			Kind:      store.EventLaunch,
			Timestamp: ts,
		})
	}

	return events, offset, nil
}

// CommitOffset persists the consumed spool offset. Call only after the
// corresponding events have committed; re-reading is cheaper than losing
// signals.
func CommitOffset(dataDir string, offset int64) error {
	path := filepath.Join(dataDir, offsetFile)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(offset, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to write spool offset: %w", err)
	}
	return nil
}

func readOffset(path string) (int64, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	offset, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || offset < 0 {
		// Corrupt offset file, reprocess from the start.
		return 0, nil
	}
	return offset, nil
}

func parseSpoolLine(line string) (time.Time, string, bool) {
	tsStr, appID, found := strings.Cut(line, ",")
	if !found || appID == "" {
		return time.Time{}, "", false
	}

	nanos, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil || nanos <= 0 {
		return time.Time{}, "", false
	}

	return time.Unix(0, nanos).UTC(), appID, true
}

// NormalizeAppID maps a desktop application id to a package identifier:
// lowercase, .desktop suffix stripped, and the last segment of
// reverse-DNS ids ("org.mozilla.firefox" -> "firefox").
func NormalizeAppID(appID string) string {
	id := strings.ToLower(strings.TrimSpace(appID))
	id = strings.TrimSuffix(id, ".desktop")
	if i := strings.LastIndexByte(id, '.'); i >= 0 {
		id = id[i+1:]
	}
	return id
}
