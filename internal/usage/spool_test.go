package usage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernwell-systems/appscout/internal/store"
)

func writeSpool(t *testing.T, dataDir, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dataDir, SpoolFile), []byte(content), 0o644)
	require.NoError(t, err)
}

func spoolLine(ts time.Time, appID string) string {
	return fmt.Sprintf("%d,%s\n", ts.UnixNano(), appID)
}

func TestReadSpool_MissingFile(t *testing.T) {
	events, offset, err := ReadSpool(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Nil(t, events)
	assert.Zero(t, offset)
}

func TestReadSpool_ParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, spoolLine(ts, "org.mozilla.firefox")+spoolLine(ts.Add(time.Minute), "Steam.desktop"))

	events, offset, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "firefox", events[0].Package)
	assert.Equal(t, store.EventLaunch, events[0].Kind)
	assert.True(t, events[0].Timestamp.Equal(ts))
	assert.Equal(t, "steam", events[1].Package)
	assert.Greater(t, offset, int64(0))
}

func TestReadSpool_ResumesFromCommittedOffset(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, spoolLine(ts, "firefox"))

	events, offset, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.NoError(t, CommitOffset(dir, offset))

	// Nothing new: no events, offset unchanged.
	events, offset2, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, offset, offset2)

	// Append one more line and read again.
	f, err := os.OpenFile(filepath.Join(dir, SpoolFile), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(spoolLine(ts.Add(time.Hour), "vim"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	events, _, err = ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "vim", events[0].Package)
}

func TestReadSpool_UncommittedOffsetRereads(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, spoolLine(ts, "firefox"))

	events, _, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// Offset never committed (simulated crash before the DB commit):
	// the same events come back.
	again, _, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	assert.Equal(t, events, again)
}

func TestReadSpool_SkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, "not-a-timestamp,firefox\n"+",\n"+spoolLine(ts, "vim"))

	events, offset, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "vim", events[0].Package)

	// Malformed lines are consumed so they are not re-read forever.
	require.NoError(t, CommitOffset(dir, offset))
	events, _, err = ReadSpool(dir, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestReadSpool_LeavesPartialTrailingLine(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	complete := spoolLine(ts, "firefox")
	writeSpool(t, dir, complete+"17090123456789") // writer mid-append

	events, offset, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, int64(len(complete)), offset)
}

func TestReadSpool_StaleOffsetResets(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, spoolLine(ts, "firefox"))
	require.NoError(t, CommitOffset(dir, 99999))

	events, _, err := ReadSpool(dir, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "firefox", events[0].Package)
}

func TestReadSpool_MaxLines(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	writeSpool(t, dir, spoolLine(ts, "a")+spoolLine(ts, "b")+spoolLine(ts, "c"))

	events, offset, err := ReadSpool(dir, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
	require.NoError(t, CommitOffset(dir, offset))

	events, _, err = ReadSpool(dir, 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "c", events[0].Package)
}

func TestNormalizeAppID(t *testing.T) {
	cases := map[string]string{
		"org.mozilla.firefox":             "firefox",
		"Steam.desktop":                   "steam",
		"  VIM ":                          "vim",
		"com.valvesoftware.Steam.desktop": "steam",
		"gimp":                            "gimp",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAppID(in), "input %q", in)
	}
}

func TestRecorder_Record(t *testing.T) {
	db, err := store.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.CreateSchema())

	rec := NewRecorder(db)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, rec.Record("firefox", store.EventLaunch, ts))

	events, err := db.UsageEvents("firefox", time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Timestamp.Equal(ts))
}
