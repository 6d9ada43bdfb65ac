package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"book-library/internal/library"
)

func readEvents(t *testing.T, body string) []library.Event {
	t.Helper()
	var events []library.Event
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev library.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev), line)
		events = append(events, ev)
	}
	require.NoError(t, sc.Err())
	return events
}

func TestScanStreamsEvents(t *testing.T) {
	env := newUnsyncedEnv(t)

	w := env.do(t, http.MethodGet, "/api/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readEvents(t, w.Body.String())
	require.NotEmpty(t, events)

	complete := 0
	for _, ev := range events {
		if ev.Type == library.EventComplete {
			complete++
		}
	}
	assert.Equal(t, 1, complete)

	last := events[len(events)-1]
	assert.Equal(t, library.EventComplete, last.Type)
	assert.Equal(t, library.StatusOK, last.Status)

	assert.True(t, env.cache.State().Populated)
	assert.Equal(t, 4, env.cache.State().Books)
}

func TestScanReportsFailedRoot(t *testing.T) {
	env := newUnsyncedEnv(t)
	require.NoError(t, os.RemoveAll(env.root))

	w := env.do(t, http.MethodGet, "/api/scan", nil)
	require.Equal(t, http.StatusOK, w.Code)

	events := readEvents(t, w.Body.String())
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, library.EventComplete, last.Type)
	assert.Equal(t, library.StatusError, last.Status)
}

func TestSync(t *testing.T) {
	env := newUnsyncedEnv(t)

	w := env.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode[library.SyncResult](t, w)
	assert.Equal(t, library.ScanCounts{Categories: 2, Books: 4}, res.Scanned)
	assert.Equal(t, 4, res.Synced.AddedBooks)
	assert.Equal(t, 2, res.Synced.AddedCategories)
	assert.Equal(t, res.Scanned, res.Database)

	require.NoError(t, os.RemoveAll(filepath.Join(env.root, "Big")))
	w = env.do(t, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode[library.SyncResult](t, w)
	assert.Equal(t, 1, res.Synced.DeletedBooks)
	assert.Zero(t, res.Synced.AddedBooks)
	assert.Equal(t, 3, res.Database.Books)
}

func TestSyncMissingRoot(t *testing.T) {
	env := newUnsyncedEnv(t)
	require.NoError(t, os.RemoveAll(env.root))

	w := env.do(t, http.MethodPost, "/api/sync", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotEmpty(t, errorMessage(t, w))
}

func TestGetScanStatus(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/scan/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[map[string]interface{}](t, w)
	assert.Equal(t, false, status["running"])
	require.NotNil(t, status["last_result"])
	assert.NotContains(t, status, "last_error")
}
