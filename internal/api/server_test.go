package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-marczewski/petmem/internal/bridge"
	"github.com/a-marczewski/petmem/internal/config"
	"github.com/a-marczewski/petmem/internal/memory"
	"github.com/a-marczewski/petmem/internal/snapshot"
	"github.com/a-marczewski/petmem/internal/version"
)

func newTestServer(t *testing.T) (*Server, *memory.Store, *bridge.Bridge) {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	store, err := memory.New(cfg.MemoryConfig(), nil)
	require.NoError(t, err)

	br := bridge.New(store, cfg.BridgeQueueSize, nil)
	return NewServer(cfg, store, br, nil, nil), store, br
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got HealthResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, version.Version, got.Version)
}

func TestIngestEvent(t *testing.T) {
	s, store, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", EventRequest{
		Kind:   "chat",
		Fields: map[string]string{"who": "user", "text": "remember my birthday is in May?"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var got EventResponse
	decodeBody(t, rec, &got)
	assert.NotEmpty(t, got.ID)
	assert.True(t, got.Promoted)

	events := store.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, got.ID, events[0].ID)
}

func TestIngestEventRequiresKind(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/events", EventRequest{
		Fields: map[string]string{"text": "no kind"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestEventRejectsBadJSON(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/events", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, http.MethodGet, "/api/events", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, http.MethodPost, "/api/recent", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, doRequest(t, s, http.MethodGet, "/api/clear", nil).Code)
}

func TestChatFlowsThroughBridge(t *testing.T) {
	s, store, br := newTestServer(t)
	br.Start(context.Background())
	t.Cleanup(br.Stop)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", ChatRequest{Text: "remember the door code is 4412?"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got QueuedResponse
	decodeBody(t, rec, &got)
	assert.True(t, got.Queued)

	require.Eventually(t, func() bool {
		return store.Stats().TotalEvents == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := store.Recent(0)
	require.Len(t, events, 1)
	assert.Equal(t, "user", events[0].Payload.Fields()["who"])
}

func TestChatRequiresText(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/chat", ChatRequest{Who: "user"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueFullReturns503(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	store, err := memory.New(cfg.MemoryConfig(), nil)
	require.NoError(t, err)

	// capacity one and never started, so the second offer has nowhere to go
	br := bridge.New(store, 1, nil)
	s := NewServer(cfg, store, br, nil, nil)

	first := doRequest(t, s, http.MethodPost, "/api/vision", VisionRequest{Summary: "a new window"})
	require.Equal(t, http.StatusAccepted, first.Code)

	second := doRequest(t, s, http.MethodPost, "/api/vision", VisionRequest{Summary: "another window"})
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Equal(t, int64(1), br.Dropped())
}

func TestActivityRequiresApp(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/activity", ActivityRequest{Category: "tools"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestContextEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddAppActivity("editor", "tools", false, false)

	rec := doRequest(t, s, http.MethodGet, "/api/context", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ContextResponse
	decodeBody(t, rec, &got)
	assert.Contains(t, got.Summary, "=== RECENT")
	assert.Contains(t, got.Summary, "[using] editor (tools)")
	assert.Equal(t, 2, got.Lines)
	assert.Greater(t, got.Tokens, 0)
}

func TestContextMaxLinesParam(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("first", "user")
	store.AddChat("second", "user")

	rec := doRequest(t, s, http.MethodGet, "/api/context?max_lines=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ContextResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, 1, got.Lines)
	assert.Equal(t, "=== RECENT (last events) ===", got.Summary)

	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, http.MethodGet, "/api/context?max_lines=lots", nil).Code)
}

func TestRecentEndpointFilters(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("one", "user")
	store.AddAppActivity("editor", "tools", false, false)
	store.AddChat("two", "user")

	rec := doRequest(t, s, http.MethodGet, "/api/recent?kind=chat", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got EventsResponse
	decodeBody(t, rec, &got)
	require.Len(t, got.Events, 2)
	assert.Equal(t, "chat", got.Events[0].Kind)
	assert.Equal(t, "one", got.Events[0].Fields["text"])
	assert.Nil(t, got.Events[0].Importance)

	rec = doRequest(t, s, http.MethodGet, "/api/recent?count=1", nil)
	decodeBody(t, rec, &got)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "two", got.Events[0].Fields["text"])

	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, http.MethodGet, "/api/recent?window=soon", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, http.MethodGet, "/api/recent?count=many", nil).Code)
}

func TestImportantEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("remember I always drink tea", "user")
	store.AddAppActivity("editor", "tools", false, false)

	rec := doRequest(t, s, http.MethodGet, "/api/important", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got EventsResponse
	decodeBody(t, rec, &got)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "chat", got.Events[0].Kind)
	require.NotNil(t, got.Events[0].Importance)
	assert.Greater(t, *got.Events[0].Importance, 0.4)
}

func TestArchiveEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)

	ts := time.Now().Add(-48 * time.Hour)
	store.RestoreSnapshot(memory.Snapshot{
		Archive: []memory.DayBucket{{
			Date:           "2026-08-20",
			EventCount:     1,
			FirstTimestamp: ts,
			Events: []memory.Event{
				{ID: "a1", Kind: memory.KindChat, Payload: memory.ChatPayload{Who: "user", Text: "hi"}, Timestamp: ts},
			},
			RollingSummary: "user: hi; ",
		}},
	})

	rec := doRequest(t, s, http.MethodGet, "/api/archive/2026-08-20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ArchiveDayResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, "2026-08-20", got.Date)
	assert.Equal(t, 1, got.EventCount)
	assert.Equal(t, "user: hi; ", got.RollingSummary)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "a1", got.Events[0].ID)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/archive/2020-01-01", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, s, http.MethodGet, "/api/archive/", nil).Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("remember my cat is called Misu", "user")
	store.AddAppActivity("browser", "web", false, false)

	rec := doRequest(t, s, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got StatsResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, 2, got.RecentItems)
	assert.Equal(t, 1, got.ImportantItems)
	assert.Equal(t, int64(2), got.TotalEvents)
	assert.Zero(t, got.BridgeDropped)
	assert.Greater(t, got.ContextTokens, 0)
}

func TestClearEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("forget me", "user")

	rec := doRequest(t, s, http.MethodPost, "/api/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got ClearResponse
	decodeBody(t, rec, &got)
	assert.True(t, got.Cleared)
	assert.Zero(t, store.Stats().TotalEvents)
}

func TestSweepEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)
	store.AddChat("remember this one", "user")

	rec := doRequest(t, s, http.MethodPost, "/api/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got memory.Stats
	decodeBody(t, rec, &got)
	assert.Equal(t, 1, got.RecentItems)
}

func TestSnapshotUnconfigured(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/snapshot", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotEndpointSaves(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	store, err := memory.New(cfg.MemoryConfig(), nil)
	require.NoError(t, err)
	store.AddChat("persist me please?", "user")

	db, err := snapshot.Open(filepath.Join(t.TempDir(), "petmem.sqlite3"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := NewServer(cfg, store, bridge.New(store, 1, nil), db, nil)

	rec := doRequest(t, s, http.MethodPost, "/api/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SnapshotResponse
	decodeBody(t, rec, &got)
	assert.True(t, got.Saved)
	assert.Equal(t, db.Path(), got.Path)

	snap, err := db.Load()
	require.NoError(t, err)
	assert.Len(t, snap.Recent, 1)
}

func TestUpdateConfigChangesSummaryCap(t *testing.T) {
	s, store, _ := newTestServer(t)
	for i := 0; i < 8; i++ {
		store.AddChat("line", "user")
	}

	var before ContextResponse
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/context", nil), &before)
	assert.Greater(t, before.Lines, 2)

	updated, err := config.Load("")
	require.NoError(t, err)
	updated.SummaryMaxLines = 2
	s.UpdateConfig(updated)

	var after ContextResponse
	decodeBody(t, doRequest(t, s, http.MethodGet, "/api/context", nil), &after)
	assert.Equal(t, 2, after.Lines)
}
