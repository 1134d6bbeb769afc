package watchlist

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpedia/paper-trader/internal/events"
)

func newTestHandlers(t *testing.T) (*Handlers, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	repo := newTestRepo(t)
	eventManager := events.NewManager(zerolog.New(&buf))
	return NewHandlers(repo, eventManager, zerolog.Nop()), &buf
}

func TestHandleAdd(t *testing.T) {
	h, eventLog := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/watchlist/add",
		bytes.NewBufferString(`{"user_id":"u1","symbol":"tcs","name":"Tata Consultancy"}`))
	w := httptest.NewRecorder()
	h.HandleAdd(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"TCS"`)
	assert.Contains(t, eventLog.String(), string(events.WatchlistUpdated))
}

func TestHandleAdd_Duplicate(t *testing.T) {
	h, _ := newTestHandlers(t)

	_, err := h.repo.Add("u1", "TCS", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/watchlist/add",
		bytes.NewBufferString(`{"user_id":"u1","symbol":"TCS"}`))
	w := httptest.NewRecorder()
	h.HandleAdd(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleRemove(t *testing.T) {
	h, eventLog := newTestHandlers(t)

	_, err := h.repo.Add("u1", "TCS", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist/remove",
		bytes.NewBufferString(`{"user_id":"u1","symbol":"TCS"}`))
	w := httptest.NewRecorder()
	h.HandleRemove(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, eventLog.String(), string(events.WatchlistUpdated))
}

func TestHandleRemove_NotWatched(t *testing.T) {
	h, eventLog := newTestHandlers(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/watchlist/remove",
		bytes.NewBufferString(`{"user_id":"u1","symbol":"TCS"}`))
	w := httptest.NewRecorder()
	h.HandleRemove(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, eventLog.String(), string(events.WatchlistUpdated),
		"no event for a no-op removal")
}
