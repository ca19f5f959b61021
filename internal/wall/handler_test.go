package wall

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"camwall/internal/camera"
	"camwall/internal/hlstest"
	"camwall/internal/platform/logger"
	"camwall/internal/platform/loop"
	"camwall/internal/playback"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandler_unknown_camera(t *testing.T) {
	e := startWall(t, newOrigin(t))

	for _, tc := range []struct {
		method, path string
	}{
		{http.MethodGet, "/sessions/nope"},
		{http.MethodPost, "/sessions/nope/reload"},
		{http.MethodPost, "/sessions/nope/thumbnail/click"},
		{http.MethodGet, "/sessions/nope/thumbnail"},
	} {
		t.Run(tc.method+"_"+tc.path, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, e.srv.URL+tc.path, nil)
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestHandler_list_sessions_and_reload(t *testing.T) {
	o := newOrigin(t)
	o.AddCamera("cam1", "")
	o.Append("cam1", 4, 1)
	e := startWall(t, o)
	e.waitState(t, "cam1", playback.StatePlaying)

	resp, err := http.Get(e.srv.URL + "/sessions")
	require.NoError(t, err)
	var views []SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&views))
	resp.Body.Close()
	require.Len(t, views, 1)
	assert.Equal(t, "cam1", views[0].CameraID)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	resp, err = http.Post(e.srv.URL+"/sessions/cam1/reload", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	e.waitState(t, "cam1", playback.StatePlaying)
}

func TestHandler_health_and_metrics(t *testing.T) {
	o := newOrigin(t)
	o.AddCamera("cam1", "")
	e := startWall(t, o)

	require.Eventually(t, func() bool {
		resp, err := http.Get(e.srv.URL + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var h Health
		if json.NewDecoder(resp.Body).Decode(&h) != nil {
			return false
		}
		return h.Status == "ok" && h.Cameras == 1 && h.LastSync != nil
	}, waitTimeout, 20*time.Millisecond)

	resp, err := http.Get(e.srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `camwall_sessions{state="loading"}`)
	assert.Contains(t, string(body), "camwall_requests_total")
}

func TestHandler_health_degraded_when_backend_fails(t *testing.T) {
	o := hlstest.NewOrigin()
	e := startWall(t, o)
	require.Eventually(t, func() bool { return e.svc.Health(t.Context()).LastSync != nil }, waitTimeout, 20*time.Millisecond)
	o.Close()

	require.Eventually(t, func() bool {
		h := e.svc.Health(t.Context())
		return h.Status == "degraded" && h.LastSyncError != ""
	}, waitTimeout, 20*time.Millisecond)
}

func TestHandler_health_unavailable_after_stop(t *testing.T) {
	o := newOrigin(t)
	o.AddCamera("cam1", "")
	client, err := camera.NewClient(o.URL(), camera.DefaultClientOptions(), logger.Discard())
	require.NoError(t, err)
	svc, err := NewService(client, Config{Player: testPlayer(), Engine: testEngine(), Logger: logger.Discard()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	require.Eventually(t, func() bool { return svc.Health(t.Context()).Cameras == 1 }, waitTimeout, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	h := svc.Health(t.Context())
	assert.Equal(t, "unavailable", h.Status)
	assert.Equal(t, loop.ErrStopped.Error(), h.Error)
	assert.Zero(t, h.Cameras)

	rec := httptest.NewRecorder()
	NewRouter(svc, logger.Discard(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body Health
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unavailable", body.Status)
}

func TestHandler_event_feed(t *testing.T) {
	o := newOrigin(t)
	o.AddCamera("cam1", "")
	o.Append("cam1", 4, 1)
	e := startWall(t, o)
	e.waitState(t, "cam1", playback.StatePlaying)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(e.srv.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(waitTimeout))

	var first struct {
		Type string        `json:"type"`
		Data []SessionView `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "snapshot", first.Type)
	require.Len(t, first.Data, 1)
	assert.Equal(t, "cam1", first.Data[0].CameraID)

	resp, err := http.Post(e.srv.URL+"/sessions/cam1/reload", "", nil)
	require.NoError(t, err)
	resp.Body.Close()

	for {
		var msg struct {
			Type string         `json:"type"`
			Data playback.Event `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == "session" && msg.Data.Kind == playback.EventIdle {
			assert.Equal(t, "reload", msg.Data.Reason)
			assert.Equal(t, "cam1", msg.Data.CameraID)
			return
		}
	}
}
