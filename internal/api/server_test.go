package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satindergrewal/cueline/internal/capture"
	"github.com/satindergrewal/cueline/internal/capture/capturetest"
	"github.com/satindergrewal/cueline/internal/monitor"
	"github.com/satindergrewal/cueline/internal/scroll"
	"github.com/satindergrewal/cueline/internal/session"
	"github.com/satindergrewal/cueline/internal/song"
)

type testServer struct {
	srv   *Server
	songs *song.Store
	dev   capture.Device
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func setupTestServer(t *testing.T, dev capture.Device) *testServer {
	t.Helper()
	store, err := song.Open(song.Options{InMemory: true, Logger: quiet()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mon := monitor.New(dev, quiet())
	ss := session.New(mon, session.Options{ViewportHeight: 300, LineHeight: 1.5}, quiet())
	loop := session.NewLoop(ss, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	opts := Options{
		Loop:      loop,
		Songs:     store,
		Defaults:  song.Song{SpeedPxPerSecond: 30, FontSizePx: 20, ThresholdDB: -35},
		EventRate: 100,
		Logger:    quiet(),
	}
	if rtc, ok := dev.(*capture.WebRTC); ok {
		opts.Browser = rtc
	}
	return &testServer{srv: NewServer(opts), songs: store, dev: dev}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSong(t *testing.T, title string) song.Song {
	t.Helper()
	created, err := ts.songs.Create(context.Background(), song.Song{
		Title:            title,
		Lyrics:           strings.Repeat("verse line\n", 20),
		SpeedPxPerSecond: 30,
		FontSizePx:       20,
		ThresholdDB:      -35,
	})
	require.NoError(t, err)
	return created
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func waitMonitorState(t *testing.T, ts *testServer, want monitor.State) session.Status {
	t.Helper()
	var st session.Status
	require.Eventually(t, func() bool {
		rec := ts.do(t, http.MethodGet, "/api/session/status", "")
		if rec.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			return false
		}
		return st.Monitor.State == want
	}, 2*time.Second, 10*time.Millisecond)
	return st
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","subscribers":0}`, rec.Body.String())
}

func TestSongCRUD(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())

	rec := ts.do(t, http.MethodPost, "/api/songs", `{"title":"Hallelujah","lyrics":"I heard there was a secret chord"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[song.Song](t, rec)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, 30.0, created.SpeedPxPerSecond, "defaults applied")
	assert.Equal(t, -35.0, created.ThresholdDB)

	rec = ts.do(t, http.MethodGet, "/api/songs/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hallelujah", decodeBody[song.Song](t, rec).Title)

	rec = ts.do(t, http.MethodPut, "/api/songs/"+created.ID, `{"title":"Hallelujah (live)","lyrics":"x","speed_px_per_second":45}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 45.0, decodeBody[song.Song](t, rec).SpeedPxPerSecond)

	rec = ts.do(t, http.MethodGet, "/api/songs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]song.Song](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/api/songs/"+created.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/songs/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeBody[ErrorBody](t, rec).Error.Code)
}

func TestSongValidation(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())

	rec := ts.do(t, http.MethodPost, "/api/songs", `{"title":"","speed_px_per_second":-1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody[ErrorBody](t, rec)
	assert.Equal(t, CodeValidation, body.Error.Code)
	details, ok := body.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "speed_px_per_second")

	rec = ts.do(t, http.MethodPost, "/api/songs", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, decodeBody[ErrorBody](t, rec).Error.Code)

	rec = ts.do(t, http.MethodPost, "/api/songs", `{"title":"x","colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields rejected")
}

func TestSessionCommands(t *testing.T) {
	ts := setupTestServer(t, capturetest.New(-60))
	sg := ts.createSong(t, "Setlist opener")

	rec := ts.do(t, http.MethodPost, "/api/session/start", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session/load", `{"song_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session/load", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "song_id")

	rec = ts.do(t, http.MethodPost, "/api/session/load", `{"song_id":"`+sg.ID+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := decodeBody[session.Status](t, rec)
	assert.Equal(t, sg.ID, st.SongID)
	assert.Equal(t, scroll.Idle, st.Scroll)
	assert.Equal(t, 300.0, st.MaxPx)

	rec = ts.do(t, http.MethodPost, "/api/session/scroll", `{"offset_px":150}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50.0, decodeBody[session.Status](t, rec).Progress.Remaining)

	rec = ts.do(t, http.MethodPost, "/api/session/viewport", `{"height":300,"content_height":900}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 600.0, decodeBody[session.Status](t, rec).MaxPx)

	rec = ts.do(t, http.MethodPost, "/api/session/arm", `{"threshold_db":-40}`)
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeBody[session.Status](t, rec)
	assert.True(t, st.Monitor.Armed)
	assert.Equal(t, -40.0, st.Monitor.ThresholdDB)

	rec = ts.do(t, http.MethodPut, "/api/session/config", `{"speed_px_per_second":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPut, "/api/session/config", `{"speed_px_per_second":60}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 60.0, decodeBody[session.Status](t, rec).Config.SpeedPxPerSecond)

	rec = ts.do(t, http.MethodPost, "/api/session/start", "")
	require.Equal(t, http.StatusOK, rec.Code)
	st = decodeBody[session.Status](t, rec)
	assert.Equal(t, scroll.Scrolling, st.Scroll)
	assert.False(t, st.Monitor.Armed, "monitor disarmed while scrolling")

	rec = ts.do(t, http.MethodPost, "/api/session/arm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session/pause", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, scroll.Idle, decodeBody[session.Status](t, rec).Scroll)

	rec = ts.do(t, http.MethodGet, "/api/session/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/session/exit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[session.Status](t, rec).SongID)
}

func TestEventsStream(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())
	sg := ts.createSong(t, "Encore")
	hs := httptest.NewServer(ts.srv)
	defer hs.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hs.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
				events <- name
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case ev := <-events:
			return ev
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return ""
		}
	}
	assert.Equal(t, "status", next())

	body := bytes.NewBufferString(`{"song_id":"` + sg.ID + `"}`)
	post, err := http.Post(hs.URL+"/api/session/load", "application/json", body)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, session.KindState, next())
}

func TestRemoteSocket(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())
	sg := ts.createSong(t, "Remote")
	hs := httptest.NewServer(ts.srv)
	defer hs.Close()

	url := "ws" + strings.TrimPrefix(hs.URL, "http") + "/api/remote"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first RemoteMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, "status", first.Type)

	result := func(cmd Command) RemoteMessage {
		t.Helper()
		require.NoError(t, conn.WriteJSON(cmd))
		for {
			var msg RemoteMessage
			require.NoError(t, conn.ReadJSON(&msg))
			if msg.Type == "result" && msg.ID == cmd.ID {
				return msg
			}
		}
	}

	msg := result(Command{ID: "1", Command: "load", SongID: sg.ID})
	require.Nil(t, msg.Error)
	require.NotNil(t, msg.Status)
	assert.Equal(t, sg.ID, msg.Status.SongID)

	msg = result(Command{ID: "2", Command: "start"})
	require.Nil(t, msg.Error)
	assert.Equal(t, scroll.Scrolling, msg.Status.Scroll)

	msg = result(Command{ID: "3", Command: "arm"})
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeConflict, msg.Error.Code)

	msg = result(Command{ID: "4", Command: "dance"})
	require.NotNil(t, msg.Error)
	assert.Equal(t, CodeValidation, msg.Error.Code)
}

func TestBrowserCaptureError(t *testing.T) {
	rtc := capture.NewWebRTC(quiet())
	ts := setupTestServer(t, rtc)
	sg := ts.createSong(t, "Browser mic")

	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.JSONEq(t, `{"status":"ok","subscribers":0,"browser_connected":false}`, rec.Body.String())

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/session/load", `{"song_id":"`+sg.ID+`"}`).Code)
	rec = ts.do(t, http.MethodPost, "/api/session/arm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, monitor.Starting, decodeBody[session.Status](t, rec).Monitor.State)

	rec = ts.do(t, http.MethodPost, "/api/capture/error", `{"reason":"sleepy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/capture/error", `{"reason":"permission_denied","message":"NotAllowedError"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	waitMonitorState(t, ts, monitor.Failed)

	st := decodeBody[session.Status](t, ts.do(t, http.MethodGet, "/api/session/status", ""))
	assert.Equal(t, "permission_denied", st.Monitor.ErrorKind)
	assert.Equal(t, scroll.Idle, st.Scroll)

	rec = ts.do(t, http.MethodPost, "/api/capture/offer", `{"type":"answer","sdp":"v=0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBrowserDeniedBeforeArm(t *testing.T) {
	rtc := capture.NewWebRTC(quiet())
	ts := setupTestServer(t, rtc)
	sg := ts.createSong(t, "Soundcheck")

	// getUserMedia fails before the presenter ever arms
	rec := ts.do(t, http.MethodPost, "/api/capture/error", `{"reason":"permission_denied"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/session/load", `{"song_id":"`+sg.ID+`"}`).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/session/arm", "").Code)
	st := waitMonitorState(t, ts, monitor.Failed)
	assert.Equal(t, "permission_denied", st.Monitor.ErrorKind)
	assert.False(t, st.Monitor.Armed)
}

func TestCaptureRoutesAbsentWithoutBrowser(t *testing.T) {
	ts := setupTestServer(t, capturetest.New())
	rec := ts.do(t, http.MethodPost, "/api/capture/error", `{"reason":"permission_denied"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
