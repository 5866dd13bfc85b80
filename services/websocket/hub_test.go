package wshub

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	logsvc "github.com/LucadeVeintemilla/emotionTracking/services/logger"
)

func TestNewEvent(t *testing.T) {
	st := live.Status{
		SessionID: "s1",
		Phase:     live.PhaseRecording,
		Subject:   &live.Subject{ID: "a1", Name: "Ana"},
		Preview: live.Preview{
			SubjectID: "a1",
			Artifact:  &live.Artifact{ContentType: "image/jpeg", Data: []byte("hello")},
		},
	}
	ev := NewEvent(st)
	assert.Equal(t, "data:image/jpeg;base64,aGVsbG8=", ev.Preview.Image)
	assert.False(t, ev.Preview.HasError)

	st.Preview = live.Preview{SubjectID: "a1", Err: errors.New("camera busy"), Artifact: &live.Artifact{URL: "http://cdn/x.jpg"}}
	ev = NewEvent(st)
	assert.Equal(t, "http://cdn/x.jpg", ev.Preview.Image)
	assert.True(t, ev.Preview.HasError)
	assert.Equal(t, "camera busy", ev.Preview.Error)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(logsvc.NewRecordingLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(r.URL.Query().Get("session"), conn)
	}))
	defer srv.Close()

	dial := func(session string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		return conn
	}
	viewer := dial("s1")
	defer viewer.Close()
	other := dial("s2")
	defer other.Close()

	require.Eventually(t, func() bool {
		return hub.ClientCount("s1") == 1 && hub.ClientCount("s2") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Notify(live.Status{SessionID: "s1", Phase: live.PhaseArmed, Subject: &live.Subject{ID: "a1"}})

	var ev Event
	require.NoError(t, viewer.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, viewer.ReadJSON(&ev))
	assert.Equal(t, "s1", ev.SessionID)
	assert.Equal(t, live.PhaseArmed, ev.Phase)
	assert.Equal(t, "a1", ev.Subject.ID)

	// viewers of another session get nothing
	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 0 }, time.Second, 10*time.Millisecond)
	assert.False(t, hub.Register("s1", nil), "registration fails once the hub stopped")
}

func TestHub_Welcome(t *testing.T) {
	hub := NewHub(logsvc.NewRecordingLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register("s1", conn, NewEvent(live.Status{SessionID: "s1", Phase: live.PhaseRecording}))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	first, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer first.Close()

	var ev Event
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, first.ReadJSON(&ev))
	assert.Equal(t, live.PhaseRecording, ev.Phase)

	second, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, second.ReadJSON(&ev))
	assert.Equal(t, "s1", ev.SessionID)

	// the second viewer's welcome is not rebroadcast
	require.NoError(t, first.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err = first.ReadMessage()
	assert.Error(t, err)
}
