package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"draftpad/realtime"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func sessionToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// The backend only learns about an open document when asked, and emits
// made before the channel is up are dropped, so the snapshot request has
// to ride the connected transition itself.
func TestSnapshotRequestedOnConnect(t *testing.T) {
	upgrader := websocket.Upgrader{}
	events := make(chan string, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f realtime.Frame
			if json.Unmarshal(data, &f) == nil {
				events <- f.Event
			}
		}
	}))
	defer srv.Close()

	d, err := NewDaemon(Config{
		DocumentID:   "doc-1",
		SyncEndpoint: srv.URL,
		Token:        sessionToken(t),
		DataDir:      t.TempDir(),
	})
	require.NoError(t, err)

	d.channel.Acquire()
	defer d.channel.Release()

	select {
	case ev := <-events:
		require.Equal(t, "client_get_document", ev)
	case <-time.After(3 * time.Second):
		t.Fatal("document request never arrived after connect")
	}
}
