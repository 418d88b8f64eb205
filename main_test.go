package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"kidoku/internal/notify"
	"kidoku/internal/transcript"
	"kidoku/internal/ws"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const apiAddr = "127.0.0.1:8897"

func waitForServer(t *testing.T, url string, attempts int) {
	t.Helper()
	for range attempts {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server at %s did not start", url)
}

func dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/api/session", apiAddr), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil reads server messages until one matches.
func readUntil(t *testing.T, conn *websocket.Conn, match func(ws.ServerMessage) bool) ws.ServerMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg ws.ServerMessage
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ ws.ServerMessageType) func(ws.ServerMessage) bool {
	return func(m ws.ServerMessage) bool { return m.Type == typ }
}

func viewWith(cond func(transcript.View) bool) func(ws.ServerMessage) bool {
	return func(m ws.ServerMessage) bool {
		return m.Type == ws.ServerMessageTypeView && m.View != nil && cond(*m.View)
	}
}

func lastReadLabel(label string) func(transcript.View) bool {
	return func(v transcript.View) bool {
		n := len(v.Entries)
		return n > 0 && v.Entries[n-1].ReadLabel == label
	}
}

func send(t *testing.T, conn *websocket.Conn, msg ws.ClientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func join(t *testing.T, email, nickname string) *websocket.Conn {
	t.Helper()
	conn := dial(t)
	send(t, conn, ws.ClientMessage{Type: ws.ClientMessageTypeLogin, Email: email, Password: "correct horse battery"})
	readUntil(t, conn, ofType(ws.ServerMessageTypeSetupProfile))
	send(t, conn, ws.ClientMessage{Type: ws.ClientMessageTypeNickname, Nickname: nickname})
	readUntil(t, conn, viewWith(func(v transcript.View) bool {
		return v.Status == transcript.StatusReady && v.Nickname == nickname
	}))
	return conn
}

func TestIntegration(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "integration_test.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, []string{"--db", dbFile, "--addr", apiAddr, "--notifier", "none"})
	}()

	waitForServer(t, fmt.Sprintf("http://%s/healthz", apiAddr), 50)

	alice := join(t, "alice@example.com", "Alice")
	bob := join(t, "bob@example.com", "Bob")

	// Step 1: a message from Alice reaches Bob and is read right away.
	send(t, alice, ws.ClientMessage{Type: ws.ClientMessageTypeSend, Text: "hello"})
	msg := readUntil(t, bob, viewWith(func(v transcript.View) bool { return len(v.Entries) == 1 }))
	require.Equal(t, "Alice", msg.View.Entries[0].Author)
	readUntil(t, alice, viewWith(lastReadLabel("read")))

	// Step 2: Bob looks away and grants notifications.
	send(t, bob, ws.ClientMessage{Type: ws.ClientMessageTypePermission, Permission: notify.PermissionGranted})
	send(t, bob, ws.ClientMessage{Type: ws.ClientMessageTypeBlur})
	readUntil(t, bob, viewWith(func(v transcript.View) bool { return !v.Focused }))

	send(t, alice, ws.ClientMessage{Type: ws.ClientMessageTypeSend, Text: "are you there?"})
	msg = readUntil(t, bob, ofType(ws.ServerMessageTypeNotification))
	require.Equal(t, "Alice", msg.Notification.Title)
	require.Equal(t, "are you there?", msg.Notification.Body)
	readUntil(t, alice, viewWith(func(v transcript.View) bool {
		return len(v.Entries) == 2 && v.Entries[1].ReadLabel == "unread"
	}))

	// Step 3: clicking the notification dismisses it and flushes receipts.
	send(t, bob, ws.ClientMessage{Type: ws.ClientMessageTypeNotificationClick})
	msg = readUntil(t, bob, ofType(ws.ServerMessageTypeDismiss))
	require.NotEmpty(t, msg.Notification.MessageID)
	readUntil(t, alice, viewWith(lastReadLabel("read")))

	// Step 4: a wrong password ends in an alert.
	intruder := dial(t)
	send(t, intruder, ws.ClientMessage{Type: ws.ClientMessageTypeLogin, Email: "alice@example.com", Password: "guess"})
	msg = readUntil(t, intruder, ofType(ws.ServerMessageTypeAlert))
	require.NotEmpty(t, msg.Text)

	// Step 5: logout clears the view.
	send(t, alice, ws.ClientMessage{Type: ws.ClientMessageTypeLogout})
	readUntil(t, alice, viewWith(func(v transcript.View) bool {
		return v.Status == transcript.StatusSignedOut && len(v.Entries) == 0
	}))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
