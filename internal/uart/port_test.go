package uart

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// echoBridge answers every binary message with a text message followed by
// the same bytes, and records the Authorization header.
func echoBridge(t *testing.T, auth *string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*auth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte("ignored")); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOpenWebSocket_RoundTrip(t *testing.T) {
	var auth string
	srv := echoBridge(t, &auth)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	port, err := Open(context.Background(), Config{URL: wsURL, Username: "azv", Password: "secret"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer port.Close() //nolint:errcheck // Test cleanup

	frame := []byte{0xFF, 0xFF, 0xFD, 0x00, 0x01, 0x01}
	if _, err := port.Write(frame); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	// Small reads drain one message across several calls.
	var got []byte
	buf := make([]byte, 4)
	for len(got) < len(frame) {
		n, err := port.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, buf[:n]...)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("read % x, want % x", got, frame)
	}

	if !strings.HasPrefix(auth, "Basic ") {
		t.Errorf("Authorization = %q, want basic auth", auth)
	}

	if err := port.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := port.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestOpenWebSocket_BadScheme(t *testing.T) {
	_, err := OpenWebSocket(context.Background(), "http://bridge.local/serial", "", "", false)
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("OpenWebSocket() error = %v, want ErrUnsupportedScheme", err)
	}
}
