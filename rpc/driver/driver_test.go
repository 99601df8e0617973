package driver

import (
	"bytes"
	"github.com/ValentinKolb/dBot/rpc/common"
	"github.com/ValentinKolb/dBot/rpc/transport"
	"github.com/ValentinKolb/dBot/rpc/transport/base"
	"net"
	"testing"
	"time"
)

// newSession connects a channel to a driver serving handler
func newSession(t *testing.T, handler Handler) (transport.IChannel, *Driver, <-chan error) {
	t.Helper()
	local, remote := net.Pipe()
	ch := base.NewChannel(local, common.DefaultChannelConfig())
	d := New(remote)

	done := make(chan error, 1)
	go func() { done <- d.Serve(handler) }()

	t.Cleanup(func() {
		ch.Close()
		d.Close()
	})
	return ch, d, done
}

func TestEchoHandler(t *testing.T) {
	ch, d, _ := newSession(t, EchoHandler)

	resp, err := ch.RequestString("click", 10, 20.5)
	if err != nil {
		t.Fatalf("RequestString() error: %v", err)
	}
	if resp != "click 10 20.5" {
		t.Fatalf("unexpected echo %q", resp)
	}
	if d.Handled() != 1 {
		t.Fatalf("expected one handled request, got %d", d.Handled())
	}
}

func TestMapHandler(t *testing.T) {
	replies := map[string][]byte{
		"ping":         []byte("pong"),
		"getAndroidId": []byte("a1b2c3"),
	}

	tests := []struct {
		name string
		next Handler
		args []any
		want string
	}{
		{"known command", nil, []any{"ping"}, "pong"},
		{"known command with args", nil, []any{"getAndroidId", "x"}, "a1b2c3"},
		{"unknown without fallback", nil, []any{"swipe"}, "null"},
		{"unknown with fallback", EchoHandler, []any{"swipe", 1, 2}, "swipe 1 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch, _, _ := newSession(t, MapHandler(replies, tt.next))
			resp, err := ch.RequestString(tt.args...)
			if err != nil {
				t.Fatalf("RequestString() error: %v", err)
			}
			if resp != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, resp)
			}
		})
	}
}

func TestFileStore(t *testing.T) {
	files := NewFileStore()
	ch, _, _ := newSession(t, files.Handler(nil))

	payload := []byte{0x00, '/', '\n', 0xff, 'n', 'u', 'l', 'l'}
	resp, err := ch.Push("pushFile", "/sdcard/a.bin", payload)
	if err != nil || string(resp) != "true" {
		t.Fatalf("Push() = %q, %v", resp, err)
	}
	if stored, ok := files.Get("/sdcard/a.bin"); !ok || !bytes.Equal(stored, payload) {
		t.Fatalf("stored file mismatch: %q, %t", stored, ok)
	}

	data, err := ch.Pull("pullFile", "/sdcard/a.bin")
	if err != nil || !bytes.Equal(data, payload) {
		t.Fatalf("Pull() = %q, %v", data, err)
	}

	data, err = ch.Pull("pullFile", "/sdcard/missing.bin")
	if err != nil || string(data) != "null" {
		t.Fatalf("Pull() of a missing file = %q, %v", data, err)
	}
}

func TestServeEndsWhenSessionCloses(t *testing.T) {
	ch, _, done := newSession(t, EchoHandler)

	if _, err := ch.Request("ping"); err != nil {
		t.Fatalf("Request() error: %v", err)
	}
	ch.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve() did not return after the session closed")
	}
}

// TestServeRejectsHugeSegment tests that a request declaring more bytes than it
// carries ends the session with an error
func TestServeRejectsHugeSegment(t *testing.T) {
	local, remote := net.Pipe()
	d := New(remote)
	defer d.Close()

	done := make(chan error, 1)
	go func() { done <- d.Serve(EchoHandler) }()

	local.Write([]byte("99999999999999999\nabc"))
	local.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected an error for a truncated request")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return")
	}
	if d.Handled() != 0 {
		t.Fatalf("expected no handled request, got %d", d.Handled())
	}
}
