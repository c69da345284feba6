package coapclient

import (
	"bytes"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	"github.com/plgd-dev/go-coap/v3/udp"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// startTestDevice runs a minimal CoAP server standing in for a field
// device: GET / answers "ON", POST / echoes the request body back.
func startTestDevice(t *testing.T, port int) {
	t.Helper()

	router := mux.NewRouter()
	_ = router.Handle("/", mux.HandlerFunc(func(w mux.ResponseWriter, r *mux.Message) {
		switch r.Code() {
		case codes.GET:
			_ = w.SetResponse(codes.Content, message.TextPlain, bytes.NewReader([]byte("ON")))
		case codes.POST:
			body, _ := r.ReadBody()
			_ = w.SetResponse(codes.Content, message.TextPlain, bytes.NewReader(body))
		}
	}))

	s := udp.NewServer(udp.WithMux(router))
	l, err := net.ListenPacket("udp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Serve(l)
	}()
	t.Cleanup(func() {
		s.Stop()
		<-done
	})
	time.Sleep(100 * time.Millisecond)
}

func TestClient_Get(t *testing.T) {
	const port = 57831
	startTestDevice(t, port)

	c := New(2 * time.Second)
	got, err := c.Get(context.Background(), "127.0.0.1", port)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ON" {
		t.Fatalf("Get = %q, want %q", got, "ON")
	}
}

func TestClient_Post(t *testing.T) {
	const port = 57832
	startTestDevice(t, port)

	c := New(2 * time.Second)
	got, err := c.Post(context.Background(), "127.0.0.1", port, domain.ActuatorCommandOn)
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if got != domain.ActuatorCommandOn {
		t.Fatalf("Post = %q, want %q", got, domain.ActuatorCommandOn)
	}
}

func TestClient_UnreachableDeviceIsError(t *testing.T) {
	c := New(200 * time.Millisecond)
	_, err := c.Get(context.Background(), "127.0.0.1", 1)
	if err == nil {
		t.Fatal("expected an error dialing an unreachable device")
	}
}

func TestNew_ZeroTimeoutFallsBackToDefault(t *testing.T) {
	c := New(0)
	if c.dialTimeout != defaultDialTimeout {
		t.Errorf("dialTimeout = %v, want %v", c.dialTimeout, defaultDialTimeout)
	}
}
