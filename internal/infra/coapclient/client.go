// Package coapclient implements domain.CoAPClient, the gateway's outbound
// side of the CoAP protocol used to reach field devices. Component C (the
// endpoint router) answers inbound requests from devices; this package is
// the inverse direction — the gateway dialing out to a device's `/` path,
// used by the Liveness Prober and the dashboard bus's actuator commands.
package coapclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpClient "github.com/plgd-dev/go-coap/v3/udp/client"

	"github.com/neriamosgionata/homesoil/internal/domain"
)

// defaultDialTimeout is used when New is called with a zero timeout.
const defaultDialTimeout = 5 * time.Second

// Client dials a fresh UDP association per call. Devices are intermittently
// reachable by design (that's what the Prober exists to detect), so there
// is no persistent connection pool to keep warm.
type Client struct {
	dialTimeout time.Duration
}

// New builds a Client that bounds every dial at timeout (the
// extras.coap_dial_timeout config knob), falling back to
// defaultDialTimeout when timeout is zero.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	return &Client{dialTimeout: timeout}
}

func (c *Client) dial(ctx context.Context, ip string, port uint16) (*udpClient.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", ip, port)
	conn, err := udp.Dial(addr, udp.WithContext(dialCtx))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, domain.ErrDeviceUnreachable)
	}
	return conn, nil
}

// Get issues a CoAP GET to coap://ip:port/ and returns the response body
// as a string. Used by the Prober for liveness checks and by
// toggle-actuator to read current state.
func (c *Client) Get(ctx context.Context, ip string, port uint16) (string, error) {
	conn, err := c.dial(ctx, ip, port)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	resp, err := conn.Get(ctx, "/")
	if err != nil {
		return "", fmt.Errorf("coap get %s:%d: %w", ip, port, domain.ErrDeviceUnreachable)
	}
	return readBody(resp)
}

// Post issues a CoAP POST to coap://ip:port/ carrying body as a
// text/plain payload, returning the response body as a string. Used to
// send "ON", "OFF", "ON-PULSE" and "READ" commands to devices.
func (c *Client) Post(ctx context.Context, ip string, port uint16, body string) (string, error) {
	conn, err := c.dial(ctx, ip, port)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	resp, err := conn.Post(ctx, "/", message.TextPlain, bytes.NewReader([]byte(body)))
	if err != nil {
		return "", fmt.Errorf("coap post %s:%d: %w", ip, port, domain.ErrDeviceUnreachable)
	}
	return readBody(resp)
}

type bodyReader interface {
	ReadBody() ([]byte, error)
}

func readBody(resp bodyReader) (string, error) {
	raw, err := resp.ReadBody()
	if err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("read coap response body: %w", domain.ErrDeviceUnreachable)
	}
	return string(raw), nil
}
