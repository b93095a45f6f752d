package wireless

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"golang.org/x/net/websocket"
)

// Dialer opens the connection to the operator peer.
type Dialer interface {
	Dial(ctx context.Context) (net.Conn, error)
}

// DialFunc is the func form of Dialer.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Dial implements Dialer.
func (f DialFunc) Dial(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// TCPDialer connects to a raw TCP peer.
type TCPDialer struct {
	Address string
	Dialer  net.Dialer
}

// Dial implements Dialer.
func (d *TCPDialer) Dial(ctx context.Context) (net.Conn, error) {
	return d.Dialer.DialContext(ctx, "tcp", d.Address)
}

// WebsocketDialer connects to a peer behind a websocket endpoint.
// Frames are carried as binary websocket messages.
type WebsocketDialer struct {
	Config *websocket.Config
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context) (net.Conn, error) {
	conn, err := d.Config.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// NewDialer creates a Dialer from the peer URL.
// e.g. tcp://192.168.0.1:60000, ws://host:port/path
func NewDialer(peerURL string) (Dialer, error) {
	u, err := url.Parse(peerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid peer URL: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("peer URL %q has no host", peerURL)
	}
	switch u.Scheme {
	case "tcp":
		return &TCPDialer{Address: u.Host}, nil
	case "ws", "wss":
		origin := "http://" + u.Host + "/"
		if u.Scheme == "wss" {
			origin = "https://" + u.Host + "/"
		}
		conf, err := websocket.NewConfig(peerURL, origin)
		if err != nil {
			return nil, err
		}
		return &WebsocketDialer{Config: conf}, nil
	default:
		return nil, fmt.Errorf("unknown peer URL scheme: %q", u.Scheme)
	}
}
