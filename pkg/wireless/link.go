package wireless

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang/glog"
)

// State is the connection state of the Link.
type State int

const (
	// StateDisconnected means no connection to the peer.
	StateDisconnected State = iota
	// StateAssociating means waiting for the wireless network.
	StateAssociating
	// StateConnecting means dialing the peer.
	StateConnecting
	// StateConnected means the peer is connected.
	StateConnected
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateAssociating:
		return "associating"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "unknown"
}

// Defaults
const (
	DefaultReadTimeout   = 100 * time.Millisecond
	DefaultWriteTimeout  = time.Second
	DefaultRetryInterval = 500 * time.Millisecond

	// pollWindow bounds the availability check in Receive.
	pollWindow = time.Millisecond
)

var (
	// ErrNoDialer indicates the Link is not configured with a Dialer.
	ErrNoDialer = errors.New("no dialer")
)

// Link is the session with the operator peer. It is not safe for
// concurrent use: a single loop owns it for the lifetime of the process.
type Link struct {
	Dialer     Dialer
	Associator Associator

	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	RetryInterval time.Duration

	conn   net.Conn
	reader *bufio.Reader
	state  State
}

// NewLink creates a Link with default timeouts.
func NewLink(dialer Dialer, assoc Associator) *Link {
	return &Link{
		Dialer:        dialer,
		Associator:    assoc,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		RetryInterval: DefaultRetryInterval,
	}
}

// State gets the current state.
func (l *Link) State() State {
	return l.state
}

// Connected indicates the peer is connected.
func (l *Link) Connected() bool {
	return l.conn != nil
}

// EnsureConnected waits for network association and connects the peer.
// It returns immediately when already connected, and otherwise blocks
// until connected or ctx is done.
func (l *Link) EnsureConnected(ctx context.Context) error {
	if !l.associated() {
		if l.conn != nil {
			l.drop(errors.New("network association lost"))
		}
		if err := l.waitAssociated(ctx); err != nil {
			return err
		}
	}
	if l.conn != nil {
		return nil
	}
	if l.Dialer == nil {
		return ErrNoDialer
	}

	l.state = StateConnecting
	glog.Info("connecting to peer")
	conn, err := backoff.Retry(ctx, func() (net.Conn, error) {
		return l.Dialer.Dial(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(l.retryInterval())),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			glog.V(1).Infof("connect failed: %v, retry in %v", err, next)
		}))
	if err != nil {
		l.state = StateDisconnected
		return err
	}
	l.conn, l.reader = conn, bufio.NewReader(conn)
	l.state = StateConnected
	glog.Infof("connected to peer %s", conn.RemoteAddr())
	return nil
}

// Send writes the whole frame if connected. A failed write drops the
// connection. It returns whether the frame was written.
func (l *Link) Send(frame []byte) bool {
	if l.conn == nil {
		return false
	}
	if l.WriteTimeout > 0 {
		l.conn.SetWriteDeadline(time.Now().Add(l.WriteTimeout))
	}
	if _, err := l.conn.Write(frame); err != nil {
		l.drop(err)
		return false
	}
	return true
}

// Receive fills buf with a frame if the peer has sent anything. It never
// waits when nothing is available, and waits at most ReadTimeout for the
// rest of a frame. Bytes of an incomplete frame are discarded.
func (l *Link) Receive(buf []byte) bool {
	if l.conn == nil {
		return false
	}
	if l.reader.Buffered() == 0 {
		l.conn.SetReadDeadline(time.Now().Add(pollWindow))
		if _, err := l.reader.Peek(1); err != nil {
			if !os.IsTimeout(err) {
				l.drop(err)
			}
			return false
		}
	}
	l.conn.SetReadDeadline(time.Now().Add(l.readTimeout()))
	n, err := io.ReadFull(l.reader, buf)
	if err != nil {
		if os.IsTimeout(err) {
			glog.V(1).Infof("incomplete frame dropped: %d of %d bytes", n, len(buf))
		} else {
			l.drop(err)
		}
		return false
	}
	return true
}

// Close implements io.Closer.
func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn, l.reader, l.state = nil, nil, StateDisconnected
	return err
}

func (l *Link) associated() bool {
	return l.Associator == nil || l.Associator.Associated()
}

func (l *Link) waitAssociated(ctx context.Context) error {
	l.state = StateAssociating
	glog.Info("waiting for network association")
	ticker := time.NewTicker(l.retryInterval())
	defer ticker.Stop()
	for !l.associated() {
		select {
		case <-ctx.Done():
			l.state = StateDisconnected
			return ctx.Err()
		case <-ticker.C:
		}
	}
	glog.Info("network associated")
	return nil
}

func (l *Link) drop(reason error) {
	if reason == io.EOF {
		glog.Warning("connection closed by peer")
	} else {
		glog.Warningf("connection lost: %v", reason)
	}
	l.conn.Close()
	l.conn, l.reader, l.state = nil, nil, StateDisconnected
}

func (l *Link) readTimeout() time.Duration {
	if l.ReadTimeout > 0 {
		return l.ReadTimeout
	}
	return DefaultReadTimeout
}

func (l *Link) retryInterval() time.Duration {
	if l.RetryInterval > 0 {
		return l.RetryInterval
	}
	return DefaultRetryInterval
}
