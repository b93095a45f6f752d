package operator

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bridge.go/pkg/bridge"
	"github.com/robotalks/bridge.go/pkg/codec"
	fx "github.com/robotalks/bridge.go/pkg/framework"
)

var (
	// ErrNotConnected indicates no bridge node is connected.
	ErrNotConnected = errors.New("not connected")
)

// Status is a snapshot of the Server.
type Status struct {
	Connected bool
	Remote    string
	Frames    uint64
	BadFrames uint64
	LastAt    time.Time
}

// Server plays the operator application: it accepts a bridge node,
// receives telemetry frames and sends command frames. A new connection
// replaces the current one.
type Server struct {
	Listener net.Listener
	// OnTelemetry is called from the connection goroutine for every
	// valid telemetry frame, may be nil.
	OnTelemetry func(bridge.Telemetry)

	lock   sync.Mutex
	conn   net.Conn
	last   bridge.Telemetry
	status Status
}

// Listen creates a Server listening on a TCP address.
func Listen(addr string) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{Listener: ln}, nil
}

// Run implements fx.Runnable.
func (s *Server) Run(ctx context.Context) error {
	err := fx.RunWithContextCloser(ctx, s.Listener, func() error {
		for {
			conn, err := s.Listener.Accept()
			if err != nil {
				return err
			}
			s.attach(conn)
			go s.serve(conn)
		}
	})
	s.detach(nil)
	return err
}

// Send writes a command frame to the connected node.
func (s *Server) Send(cmd bridge.Command) error {
	var frame bridge.InFrame
	codec.Encode(frame[:], cmd[:])
	s.lock.Lock()
	conn := s.conn
	s.lock.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if _, err := conn.Write(frame[:]); err != nil {
		s.detach(conn)
		return err
	}
	return nil
}

// Last gets the latest telemetry. ok is false if nothing was received.
func (s *Server) Last() (tlm bridge.Telemetry, at time.Time, ok bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.last, s.status.LastAt, s.status.Frames > 0
}

// Status gets the current status.
func (s *Server) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

func (s *Server) attach(conn net.Conn) {
	s.lock.Lock()
	prev := s.conn
	s.conn = conn
	s.status.Connected, s.status.Remote = true, conn.RemoteAddr().String()
	s.lock.Unlock()
	if prev != nil {
		glog.Infof("node %s replaced", prev.RemoteAddr())
		prev.Close()
	}
	glog.Infof("node %s connected", conn.RemoteAddr())
}

// detach closes conn if it's the current one, or the current one if
// conn is nil.
func (s *Server) detach(conn net.Conn) {
	s.lock.Lock()
	cur := s.conn
	if cur != nil && (conn == nil || conn == cur) {
		s.conn = nil
		s.status.Connected, s.status.Remote = false, ""
	} else {
		cur = nil
	}
	s.lock.Unlock()
	if cur != nil {
		cur.Close()
		glog.Infof("node %s disconnected", cur.RemoteAddr())
	}
}

func (s *Server) serve(conn net.Conn) {
	defer s.detach(conn)
	var frame bridge.OutFrame
	for {
		if _, err := io.ReadFull(conn, frame[:]); err != nil {
			if err != io.EOF {
				glog.V(1).Infof("node %s: %v", conn.RemoteAddr(), err)
			}
			return
		}
		var tlm bridge.Telemetry
		if err := codec.Decode(tlm[:], frame[:]); err != nil {
			glog.Warningf("bad telemetry frame %q: %v", frame[:], err)
			s.lock.Lock()
			s.status.BadFrames++
			s.lock.Unlock()
			continue
		}
		s.lock.Lock()
		s.last = tlm
		s.status.Frames++
		s.status.LastAt = time.Now()
		s.lock.Unlock()
		if fn := s.OnTelemetry; fn != nil {
			fn(tlm)
		}
	}
}
