package mqtt

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/bridge.go/pkg/bridge"
	fx "github.com/robotalks/bridge.go/pkg/framework"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

// closeTimeout bounds the wait for clearing the status on exit.
const closeTimeout = time.Second

// Mirror publishes bridge reports to MQTT. Publishing never blocks the
// loop: tokens are not waited on and messages are lost while the
// broker is unreachable, except the retained status which is
// republished on reconnect.
type Mirror struct {
	Queue  *Queue
	NodeID string
	Peer   string

	statusLock sync.Mutex
	status     []byte
	state      wireless.State
	stateKnown bool
}

// NewMirror creates a Mirror. The broker clears the status topic if the
// node disappears without Run finishing.
func NewMirror(brokerURL, nodeID, peer string) (*Mirror, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+StatusTopic(nodeID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("bridge:" + nodeID)
	}
	m := &Mirror{
		Queue:  NewQueue(opts, topicPrefix),
		NodeID: nodeID,
		Peer:   peer,
	}
	m.Queue.OnConnect = func(*Queue) { m.republishStatus() }
	return m, nil
}

// AddToLoop implements fx.LoopAdder.
func (m *Mirror) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvPostProc, m)
}

// Run implements fx.Runnable.
func (m *Mirror) Run(ctx context.Context) error {
	// the client only reconnects by itself after the first connection.
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		token := m.Queue.Connect()
		token.Wait()
		return struct{}{}, token.Error()
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			glog.Warningf("MQTT connect: %v, retry in %v", err, next)
		}))
	if err != nil {
		return nil
	}
	<-ctx.Done()
	m.Queue.PubWith(StatusTopic(m.NodeID), nil, 1, true).WaitTimeout(closeTimeout)
	m.Queue.Close()
	return nil
}

// Control implements fx.Controller.
func (m *Mirror) Control(cc fx.ControlContext) error {
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mc fx.MessageProcessingContext) {
		if r, ok := mc.CurrentMessage().(*bridge.Report); ok {
			m.publish(r)
		}
	}))
	return nil
}

func (m *Mirror) publish(r *bridge.Report) {
	if !m.stateKnown || r.LinkState != m.state {
		m.state, m.stateKnown = r.LinkState, true
		status := &LinkStatus{
			NodeID:  m.NodeID,
			State:   r.LinkState.String(),
			Peer:    m.Peer,
			SinceMs: r.Time.UnixNano() / 1e6,
		}
		if payload, err := proto.Marshal(status); err != nil {
			glog.Errorf("encode status: %v", err)
		} else {
			m.statusLock.Lock()
			m.status = payload
			m.statusLock.Unlock()
			m.Queue.PubWith(StatusTopic(m.NodeID), payload, 1, true)
		}
	}
	if !r.BusIn {
		return
	}
	payload, err := proto.Marshal(NewSample(r))
	if err != nil {
		glog.Errorf("encode sample: %v", err)
		return
	}
	m.Queue.Pub(TelemetryTopic(m.NodeID), payload)
}

func (m *Mirror) republishStatus() {
	m.statusLock.Lock()
	payload := m.status
	m.statusLock.Unlock()
	if payload != nil {
		m.Queue.PubWith(StatusTopic(m.NodeID), payload, 1, true)
	}
}
