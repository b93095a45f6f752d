package mqtt

import (
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/bridge.go/pkg/bridge"
)

// Topics relative to the queue prefix.
const (
	topicRoot       = "bridge/"
	statusSuffix    = "/status"
	telemetrySuffix = "/telemetry"
)

// StatusTopic is the retained LinkStatus topic of a node.
func StatusTopic(nodeID string) string {
	return topicRoot + nodeID + statusSuffix
}

// TelemetryTopic is the Sample topic of a node.
func TelemetryTopic(nodeID string) string {
	return topicRoot + nodeID + telemetrySuffix
}

// ParseTopic extracts the node ID and the kind ("status" or
// "telemetry") from a topic. ok is false for unrelated topics.
func ParseTopic(topic string) (nodeID, kind string, ok bool) {
	if !strings.HasPrefix(topic, topicRoot) {
		return "", "", false
	}
	rest := topic[len(topicRoot):]
	pos := strings.LastIndexByte(rest, '/')
	if pos <= 0 {
		return "", "", false
	}
	nodeID, kind = rest[:pos], rest[pos+1:]
	return nodeID, kind, kind == "status" || kind == "telemetry"
}

// LinkStatus is published retained whenever the operator link changes state.
type LinkStatus struct {
	NodeID string `protobuf:"bytes,1,opt,name=node_id,proto3" json:"node_id,omitempty"`
	State  string `protobuf:"bytes,2,opt,name=state,proto3" json:"state,omitempty"`
	Peer   string `protobuf:"bytes,3,opt,name=peer,proto3" json:"peer,omitempty"`
	// SinceMs is the unix time in milliseconds of the change.
	SinceMs int64 `protobuf:"varint,4,opt,name=since_ms,proto3" json:"since_ms,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkStatus) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkStatus) Reset() { *m = LinkStatus{} }

// String implements proto.Message.
func (m *LinkStatus) String() string { return proto.CompactTextString(m) }

// Sample is a bridge iteration in which the controller board sent telemetry.
type Sample struct {
	Iteration   uint64 `protobuf:"varint,1,opt,name=iteration,proto3" json:"iteration,omitempty"`
	TimestampMs int64  `protobuf:"varint,2,opt,name=timestamp_ms,proto3" json:"timestamp_ms,omitempty"`
	// Command is empty when no command was forwarded in the iteration.
	Command   []uint32 `protobuf:"varint,3,rep,packed,name=command,proto3" json:"command,omitempty"`
	Telemetry []uint32 `protobuf:"varint,4,rep,packed,name=telemetry,proto3" json:"telemetry,omitempty"`
	Sent      bool     `protobuf:"varint,5,opt,name=sent,proto3" json:"sent,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *Sample) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Sample) Reset() { *m = Sample{} }

// String implements proto.Message.
func (m *Sample) String() string { return proto.CompactTextString(m) }

// NewSample converts a bridge report.
func NewSample(r *bridge.Report) *Sample {
	s := &Sample{
		Iteration:   r.Iteration,
		TimestampMs: r.Time.UnixNano() / 1e6,
		Telemetry:   make([]uint32, len(r.Telemetry)),
		Sent:        r.Sent,
	}
	for i, v := range r.Telemetry {
		s.Telemetry[i] = uint32(v)
	}
	if r.CommandValid {
		s.Command = make([]uint32, len(r.Command))
		for i, v := range r.Command {
			s.Command[i] = uint32(v)
		}
	}
	return s
}
