package bus

// Loopback emulates a controller board which answers every transaction
// with Values followed by the sentinel. It assumes each transaction
// receives len(Values) words, which is how the bridge drives the bus.
type Loopback struct {
	Values []uint16
	// Received keeps the words of the last outbound message, up to the sentinel.
	Received []uint16

	step    int
	pending []uint16
	ended   bool
}

// NewLoopback creates a Loopback answering n zero values.
func NewLoopback(n int) *Loopback {
	return &Loopback{Values: make([]uint16, n)}
}

// Transfer16 implements Transceiver.
func (l *Loopback) Transfer16(w uint16) (r uint16, err error) {
	if l.step == 0 {
		l.pending, l.ended = l.pending[:0], false
	}
	if !l.ended {
		if w == Sentinel {
			l.Received = append(l.Received[:0], l.pending...)
			l.ended = true
		} else {
			l.pending = append(l.pending, w)
		}
	}
	if l.step < len(l.Values) {
		r = l.Values[l.step]
		l.step++
		return
	}
	l.step = 0
	return Sentinel, nil
}
