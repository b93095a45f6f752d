package bus

// Sentinel terminates a non-empty message on the bus.
const Sentinel uint16 = 0x0E0F

// Transceiver exchanges a single word with the bus peer.
type Transceiver interface {
	Transfer16(w uint16) (uint16, error)
}

// TransceiveFunc is the func form of Transceiver.
type TransceiveFunc func(uint16) (uint16, error)

// Transfer16 implements Transceiver.
func (f TransceiveFunc) Transfer16(w uint16) (uint16, error) {
	return f(w)
}

// Steps returns the number of word exchanges of a transaction.
func Steps(outLen, inLen int) int {
	if outLen > inLen {
		return outLen + 1
	}
	return inLen + 1
}

// Transact runs one transaction sending out and receiving into in.
// It reports whether the peer terminated its message with the sentinel.
// out may be empty, in which case no sentinel is sent. On error the
// transaction is aborted and no message is reported.
func Transact(t Transceiver, out, in []uint16) (present bool, err error) {
	steps := Steps(len(out), len(in))
	for i := 0; i < steps; i++ {
		var w uint16
		if i < len(out) {
			w = out[i]
		} else if i == len(out) && len(out) > 0 {
			w = Sentinel
		}
		r, err := t.Transfer16(w)
		if err != nil {
			return false, err
		}
		if i < len(in) {
			in[i] = r
		} else if i == len(in) && len(in) > 0 {
			present = r == Sentinel
		}
	}
	return present, nil
}
