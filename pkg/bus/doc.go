// Package bus implements the bus side of the bridge: a full-duplex
// word exchange with the controller board and the sentinel framing
// used to detect whether the board actually sent a message.
package bus

// A transaction is a sequence of 16-bit word exchanges, one word per step,
// max(len(out), len(in)) + 1 steps in total.
//
//   step i <  len(out)                 master sends out[i]
//   step i == len(out), len(out) > 0   master sends Sentinel
//   otherwise                          master sends 0
//
//   step i <  len(in)                  received word stored as in[i]
//   step i == len(in), len(in) > 0     message present iff received word is Sentinel
//
// An all-zero inbound message followed by the sentinel is a valid message,
// while a missing sentinel means the board had nothing to say.
//
// Master: bridge node
// Slave: controller board
