package bus

import (
	"encoding/binary"
	"fmt"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// SPIConfig selects and configures the SPI port.
type SPIConfig struct {
	// Port is the periph registry name, empty for the first available port.
	Port      string
	Frequency physic.Frequency
	Mode      spi.Mode
}

// DefaultSPIConfig matches the controller board: 1MHz, mode 0, MSB first.
var DefaultSPIConfig = SPIConfig{
	Frequency: physic.MegaHertz,
	Mode:      spi.Mode0,
}

// SPI is a Transceiver on a host SPI port. Words are sent MSB first
// as two bytes within one chip-select cycle.
type SPI struct {
	port spi.PortCloser
	conn spi.Conn
	w, r [2]byte
}

// OpenSPI initializes the host drivers and connects to the SPI port.
func OpenSPI(conf SPIConfig) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	port, err := spireg.Open(conf.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", conf.Port, err)
	}
	conn, err := port.Connect(conf.Frequency, conf.Mode, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("connect spi port %q: %w", conf.Port, err)
	}
	return &SPI{port: port, conn: conn}, nil
}

// Transfer16 implements Transceiver.
func (s *SPI) Transfer16(w uint16) (uint16, error) {
	binary.BigEndian.PutUint16(s.w[:], w)
	if err := s.conn.Tx(s.w[:], s.r[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(s.r[:]), nil
}

// Close implements io.Closer.
func (s *SPI) Close() error {
	return s.port.Close()
}
