package bridge

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"

	"github.com/robotalks/bridge.go/pkg/bus"
	"github.com/robotalks/bridge.go/pkg/wireless"
)

// EnvPrefix prefixes the environment variables overriding the config.
const EnvPrefix = "BRIDGE_"

// Config defines the configurations of the bridge node.
type Config struct {
	// PeerURL locates the operator application.
	// e.g. tcp://192.168.0.1:60000, ws://host:port/path
	PeerURL string `yaml:"peer-url" env:"PEER_URL"`
	// Interface is the network interface to watch for association.
	// Empty to assume the network is always available.
	Interface     string        `yaml:"interface" env:"INTERFACE"`
	RetryInterval time.Duration `yaml:"retry-interval" env:"RETRY_INTERVAL"`
	ReadTimeout   time.Duration `yaml:"read-timeout" env:"READ_TIMEOUT"`
	WriteTimeout  time.Duration `yaml:"write-timeout" env:"WRITE_TIMEOUT"`

	SPIPort    string `yaml:"spi-port" env:"SPI_PORT"`
	SPIClockHz int64  `yaml:"spi-clock-hz" env:"SPI_CLOCK_HZ"`
	SPIMode    int    `yaml:"spi-mode" env:"SPI_MODE"`
	// EmulateBus replaces the controller board with one answering
	// all-zero telemetry.
	EmulateBus bool `yaml:"emulate-bus" env:"EMULATE_BUS"`

	// LenientDecode accepts malformed command fields as the legacy
	// firmware did instead of dropping the frame.
	LenientDecode bool `yaml:"lenient-decode" env:"LENIENT_DECODE"`

	// NodeID identifies this node in telemetry topics.
	// Defaults to the machine ID.
	NodeID string `yaml:"node-id" env:"NODE_ID"`
	// MQTTURL enables the telemetry mirror.
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string `yaml:"mqtt-url" env:"MQTT_URL"`

	// TraceSerial mirrors wire traces to a serial port.
	TraceSerial string `yaml:"trace-serial" env:"TRACE_SERIAL"`
	TraceBaud   int    `yaml:"trace-baud" env:"TRACE_BAUD"`
}

var defaultConfig = Config{
	PeerURL:       "tcp://192.168.0.1:60000",
	RetryInterval: wireless.DefaultRetryInterval,
	ReadTimeout:   wireless.DefaultReadTimeout,
	WriteTimeout:  wireless.DefaultWriteTimeout,
	SPIClockHz:    1000000,
	TraceBaud:     9600,
}

var (
	flagConfig = defaultConfig
	configFile string
)

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", configFile, "Config file in YAML.")
	bindFlags(flag.CommandLine, &flagConfig)
}

func bindFlags(fs *flag.FlagSet, c *Config) {
	fs.StringVar(&c.PeerURL, "peer", c.PeerURL, "Operator URL, tcp://host:port or ws://host:port/path.")
	fs.StringVar(&c.Interface, "iface", c.Interface, "Network interface to wait for, empty to skip.")
	fs.DurationVar(&c.RetryInterval, "retry-interval", c.RetryInterval, "Interval between connection attempts.")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "Maximum wait for the rest of a command frame.")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "Maximum wait for sending a telemetry frame.")
	fs.StringVar(&c.SPIPort, "spi-port", c.SPIPort, "SPI port name, empty for the first available.")
	fs.Int64Var(&c.SPIClockHz, "spi-clock", c.SPIClockHz, "SPI clock in Hz.")
	fs.IntVar(&c.SPIMode, "spi-mode", c.SPIMode, "SPI mode 0-3.")
	fs.BoolVar(&c.EmulateBus, "emulate-bus", c.EmulateBus, "Emulate the controller board with all-zero telemetry.")
	fs.BoolVar(&c.LenientDecode, "lenient", c.LenientDecode, "Accept malformed command fields.")
	fs.StringVar(&c.NodeID, "node-id", c.NodeID, "Node ID, default is the machine ID.")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT URL for the telemetry mirror, empty to disable.")
	fs.StringVar(&c.TraceSerial, "trace-serial", c.TraceSerial, "Serial port receiving wire traces.")
	fs.IntVar(&c.TraceBaud, "trace-baud", c.TraceBaud, "Baud rate of the trace serial port.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig loads the config from the file specified by -config, the
// environment and the command line.
func NewConfig() (*Config, error) {
	return LoadConfig(configFile, flag.CommandLine)
}

// MustNewConfig loads the config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadConfig builds the config from defaults, then the YAML file at
// path if not empty, then BRIDGE_* environment variables, and finally
// the flags explicitly set in flags, which may be nil.
func LoadConfig(path string, flags *flag.FlagSet) (*Config, error) {
	conf := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalStrict(data, &conf); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&conf, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("config env: %w", err)
	}
	if flags != nil {
		overrides := flag.NewFlagSet("overrides", flag.ContinueOnError)
		bindFlags(overrides, &conf)
		var err error
		flags.Visit(func(f *flag.Flag) {
			if err == nil && overrides.Lookup(f.Name) != nil {
				err = overrides.Set(f.Name, f.Value.String())
			}
		})
		if err != nil {
			return nil, err
		}
	}
	return &conf, conf.Validate()
}

// Validate checks the config.
func (c *Config) Validate() error {
	if _, err := wireless.NewDialer(c.PeerURL); err != nil {
		return err
	}
	if c.RetryInterval <= 0 || c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("retry interval and timeouts must be positive")
	}
	if !c.EmulateBus {
		if c.SPIClockHz <= 0 {
			return fmt.Errorf("invalid SPI clock: %d", c.SPIClockHz)
		}
		if c.SPIMode < 0 || c.SPIMode > 3 {
			return fmt.Errorf("invalid SPI mode: %d", c.SPIMode)
		}
	}
	if c.MQTTURL != "" {
		u, err := url.Parse(c.MQTTURL)
		if err != nil {
			return fmt.Errorf("invalid MQTT URL: %w", err)
		}
		if u.Host == "" {
			return fmt.Errorf("MQTT URL %q has no host", c.MQTTURL)
		}
	}
	if c.TraceSerial != "" && c.TraceBaud <= 0 {
		return fmt.Errorf("invalid trace baud rate: %d", c.TraceBaud)
	}
	return nil
}

// NewLink creates the wireless session to the operator.
func (c *Config) NewLink() (*wireless.Link, error) {
	dialer, err := wireless.NewDialer(c.PeerURL)
	if err != nil {
		return nil, err
	}
	link := wireless.NewLink(dialer, wireless.Interface{Name: c.Interface})
	link.RetryInterval = c.RetryInterval
	link.ReadTimeout = c.ReadTimeout
	link.WriteTimeout = c.WriteTimeout
	return link, nil
}

// SPIConfig converts the SPI settings.
func (c *Config) SPIConfig() bus.SPIConfig {
	return bus.SPIConfig{
		Port:      c.SPIPort,
		Frequency: physic.Frequency(c.SPIClockHz) * physic.Hertz,
		Mode:      spi.Mode(c.SPIMode),
	}
}

// OpenBus opens the controller board bus. The returned close func
// releases the port.
func (c *Config) OpenBus() (bus.Transceiver, func() error, error) {
	if c.EmulateBus {
		return bus.NewLoopback(NIn), func() error { return nil }, nil
	}
	port, err := bus.OpenSPI(c.SPIConfig())
	if err != nil {
		return nil, nil, err
	}
	return port, port.Close, nil
}

// NewBridge creates the Bridge with the link and the bus.
func (c *Config) NewBridge(link Session, transceiver bus.Transceiver) *Bridge {
	b := New(link, transceiver)
	b.Lenient = c.LenientDecode
	return b
}
