package config

import (
	"errors"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v2"

	"github.com/robotalks/classb/pkg/link"
)

// Environment variables overriding the config file.
const (
	EnvConfig  = "CLASSB_CONFIG"
	EnvPort    = "CLASSB_PORT"
	EnvAddress = "CLASSB_ADDRESS"
	EnvMQTTURL = "CLASSB_MQTT_URL"
	EnvNodeID  = "CLASSB_NODE_ID"
)

// Config provides common options of classb tools.
type Config struct {
	// Port is the URL of the link, see port.Open.
	Port string `yaml:"port"`
	// Address is the slave address. The master uses it as default destination.
	Address byte `yaml:"address"`
	// TimeoutTicks is the master guard time in ticks.
	TimeoutTicks uint32 `yaml:"timeoutTicks"`
	// TickInterval is the duration of one guard timer tick.
	TickInterval time.Duration `yaml:"tickInterval"`
	// BufferSize is the capacity of request and response buffers.
	BufferSize int `yaml:"bufferSize"`
	// MQTTURL is where the monitor publishes decoded frames,
	// e.g. mqtt://host:port/topic-prefix
	MQTTURL string `yaml:"mqttURL"`
	// NodeID identifies this node in published topics.
	NodeID string `yaml:"nodeID"`
}

var (
	// ErrNoPort indicates the link port is not configured.
	ErrNoPort = errors.New("port not specified")
	// ErrInvalidBufferSize indicates BufferSize is out of range.
	ErrInvalidBufferSize = fmt.Errorf("buffer size must be 1..%d", link.MaxPayload)
)

var (
	configFile string
	flagConf   Config
	flagSet    *flag.FlagSet
)

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Port:         "/dev/ttyUSB0",
		Address:      0x08,
		TimeoutTicks: link.DefaultTimeoutTicks,
		TickInterval: time.Millisecond,
		BufferSize:   link.MaxPayload,
		MQTTURL:      "mqtt://localhost:1883/classb/",
	}
}

// SetupFlags registers command line flags in fs.
// Flags explicitly set take precedence over the config file and environment.
func SetupFlags(fs *flag.FlagSet) {
	flagSet = fs
	def := New()
	flagConf = *def
	fs.StringVar(&configFile, "config", os.Getenv(EnvConfig), "Path to YAML config file.")
	fs.StringVar(&flagConf.Port, "port", def.Port, "Link port URL, e.g. serial:///dev/ttyS0?baud=115200, tcp://host:port.")
	fs.Var((*addressValue)(&flagConf.Address), "address", "Slave address in hex.")
	fs.Var((*ticksValue)(&flagConf.TimeoutTicks), "timeout-ticks", "Master guard time in ticks.")
	fs.DurationVar(&flagConf.TickInterval, "tick", def.TickInterval, "Duration of a guard timer tick.")
	fs.IntVar(&flagConf.BufferSize, "buffer-size", def.BufferSize, "Request/response buffer capacity.")
	fs.StringVar(&flagConf.MQTTURL, "mqtt-url", def.MQTTURL, "MQTT URL for publishing decoded frames.")
	fs.StringVar(&flagConf.NodeID, "node-id", def.NodeID, "Node ID, defaults to machine ID.")
}

// Load resolves the config: defaults, config file, environment, flags.
// It must be called after flags are parsed.
func Load() (*Config, error) {
	conf := New()
	if configFile != "" {
		if err := conf.LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	if err := conf.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if flagSet != nil {
		flagSet.Visit(func(f *flag.Flag) {
			conf.applyFlag(f.Name)
		})
	}
	if conf.NodeID == "" {
		conf.NodeID = MachineID()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// MustLoad loads the config and exits on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	return conf
}

// LoadFile merges settings from a YAML file.
func (c *Config) LoadFile(fn string) error {
	raw, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	if err := yaml.UnmarshalStrict(raw, c); err != nil {
		return fmt.Errorf("cannot parse %s: %w", fn, err)
	}
	return nil
}

// ApplyEnv merges settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if val, ok := lookup(EnvPort); ok && val != "" {
		c.Port = val
	}
	if val, ok := lookup(EnvAddress); ok && val != "" {
		addr, err := ParseAddress(val)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvAddress, err)
		}
		c.Address = addr
	}
	if val, ok := lookup(EnvMQTTURL); ok && val != "" {
		c.MQTTURL = val
	}
	if val, ok := lookup(EnvNodeID); ok && val != "" {
		c.NodeID = val
	}
	return nil
}

// Validate checks the settings.
func (c *Config) Validate() error {
	if c.Port == "" {
		return ErrNoPort
	}
	if c.BufferSize <= 0 || c.BufferSize > link.MaxPayload {
		return ErrInvalidBufferSize
	}
	if c.TimeoutTicks == 0 {
		c.TimeoutTicks = link.DefaultTimeoutTicks
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Millisecond
	}
	return nil
}

// GuardTime is the master timeout as a duration.
func (c *Config) GuardTime() time.Duration {
	return time.Duration(c.TimeoutTicks) * c.TickInterval
}

func (c *Config) applyFlag(name string) {
	switch name {
	case "port":
		c.Port = flagConf.Port
	case "address":
		c.Address = flagConf.Address
	case "timeout-ticks":
		c.TimeoutTicks = flagConf.TimeoutTicks
	case "tick":
		c.TickInterval = flagConf.TickInterval
	case "buffer-size":
		c.BufferSize = flagConf.BufferSize
	case "mqtt-url":
		c.MQTTURL = flagConf.MQTTURL
	case "node-id":
		c.NodeID = flagConf.NodeID
	}
}

// ParseAddress parses a link address in hex, with or without 0x prefix.
func ParseAddress(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return byte(v), nil
}

// MachineID retrieves the unique ID identifying the machine.
// The hostname is used when the machine ID is unavailable.
func MachineID() string {
	id, err := machineid.ID()
	if err == nil {
		return id
	}
	glog.Warningf("machine ID unavailable: %v", err)
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

type addressValue byte

func (v *addressValue) String() string {
	return fmt.Sprintf("%02x", byte(*v))
}

func (v *addressValue) Set(s string) error {
	addr, err := ParseAddress(s)
	if err != nil {
		return err
	}
	*v = addressValue(addr)
	return nil
}

type ticksValue uint32

func (v *ticksValue) String() string {
	return strconv.FormatUint(uint64(*v), 10)
}

func (v *ticksValue) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return err
	}
	*v = ticksValue(n)
	return nil
}
