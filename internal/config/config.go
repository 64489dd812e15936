package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the alarm bridge.
type Config struct {
	// Serial configures the link to the microcontroller.
	Serial Serial `yaml:"serial"`
	// Reconnect configures how the daemon retries connecting.
	Reconnect Reconnect `yaml:"reconnect"`
	// API configures the gRPC control endpoint.
	API API `yaml:"api"`
	// MQTT configures the optional event publisher.
	MQTT MQTT `yaml:"mqtt"`
	// DeviceFile is where the last handshake device info is cached. Empty disables the cache.
	DeviceFile string `yaml:"device_file,omitempty"`
	// LogLevel is the process-wide log level.
	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// Serial describes the serial link.
type Serial struct {
	// Port pins the link to a single port. When empty, candidates are discovered.
	Port string `yaml:"port,omitempty"`
	// BaudRate is the line speed, 8-N-1 framing is implied.
	BaudRate int `yaml:"baud_rate" validate:"gt=0"`
	// ReadTimeout bounds a single poll of the port.
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gt=0"`
	// WriteTimeout bounds a single write. go.bug.st/serial writes are blocking,
	// so the value is only used to bound the shutdown notice.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gt=0"`
	// SettleDelay is how long to wait after opening before talking to the device.
	SettleDelay time.Duration `yaml:"settle_delay" validate:"gte=0"`
	// PingDelay is how long to wait after the probe greeting.
	PingDelay time.Duration `yaml:"ping_delay" validate:"gte=0"`
	// PollInterval is the sleep between read polls.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	// ErrorBackoff is the pause after a failed read.
	ErrorBackoff time.Duration `yaml:"error_backoff" validate:"gte=0"`
	// Patterns are glob patterns of candidate device files on unix systems.
	Patterns []string `yaml:"patterns" validate:"dive,required"`
	// ComFirst and ComLast bound the COM port numbers probed on windows.
	ComFirst int `yaml:"com_first" validate:"gt=0"`
	ComLast  int `yaml:"com_last" validate:"gtefield=ComFirst"`
	// LogLevel optionally raises the verbosity of the serial component only.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
}

// Reconnect describes the caller-side reconnect policy.
type Reconnect struct {
	// Interval is the first delay after a failed connect.
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	// MaxInterval caps the exponential backoff.
	MaxInterval time.Duration `yaml:"max_interval" validate:"gtefield=Interval"`
	// MaxReadErrors is how many consecutive read errors make the link count as lost.
	MaxReadErrors int `yaml:"max_read_errors" validate:"gt=0"`
	// Hotplug requests a connect when a new candidate device file appears.
	Hotplug bool `yaml:"hotplug"`
}

// API describes the gRPC control endpoint.
type API struct {
	// ListenAddress is where alarm-bridge serves and alarmctl dials.
	ListenAddress string `yaml:"listen_address" validate:"required,hostname_port"`
	// Timeout is the per-call timeout used by alarmctl.
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// MQTT describes the optional event publisher.
type MQTT struct {
	// Broker is host:port of the broker. Empty disables publishing.
	Broker string `yaml:"broker,omitempty" validate:"omitempty,hostname_port"`
	// Topic receives one JSON message per event.
	Topic string `yaml:"topic,omitempty" validate:"required_with=Broker"`
}

const (
	// DefaultConfigFilename is the default filename for bridge settings.
	DefaultConfigFilename = "alarm-bridge-settings.yaml"

	// DefaultBaudRate matches the firmware of the call buttons.
	DefaultBaudRate = 115200

	// DefaultListenAddress is the loopback gRPC endpoint.
	DefaultListenAddress = "127.0.0.1:50061"

	// DefaultTopic is the MQTT topic used when only the broker is set.
	DefaultTopic = "alarm-bridge/events"

	// DefaultTimeout is the default duration for control calls.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for written files.
	DefaultFilePermissions = 0o600
	// DefaultDirPermissions is the permission for directories created for written files.
	DefaultDirPermissions = 0o750
)

// Serial link defaults.
const (
	DefaultReadTimeout  = time.Second
	DefaultWriteTimeout = time.Second
	DefaultSettleDelay  = 2 * time.Second
	DefaultPingDelay    = 500 * time.Millisecond
	DefaultPollInterval = 10 * time.Millisecond
	DefaultErrorBackoff = time.Second
	DefaultComFirst     = 1
	DefaultComLast      = 20
)

// Reconnect defaults.
const (
	DefaultReconnectInterval    = 5 * time.Second
	DefaultReconnectMaxInterval = time.Minute
	DefaultMaxReadErrors        = 10
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")

	//nolint:gochecknoglobals // validator caches struct metadata, one instance is the intended use.
	validate = validator.New(validator.WithRequiredStructEnabled())
)

// DefaultPatterns returns the unix glob patterns probed when no port is pinned.
func DefaultPatterns() []string {
	return []string{"/dev/ttyUSB*", "/dev/ttyACM*"}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default location yields the defaults.
func Load(path string) (*Config, error) {
	usingDefault := path == ""
	if usingDefault {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if usingDefault && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills unset fields with defaults and checks the result.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	return nil
}

//nolint:cyclop // A flat list of defaults reads better than a table here.
func applyDefaults(cfg *Config) {
	s := &cfg.Serial
	if s.BaudRate == 0 {
		s.BaudRate = DefaultBaudRate
	}

	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}

	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}

	if s.SettleDelay == 0 {
		s.SettleDelay = DefaultSettleDelay
	}

	if s.PingDelay == 0 {
		s.PingDelay = DefaultPingDelay
	}

	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}

	if s.ErrorBackoff == 0 {
		s.ErrorBackoff = DefaultErrorBackoff
	}

	if len(s.Patterns) == 0 {
		s.Patterns = DefaultPatterns()
	}

	if s.ComFirst == 0 {
		s.ComFirst = DefaultComFirst
	}

	if s.ComLast == 0 {
		s.ComLast = DefaultComLast
	}

	r := &cfg.Reconnect
	if r.Interval == 0 {
		r.Interval = DefaultReconnectInterval
	}

	if r.MaxInterval == 0 {
		r.MaxInterval = DefaultReconnectMaxInterval
	}

	if r.MaxReadErrors == 0 {
		r.MaxReadErrors = DefaultMaxReadErrors
	}

	if cfg.API.ListenAddress == "" {
		cfg.API.ListenAddress = DefaultListenAddress
	}

	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = DefaultTimeout
	}

	if cfg.MQTT.Broker != "" && cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = DefaultTopic
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}
