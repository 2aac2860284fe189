package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for a plantnode device.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Cycle    CycleConfig    `yaml:"cycle"`
	Bus      BusConfig      `yaml:"bus"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Network  NetworkConfig  `yaml:"network"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Pump     PumpConfig     `yaml:"pump"`
	Retained RetainedConfig `yaml:"retained"`
	Sleep    SleepConfig    `yaml:"sleep"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Status   StatusConfig   `yaml:"status"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the node towards the home-automation hub.
type DeviceConfig struct {
	// ID is used in every topic and as the MQTT client id.
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Model        string `yaml:"model"`
	Manufacturer string `yaml:"manufacturer"`
}

// CycleConfig contains the duty-cycle timings.
type CycleConfig struct {
	// Operate is how long the node stays awake per wake.
	Operate time.Duration `yaml:"operate"`

	// Sleep is the timer wake source armed before entering low-power sleep.
	Sleep time.Duration `yaml:"sleep"`

	// SampleInterval is the delay between two sampling passes.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// ConnectTimeout bounds link establishment and the discovery announcement.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// TeardownTimeout bounds the wait for the network session to acknowledge shutdown.
	TeardownTimeout time.Duration `yaml:"teardown_timeout"`
}

// BusConfig contains in-process coordination settings.
type BusConfig struct {
	// SnapshotCapacity is the bounded capacity of the snapshot channel.
	SnapshotCapacity int `yaml:"snapshot_capacity"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker          MQTTBrokerConfig    `yaml:"broker"`
	Auth            MQTTAuthConfig      `yaml:"auth"`
	QoS             int                 `yaml:"qos"`
	DiscoveryPrefix string              `yaml:"discovery_prefix"`
	KeepAlive       time.Duration       `yaml:"keepalive"`
	Reconnect       MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	TLS  bool   `yaml:"tls"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains the session manager's backoff bounds.
type MQTTReconnectConfig struct {
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// NetworkConfig contains link-layer settings.
type NetworkConfig struct {
	// Interface is the network interface that must be up with an IPv4 address.
	Interface string `yaml:"interface"`

	// PollInterval is how often link state is checked.
	PollInterval time.Duration `yaml:"poll_interval"`

	// UpCommand is run at the start of every connect to bring the radio up (optional).
	UpCommand []string `yaml:"up_command"`

	// DownCommand is run on disconnect to power the radio down (optional).
	// It requires UpCommand.
	DownCommand []string `yaml:"down_command"`
}

// SensorsConfig contains sampler settings.
type SensorsConfig struct {
	// Driver selects the probe implementation: "iio" or "simulated".
	Driver string `yaml:"driver"`

	// Samples is the number of raw reads per analog sensor and pass.
	Samples int `yaml:"samples"`

	// Warmup is the delay before each raw read.
	Warmup time.Duration `yaml:"warmup"`

	// ClimateRetries is the number of attempts for the temperature/humidity probe.
	ClimateRetries int `yaml:"climate_retries"`

	// ClimateRetryDelay is the wait between two climate attempts.
	ClimateRetryDelay time.Duration `yaml:"climate_retry_delay"`

	IIO IIOConfig `yaml:"iio"`
}

// IIOConfig maps sensors to Linux industrial-I/O and GPIO sysfs files.
type IIOConfig struct {
	Moisture        string `yaml:"moisture"`
	MoistureScale   string `yaml:"moisture_scale,omitempty"`
	MoistureTrigger string `yaml:"moisture_trigger"`
	WaterLevel      string `yaml:"water_level"`
	Battery         string `yaml:"battery"`
	BatteryScale    string `yaml:"battery_scale,omitempty"`
	Temperature     string `yaml:"temperature"`
	Humidity        string `yaml:"humidity"`
}

// PumpConfig contains relay settings.
type PumpConfig struct {
	// Driver selects the relay implementation: "gpio" or "memory".
	Driver string `yaml:"driver"`

	// GPIOValuePath is the sysfs value file of the relay line.
	GPIOValuePath string `yaml:"gpio_value_path"`

	// MaxOn turns the relay off after this long continuously on. 0 disables the cutoff.
	MaxOn time.Duration `yaml:"max_on"`

	// AutoRules applies the local water-level and moisture-trigger rules.
	AutoRules bool `yaml:"auto_rules"`
}

// RetainedConfig locates the block that survives sleep but not power loss.
type RetainedConfig struct {
	// Path should live on tmpfs so a full power loss clears it.
	Path string `yaml:"path"`

	// BootIDPath is read to detect a kernel reboot (full power loss).
	BootIDPath string `yaml:"boot_id_path"`
}

// SleepConfig selects how low-power sleep is entered.
type SleepConfig struct {
	// Mode is "rtcwake" (suspend the host) or "timer" (stay resident and wait).
	Mode string `yaml:"mode"`

	// RTCWakeBinary is the path to the rtcwake executable.
	RTCWakeBinary string `yaml:"rtcwake_binary"`

	// RTCWakeMode is passed as -m (mem, standby, freeze, disk).
	RTCWakeMode string `yaml:"rtcwake_mode"`
}

// DatabaseConfig contains SQLite journal settings.
type DatabaseConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout int           `yaml:"busy_timeout"`
	Retention   time.Duration `yaml:"retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusConfig contains the local status API settings.
type StatusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// DisplayConfig selects where the text panel is rendered.
type DisplayConfig struct {
	// Output is "none", "stdout", or the path of a character device
	// such as a framebuffer console (/dev/tty1).
	Output string `yaml:"output"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file in the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: PLANTNODE_SECTION_KEY
// For example: PLANTNODE_MQTT_HOST, PLANTNODE_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv exports variables from a .env file without overriding ones
// already set in the environment. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Default returns a Config with the values used by the original breadboard build.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:           "esp32_breadboard",
			Name:         "Plant node",
			Model:        "plantnode",
			Manufacturer: "plantnode",
		},
		Cycle: CycleConfig{
			Operate:         60 * time.Second,
			Sleep:           600 * time.Second,
			SampleInterval:  20 * time.Second,
			ConnectTimeout:  30 * time.Second,
			TeardownTimeout: 5 * time.Second,
		},
		Bus: BusConfig{
			SnapshotCapacity: 3,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:             0,
			DiscoveryPrefix: "homeassistant",
			KeepAlive:       30 * time.Second,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 500 * time.Millisecond,
				MaxDelay:     5 * time.Second,
			},
		},
		Network: NetworkConfig{
			Interface:    "wlan0",
			PollInterval: 500 * time.Millisecond,
		},
		Sensors: SensorsConfig{
			Driver:            "simulated",
			Samples:           8,
			Warmup:            10 * time.Millisecond,
			ClimateRetries:    3,
			ClimateRetryDelay: 2 * time.Second,
		},
		Pump: PumpConfig{
			Driver:    "memory",
			AutoRules: true,
		},
		Retained: RetainedConfig{
			Path:       "/run/plantnode/retained.bin",
			BootIDPath: "/proc/sys/kernel/random/boot_id",
		},
		Sleep: SleepConfig{
			Mode:          "timer",
			RTCWakeBinary: "/usr/sbin/rtcwake",
			RTCWakeMode:   "mem",
		},
		Database: DatabaseConfig{
			Path:        "./data/plantnode.db",
			WALMode:     true,
			BusyTimeout: 5,
			Retention:   30 * 24 * time.Hour,
		},
		Status: StatusConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Display: DisplayConfig{
			Output: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PLANTNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PLANTNODE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("PLANTNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PLANTNODE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing PLANTNODE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("PLANTNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PLANTNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("PLANTNODE_NETWORK_INTERFACE"); v != "" {
		cfg.Network.Interface = v
	}

	// InfluxDB
	if v := os.Getenv("PLANTNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device ID ends up inside topic levels
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(c.Device.ID, "/+# ") {
		errs = append(errs, "device.id must not contain '/', '+', '#' or spaces")
	}

	// Cycle
	if c.Cycle.Operate <= 0 {
		errs = append(errs, "cycle.operate must be positive")
	}
	if c.Cycle.Sleep < 0 {
		errs = append(errs, "cycle.sleep must not be negative")
	}
	if c.Cycle.SampleInterval <= 0 {
		errs = append(errs, "cycle.sample_interval must be positive")
	}
	if c.Cycle.ConnectTimeout <= 0 {
		errs = append(errs, "cycle.connect_timeout must be positive")
	}
	if c.Cycle.TeardownTimeout <= 0 {
		errs = append(errs, "cycle.teardown_timeout must be positive")
	}

	if c.Bus.SnapshotCapacity < 1 {
		errs = append(errs, "bus.snapshot_capacity must be at least 1")
	}

	// MQTT
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.DiscoveryPrefix == "" {
		errs = append(errs, "mqtt.discovery_prefix is required")
	}
	if c.MQTT.Reconnect.InitialDelay <= 0 || c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect delays must be positive with max_delay >= initial_delay")
	}

	if c.Network.Interface == "" {
		errs = append(errs, "network.interface is required")
	}
	if len(c.Network.DownCommand) > 0 && len(c.Network.UpCommand) == 0 {
		errs = append(errs, "network.down_command requires network.up_command")
	}

	// Sensors
	switch c.Sensors.Driver {
	case "iio", "simulated":
	default:
		errs = append(errs, "sensors.driver must be iio or simulated")
	}
	// The trimmed mean needs more than two raw reads to produce a value
	if c.Sensors.Samples < 3 {
		errs = append(errs, "sensors.samples must be at least 3")
	}
	if c.Sensors.ClimateRetries < 1 {
		errs = append(errs, "sensors.climate_retries must be at least 1")
	}

	// Pump
	switch c.Pump.Driver {
	case "gpio":
		if c.Pump.GPIOValuePath == "" {
			errs = append(errs, "pump.gpio_value_path is required for the gpio driver")
		}
	case "memory":
	default:
		errs = append(errs, "pump.driver must be gpio or memory")
	}
	if c.Pump.MaxOn < 0 {
		errs = append(errs, "pump.max_on must not be negative")
	}

	if c.Retained.Path == "" {
		errs = append(errs, "retained.path is required")
	}

	switch c.Sleep.Mode {
	case "rtcwake":
		if c.Sleep.RTCWakeBinary == "" {
			errs = append(errs, "sleep.rtcwake_binary is required for rtcwake mode")
		}
	case "timer":
	default:
		errs = append(errs, "sleep.mode must be rtcwake or timer")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the journal is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Status.Enabled && (c.Status.Port < 1 || c.Status.Port > 65535) {
		errs = append(errs, "status.port must be between 1 and 65535")
	}

	if c.Display.Output == "" {
		errs = append(errs, "display.output is required (none, stdout or a device path)")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns the host:port pair of the broker, for logging.
func (c MQTTConfig) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.Broker.Host, c.Broker.Port)
}
