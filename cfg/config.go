package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/cespare/xxhash/v2"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// Notify transports
const (
	TransportLocal = "local" // In-process hub, single process only
	TransportNATS  = "nats"  // Core NATS subjects, cross-process
)

// StorageFileName is the SQLite file every process of a group opens
const StorageFileName = "messages.sqlite"

// StorageConfiguration controls the shared SQLite message log
type StorageConfiguration struct {
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // Wait on locks held by other processes
	Synchronous   string `toml:"synchronous"`     // OFF, NORMAL or FULL
}

// NotifyConfiguration controls how wake signals travel between processes
type NotifyConfiguration struct {
	Transport     string `toml:"transport"`
	NatsURL       string `toml:"nats_url"`
	SubjectPrefix string `toml:"subject_prefix"`
	SignalBuffer  int    `toml:"signal_buffer"` // Per-listener buffered signals before dropping
}

// BusConfiguration controls Group behavior
type BusConfiguration struct {
	PollBatchSize int      `toml:"poll_batch_size"`
	AllowedTopics []string `toml:"allowed_topics"` // Glob patterns, empty = all
	WatchTopics   []string `toml:"watch_topics"`   // Topics the daemon subscribes to and logs
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics.
// Address and Port also host the admin API when it is enabled.
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// AdminConfiguration controls the HTTP admin API
type AdminConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Secret  string `toml:"secret"` // Pre-shared key, empty disables auth
}

// Configuration is the main configuration structure
type Configuration struct {
	GroupID    string `toml:"group_id"`
	DataDir    string `toml:"data_dir"`
	InstanceID uint64 `toml:"instance_id"`

	Storage    StorageConfiguration    `toml:"storage"`
	Notify     NotifyConfiguration     `toml:"notify"`
	Bus        BusConfiguration        `toml:"bus"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	GroupIDFlag    = flag.String("group-id", "", "Group identifier (overrides config)")
	NatsURLFlag    = flag.String("nats-url", "", "NATS URL, switches notify transport to nats (overrides config)")
)

// Default returns a configuration populated with defaults
func Default() *Configuration {
	return &Configuration{
		GroupID:    "",
		DataDir:    "./groupbus-data",
		InstanceID: 0, // Auto-generate

		Storage: StorageConfiguration{
			BusyTimeoutMS: 5000,
			Synchronous:   "NORMAL",
		},

		Notify: NotifyConfiguration{
			Transport:     TransportLocal,
			SubjectPrefix: "groupbus",
			SignalBuffer:  16,
		},

		Bus: BusConfiguration{
			PollBatchSize: 100,
			AllowedTopics: []string{},
			WatchTopics:   []string{},
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled: false,
			Address: "127.0.0.1",
			Port:    9190,
		},

		Admin: AdminConfiguration{
			Enabled: false,
		},
	}
}

// Config is the process configuration
var Config = Default()

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *GroupIDFlag != "" {
		Config.GroupID = *GroupIDFlag
	}
	if *NatsURLFlag != "" {
		Config.Notify.Transport = TransportNATS
		Config.Notify.NatsURL = *NatsURLFlag
	}

	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			return fmt.Errorf("failed to generate instance ID: %w", err)
		}
		log.Info().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	if err := os.MkdirAll(Config.GroupDir(), 0755); err != nil {
		return fmt.Errorf("failed to create group directory: %w", err)
	}

	return nil
}

// generateInstanceID derives an ID from the machine ID and process ID.
// Processes of one group usually share a machine, so the pid is mixed in.
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("groupbus")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	fmt.Fprintf(h, "/%d", os.Getpid())
	return h.Sum64(), nil
}

// Validate checks configuration for errors
func Validate() error {
	return Config.Validate()
}

// Validate checks configuration for errors
func (c *Configuration) Validate() error {
	if c.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}

	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.BusyTimeoutMS < 0 {
		return fmt.Errorf("storage busy timeout must be >= 0")
	}

	switch c.Storage.Synchronous {
	case "OFF", "NORMAL", "FULL":
	default:
		return fmt.Errorf("invalid storage synchronous mode: %s", c.Storage.Synchronous)
	}

	switch c.Notify.Transport {
	case TransportLocal:
	case TransportNATS:
		if c.Notify.NatsURL == "" {
			return fmt.Errorf("nats transport requires nats_url")
		}
		if c.Notify.SubjectPrefix == "" {
			return fmt.Errorf("nats transport requires subject_prefix")
		}
	default:
		return fmt.Errorf("invalid notify transport: %s", c.Notify.Transport)
	}

	if c.Notify.SignalBuffer < 1 {
		return fmt.Errorf("notify signal buffer must be >= 1")
	}

	if c.Bus.PollBatchSize < 1 {
		return fmt.Errorf("poll batch size must be >= 1")
	}

	if c.HTTPEnabled() && (c.Prometheus.Port < 1 || c.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid Prometheus port: %d", c.Prometheus.Port)
	}

	return nil
}

// HTTPEnabled reports whether the daemon should run its HTTP listener
func (c *Configuration) HTTPEnabled() bool {
	return c.Prometheus.Enabled || c.Admin.Enabled
}

// IsAdminAuthEnabled returns true if admin requests must carry the secret
func IsAdminAuthEnabled() bool {
	return Config.Admin.Secret != ""
}

// GroupDir returns the directory holding the group's shared files.
// The group identifier is hashed so any identifier yields a valid directory name.
func (c *Configuration) GroupDir() string {
	return filepath.Join(c.DataDir, fmt.Sprintf("%016x", xxhash.Sum64String(c.GroupID)))
}

// StoragePath returns the path of the shared SQLite message log
func (c *Configuration) StoragePath() string {
	return filepath.Join(c.GroupDir(), StorageFileName)
}
