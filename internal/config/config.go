package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	flags "github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

// Duration decodes TOML strings such as "2s" or "720h".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

type Configuration struct {
	Environment string         `toml:"environment"`
	Server      ServerConfig   `toml:"server"`
	Database    DatabaseConfig `toml:"database"`
	Audit       AuditConfig    `toml:"audit"`
	Backup      BackupConfig   `toml:"backup"`
	Records     RecordsConfig  `toml:"records"`
	Logging     LoggingConfig  `toml:"logging"`
	Identity    IdentityConfig `toml:"identity"`
}

type ServerConfig struct {
	Port         string   `toml:"port"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	IdleTimeout  Duration `toml:"idle_timeout"`
	BodyLimit    int      `toml:"body_limit"`
}

type DatabaseConfig struct {
	DSN             string `toml:"dsn"`
	Host            string `toml:"host"`
	Port            string `toml:"port"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	Name            string `toml:"name"`
	SSLMode         string `toml:"ssl_mode"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	ConnMaxLifetime int    `toml:"conn_max_lifetime"`
	LogQueries      bool   `toml:"log_queries"`
}

// AuditConfig selects where audit entries are persisted: "postgres" or "mongo".
type AuditConfig struct {
	Driver          string   `toml:"driver"`
	MongoURI        string   `toml:"mongo_uri"`
	MongoDatabase   string   `toml:"mongo_database"`
	MongoCollection string   `toml:"mongo_collection"`
	WriteTimeout    Duration `toml:"write_timeout"`
	ActivityWindow  Duration `toml:"activity_window"`
	DefaultLimit    int      `toml:"default_limit"`
	MaxLimit        int      `toml:"max_limit"`
}

// BackupConfig selects the object store used for backups and attachments: "s3" or "leveldb".
type BackupConfig struct {
	Enabled     bool   `toml:"enabled"`
	Driver      string `toml:"driver"`
	QueueName   string `toml:"queue_name"`
	S3Region    string `toml:"s3_region"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Prefix    string `toml:"s3_prefix"`
	LevelDBPath string `toml:"leveldb_path"`
}

type RecordsConfig struct {
	DefaultPageSize     int `toml:"default_page_size"`
	MaxPageSize         int `toml:"max_page_size"`
	DefaultHistoryLimit int `toml:"default_history_limit"`
	VersionAppendRetry  int `toml:"version_append_retries"`
	MaxAttachmentBytes  int `toml:"max_attachment_bytes"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

type IdentityConfig struct {
	AdminIDs []string `toml:"admin_ids"`
}

var (
	config     *Configuration
	configOnce sync.Once
	configLock sync.RWMutex
)

// Options are the command line flags of the server. Each can also come from
// the environment; flags and environment win over the config file.
type Options struct {
	ConfigPath  string `short:"c" long:"config" env:"CONFIG_PATH" default:"config.toml" description:"Path to the TOML config file"`
	Environment string `short:"e" long:"env" env:"APP_ENV" description:"Current environment (development, production)"`
	Port        string `short:"p" long:"port" env:"PORT" description:"HTTP listen port"`
	DatabaseDSN string `long:"database_dsn" env:"DATABASE_DSN" description:"PostgreSQL DSN, overrides the discrete database fields"`
	LogLevel    string `long:"log_level" env:"LOG_LEVEL" description:"Log level (debug, info, warn, error)"`
}

// ParseOptions parses args (without the program name). Asking for --help
// returns a *flags.Error of type flags.ErrHelp.
func ParseOptions(args []string) (*Options, error) {
	opts := &Options{}
	if _, err := flags.ParseArgs(opts, args); err != nil {
		return nil, err
	}
	return opts, nil
}

// Apply copies every option that was set onto cfg.
func (o *Options) Apply(cfg *Configuration) {
	if o.Environment != "" {
		cfg.Environment = o.Environment
	}
	if o.Port != "" {
		cfg.Server.Port = o.Port
	}
	if o.DatabaseDSN != "" {
		cfg.Database.DSN = o.DatabaseDSN
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
}

// LoadConfig loads the config file named by opts once per process, applies
// the options over it and installs the result as the global configuration.
func LoadConfig(opts *Options) (*Configuration, error) {
	var err error

	configOnce.Do(func() {
		var cfg *Configuration
		cfg, err = Load(opts.ConfigPath)
		if err != nil {
			return
		}
		opts.Apply(cfg)
		setConfig(cfg)
	})

	return GetConfig(), err
}

// Load reads the TOML file at filePath over the defaults. A missing file is
// not an error: the defaults are used as is. Unknown keys are rejected.
func Load(filePath string) (*Configuration, error) {
	cfg := defaultConfiguration()

	md, err := toml.DecodeFile(filePath, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	applyDefaults(cfg)
	return cfg, nil
}

func setConfig(cfg *Configuration) {
	configLock.Lock()
	defer configLock.Unlock()
	config = cfg
}

func GetConfig() *Configuration {
	configLock.RLock()
	defer configLock.RUnlock()
	return config
}

func UpdateConfig(updater func(*Configuration)) {
	configLock.Lock()
	defer configLock.Unlock()
	updater(config)
}

func InitializeDefaultConfig() *Configuration {
	cfg := defaultConfiguration()
	setConfig(cfg)
	return cfg
}

func defaultConfiguration() *Configuration {
	return &Configuration{
		Environment: "development",
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  Duration{10 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{120 * time.Second},
			BodyLimit:    12 * 1024 * 1024,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            "5432",
			Username:        "postgres",
			Password:        "password",
			Name:            "medical_records",
			SSLMode:         "disable",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: 300,
		},
		Audit: AuditConfig{
			Driver:          "postgres",
			MongoDatabase:   "medical_records",
			MongoCollection: "audit_entries",
			WriteTimeout:    Duration{2 * time.Second},
			ActivityWindow:  Duration{30 * 24 * time.Hour},
			DefaultLimit:    50,
			MaxLimit:        500,
		},
		Backup: BackupConfig{
			Enabled:     true,
			Driver:      "leveldb",
			QueueName:   "record_backup_jobs",
			S3Region:    "us-east-1",
			S3Prefix:    "/medical-records",
			LevelDBPath: "data/objects",
		},
		Records: RecordsConfig{
			DefaultPageSize:     10,
			MaxPageSize:         100,
			DefaultHistoryLimit: 50,
			VersionAppendRetry:  5,
			MaxAttachmentBytes:  10 * 1024 * 1024,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Configuration) {
	def := defaultConfiguration()

	if cfg.Environment == "" {
		cfg.Environment = def.Environment
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ReadTimeout.Duration == 0 {
		cfg.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if cfg.Server.WriteTimeout.Duration == 0 {
		cfg.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if cfg.Server.IdleTimeout.Duration == 0 {
		cfg.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if cfg.Server.BodyLimit == 0 {
		cfg.Server.BodyLimit = def.Server.BodyLimit
	}
	if cfg.Audit.Driver == "" {
		cfg.Audit.Driver = def.Audit.Driver
	}
	if cfg.Audit.MongoDatabase == "" {
		cfg.Audit.MongoDatabase = def.Audit.MongoDatabase
	}
	if cfg.Audit.MongoCollection == "" {
		cfg.Audit.MongoCollection = def.Audit.MongoCollection
	}
	if cfg.Audit.WriteTimeout.Duration == 0 {
		cfg.Audit.WriteTimeout = def.Audit.WriteTimeout
	}
	if cfg.Audit.ActivityWindow.Duration == 0 {
		cfg.Audit.ActivityWindow = def.Audit.ActivityWindow
	}
	if cfg.Audit.DefaultLimit == 0 {
		cfg.Audit.DefaultLimit = def.Audit.DefaultLimit
	}
	if cfg.Audit.MaxLimit == 0 {
		cfg.Audit.MaxLimit = def.Audit.MaxLimit
	}
	if cfg.Backup.Driver == "" {
		cfg.Backup.Driver = def.Backup.Driver
	}
	if cfg.Backup.QueueName == "" {
		cfg.Backup.QueueName = def.Backup.QueueName
	}
	if cfg.Backup.LevelDBPath == "" {
		cfg.Backup.LevelDBPath = def.Backup.LevelDBPath
	}
	if cfg.Records.DefaultPageSize == 0 {
		cfg.Records.DefaultPageSize = def.Records.DefaultPageSize
	}
	if cfg.Records.MaxPageSize == 0 {
		cfg.Records.MaxPageSize = def.Records.MaxPageSize
	}
	if cfg.Records.DefaultHistoryLimit == 0 {
		cfg.Records.DefaultHistoryLimit = def.Records.DefaultHistoryLimit
	}
	if cfg.Records.VersionAppendRetry == 0 {
		cfg.Records.VersionAppendRetry = def.Records.VersionAppendRetry
	}
	if cfg.Records.MaxAttachmentBytes == 0 {
		cfg.Records.MaxAttachmentBytes = def.Records.MaxAttachmentBytes
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// PostgresDSN returns the configured DSN, or builds one from the discrete fields.
func (c DatabaseConfig) PostgresDSN() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Username, c.Password, c.Name, c.Port, c.SSLMode)
}

func LogConfig(logger *zap.Logger) {
	configLock.RLock()
	defer configLock.RUnlock()

	redacted := *config
	redacted.Database.Password = "[REDACTED]"
	redacted.Database.DSN = "[REDACTED]"
	redacted.Audit.MongoURI = "[REDACTED]"

	logger.Info("Application configuration",
		zap.String("environment", redacted.Environment),
		zap.String("port", redacted.Server.Port),
		zap.Duration("read_timeout", redacted.Server.ReadTimeout.Duration),
		zap.Duration("write_timeout", redacted.Server.WriteTimeout.Duration),
		zap.String("database_host", redacted.Database.Host),
		zap.String("database_name", redacted.Database.Name),
		zap.String("audit_driver", redacted.Audit.Driver),
		zap.Duration("audit_write_timeout", redacted.Audit.WriteTimeout.Duration),
		zap.Bool("backup_enabled", redacted.Backup.Enabled),
		zap.String("backup_driver", redacted.Backup.Driver),
		zap.Int("max_page_size", redacted.Records.MaxPageSize),
	)
}
