package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"picturehub/internal/storage/s3"
)

const (
	DatabaseDriverPostgres = "postgres"
	DatabaseDriverMemory   = "memory"

	StorageTypeS3    = "s3"
	StorageTypeLocal = "local"

	DefaultConfigPath = ".app.yaml"
)

// ConfigPath resolves the configuration file location from CONFIG_PATH.
func ConfigPath() string {
	v := viper.New()
	v.SetDefault("ConfigPath", DefaultConfigPath)
	if err := v.BindEnv("ConfigPath", "CONFIG_PATH"); err != nil {
		return DefaultConfigPath
	}
	return v.GetString("ConfigPath")
}

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Storage  StorageConfig  `mapstructure:"Storage"`
	S3       s3.Config      `mapstructure:"S3"`
	Redis    RedisConfig    `mapstructure:"Redis"`
	Upload   UploadConfig   `mapstructure:"Upload"`
	Auth     AuthConfig     `mapstructure:"Auth"`
	Fetcher  FetcherConfig  `mapstructure:"Fetcher"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"Port"`
	RequestTimeout  time.Duration `mapstructure:"RequestTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"ShutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"AllowedOrigins"`
	Debug           bool          `mapstructure:"Debug"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"Driver"`
	Host     string `mapstructure:"Host"`
	Port     string `mapstructure:"Port"`
	User     string `mapstructure:"User"`
	Password string `mapstructure:"Password"`
	Name     string `mapstructure:"Name"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type StorageConfig struct {
	Type string `mapstructure:"Type"`
	// LocalPath is the root directory of the local object store.
	LocalPath string `mapstructure:"LocalPath"`
}

type RedisConfig struct {
	Enabled         bool          `mapstructure:"Enabled"`
	Addr            string        `mapstructure:"Addr"`
	Password        string        `mapstructure:"Password"`
	DB              int           `mapstructure:"DB"`
	CachePrefix     string        `mapstructure:"CachePrefix"`
	CacheTTL        time.Duration `mapstructure:"CacheTTL"`
	CacheJitter     time.Duration `mapstructure:"CacheJitter"`
	LockPrefix      string        `mapstructure:"LockPrefix"`
	LockTTL         time.Duration `mapstructure:"LockTTL"`
	LockWaitTimeout time.Duration `mapstructure:"LockWaitTimeout"`
}

type UploadConfig struct {
	TmpDir string `mapstructure:"TmpDir"`
	// PublicHost prefixes object keys for the local object store.
	PublicHost string `mapstructure:"PublicHost"`
}

type AuthConfig struct {
	Secret string `mapstructure:"Secret"`
}

type FetcherConfig struct {
	Endpoint string        `mapstructure:"Endpoint"`
	Timeout  time.Duration `mapstructure:"Timeout"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	envs := map[string]string{
		"Server.Port":        "HTTP_PORT",
		"Server.Debug":       "DEBUG",
		"Database.Driver":    "DATABASE_DRIVER",
		"Database.Host":      "DATABASE_HOST",
		"Database.Port":      "DATABASE_PORT",
		"Database.User":      "DATABASE_USER",
		"Database.Password":  "DATABASE_PASSWORD",
		"Database.Name":      "DATABASE_NAME",
		"Database.SSLMode":   "DATABASE_SSLMODE",
		"Storage.Type":       "STORAGE_TYPE",
		"Storage.LocalPath":  "STORAGE_LOCAL_PATH",
		"S3.Endpoint":        "S3_ENDPOINT",
		"S3.Region":          "S3_REGION",
		"S3.Bucket":          "S3_BUCKET",
		"S3.AccessKeyID":     "S3_ACCESS_KEY_ID",
		"S3.SecretAccessKey": "S3_SECRET_ACCESS_KEY",
		"S3.PublicHost":      "S3_PUBLIC_HOST",
		"S3.PathStyle":       "S3_PATH_STYLE",
		"Redis.Enabled":      "REDIS_ENABLED",
		"Redis.Addr":         "REDIS_ADDR",
		"Redis.Password":     "REDIS_PASSWORD",
		"Redis.DB":           "REDIS_DB",
		"Upload.TmpDir":      "UPLOAD_TMP_DIR",
		"Upload.PublicHost":  "UPLOAD_PUBLIC_HOST",
		"Auth.Secret":        "AUTH_SECRET",
		"Fetcher.Endpoint":   "FETCHER_ENDPOINT",
	}
	for key, env := range envs {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "2525"
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"*"}
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DatabaseDriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Storage.Type == "" {
		c.Storage.Type = StorageTypeS3
	}
	if c.Storage.LocalPath == "" {
		c.Storage.LocalPath = "./data/objects"
	}
	if c.S3.Region == "" {
		c.S3.Region = "us-east-1"
	}

	if c.Redis.CachePrefix == "" {
		c.Redis.CachePrefix = "picturehub"
	}
	if c.Redis.LockPrefix == "" {
		c.Redis.LockPrefix = "picturehub:lock"
	}

	if c.Upload.TmpDir == "" {
		c.Upload.TmpDir = os.TempDir()
	}
	if c.Upload.PublicHost == "" {
		c.Upload.PublicHost = "http://localhost:" + c.Server.Port + "/objects"
	}

	if c.Fetcher.Endpoint == "" {
		c.Fetcher.Endpoint = "https://cn.bing.com/images/async"
	}
	if c.Fetcher.Timeout <= 0 {
		c.Fetcher.Timeout = 15 * time.Second
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DatabaseDriverMemory:
	case DatabaseDriverPostgres:
		if c.Database.Host == "" ||
			c.Database.Port == "" ||
			c.Database.User == "" ||
			c.Database.Password == "" ||
			c.Database.Name == "" {
			return fmt.Errorf("database configuration is incomplete: host=%s, port=%s, user=%s, name=%s",
				c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Storage.Type {
	case StorageTypeLocal:
	case StorageTypeS3:
		if err := c.S3.Validate(); err != nil {
			return fmt.Errorf("invalid s3 configuration: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Auth.Secret == "" {
		return fmt.Errorf("auth secret is required")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

// MigrateURL is the postgres URL form expected by golang-migrate.
func (c *DatabaseConfig) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}
