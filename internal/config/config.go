package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefix of environment overrides (MESSENGER_DATABASE_HOST, ...)
const EnvPrefix = "MESSENGER"

// Config 전체 애플리케이션 설정
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	CORS      CORSConfig      `yaml:"cors"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	JWT       JWTConfig       `yaml:"jwt"`
	Identity  IdentityConfig  `yaml:"identity"`
	Messaging MessagingConfig `yaml:"messaging"`
	Editing   EditingConfig   `yaml:"editing"`
	Uploads   UploadsConfig   `yaml:"uploads"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	I18n      I18nConfig      `yaml:"i18n"`
	Log       LogConfig       `yaml:"log"`
}

// AppConfig 애플리케이션 메타 정보
type AppConfig struct {
	Name string `yaml:"name"`
	Env  string `yaml:"env" validate:"omitempty,oneof=local development staging production test"`
}

// IsProduction reports whether the app runs in production
func (c AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// ServerConfig HTTP 서버 설정
type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	Mode            string        `yaml:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	Driver          string `yaml:"driver" validate:"oneof=mysql sqlite"`
	Host            string `yaml:"host" validate:"required_if=Driver mysql"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname" validate:"required_if=Driver mysql"`
	Path            string `yaml:"path" validate:"required_if=Driver sqlite"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	TimeZone        string `yaml:"time_zone"`
	LogQueries      bool   `yaml:"log_queries"`
}

// GetDSN MySQL DSN 생성
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" validate:"required_if=Enabled true"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// RateLimitConfig per-user write limits (Redis 필요)
type RateLimitConfig struct {
	Enabled         bool   `yaml:"enabled"`
	WritesPerMinute int    `yaml:"writes_per_minute" validate:"min=0"`
	KeyPrefix       string `yaml:"key_prefix"`
}

// JWTConfig JWT 설정
type JWTConfig struct {
	Secret    string `yaml:"secret" validate:"required,min=16"`
	Issuer    string `yaml:"issuer"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
}

// IdentityConfig shape of user identifiers
type IdentityConfig struct {
	KeyKind string `yaml:"key_kind" validate:"omitempty,oneof=int integer uuid"`
}

// MessagingConfig conversation engine options
type MessagingConfig struct {
	HardDelete      *bool `yaml:"hard_delete"`
	DefaultPageSize int   `yaml:"default_page_size" validate:"min=1"`
	MaxPageSize     int   `yaml:"max_page_size" validate:"gtefield=DefaultPageSize"`
	MaxContentBytes int   `yaml:"max_content_bytes" validate:"min=0"`
}

// HardDeleteEnabled hard_delete with its default (true)
func (c MessagingConfig) HardDeleteEnabled() bool {
	return c.HardDelete == nil || *c.HardDelete
}

// EditingConfig message editing policy
type EditingConfig struct {
	Enabled          bool `yaml:"enabled"`
	TimeLimitMinutes int  `yaml:"time_limit_minutes" validate:"min=0"` // 0 = no limit
	MarkAsEdited     bool `yaml:"mark_as_edited"`
	BroadcastEdits   bool `yaml:"broadcast_edits"`
}

// UploadsConfig attachment storage.
// Disabled means attachment messages are refused.
type UploadsConfig struct {
	Enabled      bool            `yaml:"enabled"`
	Driver       string          `yaml:"driver" validate:"omitempty,oneof=disk s3"`
	Dir          string          `yaml:"dir"`
	BaseURL      string          `yaml:"base_url"`
	MaxFileBytes int64           `yaml:"max_file_bytes" validate:"min=0"`
	MaxFiles     int             `yaml:"max_files" validate:"min=0"`
	S3           S3UploadsConfig `yaml:"s3"`
}

// S3UploadsConfig S3/R2/MinIO 호환 스토리지
type S3UploadsConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	PublicURL       string `yaml:"public_url"` // CDN base, optional
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
}

// BroadcastConfig realtime fan-out settings
type BroadcastConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Driver    string          `yaml:"driver" validate:"oneof=null log pusher websocket redis mqtt http firebase"`
	Async     bool            `yaml:"async"`
	QueueSize int             `yaml:"queue_size" validate:"min=0"`
	Pusher    PusherConfig    `yaml:"pusher"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Redis     RedisRelay      `yaml:"redis"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPRelayConfig `yaml:"http"`
	Firebase  FirebaseConfig  `yaml:"firebase"`
}

// PusherConfig managed socket relay credentials
type PusherConfig struct {
	AppID   string `yaml:"app_id"`
	Key     string `yaml:"key"`
	Secret  string `yaml:"secret"`
	Cluster string `yaml:"cluster"`
	Host    string `yaml:"host"`
}

// WebSocketConfig self-hosted socket relay
type WebSocketConfig struct {
	AllowedOrigins string `yaml:"allowed_origins"`
	RedisFanout    bool   `yaml:"redis_fanout"`
	RedisChannel   string `yaml:"redis_channel"`
}

// RedisRelay redis pub/sub relay
type RedisRelay struct {
	Prefix string `yaml:"prefix"`
}

// MQTTConfig MQTT broker relay
type MQTTConfig struct {
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	TopicPrefix string        `yaml:"topic_prefix"`
	QoS         byte          `yaml:"qos" validate:"max=2"`
	Retained    bool          `yaml:"retained"`
	Timeout     time.Duration `yaml:"timeout"`
}

// HTTPRelayConfig webhook relay
type HTTPRelayConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

// FirebaseConfig realtime database relay
type FirebaseConfig struct {
	DatabaseURL     string `yaml:"database_url" validate:"omitempty,url"`
	CredentialsFile string `yaml:"credentials_file"`
	RootPath        string `yaml:"root_path"`
}

// I18nConfig localization settings
type I18nConfig struct {
	DefaultLocale string `yaml:"default_locale"`
	Dir           string `yaml:"dir"`
}

// LogConfig logging settings
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads the YAML file at path, expands ${VAR} references, applies
// MESSENGER_* environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with the variable's value ("" when unset).
// ${VAR:-default} falls back to default.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		def := ""
		if i := strings.Index(name, ":-"); i >= 0 {
			name, def = name[:i], name[i+2:]
		}
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		return def
	})
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "angple-messenger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "local"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "mysql"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 100
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 3600
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.JWT.ExpiresIn == 0 {
		cfg.JWT.ExpiresIn = 3600
	}
	if cfg.Identity.KeyKind == "" {
		cfg.Identity.KeyKind = "int"
	}
	if cfg.Messaging.DefaultPageSize == 0 {
		cfg.Messaging.DefaultPageSize = 25
	}
	if cfg.Messaging.MaxPageSize == 0 {
		cfg.Messaging.MaxPageSize = 100
	}
	if cfg.RateLimit.WritesPerMinute == 0 {
		cfg.RateLimit.WritesPerMinute = 60
	}
	if cfg.RateLimit.KeyPrefix == "" {
		cfg.RateLimit.KeyPrefix = "messenger:ratelimit:"
	}
	if cfg.Uploads.Driver == "" {
		cfg.Uploads.Driver = "disk"
	}
	if cfg.Uploads.S3.Region == "" {
		cfg.Uploads.S3.Region = "auto"
	}
	if cfg.Uploads.BaseURL == "" {
		cfg.Uploads.BaseURL = "/uploads"
	}
	if cfg.Uploads.MaxFileBytes == 0 {
		cfg.Uploads.MaxFileBytes = 20 << 20
	}
	if cfg.Uploads.MaxFiles == 0 {
		cfg.Uploads.MaxFiles = 10
	}
	if cfg.Broadcast.Driver == "" {
		cfg.Broadcast.Driver = "null"
	}
	if cfg.Broadcast.QueueSize == 0 {
		cfg.Broadcast.QueueSize = 1024
	}
	if cfg.Broadcast.WebSocket.RedisChannel == "" {
		cfg.Broadcast.WebSocket.RedisChannel = "messenger:ws"
	}
	if cfg.Broadcast.Redis.Prefix == "" {
		cfg.Broadcast.Redis.Prefix = "messenger:"
	}
	if cfg.Broadcast.MQTT.TopicPrefix == "" {
		cfg.Broadcast.MQTT.TopicPrefix = "messenger"
	}
	if cfg.Broadcast.MQTT.ClientID == "" {
		cfg.Broadcast.MQTT.ClientID = cfg.App.Name
	}
	if cfg.Broadcast.MQTT.Timeout == 0 {
		cfg.Broadcast.MQTT.Timeout = 5 * time.Second
	}
	if cfg.Broadcast.HTTP.Timeout == 0 {
		cfg.Broadcast.HTTP.Timeout = 5 * time.Second
	}
	if cfg.Broadcast.Firebase.RootPath == "" {
		cfg.Broadcast.Firebase.RootPath = "messenger"
	}
	if cfg.I18n.DefaultLocale == "" {
		cfg.I18n.DefaultLocale = "ko"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// Validate checks struct tags plus the per-driver requirements of the broadcast section
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if u := c.Uploads; u.Enabled {
		switch {
		case u.Driver == "disk" && u.Dir == "":
			return fmt.Errorf("uploads.dir is required for the disk driver")
		case u.Driver == "s3" && u.S3.Bucket == "":
			return fmt.Errorf("uploads.s3.bucket is required for the s3 driver")
		}
	}

	b := c.Broadcast
	switch b.Driver {
	case "pusher":
		if b.Pusher.AppID == "" || b.Pusher.Key == "" || b.Pusher.Secret == "" {
			return fmt.Errorf("broadcast.pusher app_id, key and secret are required")
		}
	case "mqtt":
		if b.MQTT.Broker == "" {
			return fmt.Errorf("broadcast.mqtt.broker is required")
		}
	case "http":
		if b.HTTP.URL == "" {
			return fmt.Errorf("broadcast.http.url is required")
		}
	case "firebase":
		if b.Firebase.DatabaseURL == "" {
			return fmt.Errorf("broadcast.firebase.database_url is required")
		}
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("broadcast.driver redis requires redis.enabled")
		}
	}
	return nil
}
