package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mbeoliero/chatline/pkg/constant"
	"github.com/mbeoliero/chatline/pkg/idgen"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. CHAT_STORE_DRIVER overrides store.driver
const EnvPrefix = "CHAT"

// Config holds all configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Firestore  FirestoreConfig  `mapstructure:"firestore"`
	Mongo      MongoConfig      `mapstructure:"mongo"`
	MySQL      MySQLConfig      `mapstructure:"mysql"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	IDGen      IDGenConfig      `mapstructure:"idgen"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	HTTPPort       int      `mapstructure:"http_port"`
	Mode           string   `mapstructure:"mode"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MetricsEnabled bool     `mapstructure:"metrics_enabled"`
}

// StoreConfig selects the document store driver and its collection names
type StoreConfig struct {
	Driver                 string `mapstructure:"driver"`
	ConversationCollection string `mapstructure:"conversation_collection"`
	MessageCollection      string `mapstructure:"message_collection"`
}

// FirestoreConfig holds Firestore configuration
type FirestoreConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsEnv  string `mapstructure:"credentials_env"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Charset      string `mapstructure:"charset"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// DSN returns the MySQL data source name
func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PaginationConfig holds message list paging limits
type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"`
}

// IDGenConfig selects the id generator for drivers without store-assigned ids
type IDGenConfig struct {
	Kind      string `mapstructure:"kind"`
	MachineID uint16 `mapstructure:"machine_id"`
}

// WebSocketConfig holds the realtime event stream configuration
type WebSocketConfig struct {
	Enabled         bool  `mapstructure:"enabled"`
	MaxConnNum      int64 `mapstructure:"max_conn_num"`
	MaxMessageSize  int64 `mapstructure:"max_message_size"`
	PushChannelSize int   `mapstructure:"push_channel_size"`
	PushWorkerNum   int   `mapstructure:"push_worker_num"`
}

// Default returns the built-in defaults with CHAT_* environment overrides applied
func Default() *Config {
	cfg, _ := load(viper.New())
	return cfg
}

// Load loads configuration from an optional yaml file, a .env file in the
// working directory and CHAT_* environment variables, in increasing priority.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&cfg)
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.metrics_enabled", true)

	v.SetDefault("store.driver", constant.DriverFirestore)
	v.SetDefault("store.conversation_collection", constant.DefaultConversationCollection)
	v.SetDefault("store.message_collection", constant.DefaultMessageCollection)

	v.SetDefault("firestore.project_id", "")
	v.SetDefault("firestore.credentials_env", "FIREBASE_CREDENTIALS")
	v.SetDefault("firestore.credentials_file", "serviceAccountKey.json")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "chat")

	v.SetDefault("mysql.host", "127.0.0.1")
	v.SetDefault("mysql.port", 3306)
	v.SetDefault("mysql.user", "root")
	v.SetDefault("mysql.password", "")
	v.SetDefault("mysql.database", "chat")
	v.SetDefault("mysql.charset", "utf8mb4")
	v.SetDefault("mysql.max_open_conns", 100)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.auto_migrate", true)

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "chat:")

	v.SetDefault("pagination.default_limit", constant.DefaultPageLimit)
	v.SetDefault("pagination.max_limit", constant.MaxPageLimit)

	v.SetDefault("idgen.kind", idgen.KindSonyflake)
	v.SetDefault("idgen.machine_id", 1)

	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.max_conn_num", 10000)
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.push_channel_size", 1024)
	v.SetDefault("websocket.push_worker_num", 4)
}

// normalize repairs values that are set but unusable
func normalize(cfg *Config) {
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = constant.DriverFirestore
	}
	if cfg.Store.ConversationCollection == "" {
		cfg.Store.ConversationCollection = constant.DefaultConversationCollection
	}
	if cfg.Store.MessageCollection == "" {
		cfg.Store.MessageCollection = constant.DefaultMessageCollection
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Pagination.DefaultLimit <= 0 {
		cfg.Pagination.DefaultLimit = constant.DefaultPageLimit
	}
	if cfg.Pagination.MaxLimit <= 0 {
		cfg.Pagination.MaxLimit = constant.MaxPageLimit
	}
	if cfg.Pagination.DefaultLimit > cfg.Pagination.MaxLimit {
		cfg.Pagination.DefaultLimit = cfg.Pagination.MaxLimit
	}
	if cfg.WebSocket.PushWorkerNum <= 0 {
		cfg.WebSocket.PushWorkerNum = 1
	}
	if cfg.WebSocket.PushChannelSize <= 0 {
		cfg.WebSocket.PushChannelSize = 1024
	}
}
