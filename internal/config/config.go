package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Event bus kinds used to carry realtime events to the WebSocket servers.
const (
	BusLocal = "local" // in-process hub, apiserver also serves /ws
	BusKafka = "kafka"
	BusRedis = "redis"
)

// Post activity audiences.
const (
	PostScopeFriends   = "friends"
	PostScopeBroadcast = "broadcast"
)

// APIServerConfig 保存 API 服务器特有的配置。
type APIServerConfig struct {
	Host string     `mapstructure:"HOST"`
	Port string     `mapstructure:"PORT"`
	CORS CORSConfig `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr          string `mapstructure:"ADDR"`
	Password      string `mapstructure:"PASSWORD"`
	DB            int    `mapstructure:"DB"`
	ChannelPrefix string `mapstructure:"CHANNEL_PREFIX"` // pub/sub channel prefix for realtime events
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName       string              `mapstructure:"APP_NAME"`
	AppVersion    string              `mapstructure:"APP_VERSION"`
	LogLevel      string              `mapstructure:"LOG_LEVEL"`
	Server        ServerConfig        `mapstructure:"SERVER"`     // ChatServer
	APIServer     APIServerConfig     `mapstructure:"API_SERVER"` // REST API
	Kafka         KafkaConfig         `mapstructure:"KAFKA"`
	Database      DatabaseConfig      `mapstructure:"DATABASE"`
	Storage       StorageConfig       `mapstructure:"STORAGE"`
	Auth          AuthConfig          `mapstructure:"AUTH"`
	WebSocket     WebSocketConfig     `mapstructure:"WEBSOCKET"`
	Redis         RedisConfig         `mapstructure:"REDIS"`
	Realtime      RealtimeConfig      `mapstructure:"REALTIME"`
	Notifications NotificationsConfig `mapstructure:"NOTIFICATIONS"`
}

// ServerConfig holds configuration for the chat (WebSocket) HTTP server.
type ServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	WebSocketPath  string        `mapstructure:"WEBSOCKET_PATH"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"BROKERS"`
	ClientID      string   `mapstructure:"CLIENT_ID"`
	EventsTopic   string   `mapstructure:"EVENTS_TOPIC"`   // realtime events bound for WebSocket clients
	ConsumerGroup string   `mapstructure:"CONSUMER_GROUP"` // prefix; every chat server instance gets its own group
	Protocol      string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type       string `mapstructure:"TYPE"` // postgres, mysql, sqlite
	Host       string `mapstructure:"HOST"`
	Port       int    `mapstructure:"PORT"`
	User       string `mapstructure:"USER"`
	Password   string `mapstructure:"PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	SSLMode    string `mapstructure:"SSL_MODE"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
}

// StorageConfig holds configuration for file storage.
type StorageConfig struct {
	Type          string `mapstructure:"TYPE"` // only "local" is implemented
	LocalPath     string `mapstructure:"LOCAL_PATH"`
	BaseURL       string `mapstructure:"BASE_URL"`
	MaxFileSizeMB int64  `mapstructure:"MAX_FILE_SIZE_MB"`
}

// AuthConfig holds configuration for authentication (e.g., JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
	SendBufferSize      int `mapstructure:"SEND_BUFFER_SIZE"`
}

// RealtimeConfig selects how events travel from services to connected clients.
type RealtimeConfig struct {
	Bus             string `mapstructure:"BUS"`               // local, kafka, redis
	QueueSize       int    `mapstructure:"QUEUE_SIZE"`        // hub delivery queue
	PostEventsScope string `mapstructure:"POST_EVENTS_SCOPE"` // friends, broadcast
}

// NotificationsConfig holds notification inbox settings.
type NotificationsConfig struct {
	ListLimit int `mapstructure:"LIST_LIMIT"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "socialnet")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("LOG_LEVEL", "info")

	// Server Defaults (ChatServer)
	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8080")
	v.SetDefault("SERVER.WEBSOCKET_PATH", "/ws")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.MAX_HEADER_BYTES", 1<<20) // 1 MB

	// APIServer Defaults
	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8081")
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:5173"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300) // 5 minutes

	// Kafka Defaults
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "socialnet")
	v.SetDefault("KAFKA.EVENTS_TOPIC", "socialnet-realtime-events")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "socialnet-chat-server")
	v.SetDefault("KAFKA.PROTOCOL", "plaintext")

	// Database Defaults
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "socialnet")
	v.SetDefault("DATABASE.SSL_MODE", "disable")
	v.SetDefault("DATABASE.SQLITE_PATH", "socialnet.db")

	// Storage Defaults
	v.SetDefault("STORAGE.TYPE", "local")
	v.SetDefault("STORAGE.LOCAL_PATH", "./uploads")
	v.SetDefault("STORAGE.BASE_URL", "/uploads")
	v.SetDefault("STORAGE.MAX_FILE_SIZE_MB", 16)

	// Auth Defaults
	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 24*time.Hour)

	// Redis Defaults
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)
	v.SetDefault("REDIS.CHANNEL_PREFIX", "socialnet:user:")

	// WebSocket Defaults
	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 4096)
	v.SetDefault("WEBSOCKET.SEND_BUFFER_SIZE", 256)

	// Realtime Defaults
	v.SetDefault("REALTIME.BUS", BusLocal)
	v.SetDefault("REALTIME.QUEUE_SIZE", 1024)
	v.SetDefault("REALTIME.POST_EVENTS_SCOPE", PostScopeFriends)

	v.SetDefault("NOTIFICATIONS.LIST_LIMIT", 50)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// For nested structs, viper uses underscore: SERVER_WEBSOCKET_PATH
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
		// No config file; defaults and env are enough.
		err = nil
	}

	err = v.Unmarshal(&config)
	return
}
