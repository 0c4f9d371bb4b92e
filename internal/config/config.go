// Package config loads the relay server and participant configuration with
// viper: yaml file, then environment, then defaults.
package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/live-cursors/pkg/config"
	pkglog "github.com/weiawesome/live-cursors/pkg/log"
	"github.com/weiawesome/live-cursors/pkg/pubsub"
)

// Server is the relay server configuration.
type Server struct {
	Server    ServerConfig
	Redis     RedisConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Presence  PresenceConfig
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Log       pkglog.Config
}

type ServerConfig struct {
	Host       string
	Port       int
	InstanceID string `mapstructure:"instance_id"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type PresenceConfig struct {
	// Store selects the presence record backend: "redis" or "memory".
	Store string
	TTL   time.Duration `mapstructure:"ttl"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
}

// LoadServer reads ./config/server.yaml (optional) and the environment.
func LoadServer() (*Server, error) {
	v, err := pkgconfig.Load("./config", "server")
	if err != nil {
		return nil, err
	}
	return ServerFromViper(v)
}

// ServerFromViper applies defaults and env bindings to v and decodes it.
func ServerFromViper(v *viper.Viper) (*Server, error) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8094)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pubsub.driver", pubsub.DriverRedis)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.topic", pubsub.DefaultKafkaTopic)
	v.SetDefault("pubsub.kafka.group_id", "")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("presence.store", "redis")
	v.SetDefault("presence.ttl", "2m")
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 4096)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.service_name", "cursors-relay")

	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("server.instance_id", "INSTANCE_ID")
	_ = v.BindEnv("redis.address", "REDIS_ADDRESS")
	_ = v.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	_ = v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	_ = v.BindEnv("pubsub.kafka.topic", "KAFKA_TOPIC")
	_ = v.BindEnv("pubsub.kafka.group_id", "KAFKA_GROUP_ID")
	_ = v.BindEnv("presence.store", "PRESENCE_STORE")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Server
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode server config: %w", err)
	}

	cfg.Presence.TTL = parseDuration(v, "presence.ttl", 2*time.Minute)
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)

	if cfg.Server.InstanceID == "" {
		cfg.Server.InstanceID = uuid.NewString()
	}

	// The pubsub redis driver shares the presence redis unless configured apart.
	if cfg.PubSub.Redis.Address == "" {
		defaults := pubsub.DefaultConfig().Redis
		cfg.PubSub.Redis = pubsub.RedisConfig{
			Address:      cfg.Redis.Address,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     defaults.PoolSize,
			ReadTimeout:  defaults.ReadTimeout,
			WriteTimeout: defaults.WriteTimeout,
		}
	}
	// Every instance must see every room event, so consumer groups are per instance.
	if cfg.PubSub.Kafka.GroupID == "" {
		cfg.PubSub.Kafka.GroupID = "cursors-" + cfg.Server.InstanceID
	}

	return &cfg, nil
}

// Participant is the cursorctl configuration.
type Participant struct {
	Client    ClientConfig
	Reactions ReactionConfig
	Log       pkglog.Config
}

type ClientConfig struct {
	URL         string        `mapstructure:"url"`
	Room        string        `mapstructure:"room"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type ReactionConfig struct {
	EmitInterval  time.Duration `mapstructure:"emit_interval"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Lifetime      time.Duration `mapstructure:"lifetime"`
}

// LoadParticipant reads file when set, else ./config/cursorctl.yaml if present.
func LoadParticipant(file string) (*Participant, error) {
	var (
		v   *viper.Viper
		err error
	)
	if file != "" {
		v, err = pkgconfig.LoadFile(file)
	} else {
		v, err = pkgconfig.Load("./config", "cursorctl")
	}
	if err != nil {
		return nil, err
	}
	return ParticipantFromViper(v)
}

// ParticipantFromViper applies defaults and env bindings to v and decodes it.
func ParticipantFromViper(v *viper.Viper) (*Participant, error) {
	v.SetDefault("client.url", "ws://localhost:8094/cursors")
	v.SetDefault("client.room", "lobby")
	v.SetDefault("client.dial_timeout", "10s")
	v.SetDefault("reactions.emit_interval", "100ms")
	v.SetDefault("reactions.sweep_interval", "1s")
	v.SetDefault("reactions.lifetime", "4s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.pretty", true)
	v.SetDefault("log.service_name", "cursorctl")

	_ = v.BindEnv("client.url", "CURSORS_URL")
	_ = v.BindEnv("client.room", "CURSORS_ROOM")
	_ = v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Participant
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode participant config: %w", err)
	}

	cfg.Client.DialTimeout = parseDuration(v, "client.dial_timeout", 10*time.Second)
	cfg.Reactions.EmitInterval = parseDuration(v, "reactions.emit_interval", 100*time.Millisecond)
	cfg.Reactions.SweepInterval = parseDuration(v, "reactions.sweep_interval", time.Second)
	cfg.Reactions.Lifetime = parseDuration(v, "reactions.lifetime", 4*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
