package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel    string      `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTP        HTTP        `yaml:"http"`
	Storage     string      `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Redis       Redis       `yaml:"redis"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Session     Session     `yaml:"session"`
	Websocket   Websocket   `yaml:"websocket"`
}

type HTTP struct {
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"9090"`
	ReadTimeout     time.Duration `yaml:"read-timeout" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write-timeout" env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle-timeout" env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" env-default:"10s"`
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Matchmaking struct {
	WaitPerPosition time.Duration `yaml:"wait-per-position" env-default:"10s"`
	SweepInterval   time.Duration `yaml:"sweep-interval" env-default:"30s"`
	MaxQueueWait    time.Duration `yaml:"max-queue-wait" env-default:"5m"`
	RecordTTL       time.Duration `yaml:"record-ttl" env-default:"10m"`
	HibernateAfter  time.Duration `yaml:"hibernate-after" env-default:"2m"`
	InitTimeout     time.Duration `yaml:"init-timeout" env-default:"5s"`
	RateLimit       int           `yaml:"rate-limit" env-default:"30"`
	RatePeriod      time.Duration `yaml:"rate-period" env-default:"10s"`
}

type Session struct {
	TeardownBothGone  time.Duration `yaml:"teardown-both-gone" env-default:"30s"`
	TeardownOneGone   time.Duration `yaml:"teardown-one-gone" env-default:"5m"`
	CompletionCleanup time.Duration `yaml:"completion-cleanup" env-default:"60s"`
	FinishedRetention time.Duration `yaml:"finished-retention" env-default:"24h"`
	MoveRateLimit     int           `yaml:"move-rate-limit" env-default:"10"`
	MoveRatePeriod    time.Duration `yaml:"move-rate-period" env-default:"1s"`
	DuplicateDepth    int           `yaml:"duplicate-depth" env-default:"4"`
	DuplicateWindow   time.Duration `yaml:"duplicate-window" env-default:"5s"`
	StorageTimeout    time.Duration `yaml:"storage-timeout" env-default:"5s"`
}

type Websocket struct {
	ReadLimit    int64         `yaml:"read-limit" env-default:"1024"`
	WriteWait    time.Duration `yaml:"write-wait" env-default:"10s"`
	PongWait     time.Duration `yaml:"pong-wait" env-default:"60s"`
	PingInterval time.Duration `yaml:"ping-interval" env-default:"50s"`
	CallTimeout  time.Duration `yaml:"call-timeout" env-default:"5s"`
}

// MustLoad - load all configurations in config.yml file, environment variables take precedence.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if err := config.validate(); err != nil {
		panic(fmt.Errorf("invalid config: %w", err))
	}

	return config
}

func (that *Config) validate() error {
	if that.Storage != StorageRedis && that.Storage != StorageMemory {
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	if that.Session.MoveRateLimit <= 0 || that.Matchmaking.RateLimit <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if that.Websocket.PingInterval >= that.Websocket.PongWait {
		return fmt.Errorf("ping interval must be shorter than pong wait")
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
