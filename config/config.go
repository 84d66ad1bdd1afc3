package config

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"

	"github.com/openshelf/library-service/pkg/kafka"
	"github.com/openshelf/library-service/pkg/logger"
	"github.com/openshelf/library-service/pkg/postgres"
)

type HTTPServer struct {
	Host         string        `yaml:"host" envconfig:"HTTP_HOST" default:"0.0.0.0"`
	Port         string        `yaml:"port" envconfig:"HTTP_PORT" default:"8080"`
	ReadTimeout  time.Duration `yaml:"readTimeout" envconfig:"HTTP_READ" default:"10s"`
	WriteTimeout time.Duration
}

// Lifecycle selects the borrow/return state-machine mode. Strict rejects
// illegal transitions and races on approval; the default reproduces the
// permissive upstream behavior.
type Lifecycle struct {
	Strict bool `yaml:"strict" envconfig:"LIFECYCLE_STRICT" default:"false"`
}

type Config struct {
	Server    HTTPServer      `yaml:"server"`
	Database  postgres.Config `yaml:"database"`
	Kafka     kafka.Config    `yaml:"kafka"`
	Lifecycle Lifecycle       `yaml:"lifecycle"`
	Log       logger.Log      `yaml:"log"`
}

var (
	once sync.Once
	cfg  Config
)

// NewConfig reads config from environment.
func NewConfig(ops ...Option) *Config {
	once.Do(func() {
		var config Config
		for _, op := range ops {
			op(&config)
		}
		err := envconfig.Process("", &config)
		if err != nil {
			log.Fatal("NewConfig ", err)
		}
		cfg = config
		printConfig(cfg)
	})

	return &cfg
}

func printConfig(cfg Config) {
	jscfg, _ := json.MarshalIndent(cfg, "", "	") //nolint:errcheck
	fmt.Println(string(jscfg))
}

type Option func(*Config)

func WithLogLevel(level zapcore.Level) Option {
	return func(c *Config) {
		c.Log.LogLevel = level
	}
}

func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Server.WriteTimeout = timeout
	}
}
