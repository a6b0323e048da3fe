package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/recollection-backend/internal/data/db"
	"github.com/yungbote/recollection-backend/internal/platform/envutil"
	"github.com/yungbote/recollection-backend/internal/platform/logger"
	"github.com/yungbote/recollection-backend/internal/platform/openai"
	"github.com/yungbote/recollection-backend/internal/realtime/bus"
)

// LLMTaskConfig overrides the model and timeout of one pipeline stage.
type LLMTaskConfig struct {
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"gte=0"`
}

func (t LLMTaskConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

type LLMConfig struct {
	openai.Config `yaml:",inline"`
	Tasks         struct {
		Analysis        LLMTaskConfig `yaml:"analysis"`
		LessonStructure LLMTaskConfig `yaml:"lesson_structure"`
		Takeaways       LLMTaskConfig `yaml:"takeaways"`
	} `yaml:"tasks"`
	AnalysisConcurrency int `yaml:"analysis_concurrency" validate:"gte=0"`
}

type Config struct {
	Port        string `yaml:"port" validate:"required,numeric"`
	LogMode     string `yaml:"log_mode"`
	Environment string `yaml:"environment"`

	DB    db.Config       `yaml:"db"`
	Redis bus.RedisConfig `yaml:"redis"`

	WorkerConcurrency    int    `yaml:"worker_concurrency" validate:"gte=1"`
	TaskQueueSize        int    `yaml:"task_queue_size" validate:"gte=1"`
	TaskHeartbeatSeconds int    `yaml:"task_heartbeat_seconds" validate:"gte=1"`
	TaskStaleSeconds     int    `yaml:"task_stale_seconds" validate:"gtefield=TaskHeartbeatSeconds"`
	TaskRetentionSeconds int    `yaml:"task_retention_seconds" validate:"gte=0"`
	TaskEvictSchedule    string `yaml:"task_evict_schedule" validate:"required"`
	HubBufferSize        int    `yaml:"hub_buffer_size" validate:"gte=2"`

	JWTSecretKey string   `yaml:"-" validate:"required"`
	CORSOrigins  []string `yaml:"cors_origins"`

	LLM LLMConfig `yaml:"llm"`
}

func (c Config) TaskRetention() time.Duration {
	return time.Duration(c.TaskRetentionSeconds) * time.Second
}

func defaultConfig() Config {
	return Config{
		Port:                 "8080",
		LogMode:              "development",
		Environment:          "local",
		DB:                   db.Config{Driver: db.DriverPostgres, Host: "localhost", Port: "5432", User: "postgres", Name: "recollection"},
		Redis:                bus.RedisConfig{ChannelPrefix: "task:"},
		WorkerConcurrency:    4,
		TaskQueueSize:        256,
		TaskHeartbeatSeconds: 15,
		TaskStaleSeconds:     120,
		TaskRetentionSeconds: 600,
		TaskEvictSchedule:    "@every 5m",
		HubBufferSize:        32,
	}
}

/*
LoadConfig resolves configuration in three layers:
	- built-in defaults
	- the YAML file named by COURSEGEN_CONFIG (default config.yaml), when it exists
	- environment variables
Secrets (JWT key, database password, API keys) are only read from the environment.
*/
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg, err := readConfig(log)
	if err != nil {
		return Config{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadLLMConfig resolves only the LLM section, for tools that run the pipeline without the server.
func LoadLLMConfig(log *logger.Logger) (LLMConfig, error) {
	cfg, err := readConfig(log)
	if err != nil {
		return LLMConfig{}, err
	}
	if err := validator.New().Struct(cfg.LLM); err != nil {
		return LLMConfig{}, fmt.Errorf("invalid llm config: %w", err)
	}
	return cfg.LLM, nil
}

func readConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()

	path := envutil.String("COURSEGEN_CONFIG", "config.yaml", log)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	case errors.Is(err, os.ErrNotExist):
		log.Debug("No config file, using defaults and environment", "path", path)
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv(log)
	return cfg, nil
}

func (c *Config) applyEnv(log *logger.Logger) {
	c.Port = envutil.String("PORT", c.Port, log)
	c.LogMode = envutil.String("LOG_MODE", c.LogMode, log)
	c.Environment = envutil.String("ENVIRONMENT", c.Environment, log)

	c.DB.Driver = envutil.String("DB_DRIVER", c.DB.Driver, log)
	c.DB.Host = envutil.String("POSTGRES_HOST", c.DB.Host, log)
	c.DB.Port = envutil.String("POSTGRES_PORT", c.DB.Port, log)
	c.DB.User = envutil.String("POSTGRES_USER", c.DB.User, log)
	c.DB.Password = envutil.String("POSTGRES_PASSWORD", c.DB.Password, log)
	c.DB.Name = envutil.String("POSTGRES_NAME", c.DB.Name, log)
	c.DB.SQLitePath = envutil.String("SQLITE_PATH", c.DB.SQLitePath, log)

	c.Redis.Addr = envutil.String("REDIS_ADDR", c.Redis.Addr, log)
	c.Redis.Password = envutil.String("REDIS_PASSWORD", c.Redis.Password, log)
	c.Redis.DB = envutil.Int("REDIS_DB", c.Redis.DB, log)
	c.Redis.ChannelPrefix = envutil.String("REDIS_CHANNEL_PREFIX", c.Redis.ChannelPrefix, log)

	c.WorkerConcurrency = envutil.Int("WORKER_CONCURRENCY", c.WorkerConcurrency, log)
	c.TaskQueueSize = envutil.Int("TASK_QUEUE_SIZE", c.TaskQueueSize, log)
	c.TaskHeartbeatSeconds = envutil.Int("TASK_HEARTBEAT_SECONDS", c.TaskHeartbeatSeconds, log)
	c.TaskStaleSeconds = envutil.Int("TASK_STALE_SECONDS", c.TaskStaleSeconds, log)
	c.TaskRetentionSeconds = envutil.Int("TASK_RETENTION_SECONDS", c.TaskRetentionSeconds, log)
	c.TaskEvictSchedule = envutil.String("TASK_EVICT_SCHEDULE", c.TaskEvictSchedule, log)
	c.HubBufferSize = envutil.Int("HUB_BUFFER_SIZE", c.HubBufferSize, log)

	c.JWTSecretKey = envutil.String("JWT_SECRET_KEY", c.JWTSecretKey, log)
	c.CORSOrigins = envutil.List("CORS_ORIGINS", c.CORSOrigins)

	c.LLM.Config.ApplyEnv(log)
	c.LLM.Tasks.Analysis.Model = envutil.String("LLM_ANALYSIS_MODEL", c.LLM.Tasks.Analysis.Model, log)
	c.LLM.Tasks.LessonStructure.Model = envutil.String("LLM_LESSON_STRUCTURE_MODEL", c.LLM.Tasks.LessonStructure.Model, log)
	c.LLM.Tasks.Takeaways.Model = envutil.String("LLM_TAKEAWAYS_MODEL", c.LLM.Tasks.Takeaways.Model, log)
}
