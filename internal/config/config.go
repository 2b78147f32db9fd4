// Package config loads judgehub configuration.
//
// Sources, lowest to highest precedence: defaults set in Load, an optional
// judgehub.yaml (in /etc/judgehub/ or the working directory, or the file
// passed explicitly), a .env file in the working directory, and JUDGEHUB_*
// environment variables. Nested keys use "_" in env vars, so judge.api_key
// is JUDGEHUB_JUDGE_API_KEY.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/sakif/judgehub/internal/apperror"
	"github.com/sakif/judgehub/internal/validate"
)

const EnvPrefix = "judgehub"

type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  validate:"oneof=debug info warn error DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"oneof=text json tint"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type GitHubConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	CallbackURL  string `mapstructure:"callback_url"`
}

// Enabled reports whether GitHub sign-in routes should be registered.
func (c GitHubConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret" validate:"required,min=16"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	GitHub    GitHubConfig  `mapstructure:"github"`
}

type JudgeConfig struct {
	BaseURL    string `mapstructure:"base_url"    validate:"required,url"`
	APIKey     string `mapstructure:"api_key"`
	AuthHeader string `mapstructure:"auth_header"`
	// RequestTimeout bounds each outbound HTTP call.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// PollInterval is the wait between poll attempts while results are pending.
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	PollMaxAttempts int           `mapstructure:"poll_max_attempts" validate:"min=1"`
	// PollRetries is how many times a single poll GET is retried on
	// transport errors and 5xx before it counts as a poll failure.
	PollRetries int `mapstructure:"poll_retries" validate:"min=0"`
	// EvaluationTimeout bounds a whole evaluation. It must finish before
	// the server's write timeout or the verdict cannot be delivered.
	EvaluationTimeout time.Duration `mapstructure:"evaluation_timeout"`
	// Languages adds to or overrides the built-in language table.
	Languages map[string]int `mapstructure:"languages"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type RateLimitConfig struct {
	SubmitPerMinute int64 `mapstructure:"submit_per_minute" validate:"min=0"`
	FailOpen        bool  `mapstructure:"fail_open"`
}

type ArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"` // #nosec
	Bucket          string `mapstructure:"bucket"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

func (c ArchiveConfig) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Judge     JudgeConfig     `mapstructure:"judge"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
}

var defaults = map[string]any{
	"server.port":             8080,
	"server.read_timeout":     15 * time.Second,
	"server.write_timeout":    2 * time.Minute,
	"server.shutdown_timeout": 30 * time.Second,

	"log.level":  "info",
	"log.format": "text",

	"database.path": "data/judgehub.db",

	"auth.jwt_secret":           "",
	"auth.token_ttl":            24 * time.Hour,
	"auth.github.client_id":     "",
	"auth.github.client_secret": "",
	"auth.github.callback_url":  "http://localhost:8080/auth/github/callback",

	"judge.base_url":           "http://localhost:2358",
	"judge.api_key":            "",
	"judge.auth_header":        "X-Auth-Token",
	"judge.request_timeout":    10 * time.Second,
	"judge.poll_interval":      time.Second,
	"judge.poll_max_attempts":  60,
	"judge.poll_retries":       2,
	"judge.evaluation_timeout": 90 * time.Second,

	"redis.addr":     "",
	"redis.password": "",
	"redis.db":       0,

	"ratelimit.submit_per_minute": 10,
	"ratelimit.fail_open":         true,

	"archive.endpoint":          "",
	"archive.access_key_id":     "",
	"archive.secret_access_key": "",
	"archive.bucket":            "",
	"archive.use_ssl":           true,
}

// Load reads configuration. path may be empty, in which case judgehub.yaml
// is looked up in the default locations and its absence is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("judgehub")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/judgehub/")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := validate.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.checkTimeouts(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) checkTimeouts() error {
	eval, write := c.Judge.EvaluationTimeout, c.Server.WriteTimeout
	if eval <= 0 {
		return apperror.ValidationFailed("judge.evaluation_timeout", "evaluation_timeout must be positive")
	}
	if write > 0 && eval >= write {
		return apperror.ValidationFailed("judge.evaluation_timeout",
			fmt.Sprintf("evaluation_timeout %s must be below server.write_timeout %s", eval, write))
	}
	return nil
}
