package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type StorageConfig struct {
	Endpoint       string
	PublicURL      string
	AccessKey      string
	SecretKey      string
	BucketAvatars  string
	UseSSL         bool
	Region         string
	MaxAvatarBytes int64
}

type SecurityConfig struct {
	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	CookieSecure     bool
}

type StreamConfig struct {
	APIKey    string
	APISecret string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Burst    int
}

type JobsConfig struct {
	ChatResyncSchedule string
	ChatResyncBatch    int
}

type AppConfig struct {
	Environment      string
	LogLevel         string
	HTTP             HTTPConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Security         SecurityConfig
	Stream           StreamConfig
	RateLimit        RateLimitConfig
	Jobs             JobsConfig
	AllowCORSOrigins []string
}

var envKeyReplacer = strings.NewReplacer(".", "_")

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func Load() (*AppConfig, error) {
	// .env only feeds the process environment for local runs; a missing
	// file is normal in deployed environments.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("TALKIFY")
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	return decode(v)
}

func decode(v *viper.Viper) (*AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Security.JWTAccessTTL <= 0 || cfg.Security.JWTRefreshTTL <= 0 {
		return nil, fmt.Errorf("security: token ttl must be positive")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 5001)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "15s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("postgres.maxopen", 30)
	v.SetDefault("postgres.maxidle", 5)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.automigrate", true)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.bucketavatars", "talkify-avatars")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.maxavatarbytes", 5<<20)

	v.SetDefault("security.jwtaccessttl", "1h")
	v.SetDefault("security.jwtrefreshttl", "168h") // 7 days
	v.SetDefault("security.cookiesecure", false)

	v.SetDefault("ratelimit.requests", 10)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("ratelimit.burst", 5)

	v.SetDefault("jobs.chatresyncschedule", "0 */15 * * * *")
	v.SetDefault("jobs.chatresyncbatch", 100)

	v.SetDefault("allowcorsorigins", []string{"http://localhost:5173"})

	// Secrets have no defaults but must be bound so AutomaticEnv picks them
	// up during Unmarshal.
	for _, key := range []string{
		"loglevel",
		"postgres.dsn",
		"redis.password",
		"storage.endpoint",
		"storage.publicurl",
		"storage.accesskey",
		"storage.secretkey",
		"security.jwtaccesssecret",
		"security.jwtrefreshsecret",
		"stream.apikey",
		"stream.apisecret",
		"allowcorsorigins",
	} {
		_ = v.BindEnv(key)
	}
}
