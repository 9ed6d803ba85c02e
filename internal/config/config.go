package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	// kv backend for progress and scores
	StoreDriver     string // memory|fs|sqlite|postgres|mysql|redis|minio
	StoreDSN        string
	StoreBasePath   string // fs driver
	StoreQuotaBytes int64

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	CatalogPath     string // optional JSON catalog replacing the built-in one
	DefaultExamType string
	PersistTimeout  time.Duration
	TickInterval    time.Duration
	SessionIdleTTL  time.Duration

	AuthHMACSecret  string
	TokenTTL        time.Duration
	EnableGuestAuth bool
	AdminUser       string
	AdminPassHash   string // bcrypt

	CORSOrigins     []string
	RateLimitMax    int
	RateLimitWindow time.Duration

	LogLevel string
	LogFile  string

	TracingEnabled  bool
	TracingEndpoint string
}

// FromEnv reads QUIZ_* environment variables over the built-in defaults.
func FromEnv() Config {
	return fromViper(newViper())
}

// Load additionally reads an optional config file (yaml/json/toml). A missing
// file is not an error; the returned viper can be passed to Watch.
func Load(path string) (Config, *viper.Viper, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) && !isNotExist(err) {
				return Config{}, nil, err
			}
		}
	}
	return fromViper(v), v, nil
}

// Watch re-reads the config file on every write and hands the new snapshot to
// onChange. Only settings that are safe to swap live (log level) should be
// applied by the callback.
func Watch(v *viper.Viper, onChange func(Config, fsnotify.Event)) {
	if v == nil || v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write == 0 {
			return
		}
		onChange(fromViper(v), e)
	})
	v.WatchConfig()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("QUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", string(ModeDev))
	v.SetDefault("http_addr", ":8080")

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.base_path", "./data")
	v.SetDefault("store.quota_bytes", 5*1024*1024)

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "quizpractice:")

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "quizpractice")
	v.SetDefault("minio.use_ssl", false)

	v.SetDefault("quiz.catalog_path", "")
	v.SetDefault("quiz.default_exam_type", "정보처리기사")
	v.SetDefault("quiz.persist_timeout", 3*time.Second)
	v.SetDefault("quiz.tick_interval", time.Second)
	v.SetDefault("quiz.session_idle_ttl", 2*time.Hour)

	v.SetDefault("auth.hmac_secret", "supersecret-dev-key")
	v.SetDefault("auth.token_ttl", 8*time.Hour)
	v.SetDefault("auth.enable_guest", true)
	v.SetDefault("auth.admin_user", "admin")
	v.SetDefault("auth.admin_pass_hash", "") // empty disables admin login

	v.SetDefault("cors.origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("rate_limit.max_requests", 120)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "logs/quizpractice.log")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")
	return v
}

func fromViper(v *viper.Viper) Config {
	mode := Mode(v.GetString("mode"))
	if mode != ModeProd {
		mode = ModeDev
	}
	level := v.GetString("log.level")
	if level == "" {
		level = "info"
		if mode == ModeDev {
			level = "debug"
		}
	}
	return Config{
		Mode:     mode,
		HTTPAddr: v.GetString("http_addr"),

		StoreDriver:     strings.ToLower(v.GetString("store.driver")),
		StoreDSN:        v.GetString("store.dsn"),
		StoreBasePath:   v.GetString("store.base_path"),
		StoreQuotaBytes: v.GetInt64("store.quota_bytes"),

		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),
		RedisPrefix:   v.GetString("redis.prefix"),

		MinioEndpoint:  v.GetString("minio.endpoint"),
		MinioAccessKey: v.GetString("minio.access_key"),
		MinioSecretKey: v.GetString("minio.secret_key"),
		MinioBucket:    v.GetString("minio.bucket"),
		MinioUseSSL:    v.GetBool("minio.use_ssl"),

		CatalogPath:     v.GetString("quiz.catalog_path"),
		DefaultExamType: v.GetString("quiz.default_exam_type"),
		PersistTimeout:  positiveOr(v.GetDuration("quiz.persist_timeout"), 3*time.Second),
		TickInterval:    positiveOr(v.GetDuration("quiz.tick_interval"), time.Second),
		SessionIdleTTL:  positiveOr(v.GetDuration("quiz.session_idle_ttl"), 2*time.Hour),

		AuthHMACSecret:  v.GetString("auth.hmac_secret"),
		TokenTTL:        positiveOr(v.GetDuration("auth.token_ttl"), 8*time.Hour),
		EnableGuestAuth: v.GetBool("auth.enable_guest"),
		AdminUser:       v.GetString("auth.admin_user"),
		AdminPassHash:   v.GetString("auth.admin_pass_hash"),

		CORSOrigins:     csv(v.GetString("cors.origins")),
		RateLimitMax:    v.GetInt("rate_limit.max_requests"),
		RateLimitWindow: positiveOr(v.GetDuration("rate_limit.window"), time.Minute),

		LogLevel: level,
		LogFile:  v.GetString("log.file"),

		TracingEnabled:  v.GetBool("tracing.enabled"),
		TracingEndpoint: v.GetString("tracing.endpoint"),
	}
}

func csv(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func positiveOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || strings.Contains(strings.ToLower(err.Error()), "no such file")
}
