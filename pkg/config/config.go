package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultJWTSecret      = "your-secret-key-change-in-production"
	defaultDevBypassToken = "mock_dev_mode"
	defaultTelegramAPIURL = "https://api.telegram.org"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string
	Port        string

	// 数据库配置
	UseLocalDB    bool
	LocalDataFile string
	PostgresDSN   string

	// Session tokens
	JWTSecret  string
	SessionTTL time.Duration

	// Telegram
	BotToken        string
	BotUsername     string
	TelegramAPIURL  string
	WebhookSecret   string
	WebhookURL      string
	TelegramTimeout time.Duration

	// initData older than this is rejected.
	InitDataMaxAge time.Duration
	// Payload that logs in as the fixed development identity outside production.
	DevBypassToken string

	// CORS配置
	AllowedOrigins []string

	LogLevel       string
	MetricsEnabled bool
	Debug          bool
}

// LoadConfig reads the file named by CONFIG_FILE (if any) plus the environment.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv("CONFIG_FILE"))
}

// Load builds a Config from defaults, an optional YAML file, the .env file
// matching the environment and finally the process environment.
func Load(path string) (*Config, error) {
	src := source{file: map[string]string{}}
	if strings.TrimSpace(path) != "" {
		file, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	// 根据环境加载对应的 .env 文件
	switch src.get("ENVIRONMENT", "development") {
	case "production":
		loadEnvFile(".env.production")
	default:
		loadEnvFile(".env.local")
	}

	cfg := &Config{
		Environment:    src.get("ENVIRONMENT", "development"),
		Port:           src.get("PORT", "3000"),
		LocalDataFile:  src.get("LOCAL_DATA_FILE", ""),
		PostgresDSN:    strings.TrimSpace(src.get("POSTGRES_DSN", "")),
		JWTSecret:      src.get("JWT_SECRET", defaultJWTSecret),
		BotToken:       strings.TrimSpace(src.get("TELEGRAM_BOT_TOKEN", "")),
		BotUsername:    strings.TrimPrefix(strings.TrimSpace(src.get("TELEGRAM_BOT_USERNAME", "")), "@"),
		TelegramAPIURL: strings.TrimRight(src.get("TELEGRAM_API_URL", defaultTelegramAPIURL), "/"),
		WebhookSecret:  strings.TrimSpace(src.get("TELEGRAM_WEBHOOK_SECRET", "")),
		WebhookURL:     strings.TrimSpace(src.get("TELEGRAM_WEBHOOK_URL", "")),
		DevBypassToken: src.get("DEV_BYPASS_TOKEN", defaultDevBypassToken),
		LogLevel:       strings.ToLower(src.get("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.UseLocalDB, err = src.getBool("USE_LOCAL_DB", cfg.PostgresDSN == ""); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = src.getBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.Debug, err = src.getBool("DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = src.getDuration("SESSION_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.InitDataMaxAge, err = src.getDuration("INIT_DATA_MAX_AGE", time.Hour); err != nil {
		return nil, err
	}
	if cfg.TelegramTimeout, err = src.getDuration("TELEGRAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	// CORS配置
	allowedOrigins := src.get("ALLOWED_ORIGINS", "*")
	if allowedOrigins == "*" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		for _, o := range strings.Split(allowedOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	// 生产环境强制使用PostgreSQL并关闭调试
	if cfg.IsProduction() {
		cfg.UseLocalDB = false
		cfg.Debug = false
	}

	return cfg, nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.InitDataMaxAge <= 0 {
		return fmt.Errorf("INIT_DATA_MAX_AGE must be positive")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		if c.BotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN must be set in production")
		}
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN must be set in production")
		}
	}

	if !c.UseLocalDB && c.PostgresDSN == "" {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or USE_LOCAL_DB=true")
	}

	return nil
}

// Warnings lists non-fatal configuration problems worth logging at startup.
func (c *Config) Warnings() []string {
	var out []string
	if c.IsProduction() {
		return out
	}
	if c.JWTSecret == defaultJWTSecret {
		out = append(out, "using default JWT secret")
	}
	if c.BotToken == "" {
		out = append(out, "TELEGRAM_BOT_TOKEN is not set, initData signatures are not verified")
	}
	if c.DevBypassToken != "" {
		out = append(out, "development login bypass is enabled")
	}
	return out
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// 辅助函数

// source resolves a key from the environment first, then the YAML file.
type source struct {
	file map[string]string
}

func (s source) get(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	if value, ok := s.file[key]; ok && value != "" {
		return value
	}
	return defaultValue
}

func (s source) getBool(key string, defaultValue bool) (bool, error) {
	value := s.get(key, "")
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func (s source) getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := s.get(key, "")
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

// readYAML flattens a YAML mapping into env-style keys: `bot_token` becomes BOT_TOKEN.
func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(k), "-", "_"))
		switch val := v.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(val))
			for _, p := range val {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(val)
		}
	}
	return out, nil
}

// loadEnvFile 加载 .env 文件到环境变量
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // 文件不存在，静默返回
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// 移除值两端的引号（如果有）
		if len(value) >= 2 {
			if (strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"")) ||
				(strings.HasPrefix(value, "'") && strings.HasSuffix(value, "'")) {
				value = value[1 : len(value)-1]
			}
		}

		// 只有当环境变量不存在时才设置
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
