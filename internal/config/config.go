// Package config 负责读取并合并服务配置（可选 YAML 文件 + 环境变量覆盖），避免在业务代码里散落解析逻辑。
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// FileEnv 指定可选的 YAML 配置文件路径。
const FileEnv = "LESSONDATA_CONFIG"

type Config struct {
	Env         string            `yaml:"env"`
	Server      ServerConfig      `yaml:"server"`
	DB          DBConfig          `yaml:"db"`
	Security    SecurityConfig    `yaml:"security"`
	Blob        BlobConfig        `yaml:"blob"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Frontend    FrontendConfig    `yaml:"frontend"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`

	// 映射到 net/http 的 http.Server；WriteTimeout 保持为 0，以兼容 WebSocket 长连接。
	ReadHeaderTimeoutSeconds int `yaml:"read_header_timeout_seconds"`
	ReadTimeoutSeconds       int `yaml:"read_timeout_seconds"`
	IdleTimeoutSeconds       int `yaml:"idle_timeout_seconds"`
	MaxHeaderBytes           int `yaml:"max_header_bytes"`

	// MaxBodyBytes 限制 /api 请求体大小；<= 0 表示不限制。
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
	// RequestTimeoutSeconds 是 /api 请求的处理时限（不含已升级的 WebSocket）。
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`

	// MaxFeedConnsPerUser 限制每个账号同时打开的推送连接；<= 0 表示不限制。
	MaxFeedConnsPerUser int `yaml:"max_feed_conns_per_user"`
}

type DBConfig struct {
	// Driver 支持 mysql/sqlite；为空时 dsn 非空推断为 mysql，否则 sqlite。
	Driver     string `yaml:"driver"`
	DSN        string `yaml:"dsn"`
	SQLitePath string `yaml:"sqlite_path"`
}

type SecurityConfig struct {
	// SessionSecret 为空时每次启动随机生成，重启后登录态失效。
	SessionSecret        string `yaml:"session_secret"`
	DisableSecureCookies bool   `yaml:"disable_secure_cookies"`

	TrustProxyHeaders bool     `yaml:"trust_proxy_headers"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`

	// AllowedOrigins 是 WebSocket 允许的来源；为空时只接受同源。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type BlobConfig struct {
	Dir string `yaml:"dir"`
}

type MarketplaceConfig struct {
	// Games 为空时自动发现 marketplace/*/config.csv。
	Games                []string `yaml:"games"`
	SessionTTLMinutes    int      `yaml:"session_ttl_minutes"`
	SweepIntervalSeconds int      `yaml:"sweep_interval_seconds"`
}

type FrontendConfig struct {
	// DistDir 指向前端构建产物；为空时使用内嵌资源。
	DistDir string `yaml:"dist_dir"`
	BaseURL string `yaml:"base_url"`
}

// Load 读取 LESSONDATA_CONFIG 指向的 YAML（未设置时跳过），再叠加环境变量。
func Load() (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnvOverrides(&cfg)
	return normalizeAndValidate(cfg)
}

// LoadFromEnv 仅从环境变量加载配置（不读取任何配置文件）。
func LoadFromEnv() (Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(&cfg)
	return normalizeAndValidate(cfg)
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取配置文件失败（%s）: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("解析配置文件失败（%s）: %w", path, err)
	}
	return nil
}

func normalizeAndValidate(cfg Config) (Config, error) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	cfg.Server.Addr = strings.TrimSpace(cfg.Server.Addr)

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	cfg.DB.DSN = strings.TrimSpace(cfg.DB.DSN)
	cfg.DB.SQLitePath = strings.TrimSpace(cfg.DB.SQLitePath)
	if cfg.DB.Driver == "" {
		if cfg.DB.DSN != "" {
			cfg.DB.Driver = "mysql"
		} else {
			cfg.DB.Driver = "sqlite"
		}
	}
	if cfg.DB.Driver == "sqlite" && cfg.DB.SQLitePath == "" {
		cfg.DB.SQLitePath = "./data/lessondata.db?_busy_timeout=30000"
	}

	cfg.Blob.Dir = strings.TrimSpace(cfg.Blob.Dir)
	if cfg.Blob.Dir == "" {
		cfg.Blob.Dir = "./data/blob"
	}
	cfg.Blob.Dir = filepath.Clean(cfg.Blob.Dir)

	cfg.Marketplace.Games = splitCSV(strings.Join(cfg.Marketplace.Games, ","))
	if cfg.Marketplace.SessionTTLMinutes <= 0 {
		cfg.Marketplace.SessionTTLMinutes = 30
	}
	if cfg.Marketplace.SweepIntervalSeconds <= 0 {
		cfg.Marketplace.SweepIntervalSeconds = 60
	}
	cfg.Frontend.DistDir = strings.TrimSpace(cfg.Frontend.DistDir)

	baseURL, baseErr := NormalizeHTTPBaseURL(cfg.Frontend.BaseURL, "frontend.base_url")
	if baseErr == nil {
		cfg.Frontend.BaseURL = baseURL
	}

	err := criterio.ValidateStruct(
		criterio.Run("env", cfg.Env, oneOf("dev", "prod", "test")),
		criterio.Run("server.addr", cfg.Server.Addr, notEmpty),
		criterio.Run("db.driver", cfg.DB.Driver, oneOf("sqlite", "mysql")),
		validateDSN(cfg.DB),
		fieldErr("marketplace.games", validGameKeys(cfg.Marketplace.Games)),
		fieldErr("security.trusted_proxy_cidrs", validCIDRs(cfg.Security.TrustedProxyCIDRs)),
		fieldErr("frontend.base_url", baseErr),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fieldErr(field string, err error) error {
	if err == nil {
		return nil
	}
	return criterio.NewFieldErrors(field, err)
}

func validateDSN(db DBConfig) error {
	if db.Driver == "mysql" && db.DSN == "" {
		return criterio.NewFieldErrors("db.dsn", errors.New("db.driver=mysql 时不能为空"))
	}
	return nil
}

func notEmpty(v string) error {
	if v == "" {
		return errors.New("不能为空")
	}
	return nil
}

func oneOf(allowed ...string) func(string) error {
	return func(v string) error {
		for _, a := range allowed {
			if v == a {
				return nil
			}
		}
		return fmt.Errorf("不支持：%q（仅支持 %s）", v, strings.Join(allowed, "/"))
	}
}

func validGameKeys(keys []string) error {
	for _, k := range keys {
		if strings.ContainsAny(k, `/\`) || k == "." || k == ".." {
			return fmt.Errorf("游戏目录名不合法：%q", k)
		}
	}
	return nil
}

func NormalizeHTTPBaseURL(raw string, label string) (string, error) {
	v := strings.TrimRight(strings.TrimSpace(raw), "/")
	if v == "" {
		return "", nil
	}
	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("解析 %s 失败: %w", label, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%s 仅支持 http/https", label)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%s host 不能为空", label)
	}
	return v, nil
}

func defaultConfig() Config {
	return Config{
		Env: "dev",
		Server: ServerConfig{
			Addr: ":8080",

			ReadHeaderTimeoutSeconds: 5,
			ReadTimeoutSeconds:       30,
			IdleTimeoutSeconds:       120,
			MaxHeaderBytes:           1048576,

			MaxBodyBytes:          4 << 20,
			RequestTimeoutSeconds: 30,
			MaxFeedConnsPerUser:   8,
		},
		DB: DBConfig{
			SQLitePath: "./data/lessondata.db?_busy_timeout=30000",
		},
		Blob: BlobConfig{
			Dir: "./data/blob",
		},
		Marketplace: MarketplaceConfig{
			SessionTTLMinutes:    30,
			SweepIntervalSeconds: 60,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LESSONDATA_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("LESSONDATA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LESSONDATA_SERVER_READ_HEADER_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.ReadHeaderTimeoutSeconds = n
		}
	}
	if v := os.Getenv("LESSONDATA_SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.ReadTimeoutSeconds = n
		}
	}
	if v := os.Getenv("LESSONDATA_SERVER_IDLE_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Server.IdleTimeoutSeconds = n
		}
	}
	if v := os.Getenv("LESSONDATA_MAX_BODY_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Server.MaxBodyBytes = n
		}
	}
	if v := os.Getenv("LESSONDATA_REQUEST_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RequestTimeoutSeconds = n
		}
	}
	if v := os.Getenv("LESSONDATA_MAX_FEED_CONNS_PER_USER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MaxFeedConnsPerUser = n
		}
	}
	if v := os.Getenv("LESSONDATA_DB_DRIVER"); v != "" {
		cfg.DB.Driver = v
	}
	if v := os.Getenv("LESSONDATA_DB_DSN"); v != "" {
		cfg.DB.DSN = v
	}
	if v := os.Getenv("LESSONDATA_SQLITE_PATH"); v != "" {
		cfg.DB.SQLitePath = v
	}
	if v := os.Getenv("LESSONDATA_SESSION_SECRET"); v != "" {
		cfg.Security.SessionSecret = v
	}
	if v := os.Getenv("LESSONDATA_DISABLE_SECURE_COOKIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.DisableSecureCookies = b
		}
	}
	if v := os.Getenv("LESSONDATA_TRUST_PROXY_HEADERS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Security.TrustProxyHeaders = b
		}
	}
	if v := os.Getenv("LESSONDATA_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.Security.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("LESSONDATA_ALLOWED_ORIGINS"); v != "" {
		cfg.Security.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("LESSONDATA_BLOB_DIR"); v != "" {
		cfg.Blob.Dir = v
	}
	if v := os.Getenv("LESSONDATA_MARKETPLACE_GAMES"); v != "" {
		cfg.Marketplace.Games = splitCSV(v)
	}
	if v := os.Getenv("LESSONDATA_SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Marketplace.SessionTTLMinutes = n
		}
	}
	if v := os.Getenv("LESSONDATA_FRONTEND_DIST_DIR"); v != "" {
		cfg.Frontend.DistDir = v
	}
	if v := os.Getenv("LESSONDATA_FRONTEND_BASE_URL"); v != "" {
		cfg.Frontend.BaseURL = v
	}
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
