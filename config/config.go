// config.go

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 服务器配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Game     GameConfig     `mapstructure:"game"`
}

// ServerConfig 服务器基本配置
type ServerConfig struct {
	GatewayPort  int           `mapstructure:"gateway_port"`
	Debug        bool          `mapstructure:"debug"`
	LogLevel     string        `mapstructure:"log_level"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig 存储驱动配置
type StorageConfig struct {
	// Driver 取值 postgres, sqlite, memory
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	CatalogSeed string `mapstructure:"catalog_seed"`
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	JWTIssuer        string        `mapstructure:"jwt_issuer"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	LoginDelayMin    time.Duration `mapstructure:"login_delay_min"`
	LoginDelayMax    time.Duration `mapstructure:"login_delay_max"`
	LoginRateLimit   int           `mapstructure:"login_rate_limit"`
	LoginRateWindow  time.Duration `mapstructure:"login_rate_window"`
	CaptchaEnabled   bool          `mapstructure:"captcha_enabled"`
	CaptchaSecret    string        `mapstructure:"captcha_secret"`
	CaptchaVerifyURL string        `mapstructure:"captcha_verify_url"`
	DenylistPrefix   string        `mapstructure:"denylist_prefix"`
}

// GameConfig 游戏数值配置
type GameConfig struct {
	DefaultCharacter string  `mapstructure:"default_character"`
	RosterSize       int     `mapstructure:"roster_size"`
	StarterPackMin   int64   `mapstructure:"starter_pack_min"`
	StarterPackMax   int64   `mapstructure:"starter_pack_max"`
	WinMoney         int64   `mapstructure:"win_money"`
	WinPoints        int64   `mapstructure:"win_points"`
	LossPoints       int64   `mapstructure:"loss_points"`
	SocialThreshold  int     `mapstructure:"social_threshold"`
	PowerUpHealth    float64 `mapstructure:"powerup_health"`
	PowerUpAttack    float64 `mapstructure:"powerup_attack"`
	PowerUpSpeed     float64 `mapstructure:"powerup_speed"`
}

var (
	// GlobalConfig 全局配置实例
	GlobalConfig Config
)

// setDefaults 注册默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.gateway_port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.sqlite_path", "data/forbattle.db")
	v.SetDefault("storage.catalog_seed", "config/catalog.yaml")

	v.SetDefault("auth.jwt_issuer", "forbattle")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.login_delay_min", 2*time.Second)
	v.SetDefault("auth.login_delay_max", 4*time.Second)
	v.SetDefault("auth.login_rate_limit", 5)
	v.SetDefault("auth.login_rate_window", 15*time.Minute)
	v.SetDefault("auth.captcha_verify_url", "https://www.google.com/recaptcha/api/siteverify")
	v.SetDefault("auth.denylist_prefix", "auth:denylist:")

	v.SetDefault("game.default_character", "Lillia")
	v.SetDefault("game.roster_size", 21)
	v.SetDefault("game.starter_pack_min", 1000)
	v.SetDefault("game.starter_pack_max", 2000)
	v.SetDefault("game.win_money", 500)
	v.SetDefault("game.win_points", 3)
	v.SetDefault("game.loss_points", 1)
	v.SetDefault("game.social_threshold", 5)
	v.SetDefault("game.powerup_health", 100)
	v.SetDefault("game.powerup_attack", 100)
	v.SetDefault("game.powerup_speed", 0.1)
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("无法读取配置文件: %w", err)
	}

	if err := v.Unmarshal(&GlobalConfig); err != nil {
		return fmt.Errorf("无法解析配置文件: %w", err)
	}

	return nil
}

// Default 返回只包含默认值的配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// 默认值均为基础类型，解析失败说明默认值表本身有误
		panic(fmt.Sprintf("默认配置无效: %v", err))
	}
	return &cfg
}

// GetDSN 获取PostgreSQL连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetRedisAddr 获取Redis连接地址
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
