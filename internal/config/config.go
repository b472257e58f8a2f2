package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nemonet1337/zaiGoMRP/pkg/planning"
)

// Config holds application configuration
// アプリケーション設定を保持
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Planning PlanningConfig `yaml:"planning"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds database configuration
// データベース設定を保持
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// APIConfig holds API server configuration
// APIサーバー設定を保持
type APIConfig struct {
	Port          int           `yaml:"port"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	EnableCORS    bool          `yaml:"enable_cors"`
	EnableMetrics bool          `yaml:"enable_metrics"`
}

// PlanningConfig holds MRP engine configuration
// MRPエンジン固有の設定を保持
type PlanningConfig struct {
	HorizonDays           int    `yaml:"horizon_days"`
	ShortageLookaheadDays int    `yaml:"shortage_lookahead_days"`
	Workers               int    `yaml:"workers"`
	DemandSource          string `yaml:"demand_source"`    // forecast, weekly_goals
	WeeklyAveraging       string `yaml:"weekly_averaging"` // nonzero_weeks, all_weeks
}

// LoggingConfig holds logging configuration
// ログ設定を保持
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json, console
	Output string `yaml:"output"` // stdout, stderr, ファイルパス
}

// Default returns the built-in configuration
// 組み込みのデフォルト設定
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "mrp",
			Password: "password",
			DBName:   "mrp_db",
			SSLMode:  "disable",
		},
		API: APIConfig{
			Port:          8080,
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			IdleTimeout:   60 * time.Second,
			EnableCORS:    true,
			EnableMetrics: true,
		},
		Planning: PlanningConfig{
			HorizonDays:           30,
			ShortageLookaheadDays: 14,
			Workers:               4,
			DemandSource:          string(planning.DemandSourceForecast),
			WeeklyAveraging:       string(planning.AveragingNonzeroWeeks),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from environment variables
// 環境変数から設定を読み込み
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads a YAML file over the defaults and then applies environment
// overrides. An empty path skips the file.
// YAMLファイルと環境変数から設定を読み込み
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイル読み込みに失敗しました: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
		}
	}

	cfg.applyEnv()

	// バリデーション
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定バリデーションに失敗しました: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides fields whose environment variable is set
// 環境変数が設定されている項目を上書き
func (c *Config) applyEnv() {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnv("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.API.Port = getEnvAsInt("API_PORT", c.API.Port)
	c.API.ReadTimeout = getEnvAsDuration("API_READ_TIMEOUT", c.API.ReadTimeout)
	c.API.WriteTimeout = getEnvAsDuration("API_WRITE_TIMEOUT", c.API.WriteTimeout)
	c.API.IdleTimeout = getEnvAsDuration("API_IDLE_TIMEOUT", c.API.IdleTimeout)
	c.API.EnableCORS = getEnvAsBool("API_ENABLE_CORS", c.API.EnableCORS)
	c.API.EnableMetrics = getEnvAsBool("API_ENABLE_METRICS", c.API.EnableMetrics)

	c.Planning.HorizonDays = getEnvAsInt("PLANNING_HORIZON_DAYS", c.Planning.HorizonDays)
	c.Planning.ShortageLookaheadDays = getEnvAsInt("PLANNING_SHORTAGE_LOOKAHEAD_DAYS", c.Planning.ShortageLookaheadDays)
	c.Planning.Workers = getEnvAsInt("PLANNING_WORKERS", c.Planning.Workers)
	c.Planning.DemandSource = getEnv("PLANNING_DEMAND_SOURCE", c.Planning.DemandSource)
	c.Planning.WeeklyAveraging = getEnv("PLANNING_WEEKLY_AVERAGING", c.Planning.WeeklyAveraging)

	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("LOG_FORMAT", c.Logging.Format)
	c.Logging.Output = getEnv("LOG_OUTPUT", c.Logging.Output)
}

// Validate validates the configuration
// 設定をバリデーション
func (c *Config) Validate() error {
	// データベース設定チェック
	if c.Database.Host == "" {
		return fmt.Errorf("データベースホストが指定されていません")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("無効なデータベースポート: %d", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("データベースユーザーが指定されていません")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("データベース名が指定されていません")
	}

	// API設定チェック
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("無効なAPIポート: %d", c.API.Port)
	}

	// 計画設定チェック
	if err := planning.ValidateHorizonDays(c.Planning.HorizonDays); err != nil {
		return fmt.Errorf("無効な計画日数: %w", err)
	}
	if err := planning.ValidateHorizonDays(c.Planning.ShortageLookaheadDays); err != nil {
		return fmt.Errorf("無効な欠品参照日数: %w", err)
	}
	if c.Planning.Workers < 1 {
		return fmt.Errorf("並列数は1以上である必要があります: %d", c.Planning.Workers)
	}
	switch planning.DemandSource(c.Planning.DemandSource) {
	case planning.DemandSourceForecast, planning.DemandSourceWeeklyGoals:
	default:
		return fmt.Errorf("無効な需要取得元: %s", c.Planning.DemandSource)
	}
	if _, err := planning.ParseAveragingPolicy(c.Planning.WeeklyAveraging); err != nil {
		return fmt.Errorf("無効な週平均方式: %w", err)
	}

	// ログ設定チェック
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("無効なログレベル: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("無効なログフォーマット: %s", c.Logging.Format)
	}

	return nil
}

// DSN generates PostgreSQL Data Source Name
// PostgreSQLデータソース名を生成
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// EngineConfig converts the planning section into engine settings
// 計画エンジンの設定に変換
func (p PlanningConfig) EngineConfig() *planning.Config {
	policy, err := planning.ParseAveragingPolicy(p.WeeklyAveraging)
	if err != nil {
		policy = planning.AveragingNonzeroWeeks
	}
	return &planning.Config{
		HorizonDays:           p.HorizonDays,
		ShortageLookaheadDays: p.ShortageLookaheadDays,
		Workers:               p.Workers,
		DemandSource:          planning.DemandSource(p.DemandSource),
		WeeklyAveraging:       policy,
	}
}

// BuildLogger creates a zap logger from the logging section
// ログ設定からzapロガーを作成
func (l LoggingConfig) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, fmt.Errorf("無効なログレベル: %w", err)
	}

	zcfg := zap.NewProductionConfig()
	if l.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	output := l.Output
	if output == "" {
		output = "stdout"
	}
	zcfg.OutputPaths = []string{output}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}

// ヘルパー関数

// getEnv gets environment variable with default value
// デフォルト値付きで環境変数を取得
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
// デフォルト値付きで環境変数を整数として取得
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool gets environment variable as boolean with default value
// デフォルト値付きで環境変数をbooleanとして取得
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration gets environment variable as duration with default value
// デフォルト値付きで環境変数をdurationとして取得
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
