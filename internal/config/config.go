package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// SolverConfig tunes the implied volatility surface computation
type SolverConfig struct {
	Workers      int     `yaml:"workers"`       // concurrent solves per surface build
	MoneynessMin float64 `yaml:"moneyness_min"` // lower bound on strike/spot
	MoneynessMax float64 `yaml:"moneyness_max"` // upper bound on strike/spot
}

// AlpacaConfig represents Alpaca API configuration
type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
}

type Config struct {
	// Server settings
	Port string

	// Alpaca API settings
	AlpacaAPIKey    string
	AlpacaSecretKey string

	// Risk-free rate fallback used when the Treasury API is unreachable
	FallbackRate float64

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
	// Solver settings
	Solver SolverConfig `yaml:"solver"`
}

type YAMLConfig struct {
	Alpaca       AlpacaConfig  `yaml:"alpaca"`
	FallbackRate float64       `yaml:"fallback_rate"`
	Logging      LoggingConfig `yaml:"logging"`
	Solver       SolverConfig  `yaml:"solver"`
}

// Load builds the configuration from the environment with a config.yaml
// overlay. A .env file is honored if present. Missing values fall back to
// defaults; credentials are validated by the caller, not here.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		AlpacaAPIKey:    getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey: getEnv("ALPACA_SECRET_KEY", ""),
		FallbackRate:    getEnvFloat("FALLBACK_RATE", 0.04),
		Logging: LoggingConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", "ivsurface.log"),
		},
		Solver: SolverConfig{
			Workers:      getEnvInt("SOLVER_WORKERS", 8),
			MoneynessMin: getEnvFloat("MONEYNESS_MIN", 0.0),
			MoneynessMax: getEnvFloat("MONEYNESS_MAX", 2.0),
		},
	}

	if yamlCfg := loadYAMLConfig(); yamlCfg != nil {
		if yamlCfg.Alpaca.APIKey != "" && yamlCfg.Alpaca.APIKey != "YOUR_ALPACA_API_KEY" {
			cfg.AlpacaAPIKey = yamlCfg.Alpaca.APIKey
		}
		if yamlCfg.Alpaca.SecretKey != "" && yamlCfg.Alpaca.SecretKey != "YOUR_ALPACA_SECRET_KEY" {
			cfg.AlpacaSecretKey = yamlCfg.Alpaca.SecretKey
		}
		if yamlCfg.FallbackRate > 0 {
			cfg.FallbackRate = yamlCfg.FallbackRate
		}
		if yamlCfg.Logging.LogLevel != "" {
			cfg.Logging.LogLevel = yamlCfg.Logging.LogLevel
		}
		if yamlCfg.Logging.LogFile != "" {
			cfg.Logging.LogFile = yamlCfg.Logging.LogFile
		}
		if yamlCfg.Solver.Workers > 0 {
			cfg.Solver.Workers = yamlCfg.Solver.Workers
		}
		if yamlCfg.Solver.MoneynessMax > 0 {
			cfg.Solver.MoneynessMin = yamlCfg.Solver.MoneynessMin
			cfg.Solver.MoneynessMax = yamlCfg.Solver.MoneynessMax
		}
	}

	return cfg
}

func loadYAMLConfig() *YAMLConfig {
	data, err := os.ReadFile("config.yaml")
	if err != nil {
		// No config.yaml is fine; env and defaults carry the day
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
