package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Filings struct {
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
		FormType string `yaml:"form_type"`
	} `yaml:"filings"`
	Market struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"market"`
	LLM struct {
		Endpoint string `yaml:"endpoint"`
		APIKey   string `yaml:"api_key"`
		Model    string `yaml:"model"`
		TopN     int    `yaml:"top_n"`
	} `yaml:"llm"`
	Paths struct {
		RollingCSV  string `yaml:"rolling_csv"`
		MergedCSV   string `yaml:"merged_csv"`
		UpcomingCSV string `yaml:"upcoming_csv"`
		RecentCSV   string `yaml:"recent_csv"`
		SummaryDir  string `yaml:"summary_dir"`
	} `yaml:"paths"`
	Pipeline struct {
		PaceMS           int    `yaml:"pace_ms"`
		RecentCutoffDays int    `yaml:"recent_cutoff_days"`
		DailyCron        string `yaml:"daily_cron"`
	} `yaml:"pipeline"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FILING_API_KEY"); v != "" {
		cfg.Filings.APIKey = v
	}
	if v := os.Getenv("MARKET_API_KEY"); v != "" {
		cfg.Market.APIKey = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_ENDPOINT"); v != "" {
		cfg.LLM.Endpoint = v
	}
	if v := os.Getenv("CRON_DAILY"); v != "" {
		cfg.Pipeline.DailyCron = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("PACE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pipeline.PaceMS = n
		}
	}

	// Defaults
	if cfg.Filings.BaseURL == "" {
		cfg.Filings.BaseURL = "https://api.sec-api.io"
	}
	if cfg.Filings.FormType == "" {
		cfg.Filings.FormType = "S-1"
	}
	if cfg.Market.BaseURL == "" {
		cfg.Market.BaseURL = "https://api.polygon.io"
	}
	if cfg.LLM.Endpoint == "" {
		cfg.LLM.Endpoint = "https://api.openai.com/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o"
	}
	if cfg.LLM.TopN == 0 {
		cfg.LLM.TopN = 5
	}
	if cfg.Paths.RollingCSV == "" {
		cfg.Paths.RollingCSV = "data/tickersAndPrices.csv"
	}
	if cfg.Paths.MergedCSV == "" {
		cfg.Paths.MergedCSV = "data/workingRolling.csv"
	}
	if cfg.Paths.UpcomingCSV == "" {
		cfg.Paths.UpcomingCSV = "data/upcomingIPOs.csv"
	}
	if cfg.Paths.RecentCSV == "" {
		cfg.Paths.RecentCSV = "data/recentIPOs.csv"
	}
	if cfg.Paths.SummaryDir == "" {
		cfg.Paths.SummaryDir = "data/summaries"
	}
	if cfg.Pipeline.PaceMS == 0 {
		cfg.Pipeline.PaceMS = 100
	}
	if cfg.Pipeline.RecentCutoffDays == 0 {
		cfg.Pipeline.RecentCutoffDays = 90
	}
	if cfg.Pipeline.DailyCron == "" {
		cfg.Pipeline.DailyCron = "0 30 6 * * 1-5"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/ipopulse.db"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Filings.APIKey == "" {
		return fmt.Errorf("filings.api_key is required")
	}
	if c.Market.APIKey == "" {
		return fmt.Errorf("market.api_key is required")
	}
	if c.Pipeline.PaceMS < 0 {
		return fmt.Errorf("pipeline.pace_ms must not be negative")
	}
	return nil
}
