package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Strategy names as they appear in scraper.strategy_order and in per-company overrides.
const (
	StrategyATS        = "ats"
	StrategyStructured = "structured"
	StrategyEmbedded   = "embedded"
	StrategyPattern    = "pattern"
	StrategyLLM        = "llm"
	StrategyBrowser    = "browser"
)

// DefaultStrategyOrder runs the cheapest and most reliable techniques first.
var DefaultStrategyOrder = []string{
	StrategyATS,
	StrategyStructured,
	StrategyEmbedded,
	StrategyPattern,
	StrategyLLM,
	StrategyBrowser,
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port            int           `yaml:"port" validate:"min=1,max=65535"`
		Host            string        `yaml:"host"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		IdleTimeout     time.Duration `yaml:"idle_timeout"`
		RequestTimeout  time.Duration `yaml:"request_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		MaxBodySize     string        `yaml:"max_body_size"`
	} `yaml:"server"`

	Workers struct {
		MaxConcurrent     int           `yaml:"max_concurrent" validate:"min=1"`
		BatchSize         int           `yaml:"batch_size" validate:"min=1"`
		BatchDelay        time.Duration `yaml:"batch_delay"`
		RequestsPerMinute int           `yaml:"requests_per_minute" validate:"min=1"`
		Burst             int           `yaml:"burst" validate:"min=1"`
		RequestTimeout    time.Duration `yaml:"request_timeout" validate:"gt=0"`
		CompanyTimeout    time.Duration `yaml:"company_timeout" validate:"gt=0"`
		MaxRetries        int           `yaml:"max_retries" validate:"min=0"`
		RetryBackoff      time.Duration `yaml:"retry_backoff"`
		CircuitThreshold  int           `yaml:"circuit_threshold"`
		CircuitCooldown   time.Duration `yaml:"circuit_cooldown"`
	} `yaml:"workers"`

	Scraper struct {
		UserAgent        string        `yaml:"user_agent"`
		MaxResponseBytes int64         `yaml:"max_response_bytes" validate:"min=1024"`
		StrategyOrder    []string      `yaml:"strategy_order" validate:"dive,oneof=ats structured embedded pattern llm browser"`
		MaxPatternJobs   int           `yaml:"max_pattern_jobs" validate:"min=1"`
		PageCacheTTL     time.Duration `yaml:"page_cache_ttl"`
		EmbeddedMaxDepth int           `yaml:"embedded_max_depth" validate:"min=1"`
	} `yaml:"scraper"`

	LLM struct {
		Provider      string        `yaml:"provider" validate:"omitempty,oneof=groq ollama claude"`
		Fallback      string        `yaml:"fallback" validate:"omitempty,oneof=groq ollama claude"`
		MaxTokens     int           `yaml:"max_tokens"`
		Temperature   float32       `yaml:"temperature"`
		Timeout       time.Duration `yaml:"timeout"`
		MaxHTMLChars  int           `yaml:"max_html_chars"`
		MaxJobs       int           `yaml:"max_jobs"`
		MinConfidence float64       `yaml:"min_confidence" validate:"min=0,max=1"`

		Groq struct {
			APIKey  string `yaml:"api_key"`
			BaseURL string `yaml:"base_url"`
			Model   string `yaml:"model"`
		} `yaml:"groq"`

		Ollama struct {
			BaseURL string `yaml:"base_url"`
			Model   string `yaml:"model"`
		} `yaml:"ollama"`

		Claude struct {
			APIKey string `yaml:"api_key"`
			Model  string `yaml:"model"`
		} `yaml:"claude"`
	} `yaml:"llm"`

	Browser struct {
		Enabled           bool          `yaml:"enabled"`
		Headless          bool          `yaml:"headless"`
		Stealth           bool          `yaml:"stealth"`
		BinPath           string        `yaml:"bin_path"`
		NavigationTimeout time.Duration `yaml:"navigation_timeout"`
		DefaultWait       time.Duration `yaml:"default_wait"`
		ScrollSteps       int           `yaml:"scroll_steps"`
		ScrollDelay       time.Duration `yaml:"scroll_delay"`
	} `yaml:"browser"`

	Firecrawl struct {
		APIKey string `yaml:"api_key"`
		APIURL string `yaml:"api_url"`
	} `yaml:"firecrawl"`

	Captcha struct {
		Enabled bool          `yaml:"enabled"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"captcha"`

	Dedup struct {
		SimilarityThreshold float64       `yaml:"similarity_threshold" validate:"gt=0,lte=1"`
		TimeWindow          time.Duration `yaml:"time_window" validate:"gt=0"`
		UseRedis            bool          `yaml:"use_redis"`
		RedisPrefix         string        `yaml:"redis_prefix"`
	} `yaml:"dedup"`

	Store struct {
		MaxJobs int           `yaml:"max_jobs" validate:"min=0"`
		MaxAge  time.Duration `yaml:"max_age"`
	} `yaml:"store"`

	Health struct {
		HealthyThreshold  float64 `yaml:"healthy_threshold" validate:"min=0,max=1"`
		DegradedThreshold float64 `yaml:"degraded_threshold" validate:"min=0,max=1"`
	} `yaml:"health"`

	Redis struct {
		URL      string        `yaml:"url"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"redis"`

	Scheduler struct {
		Enabled       bool   `yaml:"enabled"`
		Spec          string `yaml:"spec"`
		CompaniesFile string `yaml:"companies_file"`
		RunOnStart    bool   `yaml:"run_on_start"`
	} `yaml:"scheduler"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

var (
	bracedVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVarPattern   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars expands ${VAR} and $VAR references, leaving unknown variables untouched
func expandEnvVars(s string) string {
	s = bracedVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})

	return bareVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[1:]); val != "" {
			return val
		}
		return match
	})
}

// Default returns a configuration populated with built-in defaults only
func Default() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 10 * time.Minute
	config.Server.IdleTimeout = 60 * time.Second
	config.Server.RequestTimeout = 10 * time.Minute
	config.Server.ShutdownTimeout = 30 * time.Second
	config.Server.AllowedOrigins = []string{"*"}
	config.Server.MaxBodySize = "1M"

	config.Workers.MaxConcurrent = 5
	config.Workers.BatchSize = 10
	config.Workers.BatchDelay = 0
	config.Workers.RequestsPerMinute = 60
	config.Workers.Burst = 10
	config.Workers.RequestTimeout = 30 * time.Second
	config.Workers.CompanyTimeout = 2 * time.Minute
	config.Workers.MaxRetries = 2
	config.Workers.RetryBackoff = time.Second
	config.Workers.CircuitThreshold = 5
	config.Workers.CircuitCooldown = time.Minute

	config.Scraper.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Scraper.MaxResponseBytes = 10 << 20
	config.Scraper.StrategyOrder = append([]string(nil), DefaultStrategyOrder...)
	config.Scraper.MaxPatternJobs = 20
	config.Scraper.PageCacheTTL = time.Minute
	config.Scraper.EmbeddedMaxDepth = 12

	config.LLM.Provider = "groq"
	config.LLM.Fallback = "ollama"
	config.LLM.MaxTokens = 4096
	config.LLM.Temperature = 0.1
	config.LLM.Timeout = 60 * time.Second
	config.LLM.MaxHTMLChars = 60000
	config.LLM.MaxJobs = 20
	config.LLM.MinConfidence = 0.3
	config.LLM.Groq.BaseURL = "https://api.groq.com/openai/v1"
	config.LLM.Groq.Model = "llama-3.3-70b-versatile"
	config.LLM.Ollama.Model = "llama3.1"
	config.LLM.Claude.Model = "claude-3-5-haiku-latest"

	config.Browser.Enabled = true
	config.Browser.Headless = true
	config.Browser.Stealth = true
	config.Browser.NavigationTimeout = 45 * time.Second
	config.Browser.DefaultWait = 3 * time.Second
	config.Browser.ScrollSteps = 5
	config.Browser.ScrollDelay = 400 * time.Millisecond

	config.Firecrawl.APIURL = "https://api.firecrawl.dev"

	config.Captcha.Timeout = 120 * time.Second

	config.Dedup.SimilarityThreshold = 0.85
	config.Dedup.TimeWindow = 168 * time.Hour
	config.Dedup.RedisPrefix = "harvest:seen:"

	config.Store.MaxJobs = 50000
	config.Store.MaxAge = 30 * 24 * time.Hour

	config.Health.HealthyThreshold = 0.8
	config.Health.DegradedThreshold = 0.5

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second

	config.Scheduler.Spec = "@every 6h"
	config.Scheduler.CompaniesFile = "configs/companies.yaml"
	config.Scheduler.RunOnStart = true

	config.Logging.Level = "info"
	config.Logging.Format = "json"
	config.Logging.Output = "stdout"

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	config.loadFromEnv()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks struct constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Health.DegradedThreshold > c.Health.HealthyThreshold {
		return fmt.Errorf("invalid configuration: health.degraded_threshold (%.2f) exceeds health.healthy_threshold (%.2f)",
			c.Health.DegradedThreshold, c.Health.HealthyThreshold)
	}
	return nil
}

// StrategyEnabled reports whether the named strategy appears in the global order
func (c *Config) StrategyEnabled(name string) bool {
	for _, s := range c.Scraper.StrategyOrder {
		if s == name {
			return true
		}
	}
	return false
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}

	if v := os.Getenv("MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers.MaxConcurrent = n
		}
	}

	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers.RequestsPerMinute = n
		}
	}

	if v := os.Getenv("STRATEGY_ORDER"); v != "" {
		var order []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				order = append(order, s)
			}
		}
		c.Scraper.StrategyOrder = order
	}

	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		c.LLM.Provider = provider
	}

	if fallback := os.Getenv("LLM_FALLBACK_PROVIDER"); fallback != "" {
		c.LLM.Fallback = fallback
	}

	if apiKey := os.Getenv("GROQ_API_KEY"); apiKey != "" {
		c.LLM.Groq.APIKey = apiKey
	}

	if model := os.Getenv("GROQ_MODEL"); model != "" {
		c.LLM.Groq.Model = model
	}

	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		c.LLM.Ollama.BaseURL = baseURL
	}

	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.LLM.Ollama.Model = model
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		c.LLM.Claude.APIKey = apiKey
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}

	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	if captchaAPIKey := os.Getenv("CAPTCHA_API_KEY"); captchaAPIKey != "" {
		c.Captcha.APIKey = captchaAPIKey
		c.Captcha.Enabled = true
	}

	// Also support 2CAPTCHA_API_KEY for compatibility
	if captchaAPIKey := os.Getenv("2CAPTCHA_API_KEY"); captchaAPIKey != "" {
		c.Captcha.APIKey = captchaAPIKey
		c.Captcha.Enabled = true
	}

	if firecrawlAPIKey := os.Getenv("FIRECRAWL_API_KEY"); firecrawlAPIKey != "" {
		c.Firecrawl.APIKey = firecrawlAPIKey
	}

	if firecrawlAPIURL := os.Getenv("FIRECRAWL_API_URL"); firecrawlAPIURL != "" {
		c.Firecrawl.APIURL = firecrawlAPIURL
	}

	if v := os.Getenv("BROWSER_ENABLED"); v != "" {
		c.Browser.Enabled = v == "true" || v == "1"
	}

	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		c.Browser.BinPath = bin
	}

	if v := os.Getenv("DEDUP_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Dedup.SimilarityThreshold = f
		}
	}

	if v := os.Getenv("DEDUP_TIME_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Dedup.TimeWindow = d
		}
	}

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.URL = redisURL
	}

	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		c.Redis.Password = redisPassword
	}

	if redisDB := os.Getenv("REDIS_DB"); redisDB != "" {
		if db, err := strconv.Atoi(redisDB); err == nil {
			c.Redis.DB = db
		}
	}

	if v := os.Getenv("SCHEDULER_ENABLED"); v != "" {
		c.Scheduler.Enabled = v == "true" || v == "1"
	}

	if spec := os.Getenv("SCHEDULER_SPEC"); spec != "" {
		c.Scheduler.Spec = spec
	}

	if file := os.Getenv("COMPANIES_FILE"); file != "" {
		c.Scheduler.CompaniesFile = file
	}
}
