package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Dataset DatasetConfig `yaml:"dataset" mapstructure:"dataset"`
	Browser BrowserConfig `yaml:"browser" mapstructure:"browser"`
	Site    SiteConfig    `yaml:"site" mapstructure:"site"`
	Walk    WalkConfig    `yaml:"walk" mapstructure:"walk"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DatasetConfig locates the canonical dataset file.
type DatasetConfig struct {
	Path            string `yaml:"path" mapstructure:"path"`
	LockStaleSecs   int    `yaml:"lock_stale_secs" mapstructure:"lock_stale_secs"`
	LockTimeoutSecs int    `yaml:"lock_timeout_secs" mapstructure:"lock_timeout_secs"`
}

// BrowserConfig configures the Chrome process and query timing.
type BrowserConfig struct {
	ExecPath            string `yaml:"exec_path" mapstructure:"exec_path"`
	Headless            bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent           string `yaml:"user_agent" mapstructure:"user_agent"`
	SelectorTimeoutSecs int    `yaml:"selector_timeout_secs" mapstructure:"selector_timeout_secs"`
	ResultTimeoutSecs   int    `yaml:"result_timeout_secs" mapstructure:"result_timeout_secs"`
	PageTimeoutSecs     int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	SettleMs            int    `yaml:"settle_ms" mapstructure:"settle_ms"`
	LaunchAttempts      int    `yaml:"launch_attempts" mapstructure:"launch_attempts"`
	LaunchBackoffMs     int    `yaml:"launch_backoff_ms" mapstructure:"launch_backoff_ms"`
	LabelsFile          string `yaml:"labels_file" mapstructure:"labels_file"`
}

// SiteConfig holds the URLs and selectors of the source website forms.
type SiteConfig struct {
	Code     CodeFormConfig     `yaml:"code" mapstructure:"code"`
	Locality LocalityFormConfig `yaml:"locality" mapstructure:"locality"`
}

// CodeFormConfig describes the direct postal-code form.
type CodeFormConfig struct {
	URL    string `yaml:"url" mapstructure:"url"`
	Input  string `yaml:"input" mapstructure:"input"`
	Submit string `yaml:"submit" mapstructure:"submit"`
	Result string `yaml:"result" mapstructure:"result"`
}

// LocalityFormConfig describes the region/locality form.
type LocalityFormConfig struct {
	URL           string `yaml:"url" mapstructure:"url"`
	RegionSelect  string `yaml:"region_select" mapstructure:"region_select"`
	LocalityInput string `yaml:"locality_input" mapstructure:"locality_input"`
	Submit        string `yaml:"submit" mapstructure:"submit"`
	LetterLink    string `yaml:"letter_link" mapstructure:"letter_link"`
	Letters       string `yaml:"letters" mapstructure:"letters"`
	Result        string `yaml:"result" mapstructure:"result"`
}

// WalkConfig configures the orchestrator.
type WalkConfig struct {
	DelayMs          int `yaml:"delay_ms" mapstructure:"delay_ms"`
	MaxPerMinute     int `yaml:"max_per_minute" mapstructure:"max_per_minute"`
	MaxResults       int `yaml:"max_results" mapstructure:"max_results"`
	CodeSeparatorPos int `yaml:"code_separator_pos" mapstructure:"code_separator_pos"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CEPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cepsync.db")
	v.SetDefault("dataset.path", "data/ceps.json")
	v.SetDefault("dataset.lock_stale_secs", 3600)
	v.SetDefault("dataset.lock_timeout_secs", 30)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.selector_timeout_secs", 10)
	v.SetDefault("browser.result_timeout_secs", 10)
	v.SetDefault("browser.page_timeout_secs", 60)
	v.SetDefault("browser.settle_ms", 1500)
	v.SetDefault("browser.launch_attempts", 2)
	v.SetDefault("browser.launch_backoff_ms", 2000)
	v.SetDefault("site.code.url", "https://buscacepinter.correios.com.br/app/endereco/index.php")
	v.SetDefault("site.code.input", "#endereco")
	v.SetDefault("site.code.submit", "#btn_pesquisar")
	v.SetDefault("site.code.result", "#resultado-DNEC")
	v.SetDefault("site.locality.url", "https://buscacepinter.correios.com.br/app/localidade_logradouro/index.php")
	v.SetDefault("site.locality.region_select", "#uf")
	v.SetDefault("site.locality.locality_input", "#localidade")
	v.SetDefault("site.locality.submit", "#btn_pesquisar")
	v.SetDefault("site.locality.result", "#resultado-DNEC")
	v.SetDefault("site.locality.letters", "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	v.SetDefault("walk.delay_ms", 2000)
	v.SetDefault("walk.max_per_minute", 0)
	v.SetDefault("walk.max_results", 100)
	v.SetDefault("walk.code_separator_pos", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by the given command group are
// present. Known groups: "collect", "dataset", "runs".
func (c *Config) Validate(mode string) error {
	var missing []string
	switch mode {
	case "collect":
		if c.Dataset.Path == "" {
			missing = append(missing, "dataset.path")
		}
		if c.Site.Code.URL == "" {
			missing = append(missing, "site.code.url")
		}
		if c.Site.Code.Input == "" {
			missing = append(missing, "site.code.input")
		}
		if c.Site.Code.Submit == "" {
			missing = append(missing, "site.code.submit")
		}
		if c.Walk.DelayMs < 0 {
			return eris.New("config: walk.delay_ms must not be negative")
		}
		if c.Walk.CodeSeparatorPos < 0 || c.Walk.CodeSeparatorPos > 8 {
			return eris.Errorf("config: walk.code_separator_pos %d out of range 0..8", c.Walk.CodeSeparatorPos)
		}
		if c.Store.Driver == "" {
			missing = append(missing, "store.driver")
		}
	case "dataset":
		if c.Dataset.Path == "" {
			missing = append(missing, "dataset.path")
		}
	case "runs":
		if c.Store.Driver == "" {
			missing = append(missing, "store.driver")
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.Errorf("config: missing required settings for %s: %s", mode, strings.Join(missing, ", "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
