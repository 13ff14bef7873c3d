// Package config loads docscrape settings from defaults, an optional docscrape.yaml,
// a .env file and DOCSCRAPE_* environment variables, in increasing order of precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const envPrefix = "DOCSCRAPE"

type Config struct {
	OutputDir        string
	Concurrency      int
	FetchTimeout     time.Duration
	MaxBodyBytes     int64
	UserAgent        string
	ContentSelector  string
	PathPrefix       string
	IgnoreExtensions []string
	FrontMatter      bool

	LogLevel    string
	LogFile     string
	LogJSON     bool
	MetricsAddr string

	// Slack front-end
	SlackAppToken string
	SlackBotToken string
	DataDir       string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_dir", "documentation")
	v.SetDefault("concurrency", 4)
	v.SetDefault("fetch_timeout", "30s")
	v.SetDefault("max_body_bytes", 10<<20)
	v.SetDefault("user_agent", "docscrape/1.0 (+https://github.com/mempirate/docscrape)")
	v.SetDefault("content_selector", "main, article, [role='main']")
	v.SetDefault("path_prefix", "")
	v.SetDefault("ignore_extensions", ".jpg,.jpeg,.png,.gif,.svg,.webp,.ico,.bmp,.css,.js,.mjs,.map,.woff,.woff2,.ttf,.eot,.pdf,.zip,.gz,.tar,.tgz,.rar,.mp3,.mp4,.avi,.mov,.webm,.xml,.json")
	v.SetDefault("front_matter", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_json", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("data_dir", defaultDataDir())
}

// Load reads the configuration. configFile may be empty, in which case docscrape.yaml is
// looked up in the working directory and silently skipped when missing.
func Load(configFile string) (Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Slack tokens keep their conventional names.
	_ = v.BindEnv("slack_app_token", "SLACK_APP_TOKEN", envPrefix+"_SLACK_APP_TOKEN")
	_ = v.BindEnv("slack_bot_token", "SLACK_BOT_TOKEN", envPrefix+"_SLACK_BOT_TOKEN")

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("docscrape")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := Config{
		OutputDir:        v.GetString("output_dir"),
		Concurrency:      v.GetInt("concurrency"),
		FetchTimeout:     v.GetDuration("fetch_timeout"),
		MaxBodyBytes:     v.GetInt64("max_body_bytes"),
		UserAgent:        v.GetString("user_agent"),
		ContentSelector:  v.GetString("content_selector"),
		PathPrefix:       v.GetString("path_prefix"),
		IgnoreExtensions: stringSlice(v, "ignore_extensions"),
		FrontMatter:      v.GetBool("front_matter"),
		LogLevel:         v.GetString("log_level"),
		LogFile:          v.GetString("log_file"),
		LogJSON:          v.GetBool("log_json"),
		MetricsAddr:      v.GetString("metrics_addr"),
		SlackAppToken:    v.GetString("slack_app_token"),
		SlackBotToken:    v.GetString("slack_bot_token"),
		DataDir:          os.ExpandEnv(v.GetString("data_dir")),
	}

	return cfg, cfg.Validate()
}

// Validate checks the values a run cannot work without.
func (c Config) Validate() error {
	var problems []string

	if c.Concurrency < 1 {
		problems = append(problems, "concurrency must be at least 1")
	}
	if c.FetchTimeout <= 0 {
		problems = append(problems, "fetch_timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		problems = append(problems, "max_body_bytes must be positive")
	}
	if c.PathPrefix != "" && !strings.HasPrefix(c.PathPrefix, "/") {
		problems = append(problems, "path_prefix must start with /")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(problems, ", "))
	}

	return nil
}

// stringSlice accepts both YAML lists and comma separated strings (as found in env vars).
func stringSlice(v *viper.Viper, key string) []string {
	var raw []string
	switch val := v.Get(key).(type) {
	case string:
		raw = strings.Split(val, ",")
	default:
		raw = v.GetStringSlice(key)
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	return out
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "docscrape-data"
	}

	return filepath.Join(home, ".local", "share", "docscrape")
}
