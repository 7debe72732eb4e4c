// Package config assembles application settings from defaults, an optional
// YAML file, a .env file, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// SettingsFileName is the YAML settings file looked up in the working directory.
const SettingsFileName = "gitsum.yaml"

const environmentFileName = ".env"

// Built-in defaults applied before any file or environment override.
const (
	DefaultOpenAIModel      = "gpt-4o-mini"
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultGitHubAPIBase    = "https://api.github.com"
	DefaultGitHubRawBase    = "https://raw.githubusercontent.com"
	DefaultMaxContentChars  = int64(100000)
	DefaultFileContentCap   = 50000
	DefaultGitHubTimeout    = 30 * time.Second
	DefaultLLMTimeout       = 120 * time.Second
	DefaultFetchConcurrency = 8
	DefaultCacheTTL         = 24 * time.Hour
	DefaultHost             = "0.0.0.0"
	DefaultPort             = 8000
)

// Environment variable names recognized by Load.
const (
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvOpenAIModel   = "OPENAI_MODEL"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvCachePath     = "GITSUM_CACHE_PATH"
	EnvHost          = "GITSUM_HOST"
	EnvPort          = "GITSUM_PORT"
)

// LoadOptions controls how settings are discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// Settings holds every tunable used by the summarization pipeline and service.
type Settings struct {
	OpenAIAPIKey     string        `mapstructure:"openai_api_key"`
	OpenAIBaseURL    string        `mapstructure:"openai_base_url"`
	OpenAIModel      string        `mapstructure:"openai_model"`
	GitHubToken      string        `mapstructure:"github_token"`
	GitHubAPIBase    string        `mapstructure:"github_api_base"`
	GitHubRawBase    string        `mapstructure:"github_raw_base"`
	MaxContentChars  int64         `mapstructure:"max_content_chars"`
	FileContentCap   int           `mapstructure:"file_content_cap"`
	GitHubTimeout    time.Duration `mapstructure:"github_timeout"`
	LLMTimeout       time.Duration `mapstructure:"llm_timeout"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	CachePath        string        `mapstructure:"cache_path"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
}

// DefaultSettings returns the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		OpenAIBaseURL:    DefaultOpenAIBaseURL,
		OpenAIModel:      DefaultOpenAIModel,
		GitHubAPIBase:    DefaultGitHubAPIBase,
		GitHubRawBase:    DefaultGitHubRawBase,
		MaxContentChars:  DefaultMaxContentChars,
		FileContentCap:   DefaultFileContentCap,
		GitHubTimeout:    DefaultGitHubTimeout,
		LLMTimeout:       DefaultLLMTimeout,
		FetchConcurrency: DefaultFetchConcurrency,
		CacheTTL:         DefaultCacheTTL,
		Host:             DefaultHost,
		Port:             DefaultPort,
	}
}

// Address returns the host:port pair the HTTP service binds to.
func (settings Settings) Address() string {
	return fmt.Sprintf("%s:%d", settings.Host, settings.Port)
}

// Load assembles settings in ascending precedence: defaults, then the YAML
// settings file when one exists, then environment variables. A .env file in
// the working directory is loaded first and never overwrites variables that
// are already set.
func Load(options LoadOptions) (Settings, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return Settings{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	_ = godotenv.Load(filepath.Join(workingDirectory, environmentFileName))

	settingsPath := options.ExplicitFilePath
	if settingsPath == "" {
		settingsPath = filepath.Join(workingDirectory, SettingsFileName)
	} else if !filepath.IsAbs(settingsPath) {
		settingsPath = filepath.Join(workingDirectory, settingsPath)
	}

	settings, loadErr := loadSettingsFromPath(settingsPath)
	if loadErr != nil {
		return Settings{}, loadErr
	}
	if overrideErr := applyEnvironmentOverrides(&settings); overrideErr != nil {
		return Settings{}, overrideErr
	}
	if validateErr := settings.Validate(); validateErr != nil {
		return Settings{}, validateErr
	}
	return settings, nil
}

func loadSettingsFromPath(path string) (Settings, error) {
	reader := viper.New()
	reader.SetDefault("openai_base_url", DefaultOpenAIBaseURL)
	reader.SetDefault("openai_model", DefaultOpenAIModel)
	reader.SetDefault("github_api_base", DefaultGitHubAPIBase)
	reader.SetDefault("github_raw_base", DefaultGitHubRawBase)
	reader.SetDefault("max_content_chars", DefaultMaxContentChars)
	reader.SetDefault("file_content_cap", DefaultFileContentCap)
	reader.SetDefault("github_timeout", DefaultGitHubTimeout)
	reader.SetDefault("llm_timeout", DefaultLLMTimeout)
	reader.SetDefault("fetch_concurrency", DefaultFetchConcurrency)
	reader.SetDefault("cache_ttl", DefaultCacheTTL)
	reader.SetDefault("host", DefaultHost)
	reader.SetDefault("port", DefaultPort)

	info, statErr := os.Stat(path)
	switch {
	case statErr != nil && os.IsNotExist(statErr):
		// Missing settings files contribute nothing.
	case statErr != nil:
		return Settings{}, fmt.Errorf("stat settings %s: %w", path, statErr)
	case info.IsDir():
		return Settings{}, fmt.Errorf("settings path %s is a directory", path)
	default:
		reader.SetConfigFile(path)
		if readErr := reader.ReadInConfig(); readErr != nil {
			return Settings{}, fmt.Errorf("read settings from %s: %w", path, readErr)
		}
	}

	var settings Settings
	if decodeErr := reader.Unmarshal(&settings); decodeErr != nil {
		return Settings{}, fmt.Errorf("decode settings from %s: %w", path, decodeErr)
	}
	return settings, nil
}

func applyEnvironmentOverrides(settings *Settings) error {
	if value, present := os.LookupEnv(EnvOpenAIAPIKey); present {
		settings.OpenAIAPIKey = value
	}
	if value, present := os.LookupEnv(EnvOpenAIBaseURL); present {
		settings.OpenAIBaseURL = value
	}
	if value, present := os.LookupEnv(EnvOpenAIModel); present {
		settings.OpenAIModel = value
	}
	if value, present := os.LookupEnv(EnvGitHubToken); present {
		settings.GitHubToken = value
	}
	if value, present := os.LookupEnv(EnvCachePath); present {
		settings.CachePath = value
	}
	if value, present := os.LookupEnv(EnvHost); present {
		settings.Host = value
	}
	if value, present := os.LookupEnv(EnvPort); present {
		port, parseErr := strconv.Atoi(value)
		if parseErr != nil {
			return fmt.Errorf("parse %s value %q: %w", EnvPort, value, parseErr)
		}
		settings.Port = port
	}
	return nil
}

// Validate rejects settings no component can operate with.
func (settings Settings) Validate() error {
	if settings.Port < 1 || settings.Port > 65535 {
		return fmt.Errorf("port %d outside valid range", settings.Port)
	}
	if settings.MaxContentChars <= 0 {
		return fmt.Errorf("max content chars must be positive, got %d", settings.MaxContentChars)
	}
	if settings.FileContentCap <= 0 {
		return fmt.Errorf("file content cap must be positive, got %d", settings.FileContentCap)
	}
	if settings.FetchConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1, got %d", settings.FetchConcurrency)
	}
	return nil
}
