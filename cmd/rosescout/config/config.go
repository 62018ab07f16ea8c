package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config controls the rosescout server runtime.
type Config struct {
	Addr              string
	Provider          string
	Model             string
	PromptDir         string
	DefaultPrompt     string
	MaxToolTurns      int
	ShutdownSeconds   int
	RequestLogVerbose bool
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	maxToolTurns, err := intEnvStrict("ROSESCOUT_MAX_TOOL_TURNS", 8)
	if err != nil {
		return Config{}, err
	}
	shutdownSeconds, err := intEnvStrict("ROSESCOUT_SHUTDOWN_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	verbose, err := boolEnvStrict("ROSESCOUT_LOG_VERBOSE", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:              trimmedEnv("ROSESCOUT_ADDR"),
		Provider:          strings.ToLower(trimmedEnv("ROSESCOUT_PROVIDER")),
		Model:             trimmedEnv("ROSESCOUT_MODEL"),
		PromptDir:         trimmedEnv("ROSESCOUT_PROMPT_DIR"),
		DefaultPrompt:     trimmedEnv("ROSESCOUT_DEFAULT_PROMPT"),
		MaxToolTurns:      maxToolTurns,
		ShutdownSeconds:   shutdownSeconds,
		RequestLogVerbose: verbose,
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Provider == "" {
		cfg.Provider = "gemini"
	}
	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = "entity-search"
	}

	switch cfg.Provider {
	case "gemini", "anthropic":
	default:
		return Config{}, fmt.Errorf("config: invalid ROSESCOUT_PROVIDER %q: expected gemini or anthropic", cfg.Provider)
	}
	if cfg.MaxToolTurns <= 0 {
		return Config{}, errors.New("config: ROSESCOUT_MAX_TOOL_TURNS must be greater than 0")
	}
	if cfg.ShutdownSeconds <= 0 {
		return Config{}, errors.New("config: ROSESCOUT_SHUTDOWN_SECONDS must be greater than 0")
	}
	return cfg, nil
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func intEnvStrict(key string, fallback int) (int, error) {
	value := trimmedEnv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return parsed, nil
}

func boolEnvStrict(key string, fallback bool) (bool, error) {
	value := strings.ToLower(trimmedEnv(key))
	if value == "" {
		return fallback, nil
	}
	switch value {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("config: invalid %s: expected true/false", key)
	}
}
