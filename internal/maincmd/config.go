package maincmd

import "github.com/caarlos0/env/v6"

// Config holds the environment-only settings that aren't exposed as CLI
// flags (§10.2): the terminal width used by the output formatter's line
// wrapper, the command-line word-count ceiling, and the save-session
// location used by `run` (§6, §10.8).
type Config struct {
	LineWidth       int    `env:"ALO_LINE_WIDTH" envDefault:"80"`
	MaxCommandWords int    `env:"ALO_MAX_COMMAND_WORDS" envDefault:"50"`
	SaveDir         string `env:"ALO_SAVE_DIR" envDefault:"."`
	SaveSlot        int    `env:"ALO_SAVE_SLOT" envDefault:"1"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
