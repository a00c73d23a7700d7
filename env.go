package main

import "github.com/caarlos0/env/v11"

// envConfig holds process-level knobs read from the environment before the
// configuration file is loaded.
type envConfig struct {
	Debug     bool   `env:"READALOUD_DEBUG"`
	LogStderr bool   `env:"READALOUD_LOG_STDERR"`
	LogFile   string `env:"READALOUD_LOG_FILE"`
	DotEnv    string `env:"READALOUD_DOTENV" envDefault:".env"`
}

func parseEnv() (envConfig, error) {
	return env.ParseAs[envConfig]()
}
