package config

import (
	"io/fs"

	autherrors "github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	ProviderConfig
	TimerConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetStorePath() string
}

type mainConfig struct {
	EnvVars
	Provider
	Timers
}

func New() Config {
	return mainConfig{}
}

// Load reads the optional .env files before returning the configuration.
// Variables already present in the environment win over file values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !autherrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return New(), nil
}
