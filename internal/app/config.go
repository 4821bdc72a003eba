package app

import (
	_ "github.com/joho/godotenv/autoload"

	"github.com/adanyl0v/tasks-plus/internal/config"
)

func MustReadConfig() {
	cfg, err := config.NewReader().Read()
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to read config")
		panic(err)
	}
	globalLogger.Info().
		Str("env", cfg.Env).
		Str("docstore", cfg.DocStore.Driver).
		Msg("read config")

	config.SetGlobal(cfg)
}
