package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names an optional YAML file read before the environment.
const PathEnv = "CONFIG_PATH"

type Reader interface {
	Read() (*Config, error)
}

type EnvReader struct{}

func NewEnvReader() EnvReader {
	return EnvReader{}
}

func (EnvReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadEnv(cfg)
	if err != nil {
		return nil, err
	}
	return cfg, validate(cfg)
}

// FileReader reads a YAML file and lets the environment override it.
type FileReader struct {
	path string
}

func NewFileReader(path string) FileReader {
	return FileReader{path: path}
}

func (r FileReader) Read() (*Config, error) {
	cfg := new(Config)
	err := cleanenv.ReadConfig(r.path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, validate(cfg)
}

// NewReader returns a FileReader when CONFIG_PATH is set and an EnvReader
// otherwise.
func NewReader() Reader {
	if path := os.Getenv(PathEnv); path != "" {
		return NewFileReader(path)
	}
	return NewEnvReader()
}

func validate(cfg *Config) error {
	switch cfg.Env {
	case EnvDev, EnvProd, EnvLocal:
	default:
		return fmt.Errorf("unknown env: %q", cfg.Env)
	}

	switch cfg.DocStore.Driver {
	case DocStoreMemory, DocStorePostgres, DocStoreMongo:
	default:
		return fmt.Errorf("unknown docstore driver: %q", cfg.DocStore.Driver)
	}

	if cfg.App.ViewTTL <= 0 {
		return fmt.Errorf("view ttl must be positive: %s", cfg.App.ViewTTL)
	}
	return nil
}
