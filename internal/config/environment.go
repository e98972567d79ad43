package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment APP_ENV, "local" when unset
func Environment() string {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env
	}
	return "local"
}

// ConfigPath MESSENGER_CONFIG when set, otherwise configs/config.<env>.yaml
func ConfigPath(env string) string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return fmt.Sprintf("configs/config.%s.yaml", env)
}

// dotEnvCandidates .env files for env in dir, highest priority first.
// .env.local is skipped under test so runs are reproducible.
func dotEnvCandidates(dir, env string) []string {
	names := []string{".env." + env + ".local", ".env.local", ".env." + env, ".env"}
	if env == "test" {
		names = []string{".env.test.local", ".env.test", ".env"}
	}
	paths := make([]string, 0, len(names))
	for _, n := range names {
		paths = append(paths, filepath.Join(dir, n))
	}
	return paths
}

// LoadDotEnv loads the existing .env files for env from dir.
// OS env vars always win; among files the first one listed by priority wins.
// Returns the files actually loaded.
func LoadDotEnv(dir, env string) ([]string, error) {
	var loaded []string
	for _, f := range dotEnvCandidates(dir, env) {
		if _, err := os.Stat(f); err == nil {
			loaded = append(loaded, f)
		}
	}
	if len(loaded) == 0 {
		return nil, nil
	}
	// godotenv.Load 는 이미 설정된 값을 덮어쓰지 않음
	if err := godotenv.Load(loaded...); err != nil {
		return loaded, fmt.Errorf("loading %v: %w", loaded, err)
	}
	return loaded, nil
}
