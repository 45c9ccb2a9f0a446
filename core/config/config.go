package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)

	dotenvOnce sync.Once
)

// Load parses environment variables into cfg. The result is cached per
// concrete type: subsequent calls for the same type return the cached value
// without re-reading the environment. A .env file in the working directory,
// if present, is loaded once before the first parse.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		// Absence of a .env file is the normal case.
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	cacheMu.RLock()
	if cached, ok := cache[typ]; ok {
		cacheMu.RUnlock()
		*cfg = cached.(T)
		return nil
	}
	cacheMu.RUnlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", typ, err)
	}

	cacheMu.Lock()
	cache[typ] = *cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad is like Load but panics on failure. Intended for application
// startup where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
