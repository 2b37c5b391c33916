package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

func LoadFromEnv() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}
	return Load(FromEnviron())
}

// LoadFromFile reads an explicit env file into the process environment,
// without overriding variables that are already set, and then loads Config.
func LoadFromFile(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return LoadFromEnv()
}
