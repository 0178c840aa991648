// Package fixconfig loads session configuration from a YAML file into
// a caller-chosen struct, then runs fixsession.Config's own validation
// if the caller asks for one. Grounded on the teacher's
// services/marketfeeds/common/cfg.MustLoad[T], generalized to take an
// explicit path and return an error instead of panicking — a library
// should never decide its caller's process should die.
package fixconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/finalex-io/fixgo/pkg/fixsession"
)

// Load reads the YAML file at path and unmarshals it into a fresh T.
func Load[T any](path string) (*T, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(configTypeOf(path))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("fixconfig: reading %s: %w", path, err)
	}

	var out T
	if err := v.Unmarshal(&out); err != nil {
		return nil, fmt.Errorf("fixconfig: unmarshaling %s: %w", path, err)
	}
	return &out, nil
}

// LoadSessionConfig reads path into a fixsession.Config and validates
// it, returning the same error Start would return for a bad config.
func LoadSessionConfig(path string) (fixsession.Config, error) {
	cfg, err := Load[fixsession.Config](path)
	if err != nil {
		return fixsession.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return fixsession.Config{}, err
	}
	return *cfg, nil
}

func configTypeOf(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "yaml"
	}
	return ext
}
