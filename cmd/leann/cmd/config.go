package cmd

import (
	"sync"

	"github.com/leanngo/leanngo/internal/config"
)

var (
	configOnce   sync.Once
	configLoaded *config.Config
	configErr    error
)

// loadedConfig loads the effective configuration (defaults, user config,
// project .leann.yaml, then LEANN_* env overrides) once per process, rooted
// at the project directory discovered from the current working directory.
func loadedConfig() (*config.Config, error) {
	configOnce.Do(func() {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			configErr = err
			return
		}
		configLoaded, configErr = config.Load(root)
	})
	return configLoaded, configErr
}
