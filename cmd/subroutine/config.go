package main

import (
	"github.com/artpar/subroutine/config"
)

// loadConfig loads --config when it exists, else the environment.
func loadConfig() (*config.Config, error) {
	return config.LoadWithFallback(cfgFile)
}
