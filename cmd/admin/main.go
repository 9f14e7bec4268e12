package main

import (
	"os"

	"github.com/evandrarf/neurocase-be/database"
	"github.com/evandrarf/neurocase-be/internal/config"
)

func main() {
	viperConfig := config.NewViper()
	log := config.NewLogger(viperConfig)

	env := &adminEnv{
		DB:     database.New(viperConfig),
		Config: viperConfig,
		Log:    log,
		Out:    os.Stdout,
	}

	if err := newRootCmd(env).Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
