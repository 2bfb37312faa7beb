package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/bootstrap"
	"github.com/artpar/subroutine/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve operations over HTTP",
	Long: `Start the operation server.

The server will:
  - Load configuration from subroutine.yaml (or --config)
  - Or load configuration from SUBROUTINE_* environment variables
  - Open the lookup database (memory, sqlite or postgres)
  - Register the account operations and load YAML definitions
  - Serve POST /ops/{name}, GET /ops and GET /health

Examples:
  subroutine serve
  subroutine serve --config /etc/subroutine/config.yaml
  subroutine serve --hot-reload=false

  # Docker (env vars only):
  SUBROUTINE_DATABASE_DRIVER=sqlite SUBROUTINE_DEFINITIONS_DIR=/ops subroutine serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload the log level and definitions when files change")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		var cfg *config.Config
		cfg, err = config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		app, err = bootstrap.New(cfg)
	}
	if err != nil {
		return err
	}

	return app.Run()
}
