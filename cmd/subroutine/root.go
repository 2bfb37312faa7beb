package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "subroutine",
	Short: "Declare, check and serve input-validating operations",
	Long: `Subroutine runs operations: typed input fields, validations, and
declared outputs, defined in Go or in YAML definition files.

Definitions:
  subroutine lint ops/           # Check definition files
  subroutine describe signup     # Show an operation's fields and outputs
  subroutine cast integer "42"   # Try a field type cast

Running:
  subroutine serve               # Serve operations over HTTP
  subroutine exec signup -d '{"email":"a@b.com","password":"secret"}'
  subroutine token 1             # Issue a bearer token for user 1`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "subroutine.yaml", "config file path")
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
