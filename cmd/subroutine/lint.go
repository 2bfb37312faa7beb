package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/app/accounts"
	"github.com/artpar/subroutine/bootstrap"
	"github.com/artpar/subroutine/core/schema"
)

var lintCmd = &cobra.Command{
	Use:   "lint [dir]",
	Short: "Check operation definition files",
	Long: `Parse and compile every YAML definition in a directory.

Each file is checked on its own, then all definitions are compiled
together with the built-in operations so references between them
(extends, fields_from) resolve.

The directory defaults to definitions.dir from the config file.

Examples:
  subroutine lint ops/
  subroutine lint ops/ --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLint,
}

var (
	lintWatch bool
)

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().BoolVarP(&lintWatch, "watch", "w", false, "re-run when definition files change")
}

// builtinSchemas are the operations defined in code that definitions may
// reference.
func builtinSchemas() []*schema.Schema {
	return []*schema.Schema{
		accounts.SignupSchema,
		accounts.AdminSignupSchema,
		accounts.BusinessSignupSchema,
	}
}

func runLint(cmd *cobra.Command, args []string) error {
	dir, err := definitionsDir(args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	run := func() error {
		report, err := lintDir(dir)
		if err != nil {
			return err
		}
		report.print(out)
		if report.failed() {
			return fmt.Errorf("%d definition problems", len(report.problems))
		}
		return nil
	}

	err = run()
	if !lintWatch {
		return err
	}

	w, werr := bootstrap.NewDefinitionWatcher(dir, zerolog.Nop(), func() error {
		fmt.Fprintln(out)
		if err := run(); err != nil {
			fmt.Fprintf(out, "%v\n", err)
		}
		return nil
	})
	if werr != nil {
		return werr
	}
	defer w.Close()

	fmt.Fprintf(out, "\nWatching %s (Ctrl-C to stop)\n", dir)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	return nil
}

func definitionsDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Definitions.Dir == "" {
		return "", fmt.Errorf("no definitions dir given and none configured in %s", cfgFile)
	}
	return cfg.Definitions.Dir, nil
}

type lintProblem struct {
	file string
	err  error
}

type lintReport struct {
	files    []string
	names    []string
	problems []lintProblem
}

func (r lintReport) failed() bool { return len(r.problems) > 0 }

func (r lintReport) print(w io.Writer) {
	bad := make(map[string]bool, len(r.problems))
	for _, p := range r.problems {
		bad[p.file] = true
	}
	for _, f := range r.files {
		if !bad[f] {
			fmt.Fprintf(w, "  %s %s\n", checkMark, f)
		}
	}
	for _, p := range r.problems {
		fmt.Fprintf(w, "  %s %s\n      %v\n", crossMark, p.file, p.err)
	}
	fmt.Fprintf(w, "\n%d definitions, %d problems\n", len(r.names), len(r.problems))
}

// lintDir checks every definition file under dir. Only a failure to read
// the directory is returned as an error; problems with definitions are in
// the report.
func lintDir(dir string) (lintReport, error) {
	var report lintReport
	var defs []schema.Definition

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !schema.IsDefinitionFile(path) {
			return nil
		}
		report.files = append(report.files, path)

		def, err := schema.ParseFile(path)
		if err != nil {
			report.problems = append(report.problems, lintProblem{file: path, err: err})
			return nil
		}
		defs = append(defs, def)
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("read definitions: %w", err)
	}

	if report.failed() {
		return report, nil
	}

	if _, err := schema.Compile(defs, builtinSchemas()...); err != nil {
		report.problems = append(report.problems, lintProblem{file: dir, err: err})
		return report, nil
	}
	for _, d := range defs {
		report.names = append(report.names, d.Name)
	}
	return report, nil
}
