package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/bootstrap"
	"github.com/artpar/subroutine/core/record"
	"github.com/artpar/subroutine/core/runtime"
)

var execCmd = &cobra.Command{
	Use:   "exec <operation>",
	Short: "Run one operation and print its outputs",
	Long: `Run an operation in-process with the configured database and
definitions, and print its outputs or errors as JSON.

Input is a JSON object given with --data, or read from stdin with --data -.

Examples:
  subroutine exec signup -d '{"email":"a@b.com","password":"secret"}'
  echo '{"name":"doug"}' | subroutine exec greet -d -
  subroutine exec whoami --user 1`,
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

var (
	execData string
	execUser int64
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().StringVarP(&execData, "data", "d", "", "input as a JSON object, or - for stdin")
	execCmd.Flags().Int64Var(&execUser, "user", 0, "ID of the current user")
}

type execResult struct {
	Op       string              `json:"op"`
	OK       bool                `json:"ok"`
	Outputs  map[string]any      `json:"outputs,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Messages []string            `json:"messages,omitempty"`
}

func runExec(cmd *cobra.Command, args []string) error {
	data, err := execInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.NewWithOptions(cfg, bootstrap.Options{LogOutput: os.Stderr})
	if err != nil {
		return err
	}
	defer app.Shutdown()

	in := runtime.Input{Data: data, Channel: "cli"}
	if execUser != 0 {
		in.User = execUser
	}

	res, err := app.Runtime.Execute(cmd.Context(), args[0], in)
	if err != nil {
		if _, failed := record.AsBearer(err); !failed {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(execResult{
		Op:       res.Op,
		OK:       err == nil,
		Outputs:  res.Outputs,
		Errors:   res.Errors,
		Messages: res.Messages,
	}); encErr != nil {
		return encErr
	}
	if err != nil {
		return fmt.Errorf("%s failed", args[0])
	}
	return nil
}

func execInput(stdin io.Reader) (map[string]any, error) {
	raw := execData
	if raw == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		raw = string(b)
	}
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return data, nil
}
