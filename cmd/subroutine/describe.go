package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/core/schema"
)

var describeCmd = &cobra.Command{
	Use:   "describe [operation]",
	Short: "Show the fields and outputs of operations",
	Long: `Describe an operation: its fields with their types, defaults, groups
and assignment rules, its outputs, and its validation rules.

Without an operation name, list every known operation. Definitions are
read from --dir, else from definitions.dir in the config file.

Examples:
  subroutine describe
  subroutine describe signup
  subroutine describe business_signup --dir ops/ --dump`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDescribe,
}

var (
	describeDir  string
	describeDump bool
)

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().StringVar(&describeDir, "dir", "", "definitions directory")
	describeCmd.Flags().BoolVar(&describeDump, "dump", false, "dump the full field declarations")
}

func runDescribe(cmd *cobra.Command, args []string) error {
	schemas, err := knownSchemas()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		listSchemas(out, schemas)
		return nil
	}

	s, ok := schemas[args[0]]
	if !ok {
		return fmt.Errorf("operation %q not found", args[0])
	}
	describeSchema(out, s)
	if describeDump {
		dump := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableMethods: true}
		fmt.Fprintln(out)
		for _, f := range s.Fields() {
			fmt.Fprintf(out, "%s: %s", f.Name(), dump.Sdump(f.Options()))
		}
	}
	return nil
}

// knownSchemas returns the built-in schemas plus the compiled definitions
// of the configured or given directory.
func knownSchemas() (map[string]*schema.Schema, error) {
	dir := describeDir
	if dir == "" {
		if cfg, err := loadConfig(); err == nil {
			dir = cfg.Definitions.Dir
		}
	}

	var defs []schema.Definition
	if dir != "" {
		var err error
		if defs, err = schema.ParseDir(dir); err != nil {
			return nil, err
		}
	}
	return schema.Compile(defs, builtinSchemas()...)
}

func listSchemas(out io.Writer, schemas map[string]*schema.Schema) {
	names := make([]string, 0, len(schemas))
	for n := range schemas {
		names = append(names, n)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tFIELDS\tOUTPUTS")
	fmt.Fprintln(w, "---------\t------\t-------")
	for _, n := range names {
		s := schemas[n]
		fmt.Fprintf(w, "%s\t%d\t%d\n", n, len(s.Fields()), len(s.Outputs()))
	}
	w.Flush()
}

func describeSchema(out io.Writer, s *schema.Schema) {
	fmt.Fprintf(out, "Operation: %s\n\n", s.Name())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tTYPE\tBEHAVIOR\tDEFAULT\tGROUPS\tASSIGNABLE\tAKA")
	fmt.Fprintln(w, "-----\t----\t--------\t-------\t------\t----------\t---")
	for _, f := range s.Fields() {
		def := "-"
		if v, ok := f.Default(); ok {
			def = fmt.Sprint(v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
			f.Name(), orDash(f.Type()), f.Behavior(), def,
			orDash(strings.Join(f.Groups(), ",")), f.MassAssignable(),
			orDash(strings.Join(f.Aka(), ",")))
	}
	w.Flush()

	if outputs := s.Outputs(); len(outputs) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OUTPUT\tTYPE\tREQUIRED")
		fmt.Fprintln(w, "------\t----\t--------")
		for _, o := range outputs {
			typ := "any"
			if t := o.Type(); t != nil {
				typ = t.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%t\n", o.Name(), typ, o.StaticallyRequired())
		}
		w.Flush()
	}

	if rules := s.Rules(); len(rules) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Validations:")
		for _, r := range rules {
			var cs []string
			for _, c := range r.Constraints {
				cs = append(cs, string(c.Type))
			}
			cond := ""
			if r.If != nil {
				cond = " (conditional)"
			}
			fmt.Fprintf(out, "  %s: %s%s\n", r.Field, strings.Join(cs, ", "), cond)
		}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
