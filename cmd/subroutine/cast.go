package main

import (
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/artpar/subroutine/core/typecast"
)

var castCmd = &cobra.Command{
	Use:   "cast <type> <value>",
	Short: "Cast a value the way a field of that type would",
	Long: `Run a value through a field type caster and print the result.

Examples:
  subroutine cast integer "42 apples"
  subroutine cast boolean yes
  subroutine cast array 1,2,3 --of integer
  subroutine cast time "2024-01-02T03:04:05.123Z" --precise`,
	Args: cobra.ExactArgs(2),
	RunE: runCast,
}

var (
	castOf      string
	castPrecise bool
)

func init() {
	rootCmd.AddCommand(castCmd)

	castCmd.Flags().StringVar(&castOf, "of", "", "element type for array casts")
	castCmd.Flags().BoolVar(&castPrecise, "precise", false, "keep sub-second time precision")
}

func runCast(cmd *cobra.Command, args []string) error {
	tag, raw := args[0], args[1]

	casters := typecast.New(typecast.WithPreservedPrecision(castPrecise))
	if !casters.Has(tag) {
		return fmt.Errorf("unknown type %q (known: %s)", tag, strings.Join(casters.Tags(), ", "))
	}

	var value any = raw
	if tag == "array" {
		value = strings.Split(raw, ",")
	}

	v, err := casters.Cast(value, typecast.Options{Type: tag, Of: castOf})
	if err != nil {
		return err
	}
	dump := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}
	fmt.Fprint(cmd.OutOrStdout(), dump.Sdump(v))
	return nil
}
