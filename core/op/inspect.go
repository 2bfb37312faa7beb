package op

import (
	"github.com/davecgh/go-spew/spew"
)

var inspectConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	MaxDepth:                4,
}

// Inspect returns a debug dump of the operation's state.
func (o *Op) Inspect() string {
	return inspectConfig.Sdump(struct {
		Op       string
		Params   map[string]any
		Defaults map[string]any
		Outputs  map[string]any
		Errors   map[string][]string
	}{
		Op:       o.schema.Name(),
		Params:   o.store.ProvidedParams(),
		Defaults: o.store.Defaults(),
		Outputs:  o.outputsSnapshot(),
		Errors:   o.errs.ToMap(),
	})
}
