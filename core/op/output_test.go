package op_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/subroutine/core/op"
	"github.com/artpar/subroutine/core/schema"
)

// performFunc is an operation whose Perform is a closure.
type performFunc struct {
	*op.Op
	perform func(ctx context.Context, o *op.Op) error
}

func (p *performFunc) Perform(ctx context.Context) error {
	if p.perform == nil {
		return nil
	}
	return p.perform(ctx, p.Op)
}

func build(t *testing.T, s *schema.Schema, inputs any, perform func(ctx context.Context, o *op.Op) error) *performFunc {
	t.Helper()
	o, err := op.New(op.Env{}, s, inputs)
	require.NoError(t, err)
	return &performFunc{Op: o, perform: perform}
}

var requiredOutputSchema = schema.New("required_output").
	Outputs(schema.OutputOptions{}, "foo").
	MustBuild()

var optionalOutputSchema = schema.New("optional_output").
	Outputs(schema.OutputOptions{Optional: true}, "foo").
	MustBuild()

var typedOutputSchema = schema.New("typed_output").
	Boolean("strict").
	Outputs(schema.OutputOptions{Type: schema.TypeOf[string](), Optional: true}, "name").
	Outputs(schema.OutputOptions{
		Type:       schema.TypeOf[int64](),
		RequiredIf: func(r schema.Reader) bool { return r.Get("strict") == true },
	}, "count").
	MustBuild()

var lazyOutputSchema = schema.New("lazy_output").
	Outputs(schema.OutputOptions{Lazy: true, Type: schema.TypeOf[int](), Optional: true}, "total").
	MustBuild()

func TestRequiredOutputMustBeSet(t *testing.T) {
	x := build(t, requiredOutputSchema, nil, nil)

	err := op.Submit(context.Background(), x)
	var notSet *op.OutputNotSetError
	require.True(t, errors.As(err, &notSet))
	assert.Equal(t, "Expected output 'foo' to be set upon completion of perform but was not.", err.Error())

	x = build(t, requiredOutputSchema, nil, func(_ context.Context, o *op.Op) error {
		return o.Output("foo", "bar")
	})
	require.NoError(t, op.Submit(context.Background(), x))
	v, err := x.GetOutput("foo")
	require.NoError(t, err)
	assert.Equal(t, "bar", v)
}

func TestOptionalOutputMayBeUnset(t *testing.T) {
	x := build(t, optionalOutputSchema, nil, nil)
	assert.NoError(t, op.Submit(context.Background(), x))
}

func TestUnknownOutput(t *testing.T) {
	x := build(t, optionalOutputSchema, nil, func(_ context.Context, o *op.Op) error {
		return o.Output("bar", 1)
	})

	err := op.Submit(context.Background(), x)
	var unknown *op.UnknownOutputError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Unknown output 'bar'", err.Error())

	_, err = x.GetOutput("bar")
	assert.True(t, errors.As(err, &unknown))
}

func TestOutputTypes(t *testing.T) {
	tests := []struct {
		name    string
		inputs  map[string]any
		outputs map[string]any
		wantErr string
	}{
		{name: "valid", outputs: map[string]any{"name": "x", "count": int64(1)}},
		{name: "nil optional", outputs: map[string]any{"name": nil}},
		{
			name:    "wrong type",
			outputs: map[string]any{"name": 1},
			wantErr: "Invalid output type for 'name' expected string but got int",
		},
		{
			name:    "required by predicate",
			inputs:  map[string]any{"strict": true},
			wantErr: "Expected output 'count' to be set upon completion of perform but was not.",
		},
		{
			name:    "nil when required",
			inputs:  map[string]any{"strict": true},
			outputs: map[string]any{"count": nil},
			wantErr: "Invalid output type for 'count' expected int64 but got nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := build(t, typedOutputSchema, tt.inputs, func(_ context.Context, o *op.Op) error {
				for k, v := range tt.outputs {
					if err := o.Output(k, v); err != nil {
						return err
					}
				}
				return nil
			})

			err := op.Submit(context.Background(), x)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestLazyOutputEvaluatedOnce(t *testing.T) {
	calls := 0
	x := build(t, lazyOutputSchema, nil, func(_ context.Context, o *op.Op) error {
		return o.Output("total", func() any { calls++; return 3 })
	})
	require.NoError(t, op.Submit(context.Background(), x))
	assert.Equal(t, 0, calls, "validation skips unevaluated outputs")
	assert.Empty(t, x.Outputs())

	for range 2 {
		v, err := x.GetOutput("total")
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, map[string]any{"total": 3}, x.Outputs())
}

func TestLazyOutputTypeCheckedOnRead(t *testing.T) {
	x := build(t, lazyOutputSchema, nil, nil)
	calls := 0
	require.NoError(t, x.OutputFunc("total", func() (any, error) { calls++; return "three", nil }))

	for range 2 {
		v, err := x.GetOutput("total")
		var invalid *op.InvalidOutputTypeError
		require.True(t, errors.As(err, &invalid))
		assert.Nil(t, v)
		assert.Equal(t, "int", invalid.Expected)
		assert.Equal(t, "string", invalid.Actual)
	}
	assert.Equal(t, 1, calls)
	assert.Empty(t, x.Outputs())
	assert.True(t, x.HasOutput("total"))
}

func TestLazyOutputError(t *testing.T) {
	boom := errors.New("boom")
	x := build(t, lazyOutputSchema, nil, nil)
	calls := 0
	require.NoError(t, x.OutputFunc("total", func() (any, error) { calls++; return nil, boom }))

	for range 2 {
		_, err := x.GetOutput("total")
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 1, calls)
	assert.Empty(t, x.Outputs())
}
