package op

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"

	"github.com/artpar/subroutine/core/entity"
	"github.com/artpar/subroutine/core/params"
	"github.com/artpar/subroutine/core/schema"
	"github.com/artpar/subroutine/core/typecast"
)

// Association returns the entity of an association, looking it up through
// the finder on first read. It returns nil when the key, or the type of a
// polymorphic association, is blank. Finder errors are returned unchanged,
// except not-found errors of optional associations, which resolve to nil.
func (o *Op) Association(ctx context.Context, name string) (entity.Entity, error) {
	f, ok := o.schema.Field(name)
	if !ok || f.Behavior() != schema.BehaviorAssociation {
		return nil, errors.WithStack(&params.UnknownFieldError{Field: name})
	}
	if e, ok := o.entities[name]; ok {
		return e, nil
	}

	a := f.Association()
	q, ok := o.query(a)
	if !ok {
		return nil, nil
	}
	if o.env.Finder == nil {
		return nil, errors.Errorf("association %s: no finder configured", name)
	}

	o.env.Logger.Debug().
		Str("op", o.schema.Name()).
		Str("association", name).
		Stringer("query", q).
		Msg("resolving association")

	e, err := o.env.Finder.Find(ctx, q)
	if err != nil {
		if a.Optional() && errors.Is(err, entity.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if isNil(e) {
		return nil, nil
	}

	o.entities[name] = e
	return e, nil
}

func (o *Op) query(a *schema.Association) (entity.Query, bool) {
	key, _ := o.store.Get(a.ForeignKey())
	if typecast.IsBlank(key) {
		return entity.Query{}, false
	}
	typ := o.targetType(a)
	if typ == "" {
		return entity.Query{}, false
	}
	return entity.Query{
		Type:     typ,
		FindBy:   o.env.Types.FindBy(typ, a.FindBy()),
		Key:      key,
		Unscoped: a.Unscoped(),
	}, true
}

// targetType returns the stored type of a polymorphic association, or the
// declared type of any other.
func (o *Op) targetType(a *schema.Association) string {
	if !a.Polymorphic() {
		return a.InferredType()
	}
	v, _ := o.store.Get(a.ForeignType())
	if typecast.IsBlank(v) {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (o *Op) setAssociation(f *schema.Field, value any, provided bool) error {
	a := f.Association()
	name := f.Name()

	var e entity.Entity
	if !isNil(value) {
		var ok bool
		if e, ok = value.(entity.Entity); !ok {
			return errors.Errorf("association %s: expected an entity, got %T", name, value)
		}
	}

	if e != nil && !a.Polymorphic() {
		expected, actual := a.InferredType(), e.EntityType()
		if !o.env.Types.Compatible(actual, expected) {
			o.errs.AddBase(mismatchMessage(expected, actual))
			return errors.WithStack(&AssociationTypeMismatchError{
				Association: name,
				Expected:    expected,
				Actual:      actual,
				rec:         o,
			})
		}
	}

	var key any
	if e != nil {
		typ := e.EntityType()
		if !a.Polymorphic() {
			typ = a.InferredType()
		}
		key, _ = e.Attribute(o.env.Types.FindBy(typ, a.FindBy()))
	}

	if a.Polymorphic() {
		var typ any
		if e != nil {
			typ = e.EntityType()
		}
		if err := o.store.Set(a.ForeignType(), typ, provided); err != nil {
			return err
		}
	}
	if err := o.store.Set(a.ForeignKey(), key, provided); err != nil {
		return err
	}

	if e != nil {
		o.entities[name] = e
	} else {
		delete(o.entities, name)
	}
	return nil
}

// ParamsWithAssociations returns Params with the key and type fields of
// every association replaced by its resolved entity.
func (o *Op) ParamsWithAssociations(ctx context.Context) (map[string]any, error) {
	out := o.Params()
	for _, f := range o.schema.Associations() {
		a := f.Association()
		present := false
		for _, c := range a.Components() {
			if _, ok := out[c]; ok {
				present = true
				delete(out, c)
			}
		}
		if !present {
			continue
		}
		e, err := o.Association(ctx, f.Name())
		if err != nil {
			return nil, err
		}
		if e != nil {
			out[f.Name()] = e
		} else {
			out[f.Name()] = nil
		}
	}
	return out, nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
