package vm

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/gonnet/gonnet/pkg/engine"
)

// toEngineValue converts a host value into an evaluator value.
//
// Supported shapes are nil, booleans, integers, unsigned integers, floats,
// strings, []any slices and string-keyed maps, nested to any depth. Maps
// become objects with all fields visible and no inheritance. Map fields are
// built in sorted key order so conversion is deterministic. Anything else
// is rejected with a marshal error rather than guessed at.
func toEngineValue(v any) (engine.Value, error) {
	switch val := v.(type) {
	case nil:
		return engine.Null{}, nil
	case bool:
		return engine.Bool(val), nil
	case int:
		return engine.Number(float64(val)), nil
	case int8:
		return engine.Number(float64(val)), nil
	case int16:
		return engine.Number(float64(val)), nil
	case int32:
		return engine.Number(float64(val)), nil
	case int64:
		return engine.Number(float64(val)), nil
	case uint:
		return engine.Number(float64(val)), nil
	case uint8:
		return engine.Number(float64(val)), nil
	case uint16:
		return engine.Number(float64(val)), nil
	case uint32:
		return engine.Number(float64(val)), nil
	case uint64:
		return engine.Number(float64(val)), nil
	case float32:
		return engine.Number(float64(val)), nil
	case float64:
		return engine.Number(val), nil
	case string:
		return engine.String(val), nil
	case []any:
		elements := make([]*engine.Thunk, len(val))
		for idx, item := range val {
			ev, err := toEngineValue(item)
			if err != nil {
				return nil, err
			}
			elements[idx] = engine.ValueThunk(ev)
		}
		return engine.MakeArray(elements), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]engine.ObjectField, 0, len(keys))
		for _, k := range keys {
			ev, err := toEngineValue(val[k])
			if err != nil {
				return nil, err
			}
			fields = append(fields, engine.ObjectField{Name: k, Value: engine.ValueThunk(ev)})
		}
		return engine.MakeObject(fields), nil
	}
	return reflectToEngineValue(v)
}

// reflectToEngineValue handles named types and container shapes the fast
// path type switch does not cover.
func reflectToEngineValue(v any) (engine.Value, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.CanInt():
		return engine.Number(float64(rv.Int())), nil
	case rv.CanUint():
		return engine.Number(float64(rv.Uint())), nil
	case rv.CanFloat():
		return engine.Number(rv.Float()), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return engine.Bool(rv.Bool()), nil
	case reflect.String:
		return engine.String(rv.String()), nil
	case reflect.Slice, reflect.Array:
		elements := make([]*engine.Thunk, rv.Len())
		for idx := 0; idx < rv.Len(); idx++ {
			ev, err := toEngineValue(rv.Index(idx).Interface())
			if err != nil {
				return nil, err
			}
			elements[idx] = engine.ValueThunk(ev)
		}
		return engine.MakeArray(elements), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, newError(KindMarshalHostType,
				"unsupported map key type %s for evaluator value", rv.Type().Key())
		}
		type entry struct {
			key string
			val reflect.Value
		}
		entries := make([]entry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			entries = append(entries, entry{iter.Key().String(), iter.Value()})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].key < entries[b].key })
		fields := make([]engine.ObjectField, 0, len(entries))
		for _, ent := range entries {
			ev, err := toEngineValue(ent.val.Interface())
			if err != nil {
				return nil, err
			}
			fields = append(fields, engine.ObjectField{Name: ent.key, Value: engine.ValueThunk(ev)})
		}
		return engine.MakeObject(fields), nil
	}

	return nil, newError(KindMarshalHostType, "unsupported type %T for evaluator value", v)
}

// toHostValue converts an evaluator value into a host value, forcing any
// lazy members it contains.
//
// Arrays become []any and objects become map[string]any holding only the
// visible fields. Object field order follows the interpreter's field
// enumeration, so insertion order is observable through an order-preserving
// interpreter even though Go maps do not keep it. Errors raised while
// forcing members propagate unchanged; they are evaluation failures, not
// conversion failures.
//
// Function values have no host representation. Receiving one here is an
// embedding bug, so it panics rather than returning an error.
func toHostValue(i *engine.Interp, v engine.Value) (any, error) {
	switch val := v.(type) {
	case engine.Null:
		return nil, nil
	case engine.Bool:
		return bool(val), nil
	case engine.Number:
		return float64(val), nil
	case engine.String:
		return string(val), nil
	case *engine.Array:
		out := make([]any, len(val.Elements))
		for idx, th := range val.Elements {
			ev, err := th.Force(i)
			if err != nil {
				return nil, err
			}
			hv, err := toHostValue(i, ev)
			if err != nil {
				return nil, err
			}
			out[idx] = hv
		}
		return out, nil
	case *engine.Object:
		names := val.FieldNames(i, false)
		out := make(map[string]any, len(names))
		for _, name := range names {
			fv, err := val.Field(i, name)
			if err != nil {
				return nil, err
			}
			hv, err := toHostValue(i, fv)
			if err != nil {
				return nil, err
			}
			out[name] = hv
		}
		return out, nil
	}
	panic(fmt.Sprintf("vm: cannot convert %s value to a host value", v.TypeName()))
}
