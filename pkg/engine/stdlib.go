package engine

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gonnet/gonnet/pkg/ast"
)

// buildStd assembles the std object. Every member is a hidden field backed
// by a Go builtin, so std itself manifests as an empty object and merges
// cleanly.
func (i *Interp) buildStd() *Object {
	idFn := NewBuiltin("id", []BuiltinParam{{Name: "x"}},
		func(i *Interp, args []Value) (Value, error) { return args[0], nil })

	req := func(names ...string) []BuiltinParam {
		out := make([]BuiltinParam, len(names))
		for n, name := range names {
			out[n] = BuiltinParam{Name: name}
		}
		return out
	}
	b := func(name string, params []BuiltinParam, impl BuiltinImpl) ObjectField {
		return ObjectField{
			Name:   name,
			Value:  ValueThunk(NewBuiltin("std."+name, params, impl)),
			Hidden: true,
		}
	}

	fields := []ObjectField{
		b("type", req("x"), stdTypeOf),
		b("isString", req("v"), isType("string")),
		b("isNumber", req("v"), isType("number")),
		b("isBoolean", req("v"), isType("boolean")),
		b("isObject", req("v"), isType("object")),
		b("isArray", req("v"), isType("array")),
		b("isFunction", req("v"), isType("function")),
		b("length", req("x"), stdLength),

		b("makeArray", req("sz", "func"), stdMakeArray),
		b("map", req("func", "arr"), stdMap),
		b("filter", req("func", "arr"), stdFilter),
		b("flatMap", req("func", "arr"), stdFlatMap),
		b("foldl", req("func", "arr", "init"), stdFoldl),
		b("foldr", req("func", "arr", "init"), stdFoldr),
		b("range", req("from", "to"), stdRange),
		b("join", req("sep", "arr"), stdJoin),
		b("sort", []BuiltinParam{{Name: "arr"}, {Name: "keyF", Default: idFn}}, stdSort),
		b("uniq", []BuiltinParam{{Name: "arr"}, {Name: "keyF", Default: idFn}}, stdUniq),
		b("member", req("arr", "x"), stdMember),
		b("count", req("arr", "x"), stdCount),
		b("reverse", req("arr"), stdReverse),
		b("repeat", req("what", "count"), stdRepeat),

		b("objectFields", req("o"), stdObjectFields(false)),
		b("objectFieldsAll", req("o"), stdObjectFields(true)),
		b("objectHas", req("o", "f"), stdObjectHas(false)),
		b("objectHasAll", req("o", "f"), stdObjectHas(true)),
		b("objectValues", req("o"), stdObjectValues),
		b("get", []BuiltinParam{
			{Name: "o"}, {Name: "f"},
			{Name: "default", Default: Null{}},
			{Name: "inc_hidden", Default: Bool(true)},
		}, stdGet),

		b("split", req("str", "c"), stdSplit),
		b("splitLimit", req("str", "c", "maxsplits"), stdSplitLimit),
		b("substr", req("str", "from", "len"), stdSubstr),
		b("startsWith", req("a", "b"), stdStartsWith),
		b("endsWith", req("a", "b"), stdEndsWith),
		b("strReplace", req("str", "from", "to"), stdStrReplace),
		b("asciiUpper", req("str"), stdASCIIUpper),
		b("asciiLower", req("str"), stdASCIILower),
		b("stringChars", req("str"), stdStringChars),
		b("lines", req("arr"), stdLines),
		b("format", req("str", "vals"), stdFormat),
		b("codepoint", req("str"), stdCodepoint),
		b("char", req("n"), stdChar),
		b("parseInt", req("str"), stdParseInt),
		b("parseJson", req("str"), stdParseJSON),
		b("base64", req("input"), stdBase64),
		b("base64Decode", req("str"), stdBase64Decode),
		b("md5", req("str"), stdMD5),

		b("abs", req("n"), stdAbs),
		b("max", req("a", "b"), stdMax),
		b("min", req("a", "b"), stdMin),
		b("floor", req("x"), mathFn("std.floor", math.Floor)),
		b("ceil", req("x"), mathFn("std.ceil", math.Ceil)),
		b("sqrt", req("x"), stdSqrt),
		b("pow", req("x", "n"), stdPow),
		b("exp", req("x"), stdExp),
		b("log", req("x"), stdLog),
		b("mod", req("a", "b"), stdMod),

		b("equals", req("a", "b"), stdEquals),
		b("assertEqual", req("a", "b"), stdAssertEqual),
		b("prune", req("a"), stdPrune),
		b("toString", req("a"), stdToString),
		b("manifestJsonEx", req("value", "indent"), stdManifestJSONEx),
		b("extVar", req("x"), stdExtVar),
		b("native", req("name"), stdNative),
		b("trace", req("str", "rest"), stdTrace),
	}
	return MakeObject(fields)
}

func argString(i *Interp, v Value, fn, param string) (string, error) {
	s, ok := v.(String)
	if !ok {
		return "", i.errf("%s: parameter %s must be a string, got %s", fn, param, v.TypeName())
	}
	return string(s), nil
}

func argNumber(i *Interp, v Value, fn, param string) (float64, error) {
	n, ok := v.(Number)
	if !ok {
		return 0, i.errf("%s: parameter %s must be a number, got %s", fn, param, v.TypeName())
	}
	return float64(n), nil
}

func argInt(i *Interp, v Value, fn, param string) (int, error) {
	f, err := argNumber(i, v, fn, param)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, i.errf("%s: parameter %s must be an integer, got %v", fn, param, f)
	}
	return int(f), nil
}

func argArray(i *Interp, v Value, fn, param string) (*Array, error) {
	a, ok := v.(*Array)
	if !ok {
		return nil, i.errf("%s: parameter %s must be an array, got %s", fn, param, v.TypeName())
	}
	return a, nil
}

func argObject(i *Interp, v Value, fn, param string) (*Object, error) {
	o, ok := v.(*Object)
	if !ok {
		return nil, i.errf("%s: parameter %s must be an object, got %s", fn, param, v.TypeName())
	}
	return o, nil
}

func argFunction(i *Interp, v Value, fn, param string) (*Function, error) {
	f, ok := v.(*Function)
	if !ok {
		return nil, i.errf("%s: parameter %s must be a function, got %s", fn, param, v.TypeName())
	}
	return f, nil
}

func stdTypeOf(i *Interp, args []Value) (Value, error) {
	return String(args[0].TypeName()), nil
}

func isType(name string) BuiltinImpl {
	return func(i *Interp, args []Value) (Value, error) {
		return Bool(args[0].TypeName() == name), nil
	}
}

func stdLength(i *Interp, args []Value) (Value, error) {
	switch v := args[0].(type) {
	case String:
		return Number(utf8.RuneCountInString(string(v))), nil
	case *Array:
		return Number(len(v.Elements)), nil
	case *Object:
		return Number(len(v.FieldNames(i, false))), nil
	case *Function:
		return Number(len(v.Parameters())), nil
	}
	return nil, i.errf("std.length: value must be a string, array, object or function, got %s", args[0].TypeName())
}

func stdMakeArray(i *Interp, args []Value) (Value, error) {
	sz, err := argInt(i, args[0], "std.makeArray", "sz")
	if err != nil {
		return nil, err
	}
	if sz < 0 {
		return nil, i.errf("std.makeArray: size must not be negative, got %d", sz)
	}
	fn, err := argFunction(i, args[1], "std.makeArray", "func")
	if err != nil {
		return nil, err
	}
	elems := make([]*Thunk, sz)
	for n := 0; n < sz; n++ {
		idx := n
		elems[n] = computeThunk(func(i *Interp) (Value, error) {
			return i.Call(fn, []*Thunk{ValueThunk(Number(idx))}, nil)
		})
	}
	return MakeArray(elems), nil
}

func stdMap(i *Interp, args []Value) (Value, error) {
	fn, err := argFunction(i, args[0], "std.map", "func")
	if err != nil {
		return nil, err
	}
	switch v := args[1].(type) {
	case *Array:
		elems := make([]*Thunk, len(v.Elements))
		for n, elem := range v.Elements {
			arg := elem
			elems[n] = computeThunk(func(i *Interp) (Value, error) {
				return i.Call(fn, []*Thunk{arg}, nil)
			})
		}
		return MakeArray(elems), nil
	case String:
		runes := []rune(string(v))
		elems := make([]*Thunk, len(runes))
		for n, r := range runes {
			arg := ValueThunk(String(r))
			elems[n] = computeThunk(func(i *Interp) (Value, error) {
				return i.Call(fn, []*Thunk{arg}, nil)
			})
		}
		return MakeArray(elems), nil
	}
	return nil, i.errf("std.map: parameter arr must be an array or a string, got %s", args[1].TypeName())
}

func stdFilter(i *Interp, args []Value) (Value, error) {
	fn, err := argFunction(i, args[0], "std.filter", "func")
	if err != nil {
		return nil, err
	}
	arr, err := argArray(i, args[1], "std.filter", "arr")
	if err != nil {
		return nil, err
	}
	var kept []*Thunk
	for _, elem := range arr.Elements {
		r, err := i.Call(fn, []*Thunk{elem}, nil)
		if err != nil {
			return nil, err
		}
		keep, ok := r.(Bool)
		if !ok {
			return nil, i.errf("std.filter: func must return a boolean, got %s", r.TypeName())
		}
		if bool(keep) {
			kept = append(kept, elem)
		}
	}
	return MakeArray(kept), nil
}

func stdFlatMap(i *Interp, args []Value) (Value, error) {
	fn, err := argFunction(i, args[0], "std.flatMap", "func")
	if err != nil {
		return nil, err
	}
	switch v := args[1].(type) {
	case *Array:
		var out []*Thunk
		for _, elem := range v.Elements {
			r, err := i.Call(fn, []*Thunk{elem}, nil)
			if err != nil {
				return nil, err
			}
			part, ok := r.(*Array)
			if !ok {
				return nil, i.errf("std.flatMap: func must return an array, got %s", r.TypeName())
			}
			out = append(out, part.Elements...)
		}
		return MakeArray(out), nil
	case String:
		var out strings.Builder
		for _, r := range string(v) {
			rv, err := i.Call(fn, []*Thunk{ValueThunk(String(r))}, nil)
			if err != nil {
				return nil, err
			}
			part, ok := rv.(String)
			if !ok {
				return nil, i.errf("std.flatMap: func must return a string, got %s", rv.TypeName())
			}
			out.WriteString(string(part))
		}
		return String(out.String()), nil
	}
	return nil, i.errf("std.flatMap: parameter arr must be an array or a string, got %s", args[1].TypeName())
}

func stdFoldl(i *Interp, args []Value) (Value, error) {
	return foldArray(i, args, "std.foldl", false)
}

func stdFoldr(i *Interp, args []Value) (Value, error) {
	return foldArray(i, args, "std.foldr", true)
}

func foldArray(i *Interp, args []Value, name string, fromRight bool) (Value, error) {
	fn, err := argFunction(i, args[0], name, "func")
	if err != nil {
		return nil, err
	}
	arr, err := argArray(i, args[1], name, "arr")
	if err != nil {
		return nil, err
	}
	acc := args[2]
	for n := range arr.Elements {
		elem := arr.Elements[n]
		if fromRight {
			elem = arr.Elements[len(arr.Elements)-1-n]
		}
		var callArgs []*Thunk
		if fromRight {
			callArgs = []*Thunk{elem, ValueThunk(acc)}
		} else {
			callArgs = []*Thunk{ValueThunk(acc), elem}
		}
		acc, err = i.Call(fn, callArgs, nil)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

func stdRange(i *Interp, args []Value) (Value, error) {
	from, err := argInt(i, args[0], "std.range", "from")
	if err != nil {
		return nil, err
	}
	to, err := argInt(i, args[1], "std.range", "to")
	if err != nil {
		return nil, err
	}
	var elems []*Thunk
	for n := from; n <= to; n++ {
		elems = append(elems, ValueThunk(Number(n)))
	}
	return MakeArray(elems), nil
}

func stdJoin(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[1], "std.join", "arr")
	if err != nil {
		return nil, err
	}
	switch sep := args[0].(type) {
	case String:
		var b strings.Builder
		first := true
		for _, elem := range arr.Elements {
			v, err := elem.Force(i)
			if err != nil {
				return nil, err
			}
			if _, isNull := v.(Null); isNull {
				continue
			}
			s, ok := v.(String)
			if !ok {
				return nil, i.errf("std.join: array element must be a string, got %s", v.TypeName())
			}
			if !first {
				b.WriteString(string(sep))
			}
			b.WriteString(string(s))
			first = false
		}
		return String(b.String()), nil
	case *Array:
		var out []*Thunk
		first := true
		for _, elem := range arr.Elements {
			v, err := elem.Force(i)
			if err != nil {
				return nil, err
			}
			if _, isNull := v.(Null); isNull {
				continue
			}
			part, ok := v.(*Array)
			if !ok {
				return nil, i.errf("std.join: array element must be an array, got %s", v.TypeName())
			}
			if !first {
				out = append(out, sep.Elements...)
			}
			out = append(out, part.Elements...)
			first = false
		}
		return MakeArray(out), nil
	}
	return nil, i.errf("std.join: parameter sep must be a string or an array, got %s", args[0].TypeName())
}

func stdSort(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[0], "std.sort", "arr")
	if err != nil {
		return nil, err
	}
	keyF, err := argFunction(i, args[1], "std.sort", "keyF")
	if err != nil {
		return nil, err
	}
	keys := make([]Value, len(arr.Elements))
	for n, elem := range arr.Elements {
		keys[n], err = i.Call(keyF, []*Thunk{elem}, nil)
		if err != nil {
			return nil, err
		}
	}
	elems := make([]*Thunk, len(arr.Elements))
	copy(elems, arr.Elements)
	idx := make([]int, len(elems))
	for n := range idx {
		idx[n] = n
	}
	var sortErr error
	sort.SliceStable(idx, func(a, b int) bool {
		if sortErr != nil {
			return false
		}
		c, err := i.compare(keys[idx[a]], keys[idx[b]])
		if err != nil {
			sortErr = err
			return false
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	out := make([]*Thunk, len(elems))
	for n, j := range idx {
		out[n] = elems[j]
	}
	return MakeArray(out), nil
}

func stdUniq(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[0], "std.uniq", "arr")
	if err != nil {
		return nil, err
	}
	keyF, err := argFunction(i, args[1], "std.uniq", "keyF")
	if err != nil {
		return nil, err
	}
	var out []*Thunk
	var prevKey Value
	for n, elem := range arr.Elements {
		key, err := i.Call(keyF, []*Thunk{elem}, nil)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			eq, err := i.equals(prevKey, key)
			if err != nil {
				return nil, err
			}
			if eq {
				continue
			}
		}
		out = append(out, elem)
		prevKey = key
	}
	return MakeArray(out), nil
}

func stdMember(i *Interp, args []Value) (Value, error) {
	switch v := args[0].(type) {
	case String:
		needle, err := argString(i, args[1], "std.member", "x")
		if err != nil {
			return nil, err
		}
		return Bool(strings.Contains(string(v), needle)), nil
	case *Array:
		for _, elem := range v.Elements {
			ev, err := elem.Force(i)
			if err != nil {
				return nil, err
			}
			eq, err := i.equals(ev, args[1])
			if err != nil {
				return nil, err
			}
			if eq {
				return Bool(true), nil
			}
		}
		return Bool(false), nil
	}
	return nil, i.errf("std.member: parameter arr must be an array or a string, got %s", args[0].TypeName())
}

func stdCount(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[0], "std.count", "arr")
	if err != nil {
		return nil, err
	}
	count := 0
	for _, elem := range arr.Elements {
		ev, err := elem.Force(i)
		if err != nil {
			return nil, err
		}
		eq, err := i.equals(ev, args[1])
		if err != nil {
			return nil, err
		}
		if eq {
			count++
		}
	}
	return Number(count), nil
}

func stdReverse(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[0], "std.reverse", "arr")
	if err != nil {
		return nil, err
	}
	out := make([]*Thunk, len(arr.Elements))
	for n, elem := range arr.Elements {
		out[len(out)-1-n] = elem
	}
	return MakeArray(out), nil
}

func stdRepeat(i *Interp, args []Value) (Value, error) {
	count, err := argInt(i, args[1], "std.repeat", "count")
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, i.errf("std.repeat: count must not be negative, got %d", count)
	}
	switch v := args[0].(type) {
	case String:
		return String(strings.Repeat(string(v), count)), nil
	case *Array:
		out := make([]*Thunk, 0, len(v.Elements)*count)
		for n := 0; n < count; n++ {
			out = append(out, v.Elements...)
		}
		return MakeArray(out), nil
	}
	return nil, i.errf("std.repeat: parameter what must be a string or an array, got %s", args[0].TypeName())
}

func stdObjectFields(includeHidden bool) BuiltinImpl {
	name := "std.objectFields"
	if includeHidden {
		name = "std.objectFieldsAll"
	}
	return func(i *Interp, args []Value) (Value, error) {
		o, err := argObject(i, args[0], name, "o")
		if err != nil {
			return nil, err
		}
		names := o.FieldNames(i, includeHidden)
		elems := make([]*Thunk, len(names))
		for n, fieldName := range names {
			elems[n] = ValueThunk(String(fieldName))
		}
		return MakeArray(elems), nil
	}
}

func stdObjectHas(includeHidden bool) BuiltinImpl {
	name := "std.objectHas"
	if includeHidden {
		name = "std.objectHasAll"
	}
	return func(i *Interp, args []Value) (Value, error) {
		o, err := argObject(i, args[0], name, "o")
		if err != nil {
			return nil, err
		}
		f, err := argString(i, args[1], name, "f")
		if err != nil {
			return nil, err
		}
		return Bool(o.HasField(f, includeHidden)), nil
	}
}

func stdObjectValues(i *Interp, args []Value) (Value, error) {
	o, err := argObject(i, args[0], "std.objectValues", "o")
	if err != nil {
		return nil, err
	}
	names := o.FieldNames(i, false)
	elems := make([]*Thunk, len(names))
	for n, name := range names {
		fieldName := name
		elems[n] = computeThunk(func(i *Interp) (Value, error) {
			return o.Field(i, fieldName)
		})
	}
	return MakeArray(elems), nil
}

func stdGet(i *Interp, args []Value) (Value, error) {
	o, err := argObject(i, args[0], "std.get", "o")
	if err != nil {
		return nil, err
	}
	f, err := argString(i, args[1], "std.get", "f")
	if err != nil {
		return nil, err
	}
	incHidden, ok := args[3].(Bool)
	if !ok {
		return nil, i.errf("std.get: parameter inc_hidden must be a boolean, got %s", args[3].TypeName())
	}
	if o.HasField(f, bool(incHidden)) {
		return o.Field(i, f)
	}
	return args[2], nil
}

func stdSplit(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.split", "str")
	if err != nil {
		return nil, err
	}
	sep, err := argString(i, args[1], "std.split", "c")
	if err != nil {
		return nil, err
	}
	if sep == "" {
		return nil, i.errf("std.split: delimiter must not be empty")
	}
	return stringsToArray(strings.Split(str, sep)), nil
}

func stdSplitLimit(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.splitLimit", "str")
	if err != nil {
		return nil, err
	}
	sep, err := argString(i, args[1], "std.splitLimit", "c")
	if err != nil {
		return nil, err
	}
	if sep == "" {
		return nil, i.errf("std.splitLimit: delimiter must not be empty")
	}
	maxSplits, err := argInt(i, args[2], "std.splitLimit", "maxsplits")
	if err != nil {
		return nil, err
	}
	if maxSplits < 0 {
		return stringsToArray(strings.Split(str, sep)), nil
	}
	return stringsToArray(strings.SplitN(str, sep, maxSplits+1)), nil
}

func stringsToArray(parts []string) *Array {
	elems := make([]*Thunk, len(parts))
	for n, p := range parts {
		elems[n] = ValueThunk(String(p))
	}
	return MakeArray(elems)
}

func stdSubstr(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.substr", "str")
	if err != nil {
		return nil, err
	}
	from, err := argInt(i, args[1], "std.substr", "from")
	if err != nil {
		return nil, err
	}
	length, err := argInt(i, args[2], "std.substr", "len")
	if err != nil {
		return nil, err
	}
	if from < 0 {
		return nil, i.errf("std.substr: from must not be negative, got %d", from)
	}
	if length < 0 {
		return nil, i.errf("std.substr: len must not be negative, got %d", length)
	}
	runes := []rune(str)
	if from >= len(runes) {
		return String(""), nil
	}
	end := from + length
	if end > len(runes) {
		end = len(runes)
	}
	return String(runes[from:end]), nil
}

func stdStartsWith(i *Interp, args []Value) (Value, error) {
	a, err := argString(i, args[0], "std.startsWith", "a")
	if err != nil {
		return nil, err
	}
	b, err := argString(i, args[1], "std.startsWith", "b")
	if err != nil {
		return nil, err
	}
	return Bool(strings.HasPrefix(a, b)), nil
}

func stdEndsWith(i *Interp, args []Value) (Value, error) {
	a, err := argString(i, args[0], "std.endsWith", "a")
	if err != nil {
		return nil, err
	}
	b, err := argString(i, args[1], "std.endsWith", "b")
	if err != nil {
		return nil, err
	}
	return Bool(strings.HasSuffix(a, b)), nil
}

func stdStrReplace(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.strReplace", "str")
	if err != nil {
		return nil, err
	}
	from, err := argString(i, args[1], "std.strReplace", "from")
	if err != nil {
		return nil, err
	}
	to, err := argString(i, args[2], "std.strReplace", "to")
	if err != nil {
		return nil, err
	}
	if from == "" {
		return nil, i.errf("std.strReplace: from must not be empty")
	}
	return String(strings.ReplaceAll(str, from, to)), nil
}

func stdASCIIUpper(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.asciiUpper", "str")
	if err != nil {
		return nil, err
	}
	return String(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - 'a' + 'A'
		}
		return r
	}, str)), nil
}

func stdASCIILower(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.asciiLower", "str")
	if err != nil {
		return nil, err
	}
	return String(strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r - 'A' + 'a'
		}
		return r
	}, str)), nil
}

func stdStringChars(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.stringChars", "str")
	if err != nil {
		return nil, err
	}
	var elems []*Thunk
	for _, r := range str {
		elems = append(elems, ValueThunk(String(r)))
	}
	return MakeArray(elems), nil
}

func stdLines(i *Interp, args []Value) (Value, error) {
	arr, err := argArray(i, args[0], "std.lines", "arr")
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, elem := range arr.Elements {
		v, err := elem.Force(i)
		if err != nil {
			return nil, err
		}
		if _, isNull := v.(Null); isNull {
			continue
		}
		s, ok := v.(String)
		if !ok {
			return nil, i.errf("std.lines: array element must be a string, got %s", v.TypeName())
		}
		b.WriteString(string(s))
		b.WriteByte('\n')
	}
	return String(b.String()), nil
}

func stdFormat(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.format", "str")
	if err != nil {
		return nil, err
	}
	out, err := i.formatValues(str, args[1])
	if err != nil {
		return nil, err
	}
	return String(out), nil
}

func stdCodepoint(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.codepoint", "str")
	if err != nil {
		return nil, err
	}
	runes := []rune(str)
	if len(runes) != 1 {
		return nil, i.errf("std.codepoint: parameter str must be a single character, got %d", len(runes))
	}
	return Number(runes[0]), nil
}

func stdChar(i *Interp, args []Value) (Value, error) {
	n, err := argInt(i, args[0], "std.char", "n")
	if err != nil {
		return nil, err
	}
	return String(rune(n)), nil
}

func stdParseInt(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.parseInt", "str")
	if err != nil {
		return nil, err
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, i.errf("std.parseInt: cannot parse %q as an integer", str)
	}
	return Number(n), nil
}

func stdParseJSON(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.parseJson", "str")
	if err != nil {
		return nil, err
	}
	var decoded any
	if err := json.Unmarshal([]byte(str), &decoded); err != nil {
		return nil, i.errf("std.parseJson: invalid JSON: %v", err)
	}
	return jsonToValue(decoded), nil
}

func jsonToValue(v any) Value {
	switch d := v.(type) {
	case nil:
		return Null{}
	case bool:
		return Bool(d)
	case float64:
		return Number(d)
	case string:
		return String(d)
	case []any:
		elems := make([]*Thunk, len(d))
		for n, e := range d {
			elems[n] = ValueThunk(jsonToValue(e))
		}
		return MakeArray(elems)
	case map[string]any:
		names := make([]string, 0, len(d))
		for name := range d {
			names = append(names, name)
		}
		sort.Strings(names)
		fields := make([]ObjectField, len(names))
		for n, name := range names {
			fields[n] = ObjectField{Name: name, Value: ValueThunk(jsonToValue(d[name]))}
		}
		return MakeObject(fields)
	}
	return Null{}
}

func stdBase64(i *Interp, args []Value) (Value, error) {
	switch v := args[0].(type) {
	case String:
		return String(base64.StdEncoding.EncodeToString([]byte(string(v)))), nil
	case *Array:
		raw := make([]byte, len(v.Elements))
		for n, elem := range v.Elements {
			ev, err := elem.Force(i)
			if err != nil {
				return nil, err
			}
			b, err := argInt(i, ev, "std.base64", "input")
			if err != nil {
				return nil, err
			}
			if b < 0 || b > 255 {
				return nil, i.errf("std.base64: byte value %d out of range", b)
			}
			raw[n] = byte(b)
		}
		return String(base64.StdEncoding.EncodeToString(raw)), nil
	}
	return nil, i.errf("std.base64: parameter input must be a string or an array of bytes, got %s", args[0].TypeName())
}

func stdBase64Decode(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.base64Decode", "str")
	if err != nil {
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(str)
	if err != nil {
		return nil, i.errf("std.base64Decode: invalid base64: %v", err)
	}
	return String(raw), nil
}

func stdMD5(i *Interp, args []Value) (Value, error) {
	str, err := argString(i, args[0], "std.md5", "str")
	if err != nil {
		return nil, err
	}
	sum := md5.Sum([]byte(str))
	return String(hex.EncodeToString(sum[:])), nil
}

func stdAbs(i *Interp, args []Value) (Value, error) {
	n, err := argNumber(i, args[0], "std.abs", "n")
	if err != nil {
		return nil, err
	}
	return Number(math.Abs(n)), nil
}

func stdMax(i *Interp, args []Value) (Value, error) {
	a, err := argNumber(i, args[0], "std.max", "a")
	if err != nil {
		return nil, err
	}
	b, err := argNumber(i, args[1], "std.max", "b")
	if err != nil {
		return nil, err
	}
	return Number(math.Max(a, b)), nil
}

func stdMin(i *Interp, args []Value) (Value, error) {
	a, err := argNumber(i, args[0], "std.min", "a")
	if err != nil {
		return nil, err
	}
	b, err := argNumber(i, args[1], "std.min", "b")
	if err != nil {
		return nil, err
	}
	return Number(math.Min(a, b)), nil
}

func mathFn(name string, fn func(float64) float64) BuiltinImpl {
	return func(i *Interp, args []Value) (Value, error) {
		n, err := argNumber(i, args[0], name, "x")
		if err != nil {
			return nil, err
		}
		return Number(fn(n)), nil
	}
}

func stdSqrt(i *Interp, args []Value) (Value, error) {
	n, err := argNumber(i, args[0], "std.sqrt", "x")
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, i.errf("std.sqrt: cannot take square root of negative number %v", n)
	}
	return Number(math.Sqrt(n)), nil
}

func stdPow(i *Interp, args []Value) (Value, error) {
	x, err := argNumber(i, args[0], "std.pow", "x")
	if err != nil {
		return nil, err
	}
	n, err := argNumber(i, args[1], "std.pow", "n")
	if err != nil {
		return nil, err
	}
	return finiteNumber(i, "std.pow", math.Pow(x, n))
}

func stdExp(i *Interp, args []Value) (Value, error) {
	x, err := argNumber(i, args[0], "std.exp", "x")
	if err != nil {
		return nil, err
	}
	return finiteNumber(i, "std.exp", math.Exp(x))
}

func stdLog(i *Interp, args []Value) (Value, error) {
	x, err := argNumber(i, args[0], "std.log", "x")
	if err != nil {
		return nil, err
	}
	if x <= 0 {
		return nil, i.errf("std.log: cannot take logarithm of non-positive number %v", x)
	}
	return Number(math.Log(x)), nil
}

func finiteNumber(i *Interp, name string, v float64) (Value, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, i.errf("%s: result is not a finite number", name)
	}
	return Number(v), nil
}

func stdMod(i *Interp, args []Value) (Value, error) {
	return i.binaryOp(ast.BopMod, args[0], args[1])
}

func stdEquals(i *Interp, args []Value) (Value, error) {
	eq, err := i.equals(args[0], args[1])
	if err != nil {
		return nil, err
	}
	return Bool(eq), nil
}

func stdAssertEqual(i *Interp, args []Value) (Value, error) {
	eq, err := i.equals(args[0], args[1])
	if err != nil {
		return nil, err
	}
	if eq {
		return Bool(true), nil
	}
	a, err := i.manifestCompact(args[0])
	if err != nil {
		return nil, err
	}
	b, err := i.manifestCompact(args[1])
	if err != nil {
		return nil, err
	}
	return nil, i.errf("assertEqual failed: %s != %s", a, b)
}

// stdPrune removes null fields and elements plus containers left empty by
// pruning. The result is fully forced.
func stdPrune(i *Interp, args []Value) (Value, error) {
	pruned, _, err := pruneValue(i, args[0])
	if err != nil {
		return nil, err
	}
	return pruned, nil
}

func pruneValue(i *Interp, v Value) (Value, bool, error) {
	switch val := v.(type) {
	case Null:
		return val, false, nil
	case *Array:
		var elems []*Thunk
		for _, elem := range val.Elements {
			ev, err := elem.Force(i)
			if err != nil {
				return nil, false, err
			}
			pruned, keep, err := pruneValue(i, ev)
			if err != nil {
				return nil, false, err
			}
			if keep {
				elems = append(elems, ValueThunk(pruned))
			}
		}
		return MakeArray(elems), len(elems) > 0, nil
	case *Object:
		var fields []ObjectField
		for _, name := range val.FieldNames(i, false) {
			fv, err := val.Field(i, name)
			if err != nil {
				return nil, false, err
			}
			pruned, keep, err := pruneValue(i, fv)
			if err != nil {
				return nil, false, err
			}
			if keep {
				fields = append(fields, ObjectField{Name: name, Value: ValueThunk(pruned)})
			}
		}
		return MakeObject(fields), len(fields) > 0, nil
	}
	return v, true, nil
}

func stdToString(i *Interp, args []Value) (Value, error) {
	s, err := i.toStringValue(args[0])
	if err != nil {
		return nil, err
	}
	return String(s), nil
}

func stdManifestJSONEx(i *Interp, args []Value) (Value, error) {
	indent, err := argString(i, args[1], "std.manifestJsonEx", "indent")
	if err != nil {
		return nil, err
	}
	out, err := i.manifestIndented(args[0], indent)
	if err != nil {
		return nil, err
	}
	return String(out), nil
}

func stdExtVar(i *Interp, args []Value) (Value, error) {
	name, err := argString(i, args[0], "std.extVar", "x")
	if err != nil {
		return nil, err
	}
	t, ok := i.ext[name]
	if !ok {
		return nil, i.errf("undefined external variable: %s", name)
	}
	return t.Force(i)
}

func stdNative(i *Interp, args []Value) (Value, error) {
	name, err := argString(i, args[0], "std.native", "name")
	if err != nil {
		return nil, err
	}
	fn, ok := i.natives[name]
	if !ok {
		return nil, i.errf("native function not found: %s", name)
	}
	return fn, nil
}

func stdTrace(i *Interp, args []Value) (Value, error) {
	msg, err := argString(i, args[0], "std.trace", "str")
	if err != nil {
		return nil, err
	}
	loc := i.callLoc()
	i.logger.Info().Str("file", loc.File).Int("line", loc.Line).Msg(msg)
	return args[1], nil
}
