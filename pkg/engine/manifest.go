package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Manifest renders a value as a JSON document in the evaluator's standard
// layout: three-space indentation, one element per line, empty containers
// inline. Hidden object fields are skipped and object asserts run. The
// output carries no trailing newline.
func (i *Interp) Manifest(v Value) (string, error) {
	return i.manifestIndented(v, "   ")
}

// manifestIndented renders a value as indented JSON using the given
// per-level indent string.
func (i *Interp) manifestIndented(v Value, indent string) (string, error) {
	var b strings.Builder
	if err := i.manifestValue(&b, v, indent, ""); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (i *Interp) manifestValue(b *strings.Builder, v Value, indent, cur string) error {
	switch val := v.(type) {
	case Null:
		b.WriteString("null")
	case Bool:
		if bool(val) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Number:
		s, err := i.unparseNumber(float64(val))
		if err != nil {
			return err
		}
		b.WriteString(s)
	case String:
		b.WriteString(escapeString(string(val)))
	case *Array:
		if len(val.Elements) == 0 {
			b.WriteString("[ ]")
			return nil
		}
		inner := cur + indent
		b.WriteString("[\n")
		for idx, elem := range val.Elements {
			ev, err := elem.Force(i)
			if err != nil {
				return err
			}
			b.WriteString(inner)
			if err := i.manifestValue(b, ev, indent, inner); err != nil {
				return err
			}
			if idx < len(val.Elements)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(cur)
		b.WriteByte(']')
	case *Object:
		names := val.FieldNames(i, false)
		if err := i.runAsserts(val); err != nil {
			return err
		}
		if len(names) == 0 {
			b.WriteString("{ }")
			return nil
		}
		inner := cur + indent
		b.WriteString("{\n")
		for idx, name := range names {
			fv, err := val.Field(i, name)
			if err != nil {
				return err
			}
			b.WriteString(inner)
			b.WriteString(escapeString(name))
			b.WriteString(": ")
			if err := i.manifestValue(b, fv, indent, inner); err != nil {
				return err
			}
			if idx < len(names)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(cur)
		b.WriteByte('}')
	case *Function:
		return i.errf("cannot manifest function value")
	default:
		return i.errf("internal: unhandled value type %s", v.TypeName())
	}
	return nil
}

// manifestCompact renders a value as single-line JSON with a space after
// separators. String coercion and error messages use it.
func (i *Interp) manifestCompact(v Value) (string, error) {
	var b strings.Builder
	if err := i.manifestCompactValue(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (i *Interp) manifestCompactValue(b *strings.Builder, v Value) error {
	switch val := v.(type) {
	case Null:
		b.WriteString("null")
	case Bool:
		if bool(val) {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Number:
		s, err := i.unparseNumber(float64(val))
		if err != nil {
			return err
		}
		b.WriteString(s)
	case String:
		b.WriteString(escapeString(string(val)))
	case *Array:
		if len(val.Elements) == 0 {
			b.WriteString("[ ]")
			return nil
		}
		b.WriteByte('[')
		for idx, elem := range val.Elements {
			if idx > 0 {
				b.WriteString(", ")
			}
			ev, err := elem.Force(i)
			if err != nil {
				return err
			}
			if err := i.manifestCompactValue(b, ev); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case *Object:
		names := val.FieldNames(i, false)
		if err := i.runAsserts(val); err != nil {
			return err
		}
		if len(names) == 0 {
			b.WriteString("{ }")
			return nil
		}
		b.WriteByte('{')
		for idx, name := range names {
			if idx > 0 {
				b.WriteString(", ")
			}
			fv, err := val.Field(i, name)
			if err != nil {
				return err
			}
			b.WriteString(escapeString(name))
			b.WriteString(": ")
			if err := i.manifestCompactValue(b, fv); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case *Function:
		return i.errf("cannot manifest function value")
	default:
		return i.errf("internal: unhandled value type %s", v.TypeName())
	}
	return nil
}

// unparseNumber renders a number the way the language prints them:
// integral values without a decimal point, everything else in shortest
// round-trip form.
func (i *Interp) unparseNumber(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", i.errf("cannot manifest non-finite number")
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

// escapeString renders a string as a JSON string literal. Non-ASCII text
// stays raw UTF-8; control characters use short escapes or \u00XX form.
func escapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}
