package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// formatSpec is one parsed %-conversion of a format string.
type formatSpec struct {
	key    string
	hasKey bool
	flags  string
	width  int // -1 absent, -2 from argument
	prec   int // -1 absent, -2 from argument
	conv   byte
}

// formatValues implements the % operator on strings: Python-style
// conversions applied against a single value, an array of positional
// values or an object of named values.
func (i *Interp) formatValues(format string, vals Value) (string, error) {
	var positional []*Thunk
	var mapping *Object
	switch v := vals.(type) {
	case *Array:
		positional = v.Elements
	case *Object:
		mapping = v
	default:
		positional = []*Thunk{ValueThunk(vals)}
	}

	next := 0
	nextArg := func() (Value, error) {
		if mapping != nil {
			return nil, i.errf("format mapping key required")
		}
		if next >= len(positional) {
			return nil, i.errf("not enough values to format")
		}
		v, err := positional[next].Force(i)
		next++
		return v, err
	}

	var b strings.Builder
	idx := 0
	for idx < len(format) {
		c := format[idx]
		if c != '%' {
			b.WriteByte(c)
			idx++
			continue
		}
		idx++
		if idx < len(format) && format[idx] == '%' {
			b.WriteByte('%')
			idx++
			continue
		}
		spec, rest, err := i.parseFormatSpec(format, idx)
		if err != nil {
			return "", err
		}
		idx = rest

		width := spec.width
		if width == -2 {
			n, err := i.starArg(nextArg)
			if err != nil {
				return "", err
			}
			width = n
		}
		prec := spec.prec
		if prec == -2 {
			n, err := i.starArg(nextArg)
			if err != nil {
				return "", err
			}
			prec = n
		}
		flags := spec.flags
		if width < 0 && width != -1 {
			flags += "-"
			width = -width
		}

		var arg Value
		if spec.hasKey {
			if mapping == nil {
				return "", i.errf("format mapping keys require an object")
			}
			arg, err = mapping.Field(i, spec.key)
		} else {
			arg, err = nextArg()
		}
		if err != nil {
			return "", err
		}

		out, err := i.renderConversion(spec.conv, flags, width, prec, arg)
		if err != nil {
			return "", err
		}
		b.WriteString(out)
	}
	if mapping == nil && next < len(positional) {
		return "", i.errf("too many values to format: %d, expected %d", len(positional), next)
	}
	return b.String(), nil
}

func (i *Interp) parseFormatSpec(format string, idx int) (formatSpec, int, error) {
	spec := formatSpec{width: -1, prec: -1}
	if idx >= len(format) {
		return spec, idx, i.errf("truncated format code")
	}
	if format[idx] == '(' {
		end := strings.IndexByte(format[idx:], ')')
		if end < 0 {
			return spec, idx, i.errf("unterminated format mapping key")
		}
		spec.key = format[idx+1 : idx+end]
		spec.hasKey = true
		idx += end + 1
	}
	for idx < len(format) && strings.IndexByte("-+ 0#", format[idx]) >= 0 {
		spec.flags += string(format[idx])
		idx++
	}
	if idx < len(format) && format[idx] == '*' {
		spec.width = -2
		idx++
	} else {
		start := idx
		for idx < len(format) && format[idx] >= '0' && format[idx] <= '9' {
			idx++
		}
		if idx > start {
			w, _ := strconv.Atoi(format[start:idx])
			spec.width = w
		}
	}
	if idx < len(format) && format[idx] == '.' {
		idx++
		if idx < len(format) && format[idx] == '*' {
			spec.prec = -2
			idx++
		} else {
			start := idx
			for idx < len(format) && format[idx] >= '0' && format[idx] <= '9' {
				idx++
			}
			p := 0
			if idx > start {
				p, _ = strconv.Atoi(format[start:idx])
			}
			spec.prec = p
		}
	}
	if idx >= len(format) {
		return spec, idx, i.errf("truncated format code")
	}
	conv := format[idx]
	if strings.IndexByte("diouxXeEfFgGcs", conv) < 0 {
		return spec, idx, i.errf("unrecognized format conversion %%%c", conv)
	}
	spec.conv = conv
	return spec, idx + 1, nil
}

func (i *Interp) starArg(nextArg func() (Value, error)) (int, error) {
	v, err := nextArg()
	if err != nil {
		return 0, err
	}
	num, ok := v.(Number)
	if !ok {
		return 0, i.errf("format * argument must be a number, got %s", v.TypeName())
	}
	return int(float64(num)), nil
}

func (i *Interp) renderConversion(conv byte, flags string, width, prec int, arg Value) (string, error) {
	verb := func(c byte, withPrec bool) string {
		var v strings.Builder
		v.WriteByte('%')
		v.WriteString(flags)
		if width >= 0 {
			v.WriteString(strconv.Itoa(width))
		}
		if withPrec && prec >= 0 {
			v.WriteByte('.')
			v.WriteString(strconv.Itoa(prec))
		}
		v.WriteByte(c)
		return v.String()
	}

	switch conv {
	case 'd', 'i', 'u', 'o', 'x', 'X':
		num, ok := arg.(Number)
		if !ok {
			return "", i.errf("format conversion %%%c requires a number, got %s", conv, arg.TypeName())
		}
		n := int64(math.Trunc(float64(num)))
		c := conv
		if c == 'i' || c == 'u' {
			c = 'd'
		}
		return fmt.Sprintf(verb(c, true), n), nil

	case 'e', 'E', 'f', 'F', 'g', 'G':
		num, ok := arg.(Number)
		if !ok {
			return "", i.errf("format conversion %%%c requires a number, got %s", conv, arg.TypeName())
		}
		if prec < 0 {
			prec = 6
		}
		c := conv
		if c == 'F' {
			c = 'f'
		}
		var v strings.Builder
		v.WriteByte('%')
		v.WriteString(flags)
		if width >= 0 {
			v.WriteString(strconv.Itoa(width))
		}
		v.WriteByte('.')
		v.WriteString(strconv.Itoa(prec))
		v.WriteByte(c)
		return fmt.Sprintf(v.String(), float64(num)), nil

	case 'c':
		switch cv := arg.(type) {
		case Number:
			return string(rune(int64(float64(cv)))), nil
		case String:
			if len([]rune(string(cv))) == 1 {
				return string(cv), nil
			}
		}
		return "", i.errf("format conversion %%c requires a codepoint or a single-character string")

	case 's':
		text, err := i.toStringValue(arg)
		if err != nil {
			return "", err
		}
		if prec >= 0 {
			runes := []rune(text)
			if prec < len(runes) {
				text = string(runes[:prec])
			}
		}
		// Only left adjustment applies to strings.
		sflags := ""
		if strings.ContainsRune(flags, '-') {
			sflags = "-"
		}
		var v strings.Builder
		v.WriteByte('%')
		v.WriteString(sflags)
		if width >= 0 {
			v.WriteString(strconv.Itoa(width))
		}
		v.WriteByte('s')
		return fmt.Sprintf(v.String(), text), nil
	}
	return "", i.errf("internal: unhandled format conversion %%%c", conv)
}
