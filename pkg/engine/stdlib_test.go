package engine

import (
	"strings"
	"testing"
)

func TestStd_Types(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"type null", `std.type(null)`, `"null"`},
		{"type array", `std.type([])`, `"array"`},
		{"type function", `std.type(function() 1)`, `"function"`},
		{"isString", `std.isString("x")`, `true`},
		{"isNumber", `std.isNumber("x")`, `false`},
		{"isBoolean", `std.isBoolean(false)`, `true`},
		{"isObject", `std.isObject({})`, `true`},
		{"isArray", `std.isArray([1])`, `true`},
		{"isFunction builtin", `std.isFunction(std.length)`, `true`},
		{"length string runes", `std.length("héllo")`, `5`},
		{"length array", `std.length([1, 2, 3])`, `3`},
		{"length visible fields", `std.length({ a: 1, b:: 2 })`, `1`},
		{"length function arity", `std.length(function(a, b) a)`, `2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Arrays(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"makeArray", `std.join(",", std.map(std.toString, std.makeArray(3, function(n) n * n)))`, `"0,1,4"`},
		{"map string", `std.join("", std.map(function(c) std.asciiUpper(c), "abc"))`, `"ABC"`},
		{"filter", `std.length([x for x in std.filter(function(n) n > 1, [1, 2, 3])])`, `2`},
		{"flatMap array", `std.join(",", std.flatMap(function(x) [x, x], ["a", "b"]))`, `"a,a,b,b"`},
		{"flatMap string", `std.flatMap(function(c) if c == "b" then "" else c, "abc")`, `"ac"`},
		{"foldl", `std.foldl(function(acc, x) acc + x, ["a", "b"], "")`, `"ab"`},
		{"foldr", `std.foldr(function(x, acc) acc + x, ["a", "b"], "")`, `"ba"`},
		{"range", `std.join(",", std.map(std.toString, std.range(1, 3)))`, `"1,2,3"`},
		{"range empty", `std.length(std.range(3, 1))`, `0`},
		{"join skips nulls", `std.join("-", ["a", null, "b"])`, `"a-b"`},
		{"join array separator", `std.join([0], [[1], null, [2]])[1]`, `0`},
		{"sort numbers", `std.join(",", std.map(std.toString, std.sort([3, 1, 2])))`, `"1,2,3"`},
		{"sort with keyF", `std.join("", std.sort(["bbb", "a", "cc"], function(s) std.length(s)))`, `"accbbb"`},
		{"sort stable", `std.join("", std.sort(["b1", "a2", "b2"], function(s) s[0]))`, `"a2b1b2"`},
		{"uniq consecutive", `std.join(",", std.uniq(["a", "a", "b", "a"]))`, `"a,b,a"`},
		{"member array", `std.member([1, 2], 2)`, `true`},
		{"member string", `std.member("abc", "bc")`, `true`},
		{"count", `std.count([1, 2, 1], 1)`, `2`},
		{"reverse", `std.join("", std.reverse(["a", "b", "c"]))`, `"cba"`},
		{"repeat string", `std.repeat("ab", 3)`, `"ababab"`},
		{"repeat array", `std.length(std.repeat([1, 2], 2))`, `4`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Objects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"objectFields sorted", `std.join(",", std.objectFields({ b: 1, a: 2 }))`, `"a,b"`},
		{"objectFields excludes hidden", `std.join(",", std.objectFields({ a: 1, h:: 2 }))`, `"a"`},
		{"objectFieldsAll", `std.join(",", std.objectFieldsAll({ a: 1, h:: 2 }))`, `"a,h"`},
		{"objectHas", `std.objectHas({ h:: 1 }, "h")`, `false`},
		{"objectHasAll", `std.objectHasAll({ h:: 1 }, "h")`, `true`},
		{"objectValues", `std.join(",", std.objectValues({ b: "2", a: "1" }))`, `"1,2"`},
		{"get present", `std.get({ a: 1 }, "a", 7)`, `1`},
		{"get default", `std.get({ a: 1 }, "b", 7)`, `7`},
		{"get hidden by default", `std.get({ a:: 5 }, "a")`, `5`},
		{"get hidden excluded", `std.get({ a:: 5 }, "a", 7, false)`, `7`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Strings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"split", `std.join("|", std.split("a,b,c", ","))`, `"a|b|c"`},
		{"splitLimit", `std.join("|", std.splitLimit("a,b,c", ",", 1))`, `"a|b,c"`},
		{"splitLimit unlimited", `std.join("|", std.splitLimit("a,b,c", ",", -1))`, `"a|b|c"`},
		{"substr", `std.substr("hello", 1, 3)`, `"ell"`},
		{"substr clamps", `std.substr("hello", 3, 10)`, `"lo"`},
		{"substr past end", `std.substr("hi", 5, 1)`, `""`},
		{"startsWith", `std.startsWith("hello", "he")`, `true`},
		{"endsWith", `std.endsWith("hello", "lo")`, `true`},
		{"strReplace", `std.strReplace("aaa", "a", "b")`, `"bbb"`},
		{"asciiUpper", `std.asciiUpper("aBc9")`, `"ABC9"`},
		{"asciiLower", `std.asciiLower("AbC9")`, `"abc9"`},
		{"stringChars", `std.join("-", std.stringChars("abc"))`, `"a-b-c"`},
		{"lines", `std.lines(["a", null, "b"])`, `"a\nb\n"`},
		{"format", `std.format("%s has %d", ["x", 2])`, `"x has 2"`},
		{"codepoint", `std.codepoint("A")`, `65`},
		{"char", `std.char(65)`, `"A"`},
		{"parseInt", `std.parseInt("-42")`, `-42`},
		{"base64 string", `std.base64("hello")`, `"aGVsbG8="`},
		{"base64 bytes", `std.base64([104, 105])`, `"aGk="`},
		{"base64Decode", `std.base64Decode("aGVsbG8=")`, `"hello"`},
		{"md5", `std.md5("hello")`, `"5d41402abc4b2a76b9719d911017c592"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Math(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"abs", `std.abs(-3)`, `3`},
		{"max", `std.max(2, 5)`, `5`},
		{"min", `std.min(2, 5)`, `2`},
		{"floor", `std.floor(1.9)`, `1`},
		{"ceil", `std.ceil(1.1)`, `2`},
		{"sqrt", `std.sqrt(9)`, `3`},
		{"pow", `std.pow(2, 10)`, `1024`},
		{"exp", `std.exp(0)`, `1`},
		{"log", `std.log(1)`, `0`},
		{"mod numbers", `std.mod(7, 3)`, `1`},
		{"mod format", `std.mod("x=%d", 5)`, `"x=5"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Values(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"equals objects", `std.equals({ a: 1 }, { a: 1 })`, `true`},
		{"equals mixed", `std.equals(1, "1")`, `false`},
		{"assertEqual passes", `std.assertEqual([1], [1])`, `true`},
		{"toString number", `std.toString(2.5)`, `"2.5"`},
		{"toString passthrough", `std.toString("x")`, `"x"`},
		{"toString array", `std.toString([1, "a"])`, `"[1, \"a\"]"`},
		{"toString object", `std.toString({ a: 1 })`, `"{\"a\": 1}"`},
		{"prune keeps value", `std.prune({ a: null, b: [null, 1] }).b[0]`, `1`},
		{"prune drops empty", `std.length(std.objectFields(std.prune({ a: null, c: {}, d: { e: null } })))`, `0`},
		{"parseJson", `std.parseJson("{\"b\": [1, true], \"a\": null}").b[1]`, `true`},
		{"trace returns value", `std.trace("checkpoint", 42)`, `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustEvalJSON(t, tt.src)
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"length wrong type", `std.length(1)`, "std.length"},
		{"makeArray negative", `std.makeArray(-1, function(n) n)`, "must not be negative"},
		{"join mixed types", `std.join(",", ["a", 1])`, "must be a string"},
		{"split empty delimiter", `std.split("ab", "")`, "must not be empty"},
		{"strReplace empty from", `std.strReplace("ab", "", "x")`, "must not be empty"},
		{"codepoint multi char", `std.codepoint("ab")`, "single character"},
		{"parseInt garbage", `std.parseInt("4.5")`, `cannot parse "4.5" as an integer`},
		{"parseJson invalid", `std.parseJson("{")`, "invalid JSON"},
		{"base64Decode invalid", `std.base64Decode("!!")`, "invalid base64"},
		{"sqrt negative", `std.sqrt(-1)`, "square root"},
		{"log non-positive", `std.log(0)`, "logarithm"},
		{"pow overflow", `std.pow(0, -1)`, "not a finite number"},
		{"assertEqual fails", `std.assertEqual([1], [2])`, "assertEqual failed: [1] != [2]"},
		{"filter non-boolean", `std.filter(function(x) x, [1])`, "must return a boolean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evalJSON(t, Options{}, tt.src)
			if err == nil {
				t.Fatalf("Expected error containing %q, got none", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestStd_ManifestJsonEx(t *testing.T) {
	got := mustEvalJSON(t, `std.manifestJsonEx({ a: [1] }, "  ")`)
	want := `"{\n  \"a\": [\n    1\n  ]\n}"`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}
