package vm

import (
	"errors"
	"strings"
	"testing"

	"github.com/gonnet/gonnet/pkg/engine"
)

func TestError_Format(t *testing.T) {
	e := newError(KindParse, "unexpected end of file")
	if e.Error() != "[parse] unexpected end of file" {
		t.Errorf("Expected bracketed kind prefix, got %s", e.Error())
	}

	e = &Error{Kind: KindRuntime, Message: "boom", Trace: "\ttest.gsn:1:1\terror"}
	want := "[runtime] boom\n\ttest.gsn:1:1\terror"
	if e.Error() != want {
		t.Errorf("Expected %q, got %q", want, e.Error())
	}
}

func TestError_KindMatching(t *testing.T) {
	err := newError(KindImportNotFound, "import target not found: x.gsn")

	if !errors.Is(err, &Error{Kind: KindImportNotFound}) {
		t.Errorf("Expected errors.Is to match on kind")
	}
	if errors.Is(err, &Error{Kind: KindParse}) {
		t.Errorf("Expected errors.Is to reject a different kind")
	}
	if !IsImportNotFound(err) {
		t.Errorf("Expected IsImportNotFound to match")
	}
	if IsParseError(err) || IsRuntimeError(err) || IsConfigError(err) {
		t.Errorf("Expected other predicates to reject")
	}
	if IsImportNotFound(nil) {
		t.Errorf("Expected predicates to reject nil")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("disk on fire")
	err := wrapError(KindImportIO, cause, "cannot read a.gsn: %v", cause)
	if !errors.Is(err, cause) {
		t.Errorf("Expected cause to stay reachable through Unwrap")
	}
}

// stubImporter hands back canned resolutions so evaluator-wrapped failures
// can be produced without touching the filesystem.
type stubImporter struct {
	resolveErr error
	contents   string
}

func (s stubImporter) Resolve(from engine.Source, path string) (engine.Source, error) {
	if s.resolveErr != nil {
		return engine.Source{}, s.resolveErr
	}
	return engine.Source{Kind: engine.SourceFile, Path: "/stub/" + path}, nil
}

func (s stubImporter) Load(src engine.Source) (string, error) {
	return s.contents, nil
}

func TestTranslate_PromotesImportKind(t *testing.T) {
	resolveErr := newError(KindImportNotFound,
		"import target not found: /lib/x.gsn (imported from /src/e.gsn)")
	i := engine.New(engine.Options{Importer: stubImporter{resolveErr: resolveErr}})

	_, err := i.EvaluateSnippet("test.gsn", `import "x.gsn"`)
	if err == nil {
		t.Fatalf("Expected error, got none")
	}

	translated := translate(err, DefaultMaxTrace)
	var e *Error
	if !errors.As(translated, &e) {
		t.Fatalf("Expected classified error, got: %v", translated)
	}
	if e.Kind != KindImportNotFound {
		t.Errorf("Expected import_not_found kind, got %s", e.Kind)
	}
	if e.Message != resolveErr.Message {
		t.Errorf("Expected importer message to be promoted, got %q", e.Message)
	}
	if strings.Count(e.Error(), "[import_not_found]") != 1 {
		t.Errorf("Expected exactly one kind prefix, got %q", e.Error())
	}
}

func TestTranslate_PromotesParseKind(t *testing.T) {
	i := engine.New(engine.Options{Importer: stubImporter{contents: "local x ="}})

	_, err := i.EvaluateSnippet("test.gsn", `import "x.gsn"`)
	if err == nil {
		t.Fatalf("Expected error, got none")
	}

	translated := translate(err, DefaultMaxTrace)
	var e *Error
	if !errors.As(translated, &e) {
		t.Fatalf("Expected classified error, got: %v", translated)
	}
	if e.Kind != KindParse {
		t.Errorf("Expected parse kind, got %s", e.Kind)
	}
	if !strings.Contains(e.Message, "/stub/x.gsn") {
		t.Errorf("Expected message to name the imported file, got %q", e.Message)
	}
}

func TestTranslate_Fallback(t *testing.T) {
	translated := translate(errors.New("plain failure"), 0)
	var e *Error
	if !errors.As(translated, &e) {
		t.Fatalf("Expected classified error, got: %v", translated)
	}
	if e.Kind != KindRuntime {
		t.Errorf("Expected runtime kind, got %s", e.Kind)
	}
	if e.Message != "plain failure" {
		t.Errorf("Expected original message, got %q", e.Message)
	}
}

func TestTranslate_PassesThroughClassified(t *testing.T) {
	ve := newError(KindConfig, "bad option")
	if translated := translate(ve, 5); translated != error(ve) {
		t.Errorf("Expected classified errors to pass through unchanged, got: %v", translated)
	}
}
