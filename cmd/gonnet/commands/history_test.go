package commands

import (
	"strings"
	"testing"

	"github.com/gonnet/gonnet/pkg/stores"
)

func TestSummarizeEntry(t *testing.T) {
	file := &stores.Evaluation{Kind: stores.KindFile, Entry: "/configs/service.gsn"}
	if got := summarizeEntry(file); got != "/configs/service.gsn" {
		t.Errorf("expected file entries unchanged, got %q", got)
	}

	snippet := &stores.Evaluation{
		Kind:  stores.KindSnippet,
		Entry: "{\n  port: 8080,\n}",
	}
	if got := summarizeEntry(snippet); got != "{ port: 8080, }" {
		t.Errorf("expected whitespace collapsed, got %q", got)
	}

	long := &stores.Evaluation{
		Kind:  stores.KindSnippet,
		Entry: strings.Repeat("x", 80),
	}
	got := summarizeEntry(long)
	if len(got) != 40 {
		t.Fatalf("expected 40 characters, got %d", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected truncation marker, got %q", got)
	}
}
