package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewEngine(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng == nil {
		t.Fatal("Engine is nil")
	}

	// Check that built-in policies are loaded
	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"empty-output",
		"output-size",
		"top-level-shape",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestCheckManifest_BuiltinShapes(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		manifest        string
		expectAllowed   bool
		expectViolation bool
	}{
		{
			name:            "populated object",
			manifest:        "{\n   \"port\": 8080\n}",
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "populated array",
			manifest:        `[1, 2]`,
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "empty object",
			manifest:        `{}`,
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "empty array",
			manifest:        `[]`,
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "null output",
			manifest:        `null`,
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "scalar output",
			manifest:        `42`,
			expectAllowed:   true,
			expectViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.CheckManifest(context.Background(), tt.manifest, "test.gsn")
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}

			hasViolation := len(result.Violations) > 0
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v violations: %+v",
					tt.expectViolation, hasViolation, result.Violations)
			}
		})
	}
}

func TestCheckManifest_InvalidJSON(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	_, err = eng.CheckManifest(context.Background(), "not json", "test.gsn")
	if err == nil {
		t.Error("Expected error for undecodable manifest")
	}
}

func TestCheck_CustomPolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "no-port-80.rego")

	regoContent := `package test.ports

import rego.v1

deny contains violation if {
	input.output.port == 80
	violation := {
		"message": "port 80 is not allowed",
		"severity": "error",
	}
}`

	if err := os.WriteFile(policyFile, []byte(regoContent), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{policyFile}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	result, err := eng.CheckManifest(context.Background(), `{"port": 80}`, "svc.gsn")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected check to fail for port 80")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "no-port-80" {
			found = true
			if v.Message != "port 80 is not allowed" {
				t.Errorf("Unexpected message: %s", v.Message)
			}
			if v.Source != "svc.gsn" {
				t.Errorf("Expected source svc.gsn, got %s", v.Source)
			}
			if v.Severity != SeverityError {
				t.Errorf("Expected error severity, got %s", v.Severity)
			}
		}
	}
	if !found {
		t.Errorf("Expected a no-port-80 violation, got: %+v", result.Violations)
	}

	// A compliant output passes the same policy set
	result, err = eng.CheckManifest(context.Background(), `{"port": 8080}`, "svc.gsn")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected check to pass for port 8080, violations: %+v", result.Violations)
	}
}

func TestCheck_SeverityGate(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	// A deny entry may be a plain string; severity falls back to the policy
	advisory := Policy{
		Name:     "advisory",
		Severity: SeverityWarning,
		Enabled:  true,
		Rego: `package test.advisory

import rego.v1

deny contains msg if {
	input.output.legacy == true
	msg := "legacy flag is set"
}`,
	}

	if err := eng.ReloadPolicies(context.Background(), []Policy{advisory}); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	result, err := eng.CheckManifest(context.Background(), `{"legacy": true}`, "svc.gsn")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Warning severity should not fail the check, violations: %+v", result.Violations)
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "advisory" {
			found = true
			if v.Message != "legacy flag is set" {
				t.Errorf("Unexpected message: %s", v.Message)
			}
			if v.Severity != SeverityWarning {
				t.Errorf("Expected warning severity, got %s", v.Severity)
			}
		}
	}
	if !found {
		t.Errorf("Expected an advisory violation, got: %+v", result.Violations)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policyName := "empty-output"

	// Disable the policy
	err = eng.DisablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	// An empty object passes while the policy is disabled
	result, err := eng.CheckManifest(context.Background(), `{}`, "test.gsn")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !result.Allowed {
		t.Errorf("Expected empty output to pass with policy disabled, violations: %+v", result.Violations)
	}

	for _, v := range result.Violations {
		if v.Policy == policyName {
			t.Error("Disabled policy should not generate violations")
		}
	}

	// Re-enable the policy
	err = eng.EnablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}

	result, err = eng.CheckManifest(context.Background(), `{}`, "test.gsn")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected empty output to fail with policy re-enabled")
	}
}

func TestReloadPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	builtinCount := len(eng.ListPolicies())

	custom := Policy{
		Name:     "custom",
		Severity: SeverityError,
		Enabled:  true,
		Rego:     "package test.custom\n\nimport rego.v1\n\ndeny contains msg if {\n\tfalse\n\tmsg := \"never\"\n}",
	}

	if err := eng.ReloadPolicies(context.Background(), []Policy{custom}); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	if got := len(eng.ListPolicies()); got != builtinCount+1 {
		t.Errorf("Expected %d policies after reload, got %d", builtinCount+1, got)
	}

	// Reloading with no file policies restores just the built-ins
	if err := eng.ReloadPolicies(context.Background(), nil); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	if got := len(eng.ListPolicies()); got != builtinCount {
		t.Errorf("Expected %d policies after reload, got %d", builtinCount, got)
	}
}

func TestListPolicies(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()

	if len(policies) == 0 {
		t.Fatal("No policies returned")
	}

	// Sorted by name
	if policies[0].Name != "empty-output" {
		t.Errorf("Expected empty-output first, got %s", policies[0].Name)
	}

	// Check that all policies have required fields
	for _, p := range policies {
		if p.Name == "" {
			t.Error("Policy has empty name")
		}
		if p.Rego == "" {
			t.Error("Policy has empty Rego code")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Policy has zero CreatedAt")
		}
	}
}

func TestGetPolicy_NotFound(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)
	eng, err := NewEngine(logger)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if _, err := eng.GetPolicy("no-such-policy"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestSummarize(t *testing.T) {
	result := &Result{
		Allowed: false,
		Violations: []Violation{
			{Policy: "a", Severity: SeverityError},
			{Policy: "b", Severity: SeverityWarning},
			{Policy: "c", Severity: SeverityWarning},
		},
		Warnings:          []string{"policy d evaluation failed"},
		EvaluatedPolicies: []string{"a", "b", "c", "d"},
		Duration:          5 * time.Millisecond,
	}

	summary := Summarize(result)

	if summary.TotalPolicies != 4 {
		t.Errorf("Expected 4 policies, got %d", summary.TotalPolicies)
	}
	if summary.TotalViolations != 3 {
		t.Errorf("Expected 3 violations, got %d", summary.TotalViolations)
	}
	if summary.ViolationsBySeverity[SeverityError] != 1 {
		t.Errorf("Expected 1 error violation, got %d", summary.ViolationsBySeverity[SeverityError])
	}
	if summary.ViolationsBySeverity[SeverityWarning] != 2 {
		t.Errorf("Expected 2 warning violations, got %d", summary.ViolationsBySeverity[SeverityWarning])
	}
	if summary.TotalWarnings != 1 {
		t.Errorf("Expected 1 warning, got %d", summary.TotalWarnings)
	}
	if summary.Duration != 5*time.Millisecond {
		t.Errorf("Expected 5ms duration, got %v", summary.Duration)
	}
}
