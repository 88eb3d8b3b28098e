package commands

import (
	"testing"

	"github.com/gonnet/gonnet/pkg/workspace"
)

func TestPolicyCheckPaths(t *testing.T) {
	ws := &workspace.Workspace{
		Version: 1,
		Policy: &workspace.PolicyConfig{
			Enabled: true,
			Paths:   []string{"/ws/policies"},
		},
	}

	got := policyCheckPaths([]string{"/flag/policies"}, ws)
	if len(got) != 2 || got[0] != "/flag/policies" || got[1] != "/ws/policies" {
		t.Errorf("expected flag paths then workspace paths, got %v", got)
	}

	disabled := &workspace.Workspace{
		Version: 1,
		Policy:  &workspace.PolicyConfig{Enabled: false, Paths: []string{"/ws/policies"}},
	}
	if got := policyCheckPaths(nil, disabled); len(got) != 0 {
		t.Errorf("expected no paths from a disabled policy section, got %v", got)
	}

	if got := policyCheckPaths(nil, nil); len(got) != 0 {
		t.Errorf("expected no paths without flags or workspace, got %v", got)
	}
}

func TestCheckEnforcing(t *testing.T) {
	if !checkEnforcing(nil) {
		t.Error("expected enforcing by default without a workspace")
	}
	if !checkEnforcing(&workspace.Workspace{Version: 1}) {
		t.Error("expected enforcing without a policy section")
	}
	advisory := &workspace.Workspace{
		Version: 1,
		Policy:  &workspace.PolicyConfig{Mode: "advisory"},
	}
	if checkEnforcing(advisory) {
		t.Error("expected advisory mode to disable enforcement")
	}
}
