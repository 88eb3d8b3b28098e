package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gonnet/gonnet/pkg/policy"
	"github.com/gonnet/gonnet/pkg/vm"
	"github.com/gonnet/gonnet/pkg/workspace"
)

func newCheckCommand() *cobra.Command {
	var (
		flags       evalFlags
		policyPaths []string
	)

	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "Evaluate a document and check the result against policies",
		Long: `Evaluate a document and check the manifested JSON against Rego
policies.

Policies come from --policy flags and from the workspace policy section.
Each policy's deny rules run against the manifested output; any error or
critical violation denies the check. With the workspace policy mode set
to advisory, violations are reported but the command still exits zero.`,
		Example: `  # Check against a policy directory
  gonnet check --policy policies/ config.gsn

  # Check with workspace-configured policies
  gonnet check config.gsn

  # Machine-readable result
  gonnet check --json --policy policies/ config.gsn`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := loadWorkspace()
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, ws)
			if err != nil {
				return err
			}

			paths := policyCheckPaths(policyPaths, ws)
			if len(paths) == 0 {
				return fmt.Errorf("no policies configured: pass --policy or enable a policy section in the workspace file")
			}

			checker, err := policy.NewEngine(log.Logger)
			if err != nil {
				return err
			}
			if err := checker.LoadPolicies(cmd.Context(), paths); err != nil {
				return err
			}

			manifested, err := vm.EvaluateFile(args[0], opts...)
			if err != nil {
				return err
			}

			result, err := checker.CheckManifest(cmd.Context(), manifested, args[0])
			if err != nil {
				return err
			}

			if err := renderCheckResult(result); err != nil {
				return err
			}

			if !result.Allowed && checkEnforcing(ws) {
				return fmt.Errorf("policy check failed: %d violation(s)", len(result.Violations))
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringArrayVar(&policyPaths, "policy", nil, "policy file or directory (repeatable)")

	return cmd
}

// policyCheckPaths merges --policy flags with the workspace policy paths.
func policyCheckPaths(flagPaths []string, ws *workspace.Workspace) []string {
	paths := append([]string(nil), flagPaths...)
	if ws != nil && ws.Policy != nil && ws.Policy.Enabled {
		paths = append(paths, ws.Policy.Paths...)
	}
	return paths
}

func checkEnforcing(ws *workspace.Workspace) bool {
	if ws == nil {
		return true
	}
	return ws.Policy.Enforcing()
}

func renderCheckResult(result *policy.Result) error {
	if jsonOutput {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode check result: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	for _, warning := range result.Warnings {
		log.Warn().Msg(warning)
	}

	for i := range result.Violations {
		v := &result.Violations[i]
		fmt.Printf("%s [%s] %s\n", strings.ToUpper(string(v.Severity)), v.Policy, v.Message)
		if v.Remediation != "" {
			fmt.Printf("    remediation: %s\n", v.Remediation)
		}
	}

	summary := policy.Summarize(result)
	verdict := "OK"
	if !result.Allowed {
		verdict = "DENIED"
	}
	fmt.Printf("%s: %d policies, %d violation(s)\n", verdict, summary.TotalPolicies, summary.TotalViolations)
	return nil
}
