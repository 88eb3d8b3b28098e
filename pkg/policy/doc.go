// Package policy provides Open Policy Agent (OPA) integration for gonnet.
//
// This package checks manifested evaluation outputs against Rego policies,
// conftest-style. It includes built-in policies for common output hygiene
// requirements and supports custom policy loading with hot reload.
//
// # Architecture
//
// The policy system consists of four main components:
//
//  1. Engine - Compiles policies and checks outputs against them
//  2. Loader - Loads policies from files, directories, and bundles
//  3. Types - Data structures for policies, violations, and results
//  4. Built-in Policies - Pre-defined policies for output hygiene
//
// # Usage
//
// Creating a policy engine:
//
//	logger := zerolog.New(os.Stdout)
//	engine, err := policy.NewEngine(logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Checking a manifested output:
//
//	manifest, err := vm.EvaluateFile("service.gsn")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := engine.CheckManifest(ctx, manifest, "service.gsn")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if !result.Allowed {
//	    for _, violation := range result.Violations {
//	        fmt.Printf("Policy %s violated: %s\n", violation.Policy, violation.Message)
//	    }
//	}
//
// Loading custom policies:
//
//	paths := []string{
//	    "/etc/gonnet/policies",
//	    "/opt/policies/custom.rego",
//	}
//
//	err = engine.LoadPolicies(ctx, paths)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Input Document
//
// Policies receive the manifested output decoded from JSON, together with
// the source it came from and check context:
//
//	{
//	    "output": { ... },
//	    "source": "service.gsn",
//	    "context": {
//	        "operation": "check",
//	        "timestamp": "..."
//	    }
//	}
//
// # Built-in Policies
//
// The following policies are included by default:
//
//  1. empty-output - Rejects null or empty top-level documents
//  2. output-size - Warns when the output exceeds a size threshold
//  3. top-level-shape - Flags scalar top-level documents
//
// # Custom Policies
//
// Custom policies are written in Rego against the input document. Each deny
// entry becomes one violation:
//
//	package custom.policies.ports
//
//	import rego.v1
//
//	deny contains violation if {
//	    some name, service in input.output
//	    service.port < 1024
//
//	    violation := {
//	        "message": sprintf("Service %s uses privileged port %d", [name, service.port]),
//	        "severity": "error",
//	    }
//	}
//
// A deny entry may be a plain string or an object with message, severity,
// source, remediation and details fields. Missing fields fall back to the
// policy defaults.
//
// # Severity Levels
//
// Violations have four severity levels:
//
//  - info: Informational messages
//  - warning: Issues that should be reviewed but don't fail the check
//  - error: Issues that fail the check
//  - critical: Severe issues requiring immediate attention
//
// A check is allowed when no violation reaches error severity.
//
// # Hot Reload
//
// The loader supports watching policy files for changes and reloading
// automatically:
//
//	loader := policy.NewLoader(logger)
//	err = loader.Watch(ctx, paths, func(policies []policy.Policy) error {
//	    return engine.ReloadPolicies(ctx, policies)
//	})
//
// # Performance
//
// Policies are compiled once and their deny queries prepared for reuse, so
// repeated checks against the same policy set avoid recompilation. Caching
// is implemented at both the loader and engine levels.
package policy
