package policy

import (
	"time"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		emptyOutputPolicy(),
		outputSizePolicy(),
		topLevelShapePolicy(),
	}
}

// emptyOutputPolicy rejects evaluations that manifest an empty document.
func emptyOutputPolicy() Policy {
	return Policy{
		Name:        "empty-output",
		Description: "Rejects evaluations whose manifested output is null or an empty object or array",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"output", "shape"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package gonnet.policies.output

import rego.v1

deny contains violation if {
	is_null(input.output)
	violation := {
		"message": sprintf("Evaluation of %s manifested null", [input.source]),
		"severity": "error",
		"source": input.source,
	}
}

deny contains violation if {
	input.output == {}
	violation := {
		"message": sprintf("Evaluation of %s manifested an empty object", [input.source]),
		"severity": "error",
		"source": input.source,
		"remediation": "Populate the top-level object or remove the entry from the workspace",
	}
}

deny contains violation if {
	input.output == []
	violation := {
		"message": sprintf("Evaluation of %s manifested an empty array", [input.source]),
		"severity": "error",
		"source": input.source,
		"remediation": "Populate the top-level array or remove the entry from the workspace",
	}
}`,
	}
}

// outputSizePolicy warns when the manifested output grows past a threshold.
func outputSizePolicy() Policy {
	return Policy{
		Name:        "output-size",
		Description: "Warns when the manifested output exceeds one million characters",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"output", "size"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package gonnet.policies.size

import rego.v1

# Maximum manifested size in characters
max_output_size := 1000000

deny contains violation if {
	size := count(json.marshal(input.output))
	size > max_output_size

	violation := {
		"message": sprintf("Manifested output of %s is %d characters, above the %d character threshold", [input.source, size, max_output_size]),
		"severity": "warning",
		"source": input.source,
	}
}`,
	}
}

// topLevelShapePolicy flags scalar top-level documents.
func topLevelShapePolicy() Policy {
	return Policy{
		Name:        "top-level-shape",
		Description: "Flags evaluations whose top-level document is a scalar rather than an object or array",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"output", "shape"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package gonnet.policies.shape

import rego.v1

deny contains violation if {
	not is_null(input.output)
	not is_object(input.output)
	not is_array(input.output)

	violation := {
		"message": sprintf("Evaluation of %s manifested a scalar top-level value", [input.source]),
		"severity": "info",
		"source": input.source,
	}
}`,
	}
}
