// Package policy is the security layer between the decision service and the
// workspace: every proposed action is checked against workspace confinement,
// path deny-lists, command allow/deny-lists, and size limits before any tool
// runs. Validation is a pure function of (action, policy, workspace root).
package policy

import "fmt"

// Kind classifies a security violation.
type Kind string

const (
	KindPathEscape        Kind = "path_escape"
	KindBlockedPath       Kind = "blocked_path"
	KindDangerousPattern  Kind = "dangerous_pattern"
	KindSizeLimit         Kind = "size_limit"
	KindCommandNotAllowed Kind = "command_not_allowed"
)

// Violation is the error returned for any rejected action. It is always
// recoverable for the task: the orchestrator records it as a failed outcome
// and moves on.
type Violation struct {
	Kind    Kind
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("security violation (%s): %s", v.Kind, v.Message)
}

// Code returns the stable error-kind code recorded in action outcomes.
func (v *Violation) Code() string {
	return "security." + string(v.Kind)
}

// Policy holds the configurable rule sets.
type Policy struct {
	// BlockedSegments are path segment names or basename globs rejected even
	// inside the workspace (credentials, VCS internals, dependency caches).
	BlockedSegments []string
	// AllowedCommands are the permitted leading tokens for run_command.
	AllowedCommands []string
	// DangerousPatterns reject a command outright: shell chaining,
	// redirection, substitution, privilege escalation, network fetchers.
	// Patterns are lowercase; a bare word ("curl") matches only on word
	// boundaries, anything else matches as a substring.
	DangerousPatterns []string
	// MaxReadBytes caps the size of files read or edited.
	MaxReadBytes int64
	// MaxWriteBytes caps the content size of created files.
	MaxWriteBytes int64
	// AllowedRoots, when set, restricts where workspace roots may live.
	AllowedRoots []string
}

// Default returns the baseline policy.
func Default() Policy {
	return Policy{
		BlockedSegments: []string{
			".env*", ".git", ".hg", ".svn",
			"node_modules", "__pycache__", ".venv", "venv", "vendor",
			"*.pyc", "*.key", "*.pem", "*.secret",
			"credentials", "secrets", ".idea", ".vscode",
		},
		AllowedCommands: []string{
			"go", "gofmt", "python", "python3", "pytest", "pip", "make",
		},
		DangerousPatterns: []string{
			"rm -rf", "rm -fr", "sudo", "chmod", "chown", "mkfs", "dd if=",
			">>", ">", "|", "&&", "||", ";", "`", "$(",
			"curl", "wget", "nc", "netcat", "eval",
		},
		MaxReadBytes:  1 << 20,   // 1 MiB
		MaxWriteBytes: 500 << 10, // 500 KiB
	}
}
