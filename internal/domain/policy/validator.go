package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Strob0t/CodeSmith/internal/domain/action"
)

// Validator checks proposed actions against one workspace root. The root is
// resolved through symlinks once at construction so later containment checks
// compare canonical paths.
type Validator struct {
	policy Policy
	root   string
}

// NewValidator resolves workspaceRoot and, when the policy restricts
// workspace placement, checks it against the allowed roots. The root must
// exist.
func NewValidator(p Policy, workspaceRoot string) (*Validator, error) {
	abs, err := filepath.Abs(workspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root %s: %w", workspaceRoot, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat workspace root %s: %w", workspaceRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace root %s is not a directory", workspaceRoot)
	}

	if len(p.AllowedRoots) > 0 {
		ok := false
		for _, allowed := range p.AllowedRoots {
			base, err := filepath.Abs(allowed)
			if err != nil {
				continue
			}
			if resolved, err := filepath.EvalSymlinks(base); err == nil {
				base = resolved
			}
			if root == base || strings.HasPrefix(root, base+string(filepath.Separator)) {
				ok = true
				break
			}
		}
		if !ok {
			return nil, &Violation{
				Kind:    KindPathEscape,
				Message: fmt.Sprintf("workspace root %s is outside the allowed roots", workspaceRoot),
			}
		}
	}

	return &Validator{policy: p, root: root}, nil
}

// Root returns the canonical workspace root.
func (v *Validator) Root() string { return v.root }

// Policy returns the rule set in force.
func (v *Validator) Policy() Policy { return v.policy }

// Validate approves or rejects one action. A nil return means the action may
// be executed. Rejections are always *Violation.
func (v *Validator) Validate(a action.Action) error {
	switch a.Name {
	case action.Read:
		resolved, err := v.CheckPath(a.Read.Path)
		if err != nil {
			return err
		}
		return v.checkReadSize(resolved, a.Read.Path)

	case action.Edit:
		resolved, err := v.CheckPath(a.Edit.Path)
		if err != nil {
			return err
		}
		return v.checkReadSize(resolved, a.Edit.Path)

	case action.Create:
		if _, err := v.CheckPath(a.Create.Path); err != nil {
			return err
		}
		if int64(len(a.Create.Content)) > v.policy.MaxWriteBytes {
			return &Violation{
				Kind:    KindSizeLimit,
				Message: fmt.Sprintf("content for %s is %d bytes, limit %d", a.Create.Path, len(a.Create.Content), v.policy.MaxWriteBytes),
			}
		}
		return nil

	case action.Delete:
		_, err := v.CheckPath(a.Delete.Path)
		return err

	case action.List:
		_, err := v.CheckPath(a.List.Path)
		return err

	case action.Search:
		_, err := v.CheckPath(a.Search.Path)
		return err

	case action.Diff:
		_, err := v.CheckPath(a.Diff.Path)
		return err

	case action.RunTests:
		if a.RunTests.Path != "" {
			_, err := v.CheckPath(a.RunTests.Path)
			return err
		}
		return nil

	case action.RunCommand:
		if err := v.checkCommand(a.RunCommand.Command); err != nil {
			return err
		}
		if a.RunCommand.WorkingDir != "" {
			_, err := v.CheckPath(a.RunCommand.WorkingDir)
			return err
		}
		return nil

	case action.AskUser, action.ReportError, action.Finish:
		return nil
	}

	return &Violation{Kind: KindCommandNotAllowed, Message: fmt.Sprintf("unknown tool %s", a.Name)}
}

// CheckPath resolves p against the workspace and applies the containment and
// deny-list rules. Returns the canonical absolute path on approval.
func (v *Validator) CheckPath(p string) (string, error) {
	resolved, err := ResolveWithin(v.root, p)
	if err != nil {
		return "", err
	}

	rel, relErr := filepath.Rel(v.root, resolved)
	if relErr != nil {
		return "", &Violation{Kind: KindPathEscape, Message: fmt.Sprintf("path %s escapes workspace root", p)}
	}
	if rel != "." {
		for _, segment := range strings.Split(rel, string(filepath.Separator)) {
			if v.blockedSegment(segment) {
				return "", &Violation{
					Kind:    KindBlockedPath,
					Message: fmt.Sprintf("path %s touches blocked segment %q", p, segment),
				}
			}
		}
	}
	return resolved, nil
}

// Blocked reports whether a single path segment matches the deny-list.
// Directory walkers use it to prune deny-listed subtrees.
func (v *Validator) Blocked(segment string) bool {
	return v.blockedSegment(segment)
}

func (v *Validator) blockedSegment(segment string) bool {
	segment = strings.ToLower(segment)
	for _, blocked := range v.policy.BlockedSegments {
		blocked = strings.ToLower(blocked)
		if strings.ContainsAny(blocked, "*?[") {
			if ok, err := filepath.Match(blocked, segment); err == nil && ok {
				return true
			}
			continue
		}
		if segment == blocked {
			return true
		}
	}
	return false
}

func (v *Validator) checkReadSize(resolved, original string) error {
	info, err := os.Stat(resolved)
	if err != nil {
		// Absent files fall through to the tool's not-found handling.
		return nil
	}
	if info.Mode().IsRegular() && info.Size() > v.policy.MaxReadBytes {
		return &Violation{
			Kind:    KindSizeLimit,
			Message: fmt.Sprintf("file %s is %d bytes, limit %d", original, info.Size(), v.policy.MaxReadBytes),
		}
	}
	return nil
}

func (v *Validator) checkCommand(cmd string) error {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return &Violation{Kind: KindCommandNotAllowed, Message: "empty command"}
	}

	head := fields[0]
	allowed := false
	for _, c := range v.policy.AllowedCommands {
		if head == c {
			allowed = true
			break
		}
	}
	if !allowed {
		return &Violation{
			Kind:    KindCommandNotAllowed,
			Message: fmt.Sprintf("command %q is not in the allow-list", head),
		}
	}

	lower := strings.ToLower(cmd)
	for _, pattern := range v.policy.DangerousPatterns {
		if matchesPattern(lower, pattern) {
			return &Violation{
				Kind:    KindDangerousPattern,
				Message: fmt.Sprintf("command contains disallowed pattern %q", pattern),
			}
		}
	}
	return nil
}

// matchesPattern reports whether cmd contains pattern. A pattern that is a
// single bare word ("curl", "eval") matches only on word boundaries, so an
// argument like ./evaluator does not trip it; patterns carrying spaces or
// shell metacharacters match as plain substrings.
func matchesPattern(cmd, pattern string) bool {
	if !isBareWord(pattern) {
		return strings.Contains(cmd, pattern)
	}
	for i := 0; ; {
		j := strings.Index(cmd[i:], pattern)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(pattern)
		if (start == 0 || !isWordByte(cmd[start-1])) && (end == len(cmd) || !isWordByte(cmd[end])) {
			return true
		}
		i = start + 1
	}
}

func isBareWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isWordByte(s[i]) {
			return false
		}
	}
	return true
}

// isWordByte treats path and identifier characters as word-internal, so a
// bare-word pattern never fires inside a file name like eval.py or
// curl-clone.
func isWordByte(b byte) bool {
	switch {
	case 'a' <= b && b <= 'z', 'A' <= b && b <= 'Z', '0' <= b && b <= '9':
		return true
	case b == '_', b == '-', b == '.', b == '/':
		return true
	}
	return false
}

// ResolveWithin canonicalizes p (absolute or root-relative) and requires the
// result to stay inside root. Symlinks are resolved on the longest existing
// prefix, so links pointing outside the workspace cannot smuggle a path in.
func ResolveWithin(root, p string) (string, error) {
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	resolved, err := resolveExistingPrefix(target)
	if err != nil {
		return "", &Violation{Kind: KindPathEscape, Message: fmt.Sprintf("cannot resolve path %s", p)}
	}

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", &Violation{Kind: KindPathEscape, Message: fmt.Sprintf("path %s escapes workspace root", p)}
	}
	return resolved, nil
}

// resolveExistingPrefix walks up from target until EvalSymlinks succeeds,
// then re-attaches the non-existing remainder. The remainder is lexically
// clean (target was Cleaned), so it cannot re-introduce "..".
func resolveExistingPrefix(target string) (string, error) {
	var tail []string
	cur := target
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", err
		}
		tail = append(tail, filepath.Base(cur))
		cur = parent
	}
}
