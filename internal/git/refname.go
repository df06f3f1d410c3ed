package git

import (
	"errors"
	"strings"
)

var (
	errEmptyRefName      = errors.New("name cannot be empty")
	errRefWhitespace     = errors.New("name cannot contain whitespace")
	errRefDoubleDot      = errors.New("name cannot contain '..'")
	errRefForbiddenChars = errors.New("name contains forbidden git characters")
	errRefBadEdge        = errors.New("name has a forbidden leading or trailing component")
)

// ValidateRefName checks a branch or tag name against the character rules git
// enforces, so bad names fail before a process is ever spawned.
func ValidateRefName(name string) error {
	if name == "" {
		return errEmptyRefName
	}
	if strings.ContainsAny(name, " \t\n\r") {
		return errRefWhitespace
	}
	if strings.Contains(name, "..") {
		return errRefDoubleDot
	}
	if strings.ContainsAny(name, "~^:?*[]\\") || strings.Contains(name, "@{") {
		return errRefForbiddenChars
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".") || strings.HasSuffix(name, ".lock") {
		return errRefBadEdge
	}
	for _, comp := range strings.Split(name, "/") {
		if comp == "" {
			return errRefBadEdge
		}
	}
	return nil
}

// NormalizeBranch trims whitespace, removes leading and trailing slashes, and
// strips a refs/heads/ prefix from a branch name. It returns an empty string
// when nothing usable remains.
func NormalizeBranch(branch string) string {
	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	if len(branch) >= len("refs/heads/") && strings.EqualFold(branch[:len("refs/heads/")], "refs/heads/") {
		branch = branch[len("refs/heads/"):]
	}

	branch = strings.TrimSpace(branch)
	branch = strings.Trim(branch, "/")

	return strings.TrimSpace(branch)
}
