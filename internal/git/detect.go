package git

import (
	"regexp"
	"strings"
)

// The detectors below encode the messages git prints for the situations the
// engines care about. Matching is against lowercased trimmed text so the
// detectors survive the capitalization drift between git versions. Each
// detector folds the whole output into at most one event of its kind.

// DetectConflict recognizes a command that stopped on merge conflicts and
// collects the conflicting paths git names.
func DetectConflict() Detector {
	return func(lines []string) []Event {
		var paths []string
		hit := ""
		for _, line := range lines {
			lower := strings.ToLower(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(lower, "conflict ("):
				if hit == "" {
					hit = line
				}
				if idx := strings.Index(line, "Merge conflict in "); idx >= 0 {
					paths = append(paths, strings.TrimSpace(line[idx+len("Merge conflict in "):]))
				}
			case strings.Contains(lower, "could not apply"),
				strings.Contains(lower, "automatic merge failed"),
				strings.Contains(lower, "resolve all conflicts manually"),
				strings.Contains(lower, "fix conflicts and then run"):
				if hit == "" {
					hit = line
				}
			}
		}
		if hit == "" {
			return nil
		}
		return []Event{{Kind: EventConflict, Paths: paths, Line: hit}}
	}
}

// DetectUntrackedOverwrite recognizes the refusal to overwrite untracked
// working tree files and captures the indented file list below the header.
func DetectUntrackedOverwrite() Detector {
	return func(lines []string) []Event {
		for i, line := range lines {
			lower := strings.ToLower(line)
			if !strings.Contains(lower, "untracked working tree files would be overwritten by") {
				continue
			}
			paths, _ := captureIndented(lines, i+1)
			return []Event{{Kind: EventUntrackedOverwrite, Paths: paths, Line: strings.TrimSpace(line)}}
		}
		return nil
	}
}

var localChangesSingle = regexp.MustCompile(`local changes to '([^']+)'`)

// DetectLocalChangesOverwrite recognizes the refusal to overwrite tracked
// local modifications. The operation scopes the match to the header git
// prints for that subcommand; an empty operation matches any.
func DetectLocalChangesOverwrite(operation string) Detector {
	return func(lines []string) []Event {
		header := "would be overwritten by"
		if operation != "" {
			header = "would be overwritten by " + strings.ToLower(operation)
		}
		for i, line := range lines {
			lower := strings.ToLower(line)
			if strings.Contains(lower, "local changes to the following files") && strings.Contains(lower, header) {
				paths, _ := captureIndented(lines, i+1)
				return []Event{{Kind: EventLocalChangesOverwrite, Paths: paths, Line: strings.TrimSpace(line)}}
			}
			// Pre-1.7 single-file form.
			if m := localChangesSingle.FindStringSubmatch(lower); m != nil && strings.Contains(lower, "cannot switch") {
				return []Event{{Kind: EventLocalChangesOverwrite, Paths: []string{m[1]}, Line: strings.TrimSpace(line)}}
			}
		}
		return nil
	}
}

// DetectUnmergedFiles recognizes unresolved files left behind by an earlier
// operation blocking the command.
func DetectUnmergedFiles() Detector {
	return matchAny(EventUnmergedFiles,
		"because you have unmerged files",
		"you need to resolve your current index first",
		"needs merge",
		"is unmerged",
	)
}

var mergedToRef = regexp.MustCompile(`merged to '([^']+)'`)

// DetectNotFullyMerged recognizes a branch deletion refused because the
// branch is not merged, capturing the base branch when git names one. The
// warning wraps the quoted base onto the following line, so the fold carries
// one line of lookahead state.
func DetectNotFullyMerged() Detector {
	return func(lines []string) []Event {
		ref := ""
		hit := ""
		expectRef := false
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			lower := strings.ToLower(trimmed)
			if expectRef {
				expectRef = false
				if strings.HasPrefix(trimmed, "'") {
					if end := strings.Index(trimmed[1:], "'"); end >= 0 {
						ref = trimmed[1 : 1+end]
					}
				}
			}
			if strings.Contains(lower, "is not fully merged") || strings.Contains(lower, "not yet merged") {
				if hit == "" {
					hit = trimmed
				}
				if m := mergedToRef.FindStringSubmatch(line); m != nil {
					ref = m[1]
				} else if strings.HasSuffix(lower, "merged to") {
					expectRef = true
				}
			}
		}
		if hit == "" {
			return nil
		}
		return []Event{{Kind: EventNotFullyMerged, Ref: ref, Line: hit}}
	}
}

// DetectNoChanges recognizes a step with nothing left to apply, such as a
// cherry-pick whose patch is already present upstream.
func DetectNoChanges() Detector {
	return func(lines []string) []Event {
		for _, line := range lines {
			lower := strings.ToLower(strings.TrimSpace(line))
			if strings.HasPrefix(lower, "no changes") ||
				strings.HasPrefix(lower, "nothing to commit") ||
				strings.Contains(lower, "cherry-pick is now empty") {
				return []Event{{Kind: EventNoChanges, Line: strings.TrimSpace(line)}}
			}
		}
		return nil
	}
}

// DetectDirtyTree recognizes a command refusing to start on a working tree
// with uncommitted changes.
func DetectDirtyTree() Detector {
	return matchAny(EventDirtyTree,
		"you have unstaged changes",
		"your index contains uncommitted changes",
		"commit or stash them",
	)
}

// DetectOperationInProgress recognizes another sequencing operation already
// underway in the repository.
func DetectOperationInProgress() Detector {
	return matchAny(EventOperationInProgress,
		"already in progress",
		"there is already a rebase-",
		"in the middle of",
		"in progress. cannot rebase",
	)
}

// DetectAuthFailure recognizes rejected credentials on a remote command.
func DetectAuthFailure() Detector {
	return matchAny(EventAuthFailed,
		"authentication failed",
		"403 forbidden",
		"returned error: 403",
		"could not read username",
		"could not read password",
		"invalid username or password",
		"http basic: access denied",
	)
}

// matchAny builds a detector emitting one event when any line contains any of
// the given fragments.
func matchAny(kind EventKind, fragments ...string) Detector {
	return func(lines []string) []Event {
		for _, line := range lines {
			lower := strings.ToLower(line)
			for _, frag := range fragments {
				if strings.Contains(lower, frag) {
					return []Event{{Kind: kind, Line: strings.TrimSpace(line)}}
				}
			}
		}
		return nil
	}
}

// captureIndented collects the indented lines following a list header, in the
// form git uses for file lists, and returns the index after the list.
func captureIndented(lines []string, start int) ([]string, int) {
	var paths []string
	i := start
	for ; i < len(lines); i++ {
		line := lines[i]
		if line == "" || (!strings.HasPrefix(line, "\t") && !strings.HasPrefix(line, "    ")) {
			break
		}
		paths = append(paths, strings.TrimSpace(line))
	}
	return paths, i
}
