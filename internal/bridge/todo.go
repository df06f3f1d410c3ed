package bridge

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Action is the instruction on one line of a rebase todo list.
type Action string

// The todo actions git understands, plus "skip" which marks an entry for
// removal when a plan is applied to a todo list.
const (
	ActionPick   Action = "pick"
	ActionReword Action = "reword"
	ActionEdit   Action = "edit"
	ActionSquash Action = "squash"
	ActionFixup  Action = "fixup"
	ActionDrop   Action = "drop"
	ActionSkip   Action = "skip"
)

var knownActions = map[Action]bool{
	ActionPick:   true,
	ActionReword: true,
	ActionEdit:   true,
	ActionSquash: true,
	ActionFixup:  true,
	ActionDrop:   true,
	ActionSkip:   true,
}

// Entry is one commit line of a todo list.
type Entry struct {
	Action  Action
	Hash    string
	Subject string
}

func (e Entry) String() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s %s", e.Action, e.Hash)
	}
	return fmt.Sprintf("%s %s %s", e.Action, e.Hash, e.Subject)
}

// Todo is a parsed rebase todo list. Empty is set when git wrote a noop
// list, meaning the rebase range holds no commits. Comments keeps the
// comment and blank lines in reading order; rewriting drops them.
type Todo struct {
	Empty    bool
	Entries  []Entry
	Comments []string
}

// ParseTodo reads a todo list in git's rebase format, one entry per line as
// "<action> <hash> <subject>". A line that is not blank, a comment, a noop
// or a known entry fails the whole parse.
func ParseTodo(r io.Reader) (Todo, error) {
	var todo Todo
	sawNoop := false
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			todo.Comments = append(todo.Comments, line)
			continue
		}
		if trimmed == "noop" {
			if len(todo.Entries) > 0 {
				return Todo{}, fmt.Errorf("line %d: noop after entries", n)
			}
			sawNoop = true
			continue
		}
		word, rest, _ := strings.Cut(trimmed, " ")
		action := Action(word)
		if !knownActions[action] {
			return Todo{}, fmt.Errorf("line %d: unknown action %q", n, word)
		}
		hash, subject, _ := strings.Cut(strings.TrimSpace(rest), " ")
		if hash == "" {
			return Todo{}, fmt.Errorf("line %d: %s without a commit", n, action)
		}
		todo.Entries = append(todo.Entries, Entry{
			Action:  action,
			Hash:    hash,
			Subject: strings.TrimSpace(subject),
		})
	}
	if err := sc.Err(); err != nil {
		return Todo{}, err
	}
	todo.Empty = sawNoop && len(todo.Entries) == 0
	return todo, nil
}

// WriteTodo writes entries in git's todo format. Comments are not carried
// over. An empty entry list is written as a noop so git treats the rebase
// as having nothing to do instead of failing on an empty file.
func WriteTodo(w io.Writer, entries []Entry) error {
	if len(entries) == 0 {
		_, err := io.WriteString(w, "noop\n")
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return err
		}
	}
	return nil
}

// ReadTodoFile parses the todo list at path.
func ReadTodoFile(path string) (Todo, error) {
	f, err := os.Open(path)
	if err != nil {
		return Todo{}, err
	}
	defer f.Close()
	todo, err := ParseTodo(f)
	if err != nil {
		return Todo{}, fmt.Errorf("%s: %w", path, err)
	}
	return todo, nil
}

// WriteTodoFile replaces the todo list at path.
func WriteTodoFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTodo(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ApplyPlan rewrites todo entries according to plan decisions. Plan entries
// are matched by commit hash, with either side allowed to abbreviate the
// other. A skip decision removes the entry, any other decision replaces its
// action, and entries the plan does not mention keep theirs. A plan entry
// that matches nothing is an error.
func ApplyPlan(todo, plan []Entry) ([]Entry, error) {
	used := make([]bool, len(plan))
	out := make([]Entry, 0, len(todo))
	for _, e := range todo {
		matched := -1
		for i, p := range plan {
			if hashMatches(e.Hash, p.Hash) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			used[matched] = true
			if plan[matched].Action == ActionSkip {
				continue
			}
			e.Action = plan[matched].Action
		}
		out = append(out, e)
	}
	for i, p := range plan {
		if !used[i] {
			return nil, fmt.Errorf("plan entry %q matches no commit in the todo list", p.Hash)
		}
	}
	return out, nil
}

// hashMatches reports whether two revision abbreviations agree over their
// common length.
func hashMatches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if len(a) > len(b) {
		a, b = b, a
	}
	return strings.EqualFold(b[:len(a)], a)
}
