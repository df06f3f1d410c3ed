package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/githerd/githerd/internal/app"
	"github.com/githerd/githerd/internal/rebase"
	"github.com/githerd/githerd/internal/repo"
	"github.com/githerd/githerd/internal/state"
)

var statusRemote bool

func init() {
	statusCmd.Flags().BoolVar(&statusRemote, "remote", false, "also query each repository's remote HEAD")
	rootCmd.AddCommand(statusCmd)
}

type repoStatus struct {
	Root      string `json:"root"`
	Branch    string `json:"branch,omitempty"`
	Head      string `json:"head"`
	Operation string `json:"operation,omitempty"`
	Rebase    string `json:"rebase,omitempty"`
	Remote    string `json:"remote,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each repository's branch, revision and pending operation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if err := s.Store.RLock(ctx); err != nil {
			return err
		}
		defer s.Store.Unlock()

		spec, err := s.Store.LoadRebase(s.Roots())
		if err != nil && !errors.Is(err, state.ErrNoRebase) {
			return err
		}

		statuses := make([]repoStatus, 0, len(s.Repos))
		for _, r := range s.Repos {
			st := repoStatus{
				Root:   r.Root,
				Branch: r.Branch,
				Head:   shortRev(r.Head),
			}
			if ps := r.State(); ps != repo.StateNone {
				st.Operation = string(ps)
			}
			if spec != nil {
				st.Rebase = string(spec.Statuses[r.Root])
			}
			if statusRemote {
				st.Remote = remoteHead(cmd, s, r)
			}
			statuses = append(statuses, st)
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			payload := struct {
				Repositories []repoStatus `json:"repositories"`
				Rebase       *rebase.Spec `json:"rebase,omitempty"`
			}{statuses, spec}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		}

		for _, st := range statuses {
			var notes []string
			if st.Operation != "" {
				notes = append(notes, st.Operation)
			}
			if st.Rebase != "" {
				notes = append(notes, "rebase "+st.Rebase)
			}
			if st.Remote != "" {
				notes = append(notes, "remote "+st.Remote)
			}
			branch := st.Branch
			if branch == "" {
				branch = "(detached)"
			}
			fmt.Fprintf(out, "%-24s %-20s %s", shortName(st.Root), branch, st.Head)
			if len(notes) > 0 {
				fmt.Fprintf(out, "  [%s]", strings.Join(notes, ", "))
			}
			fmt.Fprintln(out)
		}
		if spec != nil {
			fmt.Fprintf(out, "\n%s started %s\n", spec.Params.Describe(), spec.StartedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func remoteHead(cmd *cobra.Command, s *app.Session, r *repo.Repository) string {
	refs, res := s.Git.LsRemote(cmd.Context(), r.Root, "", "HEAD")
	if !res.Success || len(refs) == 0 {
		return "unreachable"
	}
	return shortRev(refs[0].Hash)
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}

func shortName(root string) string {
	if i := strings.LastIndexByte(root, '/'); i >= 0 && i+1 < len(root) {
		return root[i+1:]
	}
	return root
}
