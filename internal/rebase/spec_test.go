package rebase_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/githerd/githerd/internal/rebase"
)

var _ = Describe("Spec", func() {
	params := rebase.Params{Upstream: "origin/main"}

	It("snapshots roots, pending statuses, and initial positions", func() {
		repos := makeRepos("alpha", "beta")
		repos[1].Branch = "feature"
		repos[1].Head = "feat-head"

		spec := rebase.NewSpec(params, repos)

		Expect(spec.Roots).To(Equal([]string{"/repos/alpha", "/repos/beta"}))
		Expect(spec.Statuses["/repos/beta"]).To(Equal(rebase.StatusPending))
		Expect(spec.Initial["/repos/beta"]).To(Equal(rebase.Position{Branch: "feature", Head: "feat-head"}))
		Expect(spec.StartedAt.IsZero()).To(BeFalse())
	})

	It("clones deeply", func() {
		spec := rebase.NewSpec(params, makeRepos("alpha"))
		clone := spec.Clone()

		spec.Statuses["/repos/alpha"] = rebase.StatusFailed
		spec.Initial["/repos/alpha"] = rebase.Position{Head: "other"}
		spec.Stashed = append(spec.Stashed, "/repos/alpha")

		Expect(clone.Statuses["/repos/alpha"]).To(Equal(rebase.StatusPending))
		Expect(clone.Initial["/repos/alpha"].Head).To(Equal("baseline"))
		Expect(clone.Stashed).To(BeEmpty())
	})

	It("is finished only when every repository succeeded", func() {
		spec := rebase.NewSpec(params, makeRepos("alpha", "beta"))
		Expect(spec.Finished()).To(BeFalse())

		spec.Statuses["/repos/alpha"] = rebase.StatusRebased
		spec.Statuses["/repos/beta"] = rebase.StatusSuspended
		Expect(spec.Finished()).To(BeFalse())

		spec.Statuses["/repos/beta"] = rebase.StatusUpToDate
		Expect(spec.Finished()).To(BeTrue())
	})

	It("describes the rebase target", func() {
		Expect(rebase.Params{Upstream: "origin/main"}.Describe()).To(Equal("rebase onto origin/main"))
		Expect(rebase.Params{Upstream: "main", Onto: "origin/main"}.Describe()).To(Equal("rebase onto origin/main"))
		Expect(rebase.Params{Upstream: "main", Branch: "feature"}.Describe()).To(Equal("rebase feature onto main"))
	})
})
