package git

import (
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/zhubert/claudway/internal/errors"
)

// Branch is a branch candidate with its recency.
type Branch struct {
	Name       string // short name, without origin/ for remote branches
	Remote     bool   // exists only as origin/<Name>
	CommitTime time.Time
}

// ListBranches returns local branches followed by origin branches that have
// no local counterpart, each group ordered by committer date, newest first.
// The repository is read directly through go-git.
func ListBranches(repoRoot string) ([]Branch, error) {
	repo, err := gogit.PlainOpenWithOptions(repoRoot, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		return nil, errors.E(errors.Op("git.ListBranches"), errors.KindGit, errors.Path(repoRoot), err)
	}

	refs, err := repo.References()
	if err != nil {
		return nil, errors.E(errors.Op("git.ListBranches"), errors.KindGit, err)
	}

	var local, remote []Branch
	localNames := make(map[string]bool)

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() == plumbing.SymbolicReference {
			return nil
		}
		name := ref.Name()
		switch {
		case name.IsBranch():
			local = append(local, Branch{Name: name.Short(), CommitTime: commitTime(repo, ref.Hash())})
			localNames[name.Short()] = true
		case name.IsRemote():
			short, ok := strings.CutPrefix(name.Short(), "origin/")
			if !ok || short == "HEAD" {
				return nil
			}
			remote = append(remote, Branch{Name: short, Remote: true, CommitTime: commitTime(repo, ref.Hash())})
		}
		return nil
	})
	if err != nil {
		return nil, errors.E(errors.Op("git.ListBranches"), errors.KindGit, err)
	}

	remoteOnly := remote[:0]
	for _, b := range remote {
		if !localNames[b.Name] {
			remoteOnly = append(remoteOnly, b)
		}
	}

	byRecency := func(bs []Branch) {
		sort.SliceStable(bs, func(i, j int) bool {
			if !bs[i].CommitTime.Equal(bs[j].CommitTime) {
				return bs[i].CommitTime.After(bs[j].CommitTime)
			}
			return bs[i].Name < bs[j].Name
		})
	}
	byRecency(local)
	byRecency(remoteOnly)

	return append(local, remoteOnly...), nil
}

func commitTime(repo *gogit.Repository, hash plumbing.Hash) time.Time {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return time.Time{}
	}
	return commit.Committer.When
}
