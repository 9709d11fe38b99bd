// Package session defines cw sessions and provisions their git worktrees.
//
// # Kinds
//
// A session binds one branch of a repository to one working directory:
//
//   - primary: the main checkout. Reported, never created or removed.
//   - persistent: lives under <data>/worktrees/<branch>-<hash8> and is reused
//     by later invocations until explicitly removed with `cw rm`.
//   - temporary: lives under $TMPDIR/cw-<branch>-<id8> and is removed when the
//     command launched in it exits, unless it holds uncommitted work the
//     user chose to keep.
//
// # Provisioning
//
// Provisioner.Create picks one of three `git worktree add` forms:
//
//	git worktree add <dir> <branch>                          # local branch exists
//	git worktree add --track -b <branch> <dir> origin/<branch> # only on origin
//	git worktree add -b <branch> <dir> <base>                # new branch
//
// Provisioner.Remove runs `git worktree remove --force`, deletes whatever is
// left of the directory and prunes git's bookkeeping. Branches are never
// deleted.
package session
