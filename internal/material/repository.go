package material

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/fyrsmithlabs/corethink/internal/ignore"
)

// repositoryGatherer describes the repository the process is pointed at.
// Configured excludes are combined with the root's .gitignore and
// .corethinkignore.
type repositoryGatherer struct {
	root     string
	maxFiles int
	excludes []string
}

func (g repositoryGatherer) Gather(ctx context.Context, req Request) (string, error) {
	root, err := filepath.Abs(g.root)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", root)

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	switch {
	case errors.Is(err, git.ErrRepositoryNotExists):
		b.WriteString("Version control: none detected\n")
	case err != nil:
		return "", fmt.Errorf("opening repository: %w", err)
	default:
		head, err := repo.Head()
		if err != nil {
			b.WriteString("Version control: git (no commits yet)\n")
			break
		}
		branch := head.Name().Short()
		if !head.Name().IsBranch() {
			branch = "detached"
		}
		fmt.Fprintf(&b, "Version control: git\nBranch: %s\nHEAD: %s\n", branch, head.Hash().String()[:12])
		if commit, err := repo.CommitObject(head.Hash()); err == nil {
			subject, _, _ := strings.Cut(strings.TrimSpace(commit.Message), "\n")
			fmt.Fprintf(&b, "Last commit: %s (%s)\n", subject, commit.Author.When.Format("2006-01-02"))
		}
	}

	skip, err := ignore.Load(root, ignore.DefaultFiles, g.excludes...)
	if err != nil {
		skip = ignore.New(g.excludes...)
	}

	top, err := g.topLevel(root, skip)
	if err != nil {
		return "", err
	}
	fmt.Fprintf(&b, "Top level: %s\n", strings.Join(top, ", "))

	if req.Depth == Minimal {
		return strings.TrimRight(b.String(), "\n"), nil
	}

	count, truncated, err := g.countFiles(ctx, root, skip)
	if err != nil {
		return "", err
	}
	if truncated {
		fmt.Fprintf(&b, "Files: more than %d (scan stopped)", g.maxFiles)
	} else {
		fmt.Fprintf(&b, "Files: %d", count)
	}
	return b.String(), nil
}

func (g repositoryGatherer) topLevel(root string, skip *ignore.Matcher) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	var names []string
	for _, e := range entries {
		if skip.Match(e.Name()) {
			continue
		}
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > 20 {
		names = append(names[:20], fmt.Sprintf("... (%d more)", len(names)-20))
	}
	return names, nil
}

var errScanLimit = errors.New("scan limit reached")

// countFiles walks root until maxFiles files have been seen.
func (g repositoryGatherer) countFiles(ctx context.Context, root string, skip *ignore.Matcher) (int, bool, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		if skip.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			count++
			if g.maxFiles > 0 && count > g.maxFiles {
				return errScanLimit
			}
		}
		return nil
	})
	if errors.Is(err, errScanLimit) {
		return g.maxFiles, true, nil
	}
	return count, false, err
}
