// Package pluginrepo keeps git repositories of plug-in scripts up to date and
// registers their checkouts as plug-in paths.
package pluginrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/alexisbeaulieu97/avalon/internal/config"
	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
)

// Status is what Sync did to a checkout.
type Status string

const (
	StatusCloned   Status = "cloned"
	StatusUpdated  Status = "updated"
	StatusUpToDate Status = "up-to-date"
)

// PathRegistrar receives the checkout directory.
type PathRegistrar interface {
	RegisterPluginPath(kind api.Kind, path string)
}

// Result describes one synchronised repository.
type Result struct {
	Kind        api.Kind
	URL         string
	Destination string
	Head        string
	Status      Status
}

// Sync clones repo, or pulls it when the destination already holds a clone
// of the same remote, then registers the destination for repo.Kind.
func Sync(ctx context.Context, repo config.Repository, registrar PathRegistrar, log *logger.Logger) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	kind, err := api.ParseKind(repo.Kind)
	if err != nil {
		return Result{}, err
	}

	result := Result{Kind: kind, URL: repo.URL, Destination: filepath.Clean(repo.Destination)}
	log = log.WithFields(map[string]any{"url": repo.URL, "path": result.Destination, "kind": kind.String()})

	var r *git.Repository
	if _, statErr := os.Stat(result.Destination); os.IsNotExist(statErr) {
		r, err = clone(ctx, repo, result.Destination)
		if err != nil {
			return result, err
		}
		result.Status = StatusCloned
	} else if statErr != nil {
		return result, fmt.Errorf("cannot access destination: %w", statErr)
	} else {
		r, result.Status, err = pull(ctx, repo, result.Destination)
		if err != nil {
			return result, err
		}
	}

	head, err := r.Head()
	if err != nil {
		return result, fmt.Errorf("resolve HEAD of %s: %w", result.Destination, err)
	}
	result.Head = head.Hash().String()

	if registrar != nil {
		registrar.RegisterPluginPath(kind, result.Destination)
	}
	log.With("status", string(result.Status)).Info("plugin repository synchronised")
	return result, nil
}

// SyncAll synchronises every repository. Failures are collected and the
// remaining repositories are still processed.
func SyncAll(ctx context.Context, repos []config.Repository, registrar PathRegistrar, log *logger.Logger) ([]Result, error) {
	results := make([]Result, 0, len(repos))
	var errs []error
	for _, repo := range repos {
		result, err := Sync(ctx, repo, registrar, log)
		if err != nil {
			log.With("url", repo.URL).WarnErr(err, "plugin repository not synchronised")
			errs = append(errs, fmt.Errorf("%s: %w", repo.URL, err))
			continue
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

func clone(ctx context.Context, repo config.Repository, dest string) (*git.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create destination directory: %w", err)
	}

	opts := &git.CloneOptions{URL: repo.URL}
	if repo.Depth > 0 {
		opts.Depth = repo.Depth
	}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}

	r, err := git.PlainCloneContext(ctx, dest, false, opts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", repo.URL, err)
	}
	return r, nil
}

func pull(ctx context.Context, repo config.Repository, dest string) (*git.Repository, Status, error) {
	r, err := git.PlainOpen(dest)
	if err != nil {
		return nil, "", fmt.Errorf("destination %s exists but is not a git repository: %w", dest, err)
	}

	remote, err := r.Remote(git.DefaultRemoteName)
	if err != nil {
		return nil, "", fmt.Errorf("open remote of %s: %w", dest, err)
	}
	if urls := remote.Config().URLs; len(urls) > 0 && urls[0] != repo.URL {
		return nil, "", fmt.Errorf("remote URL of %s is %s (expected %s)", dest, urls[0], repo.URL)
	}

	wt, err := r.Worktree()
	if err != nil {
		return nil, "", fmt.Errorf("open worktree of %s: %w", dest, err)
	}

	opts := &git.PullOptions{RemoteName: git.DefaultRemoteName}
	if repo.Depth > 0 {
		opts.Depth = repo.Depth
	}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}

	err = wt.PullContext(ctx, opts)
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return r, StatusUpToDate, nil
	case err != nil:
		return nil, "", fmt.Errorf("pull %s: %w", repo.URL, err)
	}
	return r, StatusUpdated, nil
}
