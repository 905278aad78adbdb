// Package submission fetches solution files from students' git repositories.
package submission

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rs/zerolog/log"
)

// Source identifies a solution inside a repository
type Source struct {
	// Clone URL: https, ssh (git@host:owner/repo), file:// or a local path
	URL string

	// Branch, tag or commit hash. Empty means the default branch.
	Ref string

	// Solution file relative to the repository root
	Path string
}

// Submission is a fetched solution ready for grading
type Submission struct {
	Dir       string
	File      string
	CommitSHA string
	Ref       string
}

// Cleanup removes the clone
func (s *Submission) Cleanup() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

// Fetcher clones submission repositories under a work directory
type Fetcher struct {
	baseDir string
	token   string
}

// NewFetcher creates a fetcher. The token is sent as basic auth to https
// remotes only.
func NewFetcher(baseDir, token string) *Fetcher {
	return &Fetcher{
		baseDir: baseDir,
		token:   token,
	}
}

// NormalizeURL rewrites scp-style ssh addresses to https so token auth applies
func NormalizeURL(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", fmt.Errorf("repository URL is required")
	}

	// git@github.com:owner/repo.git
	if strings.HasPrefix(rawURL, "git@") {
		hostPath := strings.TrimPrefix(rawURL, "git@")
		host, path, ok := strings.Cut(hostPath, ":")
		if !ok || host == "" || strings.Trim(path, "/") == "" {
			return "", fmt.Errorf("invalid SSH URL format: %s", rawURL)
		}
		return fmt.Sprintf("https://%s/%s", host, strings.Trim(path, "/")), nil
	}

	if filepath.IsAbs(rawURL) {
		return rawURL, nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	switch parsed.Scheme {
	case "https", "http", "ssh", "file":
	default:
		return "", fmt.Errorf("unsupported repository URL: %s", rawURL)
	}

	if parsed.Scheme != "file" && parsed.Host == "" {
		return "", fmt.Errorf("repository URL has no host: %s", rawURL)
	}

	return rawURL, nil
}

// RepoName returns the last path element of a repository URL without .git
func RepoName(rawURL string) string {
	name := strings.TrimSuffix(strings.TrimRight(rawURL, "/"), ".git")
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "repo"
	}
	return name
}

// Fetch clones the repository and locates the solution file. The caller
// owns the returned clone and should call Cleanup.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (*Submission, error) {
	if src.Path == "" || !filepath.IsLocal(src.Path) {
		return nil, fmt.Errorf("invalid solution path %q", src.Path)
	}

	cloneURL, err := NormalizeURL(src.URL)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(f.baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	dir, err := os.MkdirTemp(f.baseDir, RepoName(cloneURL)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	log.Info().
		Str("url", cloneURL).
		Str("ref", src.Ref).
		Str("path", dir).
		Msg("cloning submission")

	repo, err := f.clone(ctx, dir, cloneURL, src.Ref)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	sub := &Submission{
		Dir:       dir,
		File:      filepath.Join(dir, src.Path),
		CommitSHA: head.Hash().String(),
		Ref:       src.Ref,
	}
	if sub.Ref == "" {
		sub.Ref = head.Name().Short()
	}

	if _, err := os.Stat(sub.File); err != nil {
		os.RemoveAll(dir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("solution file %s not found in %s", src.Path, cloneURL)
		}
		return nil, fmt.Errorf("failed to stat solution: %w", err)
	}

	log.Info().
		Str("commit", shortSHA(sub.CommitSHA)).
		Str("ref", sub.Ref).
		Msg("clone complete")

	return sub, nil
}

// clone tries ref as a branch, then as a tag, then as a commit hash
func (f *Fetcher) clone(ctx context.Context, dir, cloneURL, ref string) (*git.Repository, error) {
	opts := &git.CloneOptions{
		URL:   cloneURL,
		Depth: 1,
	}
	if isLocal(cloneURL) {
		opts.Depth = 0
	}

	if f.token != "" && strings.HasPrefix(cloneURL, "https://") {
		opts.Auth = &http.BasicAuth{
			Username: "git",
			Password: f.token,
		}
	}

	if ref == "" {
		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to clone: %w", err)
		}
		return repo, nil
	}

	var lastErr error
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	} {
		opts.ReferenceName = name
		opts.SingleBranch = true

		repo, err := git.PlainCloneContext(ctx, dir, false, opts)
		if err == nil {
			return repo, nil
		}
		lastErr = err
		if !isRefNotFound(err) {
			return nil, fmt.Errorf("failed to clone: %w", err)
		}
		log.Debug().Str("ref", name.String()).Msg("reference not found")
		if err := resetDir(dir); err != nil {
			return nil, err
		}
	}

	if !plumbing.IsHash(ref) {
		return nil, fmt.Errorf("failed to clone: ref %s: %w", ref, lastErr)
	}

	// a commit needs full history to check out
	opts.ReferenceName = ""
	opts.SingleBranch = false
	opts.Depth = 0

	repo, err := git.PlainCloneContext(ctx, dir, false, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(ref)}); err != nil {
		return nil, fmt.Errorf("failed to checkout %s: %w", ref, err)
	}

	return repo, nil
}

// Describe reports the commit a local solution file is checked out at
func Describe(path string) (*Submission, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	repo, err := git.PlainOpenWithOptions(filepath.Dir(abs), &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open repo: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	}

	sub := &Submission{
		File:      abs,
		CommitSHA: head.Hash().String(),
		Ref:       head.Name().Short(),
	}
	if worktree, err := repo.Worktree(); err == nil {
		sub.Dir = worktree.Filesystem.Root()
	}

	return sub, nil
}

func isLocal(cloneURL string) bool {
	return filepath.IsAbs(cloneURL) || strings.HasPrefix(cloneURL, "file://")
}

func isRefNotFound(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound) ||
		strings.Contains(err.Error(), "reference not found") ||
		strings.Contains(err.Error(), "couldn't find remote ref")
}

func resetDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to reset directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
