package changeset

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"prreview-backend/internal/github"
)

var prURLRE = regexp.MustCompile(`^(?:https?://)?github\.com/([^/]+)/([^/]+)/pull/(\d+)/?$`)

// ParsePRURL extracts owner, repo and PR number from a pull request URL.
func ParsePRURL(raw string) (owner, repo string, number int, err error) {
	m := prURLRE.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", "", 0, NewInputError(InputBad, "not a pull request URL: %q", raw)
	}
	n, convErr := strconv.Atoi(m[3])
	if convErr != nil || n <= 0 {
		return "", "", 0, NewInputError(InputBad, "invalid pull request number in %q", raw)
	}
	return m[1], m[2], n, nil
}

// Resolver turns a submission descriptor into a normalized ChangeSet.
type Resolver struct {
	gh *github.Client
}

// NewResolver constructs a Resolver backed by the given GitHub client.
func NewResolver(gh *github.Client) *Resolver {
	return &Resolver{gh: gh}
}

// Resolve validates the input descriptor and produces a ChangeSet. Raw diff
// input never touches the network. PR URL input fetches metadata, diff, file
// list and commit messages concurrently; any fetch failure aborts the whole
// resolution. The diff size cap applies to both paths.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*ChangeSet, error) {
	hasURL := strings.TrimSpace(in.PRURL) != ""
	hasDiff := strings.TrimSpace(in.DiffText) != ""
	switch {
	case hasURL && hasDiff:
		return nil, NewInputError(InputBad, "provide either pr_url or diff_text, not both")
	case !hasURL && !hasDiff:
		return nil, NewInputError(InputBad, "provide either pr_url or diff_text")
	}

	if hasDiff {
		return fromRawDiff(in.DiffText), nil
	}
	return r.fromPRURL(ctx, in.PRURL)
}

func fromRawDiff(diffText string) *ChangeSet {
	diff, truncated := Truncate(diffText)
	return &ChangeSet{
		Diff:      diff,
		Files:     ChangedFiles(diffText),
		Truncated: truncated,
	}
}

func (r *Resolver) fromPRURL(ctx context.Context, prURL string) (*ChangeSet, error) {
	owner, repo, number, err := ParsePRURL(prURL)
	if err != nil {
		return nil, err
	}

	var (
		info    github.PRInfo
		rawDiff string
		files   []github.PRFile
		commits []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info, err = r.gh.GetPR(gctx, owner, repo, number)
		return err
	})
	g.Go(func() error {
		var err error
		rawDiff, err = r.gh.GetPRDiff(gctx, owner, repo, number)
		return err
	})
	g.Go(func() error {
		var err error
		files, err = r.gh.GetPRFiles(gctx, owner, repo, number)
		return err
	})
	g.Go(func() error {
		var err error
		commits, err = r.gh.GetPRCommits(gctx, owner, repo, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, mapFetchError(owner, repo, number, err)
	}

	diff, truncated := Truncate(rawDiff)
	names := make([]string, 0, len(files))
	changes := make(map[string]int, len(files))
	for _, f := range files {
		names = append(names, f.Filename)
		changes[f.Filename] = f.Changes
	}
	if len(names) == 0 {
		names = ChangedFiles(rawDiff)
	}

	return &ChangeSet{
		Diff:      diff,
		Files:     names,
		Truncated: truncated,
		Meta: &PRMeta{
			Owner:      owner,
			Repo:       repo,
			Number:     number,
			Title:      info.Title,
			Body:       info.Body,
			State:      info.State,
			Author:     info.Author,
			BaseBranch: info.BaseBranch,
			HeadBranch: info.HeadBranch,
			Commits:    commits,
			Changes:    changes,
		},
	}, nil
}

// repoRulePaths are tried in order when repository rules are requested.
var repoRulePaths = []string{"review_rules.yml", ".review_rules.yml"}

// FetchRepoRules loads the repository's review rules file from its head
// branch. A missing file is not an error; it returns an empty string.
func (r *Resolver) FetchRepoRules(ctx context.Context, meta *PRMeta) (string, error) {
	if meta == nil {
		return "", nil
	}
	for _, path := range repoRulePaths {
		content, err := r.gh.GetRepoFile(ctx, meta.Owner, meta.Repo, path, meta.HeadBranch)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, github.ErrFileNotFound) {
			continue
		}
		return "", mapFetchError(meta.Owner, meta.Repo, meta.Number, err)
	}
	return "", nil
}

// mapFetchError translates GitHub API failures into the resolver's error
// taxonomy: 404 and 401/403 are input problems, everything else is upstream.
func mapFetchError(owner, repo string, number int, err error) error {
	switch {
	case github.IsNotFound(err):
		return NewInputError(InputNotFound, "pull request %s/%s#%d not found", owner, repo, number)
	case github.IsForbidden(err):
		return NewInputError(InputForbidden, "access to %s/%s#%d denied", owner, repo, number)
	case github.IsClientError(err):
		return NewInputError(InputBad, "pull request %s/%s#%d rejected by host: %v", owner, repo, number, err)
	default:
		return &UpstreamError{Op: "fetch pull request", Err: err}
	}
}
