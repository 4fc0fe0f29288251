package changeset

// Input is the submission descriptor: exactly one of PRURL or DiffText.
type Input struct {
	PRURL    string
	DiffText string
}

// Options is the closed set of analysis options.
type Options struct {
	UseRepoRules bool
	RulesText    string
	LanguageHint string
}

// PRMeta carries pull request metadata when the input was a hosted PR.
type PRMeta struct {
	Owner      string
	Repo       string
	Number     int
	Title      string
	Body       string
	State      string
	Author     string
	BaseBranch string
	HeadBranch string
	Commits    []string
	Changes    map[string]int
}

// ChangeSet is the normalized representation of a code change.
type ChangeSet struct {
	Diff      string
	Files     []string
	Truncated bool
	Meta      *PRMeta
}
