package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultAPIURL = "https://api.github.com"

// Client provides access to the GitHub REST API. A zero token is allowed
// for public repositories; redirects are followed by the default transport.
type Client struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

// NewClient constructs a GitHub client. apiURL may be empty for the public API.
func NewClient(token, apiURL string, timeout time.Duration) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultAPIURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		token:      token,
		apiURL:     strings.TrimRight(apiURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// PRInfo holds pull request metadata.
type PRInfo struct {
	Title      string
	Body       string
	State      string
	Author     string
	BaseBranch string
	HeadBranch string
}

// PRFile is a single changed file in a pull request.
type PRFile struct {
	Filename string `json:"filename"`
	Changes  int    `json:"changes"`
}

// GetPR fetches pull request metadata.
func (c *Client) GetPR(ctx context.Context, owner, repo string, number int) (PRInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, owner, repo, number)
	body, err := c.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return PRInfo{}, err
	}

	var parsed struct {
		Title string `json:"title"`
		Body  string `json:"body"`
		State string `json:"state"`
		User  struct {
			Login string `json:"login"`
		} `json:"user"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return PRInfo{}, fmt.Errorf("parse pull request: %w", err)
	}
	return PRInfo{
		Title:      parsed.Title,
		Body:       parsed.Body,
		State:      parsed.State,
		Author:     parsed.User.Login,
		BaseBranch: parsed.Base.Ref,
		HeadBranch: parsed.Head.Ref,
	}, nil
}

// GetPRDiff fetches the unified diff for a pull request.
func (c *Client) GetPRDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.apiURL, owner, repo, number)
	body, err := c.get(ctx, url, "application/vnd.github.v3.diff")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetPRFiles fetches the list of files changed in a pull request.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, number int) ([]PRFile, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100", c.apiURL, owner, repo, number)
	body, err := c.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}
	var files []PRFile
	if err := json.Unmarshal(body, &files); err != nil {
		return nil, fmt.Errorf("parse pull request files: %w", err)
	}
	return files, nil
}

// GetPRCommits fetches commit messages for a pull request.
func (c *Client) GetPRCommits(ctx context.Context, owner, repo string, number int) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/commits", c.apiURL, owner, repo, number)
	body, err := c.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		return nil, err
	}
	var parsed []struct {
		Commit struct {
			Message string `json:"message"`
		} `json:"commit"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse pull request commits: %w", err)
	}
	messages := make([]string, 0, len(parsed))
	for _, c := range parsed {
		messages = append(messages, c.Commit.Message)
	}
	return messages, nil
}

// GetRepoFile fetches a file from the repository contents API.
// Returns ErrFileNotFound when the path does not exist at ref.
func (c *Client) GetRepoFile(ctx context.Context, owner, repo, path, ref string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.apiURL, owner, repo, path)
	if ref != "" {
		url += "?ref=" + ref
	}
	body, err := c.get(ctx, url, "application/vnd.github.v3+json")
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return "", ErrFileNotFound
		}
		return "", err
	}
	var parsed struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse contents response: %w", err)
	}
	if parsed.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(parsed.Content, "\n", ""))
		if err != nil {
			return "", fmt.Errorf("decode contents: %w", err)
		}
		return string(decoded), nil
	}
	return parsed.Content, nil
}

// PostComment posts an issue comment on a pull request and returns its URL.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, commentBody string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.apiURL, owner, repo, number)

	payload, err := json.Marshal(map[string]string{"body": commentBody})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.setHeaders(req, "application/vnd.github.v3+json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post comment: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read comment response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}

	var parsed struct {
		HTMLURL string `json:"html_url"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse comment response: %w", err)
	}
	return parsed.HTMLURL, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read github response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: truncateBody(body)}
	}
	return body, nil
}

func (c *Client) setHeaders(req *http.Request, accept string) {
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "pr-review-backend")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func truncateBody(body []byte) string {
	const maxLen = 300
	s := string(body)
	if len(s) > maxLen {
		return s[:maxLen]
	}
	return s
}
