package github

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", srv.URL, 5*time.Second)
}

func TestGetPR(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/octo/demo/pulls/3" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Fatalf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title": "t", "body": "b", "state": "open", "user": {"login": "u"}, "base": {"ref": "main"}, "head": {"ref": "feat"}}`))
	}))

	info, err := c.GetPR(context.Background(), "octo", "demo", 3)
	if err != nil {
		t.Fatalf("get pr: %v", err)
	}
	if info.Title != "t" || info.Author != "u" || info.BaseBranch != "main" || info.HeadBranch != "feat" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestGetPRDiffAcceptHeader(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3.diff" {
			t.Fatalf("unexpected accept header %q", got)
		}
		w.Write([]byte("diff --git a/x b/x\n"))
	}))

	diff, err := c.GetPRDiff(context.Background(), "octo", "demo", 3)
	if err != nil {
		t.Fatalf("get diff: %v", err)
	}
	if diff != "diff --git a/x b/x\n" {
		t.Fatalf("unexpected diff %q", diff)
	}
}

func TestAPIErrorClassification(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))

	_, err := c.GetPR(context.Background(), "octo", "demo", 3)
	if !IsNotFound(err) {
		t.Fatalf("expected not-found classification, got %v", err)
	}
	if !IsClientError(err) {
		t.Fatalf("404 is a client error")
	}
	if IsForbidden(err) {
		t.Fatalf("404 is not forbidden")
	}
}

func TestGetRepoFileNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetRepoFile(context.Background(), "octo", "demo", "rules.yml", "main")
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestGetRepoFileDecodesBase64(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ref"); got != "main" {
			t.Fatalf("expected ref=main, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": "aGVsbG8K", "encoding": "base64"}`))
	}))

	content, err := c.GetRepoFile(context.Background(), "octo", "demo", "rules.yml", "main")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if content != "hello\n" {
		t.Fatalf("unexpected content %q", content)
	}
}

func TestPostComment(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/octo/demo/issues/3/comments" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"html_url": "https://github.com/octo/demo/pull/3#issuecomment-1"}`))
	}))

	url, err := c.PostComment(context.Background(), "octo", "demo", 3, "review body")
	if err != nil {
		t.Fatalf("post comment: %v", err)
	}
	if url != "https://github.com/octo/demo/pull/3#issuecomment-1" {
		t.Fatalf("unexpected url %q", url)
	}
}
