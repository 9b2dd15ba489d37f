package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/draftsync/draftsync/pkg/codec"
	"github.com/draftsync/draftsync/pkg/protocol"
	"github.com/draftsync/draftsync/pkg/retry"
)

func testClient(handler http.Handler) (*Client, *httptest.Server) {
	ts := httptest.NewServer(handler)
	c := New(Config{
		BaseURL: ts.URL,
		RetryConfig: retry.Config{
			MaxAttempts: 3,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})
	return c, ts
}

func TestListProjects_SkipsArchived(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/projects" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(protocol.ProjectListResponse{
			Projects: []protocol.ProjectEntry{
				{ID: "p1", Name: "Notes 📓"},
				{ID: "p2", Name: "Old", Archived: true},
				{ID: "p3", Name: "Drafts"},
			},
		})
	}))
	defer ts.Close()

	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("expected 2 projects, got %d", len(projects))
	}
	if projects[0].DisplayName != "Notes 📓" {
		t.Errorf("display name = %q", projects[0].DisplayName)
	}
}

func TestListFiles_BuildsInventory(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.FileListResponse{
			Files: []protocol.FileEntry{
				{Path: "notes/a.md", Hash: "aaa", Size: 11, UpdatedAt: now},
				{Path: "b.txt", Hash: "bbb", Size: 3, UpdatedAt: now},
			},
			Instructions: "Always answer in rhyme.",
		})
	}))
	defer ts.Close()

	inv, instructions, err := c.ListFiles(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(inv) != 2 {
		t.Fatalf("expected 2 records, got %d", len(inv))
	}
	rec, ok := inv["notes/a.md"]
	if !ok {
		t.Fatal("missing record for notes/a.md")
	}
	if !rec.ExistsRemotely || rec.ContentHash != "aaa" {
		t.Errorf("unexpected record %+v", rec)
	}
	if instructions != "Always answer in rhyme." {
		t.Errorf("instructions = %q", instructions)
	}
}

func TestFetchContent_DecodesGzip(t *testing.T) {
	payload := []byte("compressed body")
	encoded, _ := codec.Encode(payload, codec.Gzip)

	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(encoded)
	}))
	defer ts.Close()

	got, err := c.FetchContent(context.Background(), "p1", "a.md")
	if err != nil {
		t.Fatalf("FetchContent: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("got %q, want %q", got, payload)
	}
}

func TestFetchContent_CodecMismatch(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "zstd")
		w.Write([]byte("definitely not zstd"))
	}))
	defer ts.Close()

	_, err := c.FetchContent(context.Background(), "p1", "a.md")
	if !errors.Is(err, codec.ErrMismatch) {
		t.Fatalf("expected codec.ErrMismatch, got %v", err)
	}
}

func TestPutContent_SetsEncodingHeader(t *testing.T) {
	var gotEncoding string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEncoding = r.Header.Get("Content-Encoding")
		json.NewEncoder(w).Encode(protocol.UploadResponse{
			Path: "a.md", Hash: "abc", Size: 5, UpdatedAt: time.Now(),
		})
	}))
	defer ts.Close()

	c := New(Config{
		BaseURL: ts.URL,
		Codec:   codec.Zstd,
		RetryConfig: retry.Config{
			MaxAttempts: 1,
			InitialWait: time.Millisecond,
			MaxWait:     time.Millisecond,
		},
	})

	rec, err := c.PutContent(context.Background(), "p1", "a.md", []byte("hello"))
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if gotEncoding != "zstd" {
		t.Errorf("Content-Encoding = %q, want zstd", gotEncoding)
	}
	if rec.ContentHash != "abc" {
		t.Errorf("hash = %q", rec.ContentHash)
	}
}

func TestPutContent_ServerErrorRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(protocol.UploadResponse{Path: "a.md", Hash: "h"})
	}))
	defer ts.Close()

	_, err := c.PutContent(context.Background(), "p1", "a.md", []byte("hello"))
	if err != nil {
		t.Fatalf("PutContent: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestPutContent_ExhaustedBudgetIsUnavailable(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	_, err := c.PutContent(context.Background(), "p1", "a.md", []byte("hello"))
	if !IsUnavailable(err) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
}

func TestFetchContent_NotFoundNotRetried(t *testing.T) {
	var attempts atomic.Int32
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := c.FetchContent(context.Background(), "p1", "gone.md")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", attempts.Load())
	}
}

func TestDeleteFile_MissingIsSuccess(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	if err := c.DeleteFile(context.Background(), "p1", "gone.md"); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}
}

func TestListThreads(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.ThreadListResponse{
			Threads: []protocol.ThreadEntry{
				{ID: "t1", Name: "Planning", MessageCount: 4},
			},
		})
	}))
	defer ts.Close()

	threads, err := c.ListThreads(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 1 || threads[0].Name != "Planning" {
		t.Errorf("unexpected threads %+v", threads)
	}
}

func TestFetchThread(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.ThreadResponse{
			ID:   "t1",
			Name: "Planning",
			Messages: []protocol.ThreadMessage{
				{Sender: "user", Text: "hello"},
				{Sender: "assistant", Text: "hi"},
			},
		})
	}))
	defer ts.Close()

	thread, err := c.FetchThread(context.Background(), "p1", "t1")
	if err != nil {
		t.Fatalf("FetchThread: %v", err)
	}
	if thread.Summary.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", thread.Summary.MessageCount)
	}
	if thread.Messages[1].Text != "hi" {
		t.Errorf("second message = %q", thread.Messages[1].Text)
	}
}

func TestAuthHeaderApplied(t *testing.T) {
	var gotAuth string
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(protocol.ProjectListResponse{})
	}))
	defer ts.Close()

	c.SetAuthToken("secret-token")
	if _, err := c.ListProjects(context.Background()); err != nil {
		t.Fatalf("ListProjects: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestOnlineStatusTracksFailures(t *testing.T) {
	c, ts := testClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c.ListProjects(context.Background())
	if c.IsOnline() {
		t.Error("client should be offline after repeated 503s")
	}
}
