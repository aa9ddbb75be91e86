package s3

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/manifest_mirror/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "", 5*time.Second)
}

func TestProbe_Classification(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		wantStatus  store.ProbeStatus
		wantMessage bool
	}{
		{name: "present", statusCode: http.StatusOK, wantStatus: store.ProbePresent},
		{name: "not found", statusCode: http.StatusNotFound, wantStatus: store.ProbeNotFound},
		{name: "forbidden", statusCode: http.StatusForbidden, wantStatus: store.ProbeForbidden},
		{name: "server error", statusCode: http.StatusInternalServerError, wantStatus: store.ProbeOtherError, wantMessage: true},
		{name: "rate limited", statusCode: http.StatusTooManyRequests, wantStatus: store.ProbeOtherError, wantMessage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "/bucket/u1/a.txt", r.URL.Path)
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)

			result, err := client.Probe(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, result.Status)

			if tt.wantMessage {
				assert.NotEmpty(t, result.Message)
			}
		})
	}
}

func TestProbe_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := newTestClient(server.URL)

	result, err := client.Probe(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"})
	require.NoError(t, err, "transport failures classify, they do not error")
	assert.Equal(t, store.ProbeOtherError, result.Status)
	assert.NotEmpty(t, result.Message)
}

func TestProbe_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Probe(ctx, store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"})
	require.Error(t, err, "a cancelled run must be distinguishable from a classified answer")
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestProbe_EscapesObjectKey(t *testing.T) {
	var gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.Probe(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "my file.txt"})
	require.NoError(t, err)
	assert.Equal(t, "/bucket/u1/my file.txt", gotPath)
}

func TestFetch_WritesFile(t *testing.T) {
	const body = "hello object store"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/bucket/u1/a.txt", r.URL.Path)
		w.Write([]byte(body))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	target := filepath.Join(t.TempDir(), "a.txt")

	written, err := client.Fetch(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"}, target)
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), written)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, body, string(content))
}

func TestFetch_RemoteStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("SlowDown"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	target := filepath.Join(t.TempDir(), "a.txt")

	_, err := client.Fetch(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"}, target)

	var remoteErr *store.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusServiceUnavailable, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Message, "SlowDown")

	_, statErr := os.Stat(target)
	assert.True(t, os.IsNotExist(statErr), "no file should be created on a failed status")
}

func TestFetch_LocalCreateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("content"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	// Parent directory does not exist; creation is the engine's job, so the
	// client must fail locally, not invent directories.
	target := filepath.Join(t.TempDir(), "missing", "a.txt")

	_, err := client.Fetch(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"}, target)

	var localErr *store.LocalError
	require.ErrorAs(t, err, &localErr)
	assert.Equal(t, "create_file", localErr.Operation)
	assert.Equal(t, target, localErr.Path)
}

func TestFetch_TruncatedBodyIsRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short"))

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}

		// Drop the connection mid-body.
		if hj, ok := w.(http.Hijacker); ok {
			conn, _, _ := hj.Hijack()
			conn.Close()
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	target := filepath.Join(t.TempDir(), "a.txt")

	_, err := client.Fetch(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"}, target)

	var remoteErr *store.RemoteError
	require.ErrorAs(t, err, &remoteErr, "an interrupted body read is the store's fault")
}

func TestFetch_BearerToken(t *testing.T) {
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token", 5*time.Second)
	target := filepath.Join(t.TempDir(), "a.txt")

	_, err := client.Fetch(context.Background(), store.Locator{Bucket: "bucket", ID: "u1", Name: "a.txt"}, target)
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestList_Pagination(t *testing.T) {
	pageOne := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bucket</Name>
  <IsTruncated>true</IsTruncated>
  <NextContinuationToken>tok2</NextContinuationToken>
  <Contents>
    <Key>u1/a.txt</Key>
    <LastModified>2026-01-02T03:04:05.000Z</LastModified>
    <ETag>&quot;aa11&quot;</ETag>
    <Size>10</Size>
  </Contents>
</ListBucketResult>`

	pageTwo := `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>bucket</Name>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>u1/b.txt</Key>
    <LastModified>2026-01-02T03:04:06.000Z</LastModified>
    <ETag>&quot;bb22&quot;</ETag>
    <Size>20</Size>
  </Contents>
</ListBucketResult>`

	var requests int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++

		assert.Equal(t, "/bucket/", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("list-type"))
		assert.Equal(t, "u1/", r.URL.Query().Get("prefix"))

		if r.URL.Query().Get("continuation-token") == "tok2" {
			w.Write([]byte(pageTwo))
		} else {
			w.Write([]byte(pageOne))
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	objects, err := client.List(context.Background(), "bucket", "u1/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, 2, requests)

	assert.Equal(t, "u1/a.txt", objects[0].Key)
	assert.Equal(t, int64(10), objects[0].Size)
	assert.Equal(t, "aa11", objects[0].ETag, "ETag quotes are stripped")
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), objects[0].LastModified.UTC())

	assert.Equal(t, "u1/b.txt", objects[1].Key)
}

func TestList_RemoteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("AccessDenied"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.List(context.Background(), "bucket", "u1/")

	var remoteErr *store.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusForbidden, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Message, "AccessDenied")
}
