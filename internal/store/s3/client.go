// Package s3 implements the store contract against any S3-compatible
// endpoint using plain path-style HTTP. Public buckets need no credentials;
// a bearer token can be attached for gateways fronting private data.
package s3

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/manifest_mirror/internal/logctx"
	"github.com/italolelis/manifest_mirror/internal/mirror/progress"
	"github.com/italolelis/manifest_mirror/internal/store"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const (
	DefaultEndpoint = "https://s3.amazonaws.com"

	// requestTimeout bounds metadata calls (probe, list pages). Fetches are
	// excluded: a whole-request timeout would abort large object bodies
	// mid-stream, so fetch lifetime is governed by the caller's context.
	defaultRequestTimeout = 60 * time.Second

	progressInterval = int64(100 * 1024 * 1024) // 100MB

	maxErrorBody = 4096
)

type Client struct {
	endpoint       string
	requestTimeout time.Duration
	httpClient     *http.Client
}

// Ensure Client implements the store contract
var _ store.Client = (*Client)(nil)

// NewClient builds a client for the given endpoint. An empty endpoint
// selects the public AWS one; an empty token leaves requests anonymous.
func NewClient(endpoint, token string, requestTimeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}

	var transport http.RoundTripper = otelhttp.NewTransport(http.DefaultTransport)

	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   transport,
		}
	}

	return &Client{
		endpoint:       strings.TrimRight(endpoint, "/"),
		requestTimeout: requestTimeout,
		httpClient:     &http.Client{Transport: transport},
	}
}

// Probe performs a metadata-only existence check. Remote conditions are
// always classified into the result; the error return is non-nil only when
// the caller's context ended first.
func (c *Client) Probe(ctx context.Context, loc store.Locator) (store.ProbeResult, error) {
	logger := logctx.LoggerFromContext(ctx)

	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, c.objectURL(loc), nil)
	if err != nil {
		return store.ProbeResult{Status: store.ProbeOtherError, Message: err.Error()}, nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return store.ProbeResult{}, ctx.Err()
		}

		logger.Debug("probe transport failure", "uri", loc.URI(), "err", err)

		return store.ProbeResult{Status: store.ProbeOtherError, Message: err.Error()}, nil
	}

	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return store.ProbeResult{Status: store.ProbePresent}, nil
	case resp.StatusCode == http.StatusNotFound:
		return store.ProbeResult{Status: store.ProbeNotFound}, nil
	case resp.StatusCode == http.StatusForbidden:
		return store.ProbeResult{Status: store.ProbeForbidden}, nil
	default:
		return store.ProbeResult{
			Status:  store.ProbeOtherError,
			Message: fmt.Sprintf("unexpected probe status %s", resp.Status),
		}, nil
	}
}

// Fetch streams the object body into a new file at targetPath. Read-side
// failures come back as *store.RemoteError, write-side as *store.LocalError.
func (c *Client) Fetch(ctx context.Context, loc store.Locator, targetPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(loc), nil)
	if err != nil {
		return 0, &store.RemoteError{Operation: "fetch", Message: err.Error(), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}

		return 0, &store.RemoteError{Operation: "fetch", Message: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, &store.RemoteError{
			Operation:  "fetch",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp),
		}
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return 0, &store.LocalError{Operation: "create_file", Path: targetPath, Err: err}
	}

	written, err := c.writeFile(ctx, out, resp.Body, loc, targetPath, resp.ContentLength)

	closeErr := out.Close()

	if err != nil {
		return written, err
	}

	if closeErr != nil {
		return written, &store.LocalError{Operation: "close", Path: targetPath, Err: closeErr}
	}

	logger.Info("fetched and saved object", "uri", loc.URI(), "target", targetPath,
		"size", humanize.Bytes(uint64(written)))

	return written, nil
}

func (c *Client) writeFile(ctx context.Context, out *os.File, body io.Reader, loc store.Locator, targetPath string, totalBytes int64) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	if totalBytes > 0 {
		logger.Debug("fetching object", "uri", loc.URI(), "size", humanize.Bytes(uint64(totalBytes)))
	}

	progressCb := func(read int64, total int64) {
		if total > 0 {
			logger.Debug("fetch progress",
				"uri", loc.URI(),
				"fetched", humanize.Bytes(uint64(read)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(read)*100/float64(total), 2))
		} else {
			logger.Debug("fetch progress", "uri", loc.URI(), "fetched", humanize.Bytes(uint64(read)))
		}
	}
	pr := progress.NewReader(body, totalBytes, progressInterval, progressCb)

	written, err := io.Copy(&localFileWriter{f: out, path: targetPath}, pr)
	if err != nil {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}

		var localErr *store.LocalError
		if errors.As(err, &localErr) {
			return written, err
		}

		return written, &store.RemoteError{
			Operation: "fetch",
			Message:   fmt.Sprintf("transfer interrupted after %d bytes: %v", written, err),
			Err:       err,
		}
	}

	return written, nil
}

// localFileWriter tags write-side failures so they are never confused with
// read-side ones inside io.Copy.
type localFileWriter struct {
	f    *os.File
	path string
}

func (w *localFileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, &store.LocalError{Operation: "write", Path: w.path, Err: err}
	}

	return n, nil
}

// List enumerates object keys under prefix, following continuation tokens
// until the listing is complete.
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]store.ObjectInfo, error) {
	var objects []store.ObjectInfo

	token := ""

	for {
		page, err := c.listPage(ctx, bucket, prefix, token)
		if err != nil {
			return nil, err
		}

		for _, obj := range page.Contents {
			objects = append(objects, store.ObjectInfo{
				Key:          obj.Key,
				Size:         obj.Size,
				ETag:         strings.Trim(obj.ETag, `"`),
				LastModified: obj.LastModified,
			})
		}

		if !page.IsTruncated || page.NextContinuationToken == "" {
			break
		}

		token = page.NextContinuationToken
	}

	return objects, nil
}

type listBucketResult struct {
	XMLName               xml.Name `xml:"ListBucketResult"`
	IsTruncated           bool     `xml:"IsTruncated"`
	NextContinuationToken string   `xml:"NextContinuationToken"`
	Contents              []struct {
		Key          string    `xml:"Key"`
		LastModified time.Time `xml:"LastModified"`
		ETag         string    `xml:"ETag"`
		Size         int64     `xml:"Size"`
	} `xml:"Contents"`
}

func (c *Client) listPage(ctx context.Context, bucket, prefix, token string) (*listBucketResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("list-type", "2")

	if prefix != "" {
		q.Set("prefix", prefix)
	}

	if token != "" {
		q.Set("continuation-token", token)
	}

	u := fmt.Sprintf("%s/%s/?%s", c.endpoint, url.PathEscape(bucket), q.Encode())

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &store.RemoteError{Operation: "list", Message: err.Error(), Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, &store.RemoteError{Operation: "list", Message: err.Error(), Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &store.RemoteError{
			Operation:  "list",
			StatusCode: resp.StatusCode,
			Message:    readErrorBody(resp),
		}
	}

	var result listBucketResult
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &store.RemoteError{Operation: "list", Message: "failed to decode listing: " + err.Error(), Err: err}
	}

	return &result, nil
}

func (c *Client) objectURL(loc store.Locator) string {
	return fmt.Sprintf("%s/%s/%s/%s",
		c.endpoint, url.PathEscape(loc.Bucket), url.PathEscape(loc.ID), url.PathEscape(loc.Name))
}

func readErrorBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return resp.Status
	}

	return msg
}
