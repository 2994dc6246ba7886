package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	OpList     = "list"
	OpUpload   = "upload"
	OpDelete   = "delete"
	OpDownload = "download"
)

// maxErrorBody bounds how much of a failed response is read looking for detail.
const maxErrorBody = 64 << 10

// API is the backend the session talks to.
type API interface {
	List(ctx context.Context) ([]Document, error)
	Upload(ctx context.Context, f File) (Document, error)
	Delete(ctx context.Context, id int64) error
}

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// RejectionError is a non-2xx response. Detail holds the server's "detail" message
// when the body was JSON carrying one as a string, and is empty otherwise.
type RejectionError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *RejectionError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
}

// Detail extracts the server supplied message from err, if any.
func Detail(err error) string {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej.Detail
	}
	return ""
}

// Client implements API over HTTP against /api/documents.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client rooted at baseURL (for example http://localhost:8000).
// timeout bounds each whole request; zero means no limit.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) url(path string) string { return c.baseURL + path }

// DownloadURL is the link a view hands to the user for document id.
func (c *Client) DownloadURL(id int64) string {
	return c.url("/api/documents/download/" + strconv.FormatInt(id, 10))
}

func (c *Client) do(ctx context.Context, op, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, rejection(op, resp)
	}
	return resp, nil
}

// rejection reads the error body. Anything that is not a JSON object with a string
// detail leaves Detail empty.
func rejection(op string, resp *http.Response) *RejectionError {
	rej := &RejectionError{Op: op, StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return rej
	}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return rej
	}
	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		rej.Detail = strings.TrimSpace(detail)
	}
	return rej
}

func (c *Client) List(ctx context.Context) ([]Document, error) {
	resp, err := c.do(ctx, OpList, http.MethodGet, c.url("/api/documents"), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var docs []Document
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", OpList, err)
	}
	if docs == nil {
		docs = []Document{}
	}
	return docs, nil
}

// Upload streams f as the multipart field "file", keeping f.ContentType on the part.
func (c *Client) Upload(ctx context.Context, f File) (Document, error) {
	src, err := f.Open()
	if err != nil {
		return Document{}, fmt.Errorf("%s: open %s: %w", OpUpload, f.Name, err)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer src.Close()
		pw.CloseWithError(writeFilePart(mw, f, src))
	}()

	resp, err := c.do(ctx, OpUpload, http.MethodPost, c.url("/api/documents/upload"), pr, mw.FormDataContentType())
	// Unblocks the writer if the request ended before the body was consumed.
	pr.Close()
	if err != nil {
		return Document{}, err
	}
	defer resp.Body.Close()

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%s: decode response: %w", OpUpload, err)
	}
	return doc, nil
}

func writeFilePart(mw *multipart.Writer, f File, src io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, f.Name))
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, src); err != nil {
		return err
	}
	return mw.Close()
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	resp, err := c.do(ctx, OpDelete, http.MethodDelete, c.url("/api/documents/"+strconv.FormatInt(id, 10)), nil, "")
	if err != nil {
		return err
	}
	// No body is required on success.
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}

// Download copies the stored PDF for id into w and returns the byte count.
func (c *Client) Download(ctx context.Context, id int64, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, OpDownload, http.MethodGet, c.DownloadURL(id), nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &NetworkError{Op: OpDownload, Err: err}
	}
	return n, nil
}
