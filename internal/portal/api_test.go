package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second)
}

func TestClient_List(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/documents", r.URL.Path)
			assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `[{"id":2,"filename":"b.pdf","filepath":"documents/b.pdf","filesize":2048,"created_at":"2025-01-05T10:15:00Z","content_type":"application/pdf"},
				{"id":1,"filename":"a.pdf","filepath":"documents/a.pdf","filesize":10,"created_at":"2025-01-04T09:00:00Z"}]`)
		})

		got, err := c.List(context.Background())

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, Document{ID: 2, Filename: "b.pdf", Filepath: "documents/b.pdf", Filesize: 2048, CreatedAt: "2025-01-05T10:15:00Z"}, got[0])
		assert.Equal(t, int64(1), got[1].ID)
	})

	t.Run("null body is an empty list", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `null`)
		})

		got, err := c.List(context.Background())

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("non-2xx is a rejection", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"detail":"Could not load documents","code":"INTERNAL_ERROR"}`)
		})

		_, err := c.List(context.Background())

		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, OpList, rej.Op)
		assert.Equal(t, http.StatusInternalServerError, rej.StatusCode)
		assert.Equal(t, "Could not load documents", rej.Detail)
	})

	t.Run("unreachable server is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c := NewClient(srv.URL, time.Second)

		_, err := c.List(context.Background())

		var netErr *NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.Equal(t, OpList, netErr.Op)
		assert.Empty(t, Detail(err))
	})
}

func TestRejection_Detail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"too large"}`, "too large"},
		{"not json", `<html>502 Bad Gateway</html>`, ""},
		{"missing detail", `{"error":"nope"}`, ""},
		{"detail not a string", `{"detail":[{"msg":"field required"}]}`, ""},
		{"empty body", ``, ""},
		{"json array", `["x"]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: http.StatusBadRequest, Body: io.NopCloser(bytes.NewBufferString(tt.body))}

			rej := rejection(OpUpload, resp)

			assert.Equal(t, http.StatusBadRequest, rej.StatusCode)
			assert.Equal(t, tt.want, rej.Detail)
			assert.Equal(t, tt.want, Detail(rej))
		})
	}
}

func TestClient_Upload(t *testing.T) {
	t.Run("sends multipart file field", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/documents/upload", r.URL.Path)

			f, fh, err := r.FormFile("file")
			if !assert.NoError(t, err) {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			defer f.Close()
			body, _ := io.ReadAll(f)

			assert.Equal(t, "scan.pdf", fh.Filename)
			assert.Equal(t, PDFContentType, fh.Header.Get("Content-Type"))
			assert.Equal(t, samplePDF, string(body))

			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(Document{ID: 11, Filename: fh.Filename, Filesize: int64(len(body)), CreatedAt: "2025-01-05T10:15:00Z"})
		})

		doc, err := c.Upload(context.Background(), BytesFile("scan.pdf", PDFContentType, []byte(samplePDF)))

		require.NoError(t, err)
		assert.Equal(t, int64(11), doc.ID)
		assert.Equal(t, int64(len(samplePDF)), doc.Filesize)
	})

	t.Run("rejection carries detail", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			io.WriteString(w, `{"detail":"too large"}`)
		})

		_, err := c.Upload(context.Background(), BytesFile("big.pdf", PDFContentType, []byte(samplePDF)))

		assert.Equal(t, "too large", Detail(err))
	})

	t.Run("open failure makes no request", func(t *testing.T) {
		hits := 0
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { hits++ })
		f := File{Name: "gone.pdf", ContentType: PDFContentType, Size: 10, Open: func() (io.ReadCloser, error) {
			return nil, errors.New("no such file")
		}}

		_, err := c.Upload(context.Background(), f)

		assert.ErrorContains(t, err, "no such file")
		assert.Zero(t, hits)
	})
}

func TestClient_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			assert.Equal(t, "/api/documents/7", r.URL.Path)
			io.WriteString(w, `{"message":"Document deleted successfully"}`)
		})

		assert.NoError(t, c.Delete(context.Background(), 7))
	})

	t.Run("not found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"detail":"Document not found"}`)
		})

		err := c.Delete(context.Background(), 7)

		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, http.StatusNotFound, rej.StatusCode)
	})
}

func TestClient_Download(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/documents/download/5", r.URL.Path)
		w.Header().Set("Content-Type", PDFContentType)
		io.WriteString(w, samplePDF)
	})

	var buf bytes.Buffer
	n, err := c.Download(context.Background(), 5, &buf)

	require.NoError(t, err)
	assert.Equal(t, int64(len(samplePDF)), n)
	assert.Equal(t, samplePDF, buf.String())
}

func TestClient_DownloadURL(t *testing.T) {
	c := NewClient("http://localhost:8000/", 0)
	assert.Equal(t, "http://localhost:8000/api/documents/download/42", c.DownloadURL(42))
}
