package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

// PDFContentType is the only type the upload widget accepts.
const PDFContentType = "application/pdf"

var (
	ErrNotPDF    = errors.New("only PDF files are allowed")
	ErrEmptyFile = errors.New("the selected file is empty")
)

// Alert texts shown when a file is refused before any request is made.
const (
	AlertNotPDF    = "Only PDF files are allowed"
	AlertEmptyFile = "The selected file is empty"
)

// File is a user selected file. Open is called once per upload attempt.
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// OpenFile describes the file at path. Its content type is detected from the bytes,
// not the extension.
func OpenFile(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return File{}, fmt.Errorf("detect type of %s: %w", path, err)
	}
	return File{
		Name:        filepath.Base(path),
		ContentType: mediaType(mt.String()),
		Size:        info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// BytesFile wraps in-memory content as a File.
func BytesFile(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(message string)
}

// AlertFunc adapts a function to Alerter.
type AlertFunc func(message string)

func (f AlertFunc) Alert(message string) { f(message) }

// Uploader is the upload widget: it checks a file locally and hands accepted files to
// the session. It keeps only presentation state.
type Uploader struct {
	session interface {
		Upload(ctx context.Context, f File) (Document, error)
	}
	alert Alerter

	mu       sync.Mutex
	busy     bool
	dragging bool
	selected string
}

// NewUploader returns a widget feeding ctrl. A nil alert drops alerts.
func NewUploader(ctrl *Controller, alert Alerter) *Uploader {
	if alert == nil {
		alert = AlertFunc(func(string) {})
	}
	return &Uploader{session: ctrl, alert: alert}
}

// ProcessFile is the single path for dropped and picked files. A file that is not a
// PDF, or is empty, is refused with an alert and no request is made.
func (u *Uploader) ProcessFile(ctx context.Context, f File) error {
	if mediaType(f.ContentType) != PDFContentType {
		u.alert.Alert(AlertNotPDF)
		return ErrNotPDF
	}
	if f.Size <= 0 {
		u.alert.Alert(AlertEmptyFile)
		return ErrEmptyFile
	}

	u.mu.Lock()
	if u.busy {
		u.mu.Unlock()
		return ErrUploadInProgress
	}
	u.busy = true
	u.selected = f.Name
	u.mu.Unlock()

	defer func() {
		u.mu.Lock()
		u.busy = false
		u.selected = ""
		u.mu.Unlock()
	}()

	_, err := u.session.Upload(ctx, f)
	return err
}

// Select handles the file picker. Only the first file is used.
func (u *Uploader) Select(ctx context.Context, files []File) error {
	if len(files) == 0 {
		return nil
	}
	return u.ProcessFile(ctx, files[0])
}

// Drop ends a drag and processes the first dropped file.
func (u *Uploader) Drop(ctx context.Context, files []File) error {
	u.setDragging(false)
	return u.Select(ctx, files)
}

func (u *Uploader) DragEnter() { u.setDragging(true) }
func (u *Uploader) DragOver()  { u.setDragging(true) }
func (u *Uploader) DragLeave() { u.setDragging(false) }

func (u *Uploader) setDragging(v bool) {
	u.mu.Lock()
	u.dragging = v
	u.mu.Unlock()
}

// Dragging reports whether a drag is hovering the widget.
func (u *Uploader) Dragging() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.dragging
}

// Busy reports whether an upload is in flight.
func (u *Uploader) Busy() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.busy
}

// CanBrowse reports whether the file picker may be opened.
func (u *Uploader) CanBrowse() bool { return !u.Busy() }

// Selected is the name of the file being uploaded. It is cleared when the upload
// finishes either way, so the same file can be chosen again.
func (u *Uploader) Selected() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selected, u.selected != ""
}

// mediaType strips parameters such as "; charset=binary".
func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
