package portal

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrAlreadyLoaded    = errors.New("documents already loaded")
	ErrUploadInProgress = errors.New("an upload is already in progress")
	ErrDeleteInProgress = errors.New("another document is being deleted")
	ErrClosed           = errors.New("session closed")
)

// User facing outcome messages.
const (
	MsgLoadFailed   = "Could not load documents. Please try again."
	MsgUploaded     = "Document uploaded successfully!"
	MsgUploadFailed = "Failed to upload document"
	MsgDeleted      = "Document deleted successfully"
	MsgDeleteFailed = "Failed to delete document"
)

// Controller owns the session's document collection. Every change goes through Reduce
// under mu; requests to the API run without holding it. Safe for concurrent use.
type Controller struct {
	api   API
	notes *NotificationChannel
	log   *zap.Logger

	mu      sync.Mutex
	state   State
	loading bool // Load has been issued
	closed  bool
}

// NewController starts an uninitialized session. A nil notes gets a channel with the
// default TTL; a nil log discards output.
func NewController(api API, notes *NotificationChannel, log *zap.Logger) *Controller {
	if notes == nil {
		notes = NewNotificationChannel(DefaultNotificationTTL, nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{api: api, notes: notes, log: log}
}

// Notifications is the channel outcomes are reported on.
func (c *Controller) Notifications() *NotificationChannel { return c.notes }

// Snapshot returns a copy of the current state. Callers may keep or modify it freely.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// dispatch applies e unless the session is closed, and reports whether it did.
func (c *Controller) dispatch(e Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.state = Reduce(c.state, e)
	return true
}

func (c *Controller) notify(typ NotificationType, msg string) {
	c.notes.Show(typ, msg)
}

// Load fetches the collection once per session. On failure the collection stays
// empty and an error notification is shown; the session is ready either way.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.loading:
		c.mu.Unlock()
		return ErrAlreadyLoaded
	}
	c.loading = true
	c.state = Reduce(c.state, LoadStarted{})
	c.mu.Unlock()

	docs, err := c.api.List(ctx)
	if err != nil {
		c.log.Warn("load_documents_failed", zap.Error(err))
		if c.dispatch(LoadFailed{}) {
			c.notify(NotifyError, MsgLoadFailed)
		}
		return err
	}

	if !c.dispatch(Loaded{Documents: docs}) {
		return ErrClosed
	}
	c.log.Debug("documents_loaded", zap.Int("count", len(docs)))
	return nil
}

// Upload sends f and prepends the stored document on success. The failure
// notification carries the server's detail when it sent one.
func (c *Controller) Upload(ctx context.Context, f File) (Document, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return Document{}, ErrClosed
	case c.state.Uploading:
		c.mu.Unlock()
		return Document{}, ErrUploadInProgress
	}
	c.state = Reduce(c.state, UploadStarted{})
	c.mu.Unlock()

	doc, err := c.api.Upload(ctx, f)
	if err != nil {
		c.log.Warn("upload_failed", zap.String("filename", f.Name), zap.Error(err))
		if c.dispatch(UploadFailed{}) {
			msg := Detail(err)
			if msg == "" {
				msg = MsgUploadFailed
			}
			c.notify(NotifyError, msg)
		}
		return Document{}, err
	}

	if !c.dispatch(Uploaded{Document: doc}) {
		return doc, ErrClosed
	}
	c.notify(NotifySuccess, MsgUploaded)
	c.log.Debug("document_uploaded", zap.Int64("document_id", doc.ID), zap.String("filename", doc.Filename))
	return doc, nil
}

// Delete removes id from the backend and then from the collection. Only one delete
// runs at a time; a second call while one is pending returns ErrDeleteInProgress
// without contacting the API.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.state.Deleting:
		c.mu.Unlock()
		return ErrDeleteInProgress
	}
	c.state = Reduce(c.state, DeleteStarted{ID: id})
	c.mu.Unlock()

	if err := c.api.Delete(ctx, id); err != nil {
		c.log.Warn("delete_failed", zap.Int64("document_id", id), zap.Error(err))
		if c.dispatch(DeleteFailed{ID: id}) {
			c.notify(NotifyError, MsgDeleteFailed)
		}
		return err
	}

	if !c.dispatch(Deleted{ID: id}) {
		return ErrClosed
	}
	c.notify(NotifySuccess, MsgDeleted)
	c.log.Debug("document_deleted", zap.Int64("document_id", id))
	return nil
}

// Close ends the session. Requests still in flight finish, but their results are
// dropped and no further notifications are shown.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notes.Close()
}
