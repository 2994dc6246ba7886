package portal

// Phase is the lifecycle of the collection: uninitialized until Load starts, loading
// until the first Load resolves, then ready for the rest of the session.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return "unknown"
	}
}

// State is the session's document collection plus its busy markers. Documents are
// newest first and ids are unique.
type State struct {
	Phase     Phase
	Documents []Document

	// Uploading is set while an upload request is in flight.
	Uploading bool

	// Deleting reports whether the single delete slot is taken, by DeletingID.
	Deleting   bool
	DeletingID int64

	// optimistic holds uploads that resolved before the initial load did. The load
	// result is merged with them instead of replacing them.
	optimistic []Document
}

// Event is a change reported to the session. Reduce is the only consumer.
type Event interface {
	isEvent()
}

type (
	LoadStarted struct{}
	Loaded      struct{ Documents []Document }
	LoadFailed  struct{}

	UploadStarted struct{}
	Uploaded      struct{ Document Document }
	UploadFailed  struct{}

	DeleteStarted struct{ ID int64 }
	Deleted       struct{ ID int64 }
	DeleteFailed  struct{ ID int64 }
)

func (LoadStarted) isEvent()   {}
func (Loaded) isEvent()        {}
func (LoadFailed) isEvent()    {}
func (UploadStarted) isEvent() {}
func (Uploaded) isEvent()      {}
func (UploadFailed) isEvent()  {}
func (DeleteStarted) isEvent() {}
func (Deleted) isEvent()       {}
func (DeleteFailed) isEvent()  {}

// Reduce returns the state that follows s after e. s is not modified and the result
// shares no slices with it.
func Reduce(s State, e Event) State {
	next := s.clone()

	switch e := e.(type) {
	case LoadStarted:
		next.Phase = PhaseLoading
	case Loaded:
		next = applyLoaded(next, e.Documents)
	case LoadFailed:
		// The collection keeps whatever uploads already landed, which is empty when
		// none did.
		next.Phase = PhaseReady
		next.optimistic = nil

	case UploadStarted:
		next.Uploading = true
	case Uploaded:
		next = applyUploaded(next, e.Document)
		next.Uploading = false
	case UploadFailed:
		next.Uploading = false

	case DeleteStarted:
		next.Deleting = true
		next.DeletingID = e.ID
	case Deleted:
		next = applyDeleted(next, e.ID)
		next = releaseDelete(next, e.ID)
	case DeleteFailed:
		next = releaseDelete(next, e.ID)
	}
	return next
}

// applyLoaded installs the server collection in server order. Uploads that resolved
// while the load was pending stay in front unless the server already lists them.
func applyLoaded(s State, docs []Document) State {
	merged := make([]Document, 0, len(s.optimistic)+len(docs))
	seen := make(map[int64]struct{}, cap(merged))

	add := func(d Document) {
		if _, dup := seen[d.ID]; dup {
			return
		}
		seen[d.ID] = struct{}{}
		merged = append(merged, d)
	}

	for _, d := range s.optimistic {
		if indexOf(docs, d.ID) < 0 {
			add(d)
		}
	}
	for _, d := range docs {
		add(d)
	}

	s.Documents = merged
	s.optimistic = nil
	s.Phase = PhaseReady
	return s
}

// applyUploaded puts doc at the front, replacing an entry with the same id. Before the
// collection is ready the upload is also remembered for applyLoaded.
func applyUploaded(s State, doc Document) State {
	docs := make([]Document, 0, len(s.Documents)+1)
	docs = append(docs, doc)
	for _, d := range s.Documents {
		if d.ID != doc.ID {
			docs = append(docs, d)
		}
	}
	s.Documents = docs

	if s.Phase != PhaseReady {
		s.optimistic = append([]Document{doc}, removeID(s.optimistic, doc.ID)...)
	}
	return s
}

// applyDeleted drops exactly the entry with id.
func applyDeleted(s State, id int64) State {
	s.Documents = removeID(s.Documents, id)
	s.optimistic = removeID(s.optimistic, id)
	return s
}

func releaseDelete(s State, id int64) State {
	if s.Deleting && s.DeletingID == id {
		s.Deleting = false
		s.DeletingID = 0
	}
	return s
}

func removeID(docs []Document, id int64) []Document {
	if indexOf(docs, id) < 0 {
		return docs
	}
	out := make([]Document, 0, len(docs)-1)
	for _, d := range docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return out
}

func (s State) clone() State {
	c := s
	if s.Documents != nil {
		c.Documents = append([]Document(nil), s.Documents...)
	}
	if s.optimistic != nil {
		c.optimistic = append([]Document(nil), s.optimistic...)
	}
	return c
}
