// Package portal keeps a client session in sync with the document API: it owns the
// document collection, runs uploads and deletes against the backend, and reports each
// outcome through a single transient notification.
package portal

// Document is a stored record as the API returns it. The client never edits one; it
// only gains documents through upload and loses them through delete.
type Document struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	Filepath  string `json:"filepath"`
	Filesize  int64  `json:"filesize"`
	CreatedAt string `json:"created_at"`
}

// indexOf returns the position of id in docs, or -1.
func indexOf(docs []Document, id int64) int {
	for i := range docs {
		if docs[i].ID == id {
			return i
		}
	}
	return -1
}
