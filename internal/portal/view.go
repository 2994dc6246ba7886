package portal

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"
)

const (
	EmptyTitle    = "No documents uploaded"
	EmptyHint     = "Upload your first medical record to get started"
	ConfirmPrompt = "Are you sure you want to delete this document?"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders n bytes in 1024-based units with at most two decimals.
// Sizes beyond the largest unit stay in GB.
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// FormatDate renders an ISO timestamp as a long date, e.g. "January 5, 2025".
// Input that does not parse is returned unchanged.
func FormatDate(ts string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("January 2, 2006")
		}
	}
	return ts
}

// ItemView is one rendered document.
type ItemView struct {
	ID          int64
	Filename    string
	Size        string
	Date        string
	Deleting    bool
	DownloadURL string
}

// ListView is what the collection view draws for a snapshot.
type ListView struct {
	Loading    bool
	Empty      bool
	Count      int
	CountLabel string
	Items      []ItemView
}

// BuildView derives the view from a snapshot. downloadURL may be nil.
func BuildView(s State, downloadURL func(id int64) string) ListView {
	v := ListView{
		Loading:    s.Phase != PhaseReady,
		Count:      len(s.Documents),
		CountLabel: strconv.Itoa(len(s.Documents)),
	}
	if v.Loading {
		return v
	}
	if len(s.Documents) == 0 {
		v.Empty = true
		return v
	}

	v.Items = make([]ItemView, 0, len(s.Documents))
	for _, d := range s.Documents {
		item := ItemView{
			ID:       d.ID,
			Filename: d.Filename,
			Size:     FormatSize(d.Filesize),
			Date:     FormatDate(d.CreatedAt),
			Deleting: s.Deleting && s.DeletingID == d.ID,
		}
		if downloadURL != nil {
			item.DownloadURL = downloadURL(d.ID)
		}
		v.Items = append(v.Items, item)
	}
	return v
}

// Render writes v as text: a header with the count, then either the empty state or a
// tab aligned table.
func Render(w io.Writer, v ListView) error {
	if _, err := fmt.Fprintf(w, "Recent Documents (%s)\n", v.CountLabel); err != nil {
		return err
	}
	switch {
	case v.Loading:
		_, err := fmt.Fprintln(w, "Loading documents...")
		return err
	case v.Empty:
		_, err := fmt.Fprintf(w, "%s\n%s\n", EmptyTitle, EmptyHint)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED\tDOWNLOAD")
	for _, it := range v.Items {
		name := it.Filename
		if it.Deleting {
			name += " (deleting)"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, name, it.Size, it.Date, it.DownloadURL)
	}
	return tw.Flush()
}

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Deleter is the delete callback the view hands confirmed requests to.
type Deleter interface {
	Delete(ctx context.Context, id int64) error
}

// ConfirmDelete asks before deleting id. It reports whether the delete was attempted;
// a declined prompt calls nothing.
func ConfirmDelete(ctx context.Context, c Confirmer, d Deleter, id int64) (bool, error) {
	ok, err := c.Confirm(ctx, ConfirmPrompt)
	if err != nil || !ok {
		return false, err
	}
	return true, d.Delete(ctx, id)
}
