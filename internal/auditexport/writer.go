package auditexport

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"signet/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// columns defines the export header row.
var columns = []string{
	"Timestamp",
	"Event",
	"Actor Type",
	"Actor",
	"Sign Request",
	"Details",
}

// Writer wraps csv.Writer for exporting an audit trail as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteEntries converts audit entries to CSV rows and writes them.
func (w *Writer) WriteEntries(entries []domain.AuditLog) error {
	for i := range entries {
		if err := w.csv.Write(entryToRow(&entries[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

func entryToRow(e *domain.AuditLog) []string {
	row := make([]string, len(columns))
	row[0] = e.CreatedAt.UTC().Format(time.RFC3339)
	row[1] = string(e.EventType)
	row[2] = string(e.ActorType)
	row[3] = e.ActorIdentity
	if e.SignRequestID != nil {
		row[4] = e.SignRequestID.String()
	}
	row[5] = formatMetadata(e.Metadata)
	return row
}

// formatMetadata flattens a JSON object into "key=value" pairs sorted by key.
// Anything that is not an object is returned as raw JSON.
func formatMetadata(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return string(raw)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s=%s", k, v))
		case nil:
			parts = append(parts, k+"=")
		default:
			b, _ := json.Marshal(v)
			parts = append(parts, fmt.Sprintf("%s=%s", k, b))
		}
	}
	return strings.Join(parts, "; ")
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a document title for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "document"
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_title}_audit_{YYYY-MM-DD}.{ext}
func BuildFilename(title string, format Format, now time.Time) string {
	return fmt.Sprintf("%s_audit_%s.%s", SanitizeFilename(title), now.Format("2006-01-02"), format)
}
