// package formatter exports session history to various formats (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/desertthunder/stemx/internal/shared"
)

const timeLayout = "2006-01-02 15:04"

// Formats lists the accepted export format names.
var Formats = []string{"text", "csv", "markdown", "json"}

// SessionJSON is the exported shape of a history row.
type SessionJSON struct {
	Sequence  int               `json:"sequence"`
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Tracks    map[string]string `json:"tracks"`
	CacheDir  string            `json:"cache_dir,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
}

func status(rec *models.SessionRecord) string {
	if rec.Deleted() {
		return "deleted"
	}
	return "pending"
}

func kindList(tracks models.TrackSet) string {
	kinds := tracks.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ";")
}

// ExportToCSV writes one row per session with columns: Sequence, ID, Source, Tracks, Created, Status
func ExportToCSV(records []*models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "ID", "Source", "Tracks", "Created", "Status"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, rec := range records {
		record := []string{
			strconv.Itoa(rec.Sequence()),
			rec.ID(),
			rec.Source(),
			kindList(rec.Tracks()),
			rec.CreatedAt().Format(time.RFC3339),
			status(rec),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders the history as a heading per session with its stem links
func ExportToMarkdown(records []*models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Separation history\n\n")
	fmt.Fprintf(&buf, "**Sessions**: %d\n\n", len(records))

	for _, rec := range records {
		fmt.Fprintf(&buf, "## #%d %s\n\n", rec.Sequence(), rec.Source())
		fmt.Fprintf(&buf, "- **Session**: `%s`\n", rec.ID())
		fmt.Fprintf(&buf, "- **Created**: %s\n", rec.CreatedAt().Format(timeLayout))
		fmt.Fprintf(&buf, "- **Status**: %s\n\n", status(rec))

		for _, k := range rec.Tracks().Kinds() {
			fmt.Fprintf(&buf, "- [%s](%s)\n", k, rec.Tracks()[k])
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText renders one line per session
func ExportToText(records []*models.SessionRecord) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Sessions: %d\n\n", len(records))
	for _, rec := range records {
		fmt.Fprintf(&buf, "#%d %s  %s  %-7s  %s  [%s]\n",
			rec.Sequence(),
			rec.CreatedAt().Format(timeLayout),
			rec.ID(),
			status(rec),
			rec.Source(),
			kindList(rec.Tracks()),
		)
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the history as an indented JSON array
func ExportToJSON(records []*models.SessionRecord) ([]byte, error) {
	out := make([]SessionJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, SessionJSON{
			Sequence:  rec.Sequence(),
			ID:        rec.ID(),
			Source:    rec.Source(),
			Tracks:    rec.Tracks().Raw(),
			CacheDir:  rec.CacheDir(),
			CreatedAt: rec.CreatedAt(),
			DeletedAt: rec.DeletedAt(),
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders records in the named format.
func Export(format string, records []*models.SessionRecord) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "text", "txt":
		return ExportToText(records)
	case "csv":
		return ExportToCSV(records)
	case "markdown", "md":
		return ExportToMarkdown(records)
	case "json":
		return ExportToJSON(records)
	default:
		return nil, fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// WriteExport renders records and writes them to path.
func WriteExport(format string, records []*models.SessionRecord, path string) error {
	data, err := Export(format, records)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
