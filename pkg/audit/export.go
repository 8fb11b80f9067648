package audit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Export writes override entries to w in the given format
func Export(w io.Writer, entries []OverrideEntry, format ExportFormat) error {
	switch format {
	case ExportFormatCSV:
		return exportCSV(w, entries)
	case ExportFormatNDJSON:
		return exportNDJSON(w, entries)
	default:
		return exportJSON(w, entries)
	}
}

// ContentType returns the MIME type and file extension for format
func (f ExportFormat) ContentType() (string, string) {
	switch f {
	case ExportFormatCSV:
		return "text/csv", "csv"
	case ExportFormatNDJSON:
		return "application/x-ndjson", "ndjson"
	default:
		return "application/json", "json"
	}
}

// exportJSON exports audit entries as JSON array
func exportJSON(w io.Writer, entries []OverrideEntry) error {
	if entries == nil {
		entries = []OverrideEntry{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(entries)
}

// exportNDJSON exports audit entries as newline-delimited JSON
func exportNDJSON(w io.Writer, entries []OverrideEntry) error {
	encoder := json.NewEncoder(w)

	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return fmt.Errorf("failed to encode entry: %w", err)
		}
	}

	return nil
}

// exportCSV exports audit entries as CSV
func exportCSV(w io.Writer, entries []OverrideEntry) error {
	writer := csv.NewWriter(w)

	header := []string{
		"ID",
		"Timestamp",
		"AlertID",
		"UserID",
		"OriginalScore",
		"OverrideScore",
		"Justification",
	}

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, entry := range entries {
		row := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Timestamp.UTC().Format(time.RFC3339Nano),
			strconv.FormatInt(entry.AlertID, 10),
			strconv.FormatInt(entry.UserID, 10),
			strconv.Itoa(entry.OriginalScore),
			strconv.Itoa(entry.OverrideScore),
			entry.Justification,
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}

	return nil
}

// CollectOverrides pages through every override entry matching filter
func CollectOverrides(ctx context.Context, reader Reader, filter Filter) ([]OverrideEntry, error) {
	filter.Limit = MaxLimit
	filter.Offset = 0

	var all []OverrideEntry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := reader.QueryOverrides(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Entries...)
		if len(page.Entries) < filter.Limit || int64(len(all)) >= page.Total {
			return all, nil
		}
		filter.Offset += len(page.Entries)
	}
}
