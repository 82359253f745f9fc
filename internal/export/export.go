// Package export writes the full stale-content list as CSV or Parquet.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/cfmlabs/freshness-monitor/internal/models"
	"github.com/parquet-go/parquet-go"
)

// DateLayout is the timestamp format of exported date columns
const DateLayout = "2006-01-02 15:04:05"

// bom lets spreadsheet tools detect UTF-8
const bom = "\xEF\xBB\xBF"

// Columns is the fixed column order of every export
var Columns = []string{
	"ID",
	"Title",
	"Type",
	"Author",
	"Last Modified",
	"Days Old",
	"Status",
	"Last Reviewed",
	"Edit URL",
	"View URL",
}

// Filename returns the CSV download name for the given day
func Filename(now time.Time) string {
	return "stale-content-" + now.Format("2006-01-02") + ".csv"
}

// ParquetFilename returns the Parquet file name for the given day
func ParquetFilename(now time.Time) string {
	return "stale-content-" + now.Format("2006-01-02") + ".parquet"
}

// Row converts a stale item into its CSV fields
func Row(item models.StaleItem) []string {
	reviewed := ""
	if item.ReviewedAt != nil {
		reviewed = item.ReviewedAt.Format(DateLayout)
	}
	return []string{
		strconv.FormatInt(item.ID, 10),
		item.Title,
		item.Type,
		item.AuthorName,
		item.ModifiedAt.Format(DateLayout),
		strconv.Itoa(item.DaysOld),
		string(item.Band),
		reviewed,
		item.EditURL,
		item.ViewURL,
	}
}

// WriteCSV writes the byte order mark, the header and one row per item
func WriteCSV(w io.Writer, items []models.StaleItem) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("failed to write byte order mark: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, item := range items {
		if err := cw.Write(Row(item)); err != nil {
			return fmt.Errorf("failed to write csv row %d: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record is the Parquet row of an exported stale item
type Record struct {
	ID           int64      `parquet:"id,snappy"`
	Title        string     `parquet:"title,snappy"`
	Type         string     `parquet:"type,snappy"`
	Author       string     `parquet:"author,snappy"`
	LastModified time.Time  `parquet:"last_modified,snappy"`
	DaysOld      int32      `parquet:"days_old,snappy"`
	Status       string     `parquet:"status,snappy"`
	LastReviewed *time.Time `parquet:"last_reviewed,optional,snappy"`
	EditURL      string     `parquet:"edit_url,snappy"`
	ViewURL      string     `parquet:"view_url,snappy"`
}

// Records converts stale items into Parquet rows
func Records(items []models.StaleItem) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		out = append(out, Record{
			ID:           item.ID,
			Title:        item.Title,
			Type:         item.Type,
			Author:       item.AuthorName,
			LastModified: item.ModifiedAt.UTC(),
			DaysOld:      int32(item.DaysOld),
			Status:       string(item.Band),
			LastReviewed: item.ReviewedAt,
			EditURL:      item.EditURL,
			ViewURL:      item.ViewURL,
		})
	}
	return out
}

// WriteParquet writes the items as a single Parquet file
func WriteParquet(w io.Writer, items []models.StaleItem) error {
	writer := parquet.NewGenericWriter[Record](w)
	if _, err := writer.Write(Records(items)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
