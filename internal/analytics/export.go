package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"linkpulse/internal/links"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
)

// ParseExportFormat returns csv for "csv" in any case and json otherwise.
func ParseExportFormat(value string) ExportFormat {
	if strings.EqualFold(strings.TrimSpace(value), string(ExportCSV)) {
		return ExportCSV
	}
	return ExportJSON
}

// ExportedLink is the link metadata in a JSON export.
type ExportedLink struct {
	ID        uint      `json:"id"`
	URL       string    `json:"url"`
	ShortCode string    `json:"short_code"`
	CreatedAt time.Time `json:"created_at"`
}

// JSONExport is the document returned by a JSON export.
type JSONExport struct {
	ExportFormat ExportFormat   `json:"export_format"`
	ExportedAt   time.Time      `json:"exported_at"`
	LinkInfo     ExportedLink   `json:"link_info"`
	Analytics    *LinkAnalytics `json:"analytics"`
}

// ExportJSON wraps the link's analytics in an export document.
func (r *Reporter) ExportJSON(ctx context.Context, link *links.Link, days int) (*JSONExport, error) {
	result, err := r.LinkAnalytics(ctx, link.ID, days)
	if err != nil {
		return nil, err
	}
	return &JSONExport{
		ExportFormat: ExportJSON,
		ExportedAt:   r.now(),
		LinkInfo: ExportedLink{
			ID:        link.ID,
			URL:       link.URL,
			ShortCode: link.ShortCode,
			CreatedAt: link.CreatedAt,
		},
		Analytics: result,
	}, nil
}

// NotAvailable fills CSV cells for breakdowns without data.
const NotAvailable = "N/A"

var csvHeader = []string{
	"Date", "Total Clicks", "Unique Clicks", "Top Country",
	"Top Device Type", "Top Browser", "Top OS",
}

// ExportCSV renders a one-row summary of the link's analytics.
func (r *Reporter) ExportCSV(ctx context.Context, link *links.Link, days int) ([]byte, error) {
	result, err := r.LinkAnalytics(ctx, link.ID, days)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	row := []string{
		r.now().Format("2006-01-02"),
		strconv.Itoa(result.TotalClicks),
		strconv.Itoa(result.UniqueClicks),
		result.Geography.Countries.Top(NotAvailable),
		result.Devices.Types.Top(NotAvailable),
		result.Browsers.Browsers.Top(NotAvailable),
		result.Browsers.OperatingSystems.Top(NotAvailable),
	}
	if err := w.Write(row); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv export: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportFilename is the attachment name of a CSV export.
func ExportFilename(linkID uint) string {
	return fmt.Sprintf("link_%d_analytics.csv", linkID)
}
