package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"permitkeeper/models"
)

// WriteCSV renders an assembled report as CSV: the permit detail rows
// first, then the checklist table with one heading row per section. This
// is the tabular sibling of the structured document, handed to the same
// export collaborator.
func WriteCSV(w io.Writer, r *models.Report) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	for _, row := range r.Details {
		if err := writer.Write([]string{row.Label, row.Value}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	header := []string{"SR. NO.", "CHECK POINT DETAILS", "STATUS", "REMARKS", "UPDATED REMARKS", "IMAGE"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, section := range r.Sections {
		if err := writer.Write([]string{section.Title, "", "", "", "", ""}); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
		for _, row := range section.Rows {
			record := []string{
				strconv.Itoa(row.Ordinal),
				row.Title,
				row.Status,
				row.Remarks,
				row.UpdatedRemarks,
				row.Image,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
