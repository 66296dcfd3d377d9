// Package report assembles the exportable maintenance report from the
// local cache alone. It deliberately never touches the remote store: the
// report reflects exactly what this device has reconciled so far, and
// keeps working offline.
package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"permitkeeper/models"
	"permitkeeper/session"
)

// Builder assembles reports. The image reader is injectable so assembly
// can be exercised without touching the filesystem.
type Builder struct {
	readImage func(path string) ([]byte, error)
}

// NewBuilder creates a builder reading image captures from the local
// filesystem.
func NewBuilder() *Builder {
	return &Builder{readImage: os.ReadFile}
}

// NewBuilderWithImageReader creates a builder with a custom image reader.
func NewBuilderWithImageReader(read func(path string) ([]byte, error)) *Builder {
	return &Builder{readImage: read}
}

// Build scans every cache entry of the session and emits one structured
// document: the permit detail table plus a table per cached section. A
// malformed record or unreadable image degrades that section or cell and
// assembly continues; only an unavailable cache aborts the build.
func (b *Builder) Build(sess *session.Session) (*models.Report, error) {
	report := &models.Report{
		PermitID:    sess.PermitID,
		GeneratedAt: time.Now().UTC(),
	}

	detail, ok, err := sess.Snapshot()
	if err != nil {
		var decodeErr *models.DecodeError
		if !errors.As(err, &decodeErr) {
			return nil, err
		}
		log.Printf("⚠️  Skipping permit detail table: %v", err)
	} else if ok {
		report.Details = detailRows(sess.PermitID, detail)
	}

	titles, err := sess.SectionTitles()
	if err != nil {
		return nil, err
	}

	for _, title := range titles {
		items, _, err := sess.ReadSection(title)
		if err != nil {
			var decodeErr *models.DecodeError
			if !errors.As(err, &decodeErr) {
				return nil, err
			}
			log.Printf("⚠️  Skipping malformed section %q: %v", title, err)
			continue
		}

		section := models.ReportSection{Title: title}
		for i, item := range items {
			section.Rows = append(section.Rows, models.ReportRow{
				Ordinal:        i + 1,
				Title:          item.Title,
				Status:         item.Status,
				Remarks:        item.Remarks,
				UpdatedRemarks: item.UpdatedRemarks,
				Image:          b.inlineImage(item.ImageURI),
			})
		}
		report.Sections = append(report.Sections, section)
	}

	return report, nil
}

func detailRows(permitID string, detail *models.PermitDetail) []models.DetailRow {
	engineers := make([]string, len(detail.Engineers))
	for i, engineer := range detail.Engineers {
		engineers[i] = fmt.Sprintf("%d. %s", i+1, engineer.Name)
	}

	return []models.DetailRow{
		{Label: "Permit ID", Value: permitID},
		{Label: "Location", Value: detail.Location},
		{Label: "Number of Persons", Value: detail.NumberOfPersons},
		{Label: "Description of Work", Value: detail.DescriptionOfWork},
		{Label: "Windspeed", Value: detail.WindSpeed},
		{Label: "Model", Value: detail.Model},
		{Label: "Engineers", Value: strings.Join(engineers, "\n")},
		{Label: "Work Area", Value: detail.WorkArea},
	}
}

// inlineImage converts a device-local capture into a base64 data URI. Any
// failure degrades to an empty cell; a missing photo must never sink the
// whole report.
func (b *Builder) inlineImage(imageURI string) string {
	if imageURI == "" {
		return ""
	}
	path := strings.TrimPrefix(imageURI, "file://")
	raw, err := b.readImage(path)
	if err != nil {
		log.Printf("⚠️  Failed to inline image %s: %v", imageURI, err)
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw)
}
