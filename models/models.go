// models.go
// Defines the core data structures shared by the sync engine packages
// (lifecycle store, merge engine, report assembly) and the HTTP layer.

package models

import (
	"time"
)

// PermitStatus defines the lifecycle state of a work permit.
type PermitStatus string

const (
	StatusPending   PermitStatus = "Pending"
	StatusAccepted  PermitStatus = "Accepted"
	StatusRejected  PermitStatus = "Rejected"
	StatusClosed    PermitStatus = "Closed"
	StatusCancelled PermitStatus = "Cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s PermitStatus) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusClosed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether s ends the permit's lifecycle. Terminal
// transitions require a non-empty reason.
func (s PermitStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// Permit is the lifecycle document stored in the "permits" collection.
// The document ID is the permit number; it is not stored as a field.
type Permit struct {
	ID          string       `firestore:"-" json:"id"`
	Status      PermitStatus `firestore:"status" json:"status"`
	Site        string       `firestore:"site,omitempty" json:"site,omitempty"`
	UpdatedAt   time.Time    `firestore:"updatedAt,omitempty" json:"updated_at,omitempty"`
	UpdatedDate time.Time    `firestore:"updatedDate,omitempty" json:"updated_date,omitempty"`
	Reason      string       `firestore:"reason,omitempty" json:"reason,omitempty"`
}

// LastTransition returns the server-assigned update time, falling back to
// the locally-assigned update date when the server clock was unavailable.
func (p Permit) LastTransition() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	return p.UpdatedDate
}

// Engineer is one member of the crew named on a permit.
type Engineer struct {
	Name string `firestore:"name" json:"name"`
}

// PermitDetail is the permit-to-work form document stored in the
// "permits_generated" collection under the permit number.
type PermitDetail struct {
	Name              string     `firestore:"name" json:"name"`
	NumberOfPersons   string     `firestore:"numberOfPersons" json:"numberOfPersons"`
	DescriptionOfWork string     `firestore:"descriptionOfWork" json:"descriptionOfWork"`
	Site              string     `firestore:"site" json:"site"`
	Model             string     `firestore:"model" json:"model"`
	Location          string     `firestore:"location" json:"location"`
	WorkArea          string     `firestore:"workArea" json:"workArea"`
	WindSpeed         string     `firestore:"windSpeed" json:"windSpeed"`
	Engineers         []Engineer `firestore:"engineers" json:"engineers"`
}

// Checklist item statuses. An item with a blank status cannot be persisted.
const (
	ItemStatusOK    = "OK"
	ItemStatusNotOK = "Not OK"
)

// ChecklistItem is a single inspection point inside a section. The item ID
// is template-derived and stable across merges. ImageURI points at a
// device-local capture and is deliberately excluded from Firestore writes;
// it travels only through the local cache and the assembled report.
type ChecklistItem struct {
	ID             string `firestore:"id" json:"id"`
	Title          string `firestore:"title" json:"title"`
	Status         string `firestore:"status" json:"status"`
	Remarks        string `firestore:"remarks" json:"remarks,omitempty"`
	UpdatedRemarks string `firestore:"updatedRemarks" json:"updatedRemarks,omitempty"`
	ImageURI       string `firestore:"-" json:"imageUri,omitempty"`
}

// SectionRef identifies a section within a site template. The ordered list
// of refs per site is published to the "AllDatas" collection for other
// consumers of the same project.
type SectionRef struct {
	ID    string `firestore:"id" json:"id"`
	Title string `firestore:"title" json:"title"`
}

// TemplateSection is the static default structure for one section: its
// ordered inspection items before any field edits.
type TemplateSection struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Items []ChecklistItem `json:"items"`
}

// SectionState is the aggregator's projection for one section: complete
// means a cache entry exists for the section under the active permit.
type SectionState struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
}

// AuditLog records one lifecycle transition in the "audit_logs" collection.
type AuditLog struct {
	LogID     string       `firestore:"log_id" json:"log_id"`
	Timestamp time.Time    `firestore:"timestamp" json:"timestamp"`
	PermitID  string       `firestore:"permit_id" json:"permit_id"`
	Status    PermitStatus `firestore:"status" json:"status"`
	Reason    string       `firestore:"reason,omitempty" json:"reason,omitempty"`
}

// --- Report Assembly ---

// ReportRow is one checklist item rendered for export. Image holds a
// base64 data URI, or "" when the item has no capture or encoding failed.
type ReportRow struct {
	Ordinal        int    `json:"ordinal"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Remarks        string `json:"remarks"`
	UpdatedRemarks string `json:"updatedRemarks"`
	Image          string `json:"image,omitempty"`
}

// ReportSection groups the rows of one checklist section.
type ReportSection struct {
	Title string      `json:"title"`
	Rows  []ReportRow `json:"rows"`
}

// DetailRow is one label/value pair of the permit detail table.
type DetailRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is the single self-contained document handed to the export/share
// collaborator: the permit detail table plus every cached section.
type Report struct {
	PermitID    string          `json:"permit_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	Details     []DetailRow     `json:"details"`
	Sections    []ReportSection `json:"sections"`
}
