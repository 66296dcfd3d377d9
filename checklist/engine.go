// Package checklist reconciles a permit's per-section checklist between the
// local cache and the remote checklist document, using the site template as
// the fallback when no remote data exists.
package checklist

import (
	"context"
	"fmt"
	"strings"

	"permitkeeper/models"
	"permitkeeper/session"
)

// Remote is the slice of the store adapter the merge engine depends on.
type Remote interface {
	GetChecklistDoc(ctx context.Context, permitID string) (map[string][]models.ChecklistItem, bool, error)
	GetChecklistSection(ctx context.Context, permitID, sectionTitle string) ([]models.ChecklistItem, bool, error)
	MergeChecklistSection(ctx context.Context, permitID, sectionTitle string, items []models.ChecklistItem) error
}

// Engine is the checklist merge engine.
type Engine struct {
	remote    Remote
	templates *Registry
}

// NewEngine creates a merge engine over the remote adapter and the static
// site templates.
func NewEngine(remote Remote, templates *Registry) *Engine {
	return &Engine{remote: remote, templates: templates}
}

// LoadSection materializes one section for the active permit. A non-empty
// remote section field wins verbatim over any local default; otherwise the
// section is built from the site template with blank statuses filled to
// "Not OK". Either way the result is written to the session cache so the
// status aggregator observes the section before an explicit save.
func (e *Engine) LoadSection(ctx context.Context, sess *session.Session, site, sectionTitle string) ([]models.ChecklistItem, error) {
	items, ok, err := e.remote.GetChecklistSection(ctx, sess.PermitID, sectionTitle)
	if err != nil {
		return nil, err
	}

	if !ok || len(items) == 0 {
		tmpl, found := e.templates.Site(site)
		if !found {
			return nil, &models.NotFoundError{Kind: "site template", ID: site}
		}
		items, found = tmpl.Section(sectionTitle)
		if !found {
			return nil, &models.NotFoundError{Kind: "template section", ID: sectionTitle}
		}
	}

	if err := sess.WriteSection(sectionTitle, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SaveSection persists a section. Every item must carry a status; the
// section is then written to the session cache and merged field-level into
// the remote checklist document, leaving sibling sections untouched.
func (e *Engine) SaveSection(ctx context.Context, sess *session.Session, sectionTitle string, items []models.ChecklistItem) error {
	for _, item := range items {
		if strings.TrimSpace(item.Status) == "" {
			return &models.ValidationError{
				Field:   "status",
				Message: fmt.Sprintf("item %s in section %q has no status", item.ID, sectionTitle),
			}
		}
	}

	if err := sess.WriteSection(sectionTitle, items); err != nil {
		return err
	}
	return e.remote.MergeChecklistSection(ctx, sess.PermitID, sectionTitle, items)
}

// AttachImage records a captured image against one item of a cached
// section. Local-only: the reference lands in the cache and travels no
// further than report assembly. A later SaveSection persists the item's
// other fields remotely; the image reference never leaves the device.
func (e *Engine) AttachImage(sess *session.Session, sectionTitle, itemID, imageURI string) ([]models.ChecklistItem, error) {
	items, ok, err := sess.ReadSection(sectionTitle)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.NotFoundError{Kind: "cached section", ID: sectionTitle}
	}

	for i := range items {
		if items[i].ID == itemID {
			items[i].ImageURI = imageURI
			if err := sess.WriteSection(sectionTitle, items); err != nil {
				return nil, err
			}
			return items, nil
		}
	}
	return nil, &models.NotFoundError{Kind: "checklist item", ID: itemID}
}

// Hydrate pulls every section of the remote checklist document into the
// session cache, so completion badges and reports reflect work saved from
// another device. A missing document is not an error; there is simply
// nothing to pull yet.
func (e *Engine) Hydrate(ctx context.Context, sess *session.Session) error {
	sections, ok, err := e.remote.GetChecklistDoc(ctx, sess.PermitID)
	if err != nil || !ok {
		return err
	}
	for title, items := range sections {
		if err := sess.WriteSection(title, items); err != nil {
			return err
		}
	}
	return nil
}
