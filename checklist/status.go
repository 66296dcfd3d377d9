package checklist

import (
	"permitkeeper/models"
	"permitkeeper/session"
)

// SectionStatus derives, for every section of the site's template, whether
// it is complete: a cache entry exists for the section under the active
// permit. Absence means "not yet started", not "empty". Pure projection
// over the local cache; the remote store is never consulted, so the badge
// view works offline.
func (e *Engine) SectionStatus(sess *session.Session, site string) ([]models.SectionState, error) {
	tmpl, ok := e.templates.Site(site)
	if !ok {
		return nil, &models.NotFoundError{Kind: "site template", ID: site}
	}

	states := make([]models.SectionState, 0, len(tmpl.Sections))
	for _, section := range tmpl.Sections {
		complete, err := sess.HasSection(section.Title)
		if err != nil {
			return nil, err
		}
		states = append(states, models.SectionState{
			ID:       section.ID,
			Title:    section.Title,
			Complete: complete,
		})
	}
	return states, nil
}
