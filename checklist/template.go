package checklist

import (
	"embed"
	"encoding/json"
	"fmt"

	"permitkeeper/models"
)

//go:embed templates/*.json
var templateFiles embed.FS

// SiteTemplate is the static checklist definition for one site: an ordered
// list of sections, each with its ordered default items. Immutable after
// load.
type SiteTemplate struct {
	Name     string                   `json:"name"`
	Site     string                   `json:"site"`
	Sections []models.TemplateSection `json:"sections"`

	byTitle map[string]int
}

// Registry resolves a permit's site selector to its template.
type Registry struct {
	sites map[string]*SiteTemplate
}

// LoadTemplates parses the embedded site definitions.
func LoadTemplates() (*Registry, error) {
	entries, err := templateFiles.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}

	registry := &Registry{sites: make(map[string]*SiteTemplate)}
	for _, entry := range entries {
		raw, err := templateFiles.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		var tmpl SiteTemplate
		if err := json.Unmarshal(raw, &tmpl); err != nil {
			return nil, &models.DecodeError{Source: "template " + entry.Name(), Err: err}
		}
		tmpl.byTitle = make(map[string]int, len(tmpl.Sections))
		for i, section := range tmpl.Sections {
			tmpl.byTitle[section.Title] = i
		}
		registry.sites[tmpl.Site] = &tmpl
	}
	return registry, nil
}

// Site returns the template for a site selector ("1", "2", ...).
func (r *Registry) Site(site string) (*SiteTemplate, bool) {
	tmpl, ok := r.sites[site]
	return tmpl, ok
}

// Sites returns every loaded template.
func (r *Registry) Sites() []*SiteTemplate {
	sites := make([]*SiteTemplate, 0, len(r.sites))
	for _, tmpl := range r.sites {
		sites = append(sites, tmpl)
	}
	return sites
}

// SectionRefs returns the ordered section list of a site, the shape
// published to the AllDatas collection.
func (t *SiteTemplate) SectionRefs() []models.SectionRef {
	refs := make([]models.SectionRef, len(t.Sections))
	for i, section := range t.Sections {
		refs[i] = models.SectionRef{ID: section.ID, Title: section.Title}
	}
	return refs
}

// Section returns a fresh copy of a section's default items with every
// blank status filled to "Not OK". Returning copies keeps the template
// immutable no matter what callers do with the items.
func (t *SiteTemplate) Section(title string) ([]models.ChecklistItem, bool) {
	i, ok := t.byTitle[title]
	if !ok {
		return nil, false
	}
	items := make([]models.ChecklistItem, len(t.Sections[i].Items))
	copy(items, t.Sections[i].Items)
	for j := range items {
		if items[j].Status == "" {
			items[j].Status = models.ItemStatusNotOK
		}
	}
	return items, true
}
