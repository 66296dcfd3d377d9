// Package session scopes the local cache to one selected permit. Every
// checklist and report operation takes a *Session instead of consulting
// ambient "current permit" state, and section keys are qualified by permit
// ID so a stale entry can never masquerade as another permit's data.
package session

import (
	"encoding/json"
	"strings"

	"permitkeeper/cache"
	"permitkeeper/models"
)

// Reserved cache keys. Everything else in the namespace is section data.
const (
	KeySelectedPermitID   = "selectedPermitId"
	KeySelectedPermitData = "selectedPermitData"

	// completeSuffix marks internal progress keys; they are never section
	// data and are skipped by enumeration and report assembly.
	completeSuffix = "_complete"
)

// Session is the active-permit context over the local cache.
type Session struct {
	PermitID string
	store    cache.Store
}

// Open flushes the entire cache, then records the active-permit pointer and
// the permit metadata snapshot for offline report use. The flush comes
// first so no section data survives from a previously selected permit.
func Open(store cache.Store, permitID string, detail *models.PermitDetail) (*Session, error) {
	if err := store.Clear(); err != nil {
		return nil, err
	}
	if err := store.Set(KeySelectedPermitID, []byte(permitID)); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return nil, &models.DecodeError{Source: "permit snapshot", Err: err}
	}
	if err := store.Set(KeySelectedPermitData, raw); err != nil {
		return nil, err
	}
	return &Session{PermitID: permitID, store: store}, nil
}

// Resume reopens the session recorded by a previous Open. It fails with
// NotFoundError when no permit has been selected on this device.
func Resume(store cache.Store) (*Session, error) {
	raw, ok, err := store.Get(KeySelectedPermitID)
	if err != nil {
		return nil, err
	}
	if !ok || len(raw) == 0 {
		return nil, &models.NotFoundError{Kind: "active permit", ID: KeySelectedPermitID}
	}
	return &Session{PermitID: string(raw), store: store}, nil
}

func (s *Session) sectionKey(title string) string {
	return s.PermitID + ":" + title
}

// WriteSection persists a section's items under its qualified key.
func (s *Session) WriteSection(title string, items []models.ChecklistItem) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return &models.DecodeError{Source: "section " + title, Err: err}
	}
	return s.store.Set(s.sectionKey(title), raw)
}

// ReadSection returns the cached items for a section title. The second
// return value reports presence; absence means "not yet started".
func (s *Session) ReadSection(title string) ([]models.ChecklistItem, bool, error) {
	raw, ok, err := s.store.Get(s.sectionKey(title))
	if err != nil || !ok {
		return nil, false, err
	}
	var items []models.ChecklistItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, true, &models.DecodeError{Source: "section " + title, Err: err}
	}
	return items, true, nil
}

// HasSection reports whether a cache entry exists for the section title.
func (s *Session) HasSection(title string) (bool, error) {
	_, ok, err := s.store.Get(s.sectionKey(title))
	return ok, err
}

// SectionTitles enumerates the section titles cached for this permit,
// skipping reserved keys and internal progress markers.
func (s *Session) SectionTitles() ([]string, error) {
	keys, err := s.store.Keys()
	if err != nil {
		return nil, err
	}
	prefix := s.PermitID + ":"
	var titles []string
	for _, key := range keys {
		if key == KeySelectedPermitID || key == KeySelectedPermitData {
			continue
		}
		if strings.HasSuffix(key, completeSuffix) {
			continue
		}
		if title, ok := strings.CutPrefix(key, prefix); ok {
			titles = append(titles, title)
		}
	}
	return titles, nil
}

// Snapshot returns the permit metadata recorded at selection time.
func (s *Session) Snapshot() (*models.PermitDetail, bool, error) {
	raw, ok, err := s.store.Get(KeySelectedPermitData)
	if err != nil || !ok {
		return nil, false, err
	}
	var detail models.PermitDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return nil, true, &models.DecodeError{Source: "permit snapshot", Err: err}
	}
	return &detail, true, nil
}
