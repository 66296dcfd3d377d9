package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"permitkeeper/cache"
	"permitkeeper/checklist"
	"permitkeeper/models"
	"permitkeeper/session"
)

type ChecklistHandler struct {
	engine *checklist.Engine
	cache  cache.Store
}

func NewChecklistHandler(engine *checklist.Engine, localCache cache.Store) *ChecklistHandler {
	return &ChecklistHandler{engine: engine, cache: localCache}
}

// resume reopens the active-permit session and its site selector, or
// answers the request with the appropriate error.
func (h *ChecklistHandler) resume(w http.ResponseWriter) (*session.Session, string, bool) {
	sess, err := session.Resume(h.cache)
	if err != nil {
		writeEngineError(w, err)
		return nil, "", false
	}
	detail, ok, err := sess.Snapshot()
	if err != nil {
		writeEngineError(w, err)
		return nil, "", false
	}
	if !ok {
		writeError(w, "No permit metadata snapshot on this device", http.StatusNotFound)
		return nil, "", false
	}
	return sess, detail.Site, true
}

// Status returns the completion projection for every section of the
// active permit's site template, straight from the local cache.
func (h *ChecklistHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, site, ok := h.resume(w)
	if !ok {
		return
	}

	states, err := h.engine.SectionStatus(sess, site)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permit_id": sess.PermitID,
		"sections":  states,
	})
}

// LoadSection materializes one section (remote wins, template fallback)
func (h *ChecklistHandler) LoadSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, "title is required", http.StatusBadRequest)
		return
	}

	sess, site, ok := h.resume(w)
	if !ok {
		return
	}

	items, err := h.engine.LoadSection(r.Context(), sess, site, title)
	if err != nil {
		log.Printf("❌ Failed to load section %q: %v", title, err)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title": title,
		"items": items,
	})
}

// SaveSectionRequest carries a section's edited items
type SaveSectionRequest struct {
	Title string                 `json:"title"`
	Items []models.ChecklistItem `json:"items"`
}

// SaveSection validates and persists a section locally and remotely
func (h *ChecklistHandler) SaveSection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SaveSectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		writeError(w, "title is required", http.StatusBadRequest)
		return
	}

	sess, _, ok := h.resume(w)
	if !ok {
		return
	}

	if err := h.engine.SaveSection(r.Context(), sess, req.Title, req.Items); err != nil {
		writeEngineError(w, err)
		return
	}

	log.Printf("💾 Saved section %q for permit %s (%d items)", req.Title, sess.PermitID, len(req.Items))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Section saved"})
}

// AttachImageRequest links a local capture to one checklist item
type AttachImageRequest struct {
	Title    string `json:"title"`
	ItemID   string `json:"item_id"`
	ImageURI string `json:"image_uri"`
}

// AttachImage records an image reference in the local cache only
func (h *ChecklistHandler) AttachImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AttachImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.ItemID == "" || req.ImageURI == "" {
		writeError(w, "title, item_id and image_uri are required", http.StatusBadRequest)
		return
	}

	sess, _, ok := h.resume(w)
	if !ok {
		return
	}

	items, err := h.engine.AttachImage(sess, req.Title, req.ItemID, req.ImageURI)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title": req.Title,
		"items": items,
	})
}

// Hydrate pulls the whole remote checklist document into the local cache
func (h *ChecklistHandler) Hydrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, _, ok := h.resume(w)
	if !ok {
		return
	}

	if err := h.engine.Hydrate(r.Context(), sess); err != nil {
		log.Printf("❌ Failed to hydrate checklist for %s: %v", sess.PermitID, err)
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Checklist hydrated"})
}
