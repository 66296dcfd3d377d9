package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"permitkeeper/models"
	"permitkeeper/permits"
)

type PermitHandler struct {
	store *permits.Store
}

func NewPermitHandler(store *permits.Store) *PermitHandler {
	return &PermitHandler{store: store}
}

// Ongoing returns all accepted permits
func (h *PermitHandler) Ongoing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := h.store.ListOngoing(r.Context())
	if err != nil {
		log.Printf("❌ Failed to list ongoing permits: %v", err)
		writeEngineError(w, err)
		return
	}
	if list == nil {
		list = []models.Permit{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permits": list,
		"count":   len(list),
	})
}

// Pending returns the current snapshot of pending permits. It takes the
// first delivery of the live subscription, so the snapshot and the watch
// endpoint can never disagree about what "pending" means.
func (h *PermitHandler) Pending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	updates := h.store.WatchPending(ctx)
	list, ok := <-updates
	if !ok {
		writeError(w, "Upstream store unavailable, try again", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permits": list,
		"count":   len(list),
	})
}

// WatchPending streams pending-permit snapshots as server-sent events
// until the client disconnects. Each event carries the full replacement
// set, mirroring the subscription contract.
func (h *PermitHandler) WatchPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// The request context is the unsubscribe handle: client gone, watch gone.
	updates := h.store.WatchPending(r.Context())
	for list := range updates {
		payload, err := json.Marshal(map[string]interface{}{
			"permits": list,
			"count":   len(list),
		})
		if err != nil {
			log.Printf("❌ Failed to encode pending snapshot: %v", err)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// History returns one page of past permits plus a continuation cursor
func (h *PermitHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	page, err := h.store.ListHistory(r.Context(), r.URL.Query().Get("cursor"))
	if err != nil {
		log.Printf("❌ Failed to list permit history: %v", err)
		writeEngineError(w, err)
		return
	}
	if page.Permits == nil {
		page.Permits = []models.Permit{}
	}

	writeJSON(w, http.StatusOK, page)
}

// CreatePermitRequest is the permit-to-work intake form
type CreatePermitRequest struct {
	models.PermitDetail
}

// Create registers a new pending permit from the intake form
func (h *PermitHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreatePermitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	permitID, err := h.store.Create(r.Context(), &req.PermitDetail)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	log.Printf("📋 Created permit %s (site %s)", permitID, req.Site)
	writeJSON(w, http.StatusCreated, map[string]string{"permit_id": permitID})
}

// TransitionRequest moves a permit to a new lifecycle status
type TransitionRequest struct {
	PermitID string              `json:"permit_id"`
	Status   models.PermitStatus `json:"status"`
	Reason   string              `json:"reason"`
}

// Transition updates a permit's lifecycle status
func (h *PermitHandler) Transition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PermitID == "" {
		writeError(w, "permit_id is required", http.StatusBadRequest)
		return
	}

	if err := h.store.Transition(r.Context(), req.PermitID, req.Status, req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}

	log.Printf("🔄 Permit %s → %s", req.PermitID, req.Status)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Permit updated"})
}

// SelectRequest makes a permit the active one on this device
type SelectRequest struct {
	PermitID string `json:"permit_id"`
}

// Select flushes the local cache and activates the chosen permit
func (h *PermitHandler) Select(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PermitID == "" {
		writeError(w, "permit_id is required", http.StatusBadRequest)
		return
	}

	sess, err := h.store.SelectPermit(r.Context(), req.PermitID)
	if err != nil {
		log.Printf("❌ Failed to select permit %s: %v", req.PermitID, err)
		writeEngineError(w, err)
		return
	}

	log.Printf("✅ Selected permit %s, local cache flushed", sess.PermitID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":   "Permit selected",
		"permit_id": sess.PermitID,
	})
}
