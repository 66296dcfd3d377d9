package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"permitkeeper/cache"
	"permitkeeper/report"
	"permitkeeper/session"
)

type ReportHandler struct {
	builder *report.Builder
	cache   cache.Store
}

func NewReportHandler(builder *report.Builder, localCache cache.Store) *ReportHandler {
	return &ReportHandler{builder: builder, cache: localCache}
}

// Build assembles the maintenance report from the local cache
func (h *ReportHandler) Build(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := session.Resume(h.cache)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	doc, err := h.builder.Build(sess)
	if err != nil {
		log.Printf("❌ Failed to assemble report for %s: %v", sess.PermitID, err)
		writeEngineError(w, err)
		return
	}

	log.Printf("📊 Assembled report for %s: %d sections", doc.PermitID, len(doc.Sections))
	writeJSON(w, http.StatusOK, doc)
}

// Export downloads the assembled report as CSV
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := session.Resume(h.cache)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	doc, err := h.builder.Build(sess)
	if err != nil {
		log.Printf("❌ Failed to assemble report for %s: %v", sess.PermitID, err)
		writeEngineError(w, err)
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("maintenance_report_%s_%s.csv", doc.PermitID, timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	if err := report.WriteCSV(w, doc); err != nil {
		log.Printf("❌ Failed to write CSV export: %v", err)
		return
	}

	log.Printf("📊 CSV export for %s: %d sections", doc.PermitID, len(doc.Sections))
}
