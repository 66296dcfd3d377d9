// main.go
// PermitKeeper API - permit lifecycle and checklist synchronization
// Bridges the remote document store and the on-device cache

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"permitkeeper/cache"
	"permitkeeper/checklist"
	"permitkeeper/config"
	"permitkeeper/db"
	"permitkeeper/handlers"
	"permitkeeper/middleware"
	"permitkeeper/permits"
	"permitkeeper/report"
	"syscall"
	"time"

	"github.com/joho/godotenv"
)

// Global instances
var (
	cfg              *config.Config
	firestoreDB      *db.FirestoreDB
	localCache       *cache.SQLite
	permitStore      *permits.Store
	checklistEngine  *checklist.Engine
	permitHandler    *handlers.PermitHandler
	checklistHandler *handlers.ChecklistHandler
	reportHandler    *handlers.ReportHandler
	rateLimiter      *middleware.RateLimiter
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	// Load configuration
	cfg = config.Load()
	cfg.Validate()

	log.Printf("🚀 Starting PermitKeeper API Server")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	// Initialize Firestore
	ctx := context.Background()
	var err error
	firestoreDB, err = db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Firestore: %v", err)
	}
	defer firestoreDB.Close()

	// Initialize local cache
	localCache, err = cache.OpenSQLite(cfg.Cache.Path)
	if err != nil {
		log.Fatalf("❌ Failed to open local cache: %v", err)
	}
	defer localCache.Close()
	log.Printf("💾 Local cache ready at %s", cfg.Cache.Path)

	// Load site checklist templates
	templates, err := checklist.LoadTemplates()
	if err != nil {
		log.Fatalf("❌ Failed to load checklist templates: %v", err)
	}
	log.Printf("📑 Loaded %d site templates", len(templates.Sites()))

	// Initialize engines and handlers
	permitStore = permits.NewStore(firestoreDB, localCache)
	checklistEngine = checklist.NewEngine(firestoreDB, templates)
	reportBuilder := report.NewBuilder()

	permitHandler = handlers.NewPermitHandler(permitStore)
	checklistHandler = handlers.NewChecklistHandler(checklistEngine, localCache)
	reportHandler = handlers.NewReportHandler(reportBuilder, localCache)
	log.Printf("✅ Handlers initialized")

	// Initialize rate limiter
	rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters()
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Set up router
	mux := http.NewServeMux()

	mux.HandleFunc("/health", handleHealth)

	// Permit lifecycle endpoints
	mux.HandleFunc("/api/permits/ongoing", permitHandler.Ongoing)
	mux.HandleFunc("/api/permits/pending", permitHandler.Pending)
	mux.HandleFunc("/api/permits/pending/watch", permitHandler.WatchPending)
	mux.HandleFunc("/api/permits/history", permitHandler.History)
	mux.HandleFunc("/api/permits/create", permitHandler.Create)
	mux.HandleFunc("/api/permits/transition", permitHandler.Transition)
	mux.HandleFunc("/api/permits/select", permitHandler.Select)

	// Checklist endpoints
	mux.HandleFunc("/api/checklist/status", checklistHandler.Status)
	mux.HandleFunc("/api/checklist/section", handleSection)
	mux.HandleFunc("/api/checklist/section/image", checklistHandler.AttachImage)
	mux.HandleFunc("/api/checklist/hydrate", checklistHandler.Hydrate)

	// Report endpoints
	mux.HandleFunc("/api/report", reportHandler.Build)
	mux.HandleFunc("/api/report/export", reportHandler.Export)

	// Apply global middleware
	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	// Create server. WriteTimeout stays unset because the pending-permit
	// watch endpoint holds its response open for the life of the client.
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// handleSection dispatches the section endpoint by method: GET loads,
// POST saves.
func handleSection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		checklistHandler.LoadSection(w, r)
	case http.MethodPost:
		checklistHandler.SaveSection(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
