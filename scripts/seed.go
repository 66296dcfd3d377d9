package main

import (
	"context"
	"fmt"
	"log"
	"permitkeeper/checklist"
	"permitkeeper/config"
	"permitkeeper/db"
	"permitkeeper/models"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	cfg := config.Load()
	cfg.Validate()

	// Initialize Firestore
	ctx := context.Background()
	firestoreDB, err := db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	defer firestoreDB.Close()

	log.Println("🌱 Starting database seeding...")

	// Publish section lists
	if err := seedSectionLists(ctx, firestoreDB); err != nil {
		log.Fatalf("Failed to seed section lists: %v", err)
	}

	// Seed sample permits
	if err := seedPermits(ctx, firestoreDB); err != nil {
		log.Fatalf("Failed to seed permits: %v", err)
	}

	log.Println("✅ Database seeding completed successfully!")
}

// seedSectionLists publishes each site template's ordered section list,
// the documents other clients read to render section menus.
func seedSectionLists(ctx context.Context, firestoreDB *db.FirestoreDB) error {
	templates, err := checklist.LoadTemplates()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	for _, tmpl := range templates.Sites() {
		docName := tmpl.Name + "-sections"
		if err := firestoreDB.PutSectionList(ctx, docName, tmpl.SectionRefs()); err != nil {
			return fmt.Errorf("failed to publish %s: %w", docName, err)
		}
		log.Printf("  ✓ Published section list: %s (%d sections)", docName, len(tmpl.Sections))
	}

	return nil
}

func seedPermits(ctx context.Context, firestoreDB *db.FirestoreDB) error {
	permits := []struct {
		ID     string
		Status models.PermitStatus
		Reason string
		Detail models.PermitDetail
	}{
		{
			ID:     "PTW-SEED-001",
			Status: models.StatusAccepted,
			Detail: models.PermitDetail{
				Name:              "PTW-SEED-001",
				Site:              "1",
				Location:          "Tower A-12",
				NumberOfPersons:   "3",
				DescriptionOfWork: "Quarterly gearbox inspection",
				WindSpeed:         "6 m/s",
				Model:             "V47",
				WorkArea:          "Nacelle",
				Engineers: []models.Engineer{
					{Name: "R. Kumar"},
					{Name: "S. Devi"},
					{Name: "A. Prasad"},
				},
			},
		},
		{
			ID:     "PTW-SEED-002",
			Status: models.StatusPending,
			Detail: models.PermitDetail{
				Name:              "PTW-SEED-002",
				Site:              "2",
				Location:          "Tower B-04",
				NumberOfPersons:   "2",
				DescriptionOfWork: "Blade surface repair",
				WindSpeed:         "4 m/s",
				Model:             "NM48",
				WorkArea:          "Rotor",
				Engineers: []models.Engineer{
					{Name: "M. Joseph"},
					{Name: "T. Nair"},
				},
			},
		},
		{
			ID:     "PTW-SEED-003",
			Status: models.StatusClosed,
			Reason: "Work completed and inspected",
			Detail: models.PermitDetail{
				Name:              "PTW-SEED-003",
				Site:              "1",
				Location:          "Tower A-07",
				NumberOfPersons:   "2",
				DescriptionOfWork: "Yaw system lubrication",
				WindSpeed:         "5 m/s",
				Model:             "V47",
				WorkArea:          "Tower base",
				Engineers: []models.Engineer{
					{Name: "P. Singh"},
					{Name: "L. Thomas"},
				},
			},
		},
	}

	for _, seed := range permits {
		if err := firestoreDB.CreatePermit(ctx, seed.ID, &seed.Detail); err != nil {
			return fmt.Errorf("failed to create permit %s: %w", seed.ID, err)
		}

		// Permits start out pending; move the ones seeded past that.
		if seed.Status != models.StatusPending {
			withLocalDate := seed.Status == models.StatusClosed
			if err := firestoreDB.UpdatePermitStatus(ctx, seed.ID, seed.Status, seed.Reason, withLocalDate); err != nil {
				return fmt.Errorf("failed to set status for %s: %w", seed.ID, err)
			}
		}

		log.Printf("  ✓ Created permit: %s (%s, site %s)", seed.ID, seed.Status, seed.Detail.Site)
	}

	return nil
}
