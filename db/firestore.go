package db

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"permitkeeper/models"
)

// Firestore collections used by the engine.
const (
	permitsCollection   = "permits"           // lifecycle documents
	generatedCollection = "permits_generated" // permit detail + checklist documents
	allDatasCollection  = "AllDatas"          // published site section lists
	auditLogCollection  = "audit_logs"        // lifecycle transition trail

	// checklistSuffix turns a permit ID into its checklist document ID.
	checklistSuffix = "-checklistdata"
)

// FirestoreDB wraps the Firestore client
type FirestoreDB struct {
	client *firestore.Client
}

// NewFirestoreDB initializes a new Firestore client
func NewFirestoreDB(ctx context.Context, projectID, credentialsPath string) (*FirestoreDB, error) {
	opt := option.WithCredentialsFile(credentialsPath)

	config := &firebase.Config{ProjectID: projectID}
	app, err := firebase.NewApp(ctx, config, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log.Printf("✅ Connected to Firestore project: %s", projectID)

	return &FirestoreDB{client: client}, nil
}

// Close closes the Firestore client
func (db *FirestoreDB) Close() error {
	return db.client.Close()
}

// rpcError classifies a Firestore failure: NotFound becomes a typed
// NotFoundError for the given document, everything else is transient.
func rpcError(op, kind, id string, err error) error {
	if status.Code(err) == codes.NotFound {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return &models.TransientIOError{Op: op, Err: err}
}

// --- Permit Lifecycle Operations ---

// GetPermit retrieves a lifecycle document by permit number.
func (db *FirestoreDB) GetPermit(ctx context.Context, permitID string) (*models.Permit, error) {
	doc, err := db.client.Collection(permitsCollection).Doc(permitID).Get(ctx)
	if err != nil {
		return nil, rpcError("get permit", "permit", permitID, err)
	}

	var permit models.Permit
	if err := doc.DataTo(&permit); err != nil {
		return nil, &models.DecodeError{Source: "permit " + permitID, Err: err}
	}
	permit.ID = doc.Ref.ID

	return &permit, nil
}

// QueryPermitsByStatus retrieves all permits in any of the given states.
func (db *FirestoreDB) QueryPermitsByStatus(ctx context.Context, statuses ...models.PermitStatus) ([]models.Permit, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	iter := db.client.Collection(permitsCollection).
		Where("status", "in", values).
		Documents(ctx)
	defer iter.Stop()

	var permits []models.Permit
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, &models.TransientIOError{Op: "query permits", Err: err}
		}

		var permit models.Permit
		if err := doc.DataTo(&permit); err != nil {
			log.Printf("Warning: failed to parse permit %s: %v", doc.Ref.ID, err)
			continue
		}
		permit.ID = doc.Ref.ID
		permits = append(permits, permit)
	}

	return permits, nil
}

// HistoryCursor is the continuation token of the paginated history query.
// It carries the ordering position of the last returned permit; the same
// cursor always reproduces the same next page.
type HistoryCursor struct {
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
}

// Token renders the cursor as the opaque string handed to callers.
func (c HistoryCursor) Token() string {
	raw, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseHistoryCursor decodes a caller-supplied continuation token.
func ParseHistoryCursor(token string) (*HistoryCursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, &models.ValidationError{Field: "cursor", Message: "malformed continuation token"}
	}
	var c HistoryCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, &models.ValidationError{Field: "cursor", Message: "malformed continuation token"}
	}
	return &c, nil
}

// QueryHistoryPage retrieves one page of non-ongoing permits ordered by
// most recent transition first. Ties on updatedAt are broken by document ID
// so the cursor is exact; both values ride in the continuation token.
func (db *FirestoreDB) QueryHistoryPage(ctx context.Context, cursor *HistoryCursor, pageSize int) ([]models.Permit, *HistoryCursor, error) {
	query := db.client.Collection(permitsCollection).
		Where("status", "in", []string{
			string(models.StatusPending),
			string(models.StatusClosed),
			string(models.StatusCancelled),
			string(models.StatusRejected),
		}).
		OrderBy("updatedAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Desc).
		Limit(pageSize)

	if cursor != nil {
		query = query.StartAfter(cursor.UpdatedAt, cursor.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var permits []models.Permit
	var last *HistoryCursor
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, nil, &models.TransientIOError{Op: "query permit history", Err: err}
		}

		var permit models.Permit
		if err := doc.DataTo(&permit); err != nil {
			log.Printf("Warning: failed to parse permit %s: %v", doc.Ref.ID, err)
			continue
		}
		permit.ID = doc.Ref.ID
		permits = append(permits, permit)
		last = &HistoryCursor{UpdatedAt: permit.UpdatedAt, ID: permit.ID}
	}

	return permits, last, nil
}

// WatchPendingPermits streams the full set of pending permits: one delivery
// for the initial snapshot and one per change, latest snapshot wins when
// the consumer lags. Cancelling ctx is the unsubscribe handle; the channel
// is closed when the watch ends.
func (db *FirestoreDB) WatchPendingPermits(ctx context.Context) <-chan []models.Permit {
	updates := make(chan []models.Permit, 1)

	snaps := db.client.Collection(permitsCollection).
		Where("status", "==", string(models.StatusPending)).
		Snapshots(ctx)

	go func() {
		defer close(updates)
		defer snaps.Stop()

		for {
			snap, err := snaps.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Printf("⚠️  Pending-permit watch ended: %v", err)
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				log.Printf("Warning: failed to read pending snapshot: %v", err)
				continue
			}

			var permits []models.Permit
			for _, doc := range docs {
				var permit models.Permit
				if err := doc.DataTo(&permit); err != nil {
					log.Printf("Warning: failed to parse permit %s: %v", doc.Ref.ID, err)
					continue
				}
				permit.ID = doc.Ref.ID
				permits = append(permits, permit)
			}
			if permits == nil {
				permits = []models.Permit{}
			}

			// Drop an undelivered snapshot; each delivery replaces the set.
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- permits:
			case <-ctx.Done():
				return
			}
		}
	}()

	return updates
}

// UpdatePermitStatus writes a lifecycle transition: the new status, the
// server-assigned updatedAt, the reason, and (when asked) the local
// updatedDate fallback used if the server clock is missing at read time.
func (db *FirestoreDB) UpdatePermitStatus(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string, withLocalDate bool) error {
	updates := []firestore.Update{
		{Path: "status", Value: string(newStatus)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
		{Path: "reason", Value: reason},
	}
	if withLocalDate {
		updates = append(updates, firestore.Update{Path: "updatedDate", Value: time.Now()})
	}

	_, err := db.client.Collection(permitsCollection).Doc(permitID).Update(ctx, updates)
	if err != nil {
		return rpcError("update permit status", "permit", permitID, err)
	}
	return nil
}

// CreatePermit writes a new pending lifecycle document and its detail form.
func (db *FirestoreDB) CreatePermit(ctx context.Context, permitID string, detail *models.PermitDetail) error {
	_, err := db.client.Collection(permitsCollection).Doc(permitID).Set(ctx, map[string]interface{}{
		"status":    string(models.StatusPending),
		"site":      detail.Site,
		"updatedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return &models.TransientIOError{Op: "create permit", Err: err}
	}

	_, err = db.client.Collection(generatedCollection).Doc(permitID).Set(ctx, detail)
	if err != nil {
		return &models.TransientIOError{Op: "create permit detail", Err: err}
	}
	return nil
}

// GetPermitDetail retrieves the permit-to-work form for a permit number.
func (db *FirestoreDB) GetPermitDetail(ctx context.Context, permitID string) (*models.PermitDetail, error) {
	doc, err := db.client.Collection(generatedCollection).Doc(permitID).Get(ctx)
	if err != nil {
		return nil, rpcError("get permit detail", "permit", permitID, err)
	}

	var detail models.PermitDetail
	if err := doc.DataTo(&detail); err != nil {
		return nil, &models.DecodeError{Source: "permit detail " + permitID, Err: err}
	}

	return &detail, nil
}

// --- Checklist Document Operations ---

// GetChecklistDoc retrieves the whole per-permit checklist document, keyed
// by section title. The second return value reports document existence.
func (db *FirestoreDB) GetChecklistDoc(ctx context.Context, permitID string) (map[string][]models.ChecklistItem, bool, error) {
	doc, err := db.client.Collection(generatedCollection).Doc(permitID + checklistSuffix).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, false, nil
		}
		return nil, false, &models.TransientIOError{Op: "get checklist document", Err: err}
	}

	var sections map[string][]models.ChecklistItem
	if err := doc.DataTo(&sections); err != nil {
		return nil, true, &models.DecodeError{Source: "checklist document " + permitID, Err: err}
	}
	return sections, true, nil
}

// GetChecklistSection retrieves one section field of the checklist
// document. Absent document or absent field both report non-existence.
func (db *FirestoreDB) GetChecklistSection(ctx context.Context, permitID, sectionTitle string) ([]models.ChecklistItem, bool, error) {
	sections, ok, err := db.GetChecklistDoc(ctx, permitID)
	if err != nil || !ok {
		return nil, false, err
	}
	items, ok := sections[sectionTitle]
	if !ok {
		return nil, false, nil
	}
	return items, true, nil
}

// MergeChecklistSection upserts one section field into the checklist
// document. MergeAll creates the document when absent and leaves sibling
// section fields untouched otherwise, so there is no read-before-write.
func (db *FirestoreDB) MergeChecklistSection(ctx context.Context, permitID, sectionTitle string, items []models.ChecklistItem) error {
	_, err := db.client.Collection(generatedCollection).Doc(permitID+checklistSuffix).Set(ctx, map[string]interface{}{
		sectionTitle: items,
	}, firestore.MergeAll)
	if err != nil {
		return &models.TransientIOError{Op: "merge checklist section", Err: err}
	}
	return nil
}

// --- Template Publication ---

// PutSectionList publishes a site's ordered section list, e.g. the
// "V47-sections" document consumed by other clients of the same project.
func (db *FirestoreDB) PutSectionList(ctx context.Context, docName string, sections []models.SectionRef) error {
	_, err := db.client.Collection(allDatasCollection).Doc(docName).Set(ctx, map[string]interface{}{
		"sections": sections,
	})
	if err != nil {
		return &models.TransientIOError{Op: "put section list", Err: err}
	}
	return nil
}

// --- Audit Trail ---

// LogTransition records a successful lifecycle transition.
func (db *FirestoreDB) LogTransition(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string) error {
	entry := models.AuditLog{
		LogID:     uuid.NewString(),
		Timestamp: time.Now().UTC(),
		PermitID:  permitID,
		Status:    newStatus,
		Reason:    reason,
	}
	_, err := db.client.Collection(auditLogCollection).Doc(entry.LogID).Set(ctx, entry)
	if err != nil {
		return &models.TransientIOError{Op: "log transition", Err: err}
	}
	return nil
}
