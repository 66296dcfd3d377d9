// Package permits owns the permit lifecycle: the ongoing/pending/history
// query protocols, validated status transitions, and permit selection.
package permits

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"permitkeeper/cache"
	"permitkeeper/db"
	"permitkeeper/models"
	"permitkeeper/session"
)

// DefaultPageSize is the history page size.
const DefaultPageSize = 5

// Remote is the slice of the store adapter the lifecycle store depends on.
// Any document store offering these operations is substitutable.
type Remote interface {
	QueryPermitsByStatus(ctx context.Context, statuses ...models.PermitStatus) ([]models.Permit, error)
	QueryHistoryPage(ctx context.Context, cursor *db.HistoryCursor, pageSize int) ([]models.Permit, *db.HistoryCursor, error)
	WatchPendingPermits(ctx context.Context) <-chan []models.Permit
	UpdatePermitStatus(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string, withLocalDate bool) error
	GetPermitDetail(ctx context.Context, permitID string) (*models.PermitDetail, error)
	CreatePermit(ctx context.Context, permitID string, detail *models.PermitDetail) error
	LogTransition(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string) error
}

// Store is the permit lifecycle store.
type Store struct {
	remote Remote
	cache  cache.Store
}

// NewStore creates a lifecycle store over the remote adapter and the local
// cache.
func NewStore(remote Remote, localCache cache.Store) *Store {
	return &Store{remote: remote, cache: localCache}
}

// ListOngoing returns every accepted permit. Unpaginated: bounded by the
// number of currently open permits.
func (s *Store) ListOngoing(ctx context.Context) ([]models.Permit, error) {
	return s.remote.QueryPermitsByStatus(ctx, models.StatusAccepted)
}

// WatchPending subscribes to the live set of pending permits. Each delivery
// replaces the previous set; cancelling ctx unsubscribes and closes the
// channel.
func (s *Store) WatchPending(ctx context.Context) <-chan []models.Permit {
	return s.remote.WatchPendingPermits(ctx)
}

// HistoryPage is one page of the history listing plus the opaque
// continuation cursor, empty when the listing is exhausted.
type HistoryPage struct {
	Permits []models.Permit `json:"permits"`
	Cursor  string          `json:"cursor,omitempty"`
}

// ListHistory returns permits outside the ongoing set (Pending, Closed,
// Cancelled, Rejected) ordered by most recent transition first. An empty
// cursor restarts from the top; passing a page's cursor fetches the next.
func (s *Store) ListHistory(ctx context.Context, cursorToken string) (*HistoryPage, error) {
	var cursor *db.HistoryCursor
	if cursorToken != "" {
		parsed, err := db.ParseHistoryCursor(cursorToken)
		if err != nil {
			return nil, err
		}
		cursor = parsed
	}

	permits, next, err := s.remote.QueryHistoryPage(ctx, cursor, DefaultPageSize)
	if err != nil {
		return nil, err
	}

	page := &HistoryPage{Permits: permits}
	if next != nil && len(permits) > 0 {
		page.Cursor = next.Token()
	}
	return page, nil
}

// Transition moves a permit to newStatus. Terminal statuses (Closed,
// Cancelled) require a non-empty reason; Pending and Closed additionally
// record a locally-assigned updatedDate used as a read-time fallback when
// the server clock is unavailable.
func (s *Store) Transition(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string) error {
	if !newStatus.Valid() {
		return &models.ValidationError{Field: "status", Message: fmt.Sprintf("unknown permit status %q", newStatus)}
	}
	if newStatus.Terminal() && strings.TrimSpace(reason) == "" {
		return &models.ValidationError{Field: "reason", Message: "a reason is required to close or cancel a permit"}
	}

	withLocalDate := newStatus == models.StatusPending || newStatus == models.StatusClosed
	if err := s.remote.UpdatePermitStatus(ctx, permitID, newStatus, reason, withLocalDate); err != nil {
		return err
	}

	// The transition is committed; a failed audit write must not make the
	// caller believe it was not.
	if err := s.remote.LogTransition(ctx, permitID, newStatus, reason); err != nil {
		log.Printf("⚠️  Failed to record transition audit for %s: %v", permitID, err)
	}
	return nil
}

// SelectPermit makes permitID the active permit on this device: it verifies
// the permit exists remotely, flushes the entire local cache, and records
// the pointer plus a metadata snapshot for offline report use.
func (s *Store) SelectPermit(ctx context.Context, permitID string) (*session.Session, error) {
	detail, err := s.remote.GetPermitDetail(ctx, permitID)
	if err != nil {
		return nil, err
	}
	return session.Open(s.cache, permitID, detail)
}

// Resume reopens the session for the permit previously selected on this
// device, without touching the remote store.
func (s *Store) Resume() (*session.Session, error) {
	return session.Resume(s.cache)
}

// Create validates a permit-to-work form and writes a new pending permit.
// It returns the generated permit number.
func (s *Store) Create(ctx context.Context, detail *models.PermitDetail) (string, error) {
	if err := validateDetail(detail); err != nil {
		return "", err
	}

	permitID := "PTW-" + strings.ToUpper(uuid.NewString()[:8])
	if err := s.remote.CreatePermit(ctx, permitID, detail); err != nil {
		return "", err
	}
	return permitID, nil
}

func validateDetail(detail *models.PermitDetail) error {
	fields := map[string]string{
		"name":              detail.Name,
		"numberOfPersons":   detail.NumberOfPersons,
		"descriptionOfWork": detail.DescriptionOfWork,
		"site":              detail.Site,
		"model":             detail.Model,
		"location":          detail.Location,
		"workArea":          detail.WorkArea,
		"windSpeed":         detail.WindSpeed,
	}
	for field, value := range fields {
		if strings.TrimSpace(value) == "" {
			return &models.ValidationError{Field: field, Message: "must not be blank"}
		}
	}
	return nil
}
