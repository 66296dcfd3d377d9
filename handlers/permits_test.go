package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitkeeper/cache"
	"permitkeeper/db"
	"permitkeeper/models"
	"permitkeeper/permits"
)

// stubRemote satisfies the lifecycle store's remote interface with canned
// data, enough to exercise the HTTP layer.
type stubRemote struct {
	permits     []models.Permit
	details     map[string]*models.PermitDetail
	transitions []models.PermitStatus
	updateErr   error
}

func (s *stubRemote) QueryPermitsByStatus(ctx context.Context, statuses ...models.PermitStatus) ([]models.Permit, error) {
	return s.permits, nil
}

func (s *stubRemote) QueryHistoryPage(ctx context.Context, cursor *db.HistoryCursor, pageSize int) ([]models.Permit, *db.HistoryCursor, error) {
	return s.permits, nil, nil
}

func (s *stubRemote) WatchPendingPermits(ctx context.Context) <-chan []models.Permit {
	updates := make(chan []models.Permit, 1)
	updates <- s.permits
	close(updates)
	return updates
}

func (s *stubRemote) UpdatePermitStatus(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string, withLocalDate bool) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.transitions = append(s.transitions, newStatus)
	return nil
}

func (s *stubRemote) GetPermitDetail(ctx context.Context, permitID string) (*models.PermitDetail, error) {
	detail, ok := s.details[permitID]
	if !ok {
		return nil, &models.NotFoundError{Kind: "permit", ID: permitID}
	}
	return detail, nil
}

func (s *stubRemote) CreatePermit(ctx context.Context, permitID string, detail *models.PermitDetail) error {
	return nil
}

func (s *stubRemote) LogTransition(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string) error {
	return nil
}

func newPermitHandler(remote *stubRemote) *PermitHandler {
	return NewPermitHandler(permits.NewStore(remote, cache.NewMemory()))
}

func TestOngoingEndpoint(t *testing.T) {
	handler := newPermitHandler(&stubRemote{permits: []models.Permit{
		{ID: "P1", Status: models.StatusAccepted},
	}})

	rec := httptest.NewRecorder()
	handler.Ongoing(rec, httptest.NewRequest(http.MethodGet, "/api/permits/ongoing", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Permits []models.Permit `json:"permits"`
		Count   int             `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "P1", body.Permits[0].ID)
}

func TestOngoingRejectsPost(t *testing.T) {
	handler := newPermitHandler(&stubRemote{})

	rec := httptest.NewRecorder()
	handler.Ongoing(rec, httptest.NewRequest(http.MethodPost, "/api/permits/ongoing", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestTransitionValidationMapsTo400(t *testing.T) {
	remote := &stubRemote{}
	handler := newPermitHandler(remote)

	body := strings.NewReader(`{"permit_id":"P1","status":"Closed","reason":""}`)
	rec := httptest.NewRecorder()
	handler.Transition(rec, httptest.NewRequest(http.MethodPost, "/api/permits/transition", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, remote.transitions)
}

func TestTransitionSuccess(t *testing.T) {
	remote := &stubRemote{}
	handler := newPermitHandler(remote)

	body := strings.NewReader(`{"permit_id":"P1","status":"Accepted"}`)
	rec := httptest.NewRecorder()
	handler.Transition(rec, httptest.NewRequest(http.MethodPost, "/api/permits/transition", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []models.PermitStatus{models.StatusAccepted}, remote.transitions)
}

func TestTransitionUpstreamFailureMapsTo502(t *testing.T) {
	remote := &stubRemote{updateErr: &models.TransientIOError{Op: "update permit status"}}
	handler := newPermitHandler(remote)

	body := strings.NewReader(`{"permit_id":"P1","status":"Accepted"}`)
	rec := httptest.NewRecorder()
	handler.Transition(rec, httptest.NewRequest(http.MethodPost, "/api/permits/transition", body))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSelectUnknownPermitMapsTo404(t *testing.T) {
	handler := newPermitHandler(&stubRemote{details: map[string]*models.PermitDetail{}})

	body := strings.NewReader(`{"permit_id":"missing"}`)
	rec := httptest.NewRecorder()
	handler.Select(rec, httptest.NewRequest(http.MethodPost, "/api/permits/select", body))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryMalformedCursorMapsTo400(t *testing.T) {
	handler := newPermitHandler(&stubRemote{})

	rec := httptest.NewRecorder()
	handler.History(rec, httptest.NewRequest(http.MethodGet, "/api/permits/history?cursor=!!!", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMissingFieldMapsTo400(t *testing.T) {
	handler := newPermitHandler(&stubRemote{})

	body := strings.NewReader(`{"site":"1"}`)
	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/api/permits/create", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPendingReturnsFirstDelivery(t *testing.T) {
	handler := newPermitHandler(&stubRemote{permits: []models.Permit{
		{ID: "P1", Status: models.StatusPending},
		{ID: "P2", Status: models.StatusPending},
	}})

	rec := httptest.NewRecorder()
	handler.Pending(rec, httptest.NewRequest(http.MethodGet, "/api/permits/pending", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
}
