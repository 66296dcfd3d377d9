package permits

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitkeeper/cache"
	"permitkeeper/db"
	"permitkeeper/models"
)

type transitionCall struct {
	PermitID      string
	Status        models.PermitStatus
	Reason        string
	WithLocalDate bool
}

// fakeRemote implements Remote over an in-memory permit set ordered the
// way the document store would order it.
type fakeRemote struct {
	permits     []models.Permit
	details     map[string]*models.PermitDetail
	created     map[string]*models.PermitDetail
	transitions []transitionCall
	audits      []transitionCall
	updateErr   error
	auditErr    error
	watch       chan []models.Permit
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		details: make(map[string]*models.PermitDetail),
		created: make(map[string]*models.PermitDetail),
		watch:   make(chan []models.Permit, 1),
	}
}

func (f *fakeRemote) QueryPermitsByStatus(ctx context.Context, statuses ...models.PermitStatus) ([]models.Permit, error) {
	wanted := make(map[models.PermitStatus]bool)
	for _, s := range statuses {
		wanted[s] = true
	}
	var out []models.Permit
	for _, p := range f.permits {
		if wanted[p.Status] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeRemote) QueryHistoryPage(ctx context.Context, cursor *db.HistoryCursor, pageSize int) ([]models.Permit, *db.HistoryCursor, error) {
	var eligible []models.Permit
	for _, p := range f.permits {
		switch p.Status {
		case models.StatusPending, models.StatusClosed, models.StatusCancelled, models.StatusRejected:
			eligible = append(eligible, p)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].UpdatedAt.Equal(eligible[j].UpdatedAt) {
			return eligible[i].UpdatedAt.After(eligible[j].UpdatedAt)
		}
		return eligible[i].ID > eligible[j].ID
	})

	start := 0
	if cursor != nil {
		for i, p := range eligible {
			if p.UpdatedAt.Equal(cursor.UpdatedAt) && p.ID == cursor.ID {
				start = i + 1
				break
			}
		}
	}

	end := start + pageSize
	if end > len(eligible) {
		end = len(eligible)
	}
	page := eligible[start:end]

	var last *db.HistoryCursor
	if len(page) > 0 {
		tail := page[len(page)-1]
		last = &db.HistoryCursor{UpdatedAt: tail.UpdatedAt, ID: tail.ID}
	}
	return page, last, nil
}

func (f *fakeRemote) WatchPendingPermits(ctx context.Context) <-chan []models.Permit {
	return f.watch
}

func (f *fakeRemote) UpdatePermitStatus(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string, withLocalDate bool) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.transitions = append(f.transitions, transitionCall{permitID, newStatus, reason, withLocalDate})
	return nil
}

func (f *fakeRemote) GetPermitDetail(ctx context.Context, permitID string) (*models.PermitDetail, error) {
	detail, ok := f.details[permitID]
	if !ok {
		return nil, &models.NotFoundError{Kind: "permit", ID: permitID}
	}
	return detail, nil
}

func (f *fakeRemote) CreatePermit(ctx context.Context, permitID string, detail *models.PermitDetail) error {
	f.created[permitID] = detail
	return nil
}

func (f *fakeRemote) LogTransition(ctx context.Context, permitID string, newStatus models.PermitStatus, reason string) error {
	if f.auditErr != nil {
		return f.auditErr
	}
	f.audits = append(f.audits, transitionCall{PermitID: permitID, Status: newStatus, Reason: reason})
	return nil
}

func validDetail() *models.PermitDetail {
	return &models.PermitDetail{
		Name:              "Permit to work",
		NumberOfPersons:   "2",
		DescriptionOfWork: "Gearbox inspection",
		Site:              "1",
		Model:             "V47",
		Location:          "Tower A-12",
		WorkArea:          "Nacelle",
		WindSpeed:         "6 m/s",
	}
}

func TestListOngoingReturnsOnlyAccepted(t *testing.T) {
	remote := newFakeRemote()
	remote.permits = []models.Permit{
		{ID: "P1", Status: models.StatusAccepted},
		{ID: "P2", Status: models.StatusPending},
		{ID: "P3", Status: models.StatusAccepted},
		{ID: "P4", Status: models.StatusClosed},
	}
	store := NewStore(remote, cache.NewMemory())

	list, err := store.ListOngoing(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "P1", list[0].ID)
	assert.Equal(t, "P3", list[1].ID)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	err := store.Transition(context.Background(), "P1", "Approved", "")

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, remote.transitions)
}

func TestTransitionTerminalRequiresReason(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	for _, status := range []models.PermitStatus{models.StatusClosed, models.StatusCancelled} {
		err := store.Transition(context.Background(), "P1", status, "   ")

		var validationErr *models.ValidationError
		require.ErrorAs(t, err, &validationErr, "status %s", status)
	}
	// Rejected writes must leave the store untouched
	assert.Empty(t, remote.transitions)
}

func TestTransitionNonTerminalWithoutReason(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	require.NoError(t, store.Transition(context.Background(), "P1", models.StatusAccepted, ""))
	require.Len(t, remote.transitions, 1)
	assert.False(t, remote.transitions[0].WithLocalDate)
}

func TestTransitionLocalDateStatuses(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	require.NoError(t, store.Transition(context.Background(), "P1", models.StatusPending, ""))
	require.NoError(t, store.Transition(context.Background(), "P2", models.StatusClosed, "done"))
	require.NoError(t, store.Transition(context.Background(), "P3", models.StatusCancelled, "weather"))

	require.Len(t, remote.transitions, 3)
	assert.True(t, remote.transitions[0].WithLocalDate)
	assert.True(t, remote.transitions[1].WithLocalDate)
	assert.False(t, remote.transitions[2].WithLocalDate)
}

func TestTransitionAuditFailureIsNotFatal(t *testing.T) {
	remote := newFakeRemote()
	remote.auditErr = errors.New("audit store down")
	store := NewStore(remote, cache.NewMemory())

	err := store.Transition(context.Background(), "P1", models.StatusClosed, "done")
	require.NoError(t, err)
	require.Len(t, remote.transitions, 1)
}

func TestTransitionRecordsAudit(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	require.NoError(t, store.Transition(context.Background(), "P1", models.StatusCancelled, "weather"))

	require.Len(t, remote.audits, 1)
	assert.Equal(t, "P1", remote.audits[0].PermitID)
	assert.Equal(t, models.StatusCancelled, remote.audits[0].Status)
	assert.Equal(t, "weather", remote.audits[0].Reason)
}

func TestSelectPermitFlushesPreviousState(t *testing.T) {
	remote := newFakeRemote()
	remote.details["P1"] = validDetail()
	remote.details["P2"] = validDetail()
	localCache := cache.NewMemory()
	store := NewStore(remote, localCache)

	first, err := store.SelectPermit(context.Background(), "P1")
	require.NoError(t, err)
	require.NoError(t, first.WriteSection("Safety Rules", []models.ChecklistItem{
		{ID: "1", Title: "Harness check", Status: models.ItemStatusOK},
	}))

	second, err := store.SelectPermit(context.Background(), "P2")
	require.NoError(t, err)
	assert.Equal(t, "P2", second.PermitID)

	ok, err := second.HasSection("Safety Rules")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectPermitUnknownPermit(t *testing.T) {
	store := NewStore(newFakeRemote(), cache.NewMemory())

	_, err := store.SelectPermit(context.Background(), "missing")

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestResumeAfterSelect(t *testing.T) {
	remote := newFakeRemote()
	remote.details["P1"] = validDetail()
	store := NewStore(remote, cache.NewMemory())

	_, err := store.SelectPermit(context.Background(), "P1")
	require.NoError(t, err)

	sess, err := store.Resume()
	require.NoError(t, err)
	assert.Equal(t, "P1", sess.PermitID)
}

func TestCreateValidatesEveryField(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	detail := validDetail()
	detail.WorkArea = "  "
	_, err := store.Create(context.Background(), detail)

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, remote.created)
}

func TestCreateGeneratesPermitNumber(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	permitID, err := store.Create(context.Background(), validDetail())
	require.NoError(t, err)
	assert.Regexp(t, `^PTW-[0-9A-F-]{8}$`, permitID)
	assert.Contains(t, remote.created, permitID)
}

func TestWatchPendingDeliversSnapshots(t *testing.T) {
	remote := newFakeRemote()
	store := NewStore(remote, cache.NewMemory())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := store.WatchPending(ctx)
	remote.watch <- []models.Permit{{ID: "P1", Status: models.StatusPending}}

	select {
	case list := <-updates:
		require.Len(t, list, 1)
		assert.Equal(t, "P1", list[0].ID)
	case <-time.After(time.Second):
		t.Fatal("no delivery")
	}
}
