package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"permitkeeper/cache"
	"permitkeeper/models"
)

func testDetail() *models.PermitDetail {
	return &models.PermitDetail{
		Name:              "PTW-001",
		NumberOfPersons:   "2",
		DescriptionOfWork: "Gearbox inspection",
		Site:              "1",
		Model:             "V47",
		Location:          "Tower A-12",
		WorkArea:          "Nacelle",
		WindSpeed:         "6 m/s",
		Engineers:         []models.Engineer{{Name: "R. Kumar"}},
	}
}

func TestOpenFlushesPreviousPermit(t *testing.T) {
	store := cache.NewMemory()

	first, err := Open(store, "PTW-001", testDetail())
	require.NoError(t, err)
	require.NoError(t, first.WriteSection("Safety Rules", []models.ChecklistItem{
		{ID: "1", Title: "Harness check", Status: models.ItemStatusOK},
	}))

	second, err := Open(store, "PTW-002", testDetail())
	require.NoError(t, err)

	// Nothing from the first permit survives selection of the second
	ok, err := second.HasSection("Safety Rules")
	require.NoError(t, err)
	assert.False(t, ok)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{KeySelectedPermitID, KeySelectedPermitData}, keys)
}

func TestResume(t *testing.T) {
	store := cache.NewMemory()

	_, err := Open(store, "PTW-001", testDetail())
	require.NoError(t, err)

	sess, err := Resume(store)
	require.NoError(t, err)
	assert.Equal(t, "PTW-001", sess.PermitID)

	detail, ok, err := sess.Snapshot()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gearbox inspection", detail.DescriptionOfWork)
}

func TestResumeWithoutSelection(t *testing.T) {
	_, err := Resume(cache.NewMemory())

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestSectionKeysAreQualifiedByPermit(t *testing.T) {
	store := cache.NewMemory()
	sess, err := Open(store, "PTW-001", testDetail())
	require.NoError(t, err)

	items := []models.ChecklistItem{{ID: "1", Title: "Harness check", Status: models.ItemStatusOK}}
	require.NoError(t, sess.WriteSection("Safety Rules", items))

	raw, ok, err := store.Get("PTW-001:Safety Rules")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, raw)

	// An unqualified key from an older layout is invisible to the session
	require.NoError(t, store.Set("Safety Rules", raw))
	titles, err := sess.SectionTitles()
	require.NoError(t, err)
	assert.Equal(t, []string{"Safety Rules"}, titles)
}

func TestReadSectionRoundTrip(t *testing.T) {
	sess, err := Open(cache.NewMemory(), "PTW-001", testDetail())
	require.NoError(t, err)

	items := []models.ChecklistItem{
		{ID: "1", Title: "Harness check", Status: models.ItemStatusOK, Remarks: "done"},
		{ID: "2", Title: "Ladder condition", Status: models.ItemStatusNotOK},
	}
	require.NoError(t, sess.WriteSection("Safety Rules", items))

	got, ok, err := sess.ReadSection("Safety Rules")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, items, got)

	_, ok, err = sess.ReadSection("Electrical")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadSectionMalformed(t *testing.T) {
	store := cache.NewMemory()
	sess, err := Open(store, "PTW-001", testDetail())
	require.NoError(t, err)

	require.NoError(t, store.Set("PTW-001:Safety Rules", []byte("{not json")))

	_, ok, err := sess.ReadSection("Safety Rules")
	assert.True(t, ok)
	var decodeErr *models.DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestSectionTitlesSkipsReservedAndProgressKeys(t *testing.T) {
	store := cache.NewMemory()
	sess, err := Open(store, "PTW-001", testDetail())
	require.NoError(t, err)

	require.NoError(t, sess.WriteSection("Safety Rules", nil))
	require.NoError(t, sess.WriteSection("Electrical", nil))
	require.NoError(t, store.Set("PTW-001:Safety Rules_complete", []byte("true")))

	titles, err := sess.SectionTitles()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Safety Rules", "Electrical"}, titles)
}
