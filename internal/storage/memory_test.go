package storage

import (
	"testing"
	"time"

	"qalatransit/backend/internal/models"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string   { return &s }
func f64(f float64) *float64 { return &f }

func seedComplaints(t *testing.T, m *MemoryStorage, cs ...models.Complaint) {
	t.Helper()
	for i := range cs {
		require.NoError(t, m.SaveComplaint(&cs[i]))
	}
}

func TestSaveComplaint_AppliesDefaults(t *testing.T) {
	m := NewMemoryStorage()
	c := models.Complaint{RawText: str("broken door"), CreatedBy: "resident"}
	require.NoError(t, m.SaveComplaint(&c))

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusNew, c.Status)
	assert.NotNil(t, c.Aspect)
	assert.NotNil(t, c.Evidence)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestSaveComplaint_UpdatePreservesCreatedAt(t *testing.T) {
	m := NewMemoryStorage()
	c := models.Complaint{RawText: str("first")}
	require.NoError(t, m.SaveComplaint(&c))
	created := c.CreatedAt
	firstUpdated := c.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	c.Route = str("12")
	require.NoError(t, m.SaveComplaint(&c))

	got, err := m.GetComplaintByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(firstUpdated) || got.UpdatedAt.Equal(firstUpdated))
	assert.Equal(t, "12", *got.Route)
}

func TestListComplaints_FilterIsCaseInsensitive(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{Route: str("12"), Priority: str("High")},
		models.Complaint{Route: str("12"), Priority: str("low")},
		models.Complaint{Route: str("65"), Priority: str("HIGH")},
	)

	out, err := m.ListComplaints(ComplaintFilter{Priority: "high"}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestListComplaints_UnsetFilterNeverExcludes(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{Route: str("12")},
		models.Complaint{}, // everything nil
	)

	out, err := m.ListComplaints(ComplaintFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestListComplaints_NilFieldFailsSetFilter(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{Route: str("12")},
		models.Complaint{Route: nil},
	)

	out, err := m.ListComplaints(ComplaintFilter{Route: "12"}, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "12", *out[0].Route)
}

func TestListComplaints_LimitTruncatesInRetrievalOrder(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{RawText: str("a")},
		models.Complaint{RawText: str("b")},
		models.Complaint{RawText: str("c")},
	)

	out, err := m.ListComplaints(ComplaintFilter{}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", *out[0].RawText)
	assert.Equal(t, "b", *out[1].RawText)
}

func TestSummary_GroupsWithPlaceholder(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{Route: str("12"), Priority: str("High")},
		models.Complaint{Route: str("12")},
		models.Complaint{},
	)

	s, err := m.Summary()
	require.NoError(t, err)

	assert.EqualValues(t, 3, s.Total)
	assert.EqualValues(t, 2, s.ByRoute["12"])
	assert.EqualValues(t, 1, s.ByRoute[PlaceholderNone])
	assert.EqualValues(t, 1, s.ByPriority["High"])
	assert.EqualValues(t, 2, s.ByPriority[PlaceholderNone])
}

// The average divides the sum of known scores by the total complaint count,
// so unscored complaints drag the average down instead of being excluded.
func TestSummary_AvgConfidenceDividesByTotal(t *testing.T) {
	m := NewMemoryStorage()
	seedComplaints(t, m,
		models.Complaint{Confidence: f64(0.8)},
		models.Complaint{Confidence: f64(0.6)},
		models.Complaint{Confidence: nil},
		models.Complaint{Confidence: nil},
	)

	s, err := m.Summary()
	require.NoError(t, err)
	assert.InDelta(t, 0.35, s.AvgConfidence, 1e-9)
}

func TestSummary_Empty(t *testing.T) {
	m := NewMemoryStorage()
	s, err := m.Summary()
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.Total)
	assert.Zero(t, s.AvgConfidence)
	assert.Empty(t, s.ByRoute)
}

func TestUpdateComplaintStatus(t *testing.T) {
	m := NewMemoryStorage()
	c := models.Complaint{RawText: str("noise")}
	require.NoError(t, m.SaveComplaint(&c))

	_, err := m.UpdateComplaintStatus(c.ID, "   ")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = m.UpdateComplaintStatus("no-such-id", models.StatusResolved)
	assert.ErrorIs(t, err, ErrNotFound)

	before := c.UpdatedAt
	time.Sleep(5 * time.Millisecond)
	got, err := m.UpdateComplaintStatus(c.ID, models.StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, got.Status)
	assert.True(t, got.UpdatedAt.After(before))
}

func TestFindByCreatedBy_NewestFirst(t *testing.T) {
	m := NewMemoryStorage()
	old := models.Complaint{RawText: str("old"), CreatedBy: "aigerim",
		CreatedAt: time.Now().Add(-time.Hour)}
	recent := models.Complaint{RawText: str("recent"), CreatedBy: "aigerim",
		CreatedAt: time.Now()}
	other := models.Complaint{RawText: str("other"), CreatedBy: "bolat"}
	seedComplaints(t, m, old, recent, other)

	out, err := m.FindByCreatedBy("aigerim")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "recent", *out[0].RawText)
	assert.Equal(t, "old", *out[1].RawText)
}

func TestGetComplaintByID_NotFound(t *testing.T) {
	m := NewMemoryStorage()
	_, err := m.GetComplaintByID("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublishComplaint_Recorded(t *testing.T) {
	m := NewMemoryStorage()
	c := models.Complaint{RawText: str("feed me")}
	require.NoError(t, m.SaveComplaint(&c))
	require.NoError(t, m.PublishComplaint(&c))
	require.Len(t, m.Published, 1)
	assert.Equal(t, c.ID, m.Published[0].ID)
}

func TestUsers(t *testing.T) {
	m := NewMemoryStorage()
	u := &models.User{Username: "aigerim", Email: "a@qalatransit.kz", Enabled: true}
	require.NoError(t, u.SetPassword("secret"))
	require.NoError(t, m.CreateUser(u))

	// default role assigned when none given
	assert.Equal(t, pq.StringArray{models.RoleUser}, u.Roles)
	assert.NotZero(t, u.ID)

	assert.ErrorIs(t, m.CreateUser(&models.User{Username: "aigerim"}), ErrDuplicate)

	exists, err := m.UsernameExists("aigerim")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = m.EmailExists("A@QALATRANSIT.KZ")
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := m.GetUserByUsername("aigerim")
	require.NoError(t, err)
	assert.True(t, got.CheckPassword("secret"))
	assert.False(t, got.CheckPassword("wrong"))

	_, err = m.GetUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}
