package complaint_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"qalatransit/backend/internal/complaint"
	"qalatransit/backend/internal/config"
	"qalatransit/backend/internal/models"
	"qalatransit/backend/internal/relay"
	"qalatransit/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(relayCfg config.RelayConfig) (*complaint.Service, *storage.MemoryStorage) {
	store := storage.NewMemoryStorage()
	rc := relay.NewClient(relayCfg, nil)
	return complaint.NewService(store, rc, nil), store
}

func TestSubmit_NoRelay_SavesAndPublishes(t *testing.T) {
	svc, store := newService(config.RelayConfig{})

	c, raw, err := svc.Submit(context.Background(), "65 автобус кешігіп жүр", "web", "aigerim", nil, nil)

	assert.ErrorIs(t, err, relay.ErrNotConfigured)
	assert.Nil(t, raw)
	require.NotNil(t, c)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, models.StatusNew, c.Status)
	assert.Equal(t, "aigerim", c.CreatedBy)

	count, err2 := store.CountComplaints()
	require.NoError(t, err2)
	assert.EqualValues(t, 1, count)
	assert.Len(t, store.Published, 1)
}

func TestSubmit_NilRelayClient(t *testing.T) {
	store := storage.NewMemoryStorage()
	svc := complaint.NewService(store, nil, nil)

	_, _, err := svc.Submit(context.Background(), "text", "web", "u", nil, nil)
	assert.ErrorIs(t, err, relay.ErrNotConfigured)

	count, err2 := store.CountComplaints()
	require.NoError(t, err2)
	assert.EqualValues(t, 1, count)
}

func TestSubmit_EnrichmentApplied(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"route":"65","actor":"Жүргізуші","confidence":0.88}`))
	}))
	defer srv.Close()

	svc, store := newService(config.RelayConfig{TextURL: srv.URL, TimeoutSeconds: 5})
	c, raw, err := svc.Submit(context.Background(), "65 автобус", "web", "aigerim", nil, nil)

	require.NoError(t, err)
	assert.NotEmpty(t, raw)
	assert.Equal(t, "65", *c.Route)
	assert.Equal(t, "Жүргізуші", *c.Actor)

	// the stored record carries the enrichment too
	got, err := store.GetComplaintByID(c.ID)
	require.NoError(t, err)
	assert.Equal(t, "65", *got.Route)
	assert.Len(t, store.Published, 1)
}

// A relay failure leaves the provisional NEW record untouched and
// unannounced; no partial enrichment happens.
func TestSubmit_RelayFailureKeepsProvisionalRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	svc, store := newService(config.RelayConfig{TextURL: srv.URL, TimeoutSeconds: 5})
	c, raw, err := svc.Submit(context.Background(), "text", "web", "aigerim", nil, nil)

	var relayErr *relay.Error
	require.ErrorAs(t, err, &relayErr)
	assert.Nil(t, raw)
	require.NotNil(t, c)

	got, err2 := store.GetComplaintByID(c.ID)
	require.NoError(t, err2)
	assert.Equal(t, models.StatusNew, got.Status)
	assert.Nil(t, got.Route)
	assert.Empty(t, store.Published)
}

func TestSubmit_CoordinatesStored(t *testing.T) {
	svc, store := newService(config.RelayConfig{})
	lat, lng := 43.238949, 76.889709

	c, _, err := svc.Submit(context.Background(), "text", "web", "u", &lat, &lng)
	assert.ErrorIs(t, err, relay.ErrNotConfigured)

	got, err2 := store.GetComplaintByID(c.ID)
	require.NoError(t, err2)
	require.NotNil(t, got.Latitude)
	assert.InDelta(t, lat, *got.Latitude, 1e-9)
}

func TestSubmitPhoto_NoRelay(t *testing.T) {
	svc, store := newService(config.RelayConfig{})

	c, _, err := svc.SubmitPhoto(context.Background(), "broken_door.jpg", []byte{0xFF, 0xD8}, "есік сынған", "aigerim", nil, nil)

	assert.ErrorIs(t, err, relay.ErrNotConfigured)
	require.NotNil(t, c)
	require.Len(t, c.Evidence, 1)
	assert.Equal(t, "broken_door.jpg", c.Evidence[0])
	require.NotNil(t, c.RawText)
	assert.Equal(t, "есік сынған", *c.RawText)

	count, err2 := store.CountComplaints()
	require.NoError(t, err2)
	assert.EqualValues(t, 1, count)
}

func TestSubmitPhoto_Enrichment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, header, err := r.FormFile("photo")
		require.NoError(t, err)
		assert.Equal(t, "door.jpg", header.Filename)
		assert.Equal(t, "aigerim", r.FormValue("username"))
		w.Write([]byte(`{"object":"Автобус","priority":"Орташа"}`))
	}))
	defer srv.Close()

	svc, _ := newService(config.RelayConfig{PhotoURL: srv.URL, TimeoutSeconds: 5})
	c, _, err := svc.SubmitPhoto(context.Background(), "door.jpg", []byte{0xFF, 0xD8}, "", "aigerim", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Автобус", *c.Object)
	assert.Equal(t, "Орташа", *c.Priority)
	assert.Nil(t, c.RawText) // no caption given
}

func TestBuildAdminContext_SingleComplaint(t *testing.T) {
	svc, store := newService(config.RelayConfig{})
	text := "65 автобус"
	c := models.Complaint{RawText: &text}
	require.NoError(t, store.SaveComplaint(&c))

	ctx, err := svc.BuildAdminContext(c.ID)
	require.NoError(t, err)
	got, ok := ctx["complaint"].(*models.Complaint)
	require.True(t, ok)
	assert.Equal(t, c.ID, got.ID)

	_, err = svc.BuildAdminContext("no-such-id")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBuildAdminContext_SummaryCapsRecent(t *testing.T) {
	svc, store := newService(config.RelayConfig{})
	for i := 0; i < 12; i++ {
		require.NoError(t, store.SaveComplaint(&models.Complaint{}))
	}

	ctx, err := svc.BuildAdminContext("")
	require.NoError(t, err)

	sum, ok := ctx["summary"].(*storage.ComplaintSummary)
	require.True(t, ok)
	assert.EqualValues(t, 12, sum.Total)

	recent, ok := ctx["recent"].([]models.Complaint)
	require.True(t, ok)
	assert.Len(t, recent, 10)
}

func TestBulkImport(t *testing.T) {
	svc, store := newService(config.RelayConfig{})

	res := svc.BulkImport("too,short\n")
	assert.Equal(t, 0, res.Imported)
	assert.Equal(t, 1, res.Skipped)

	count, err := store.CountComplaints()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)
}
