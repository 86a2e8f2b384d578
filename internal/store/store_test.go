package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summitsafeguard/go-tracker-server/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.InitSchema(context.Background()))
	return st
}

func floatPtr(v float64) *float64 { return &v }

func TestInsertAndRecentTelemetry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	err := st.InsertTelemetry(ctx, model.TelemetryRecord{
		HikerID:     "pendaki_01",
		Latitude:    -6.2146,
		Longitude:   106.8451,
		Temperature: floatPtr(24.5),
		Humidity:    floatPtr(70.1),
		SOSActive:   true,
	})
	require.NoError(t, err)

	records, err := st.RecentTelemetry(ctx, "pendaki_01", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "pendaki_01", rec.HikerID)
	assert.Equal(t, -6.2146, rec.Latitude)
	assert.Equal(t, 106.8451, rec.Longitude)
	require.NotNil(t, rec.Temperature)
	assert.Equal(t, 24.5, *rec.Temperature)
	require.NotNil(t, rec.Humidity)
	assert.Equal(t, 70.1, *rec.Humidity)
	assert.True(t, rec.SOSActive)
	assert.False(t, rec.ObservedAt.IsZero())
}

func TestRecentTelemetryOptionalFieldsAbsent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertTelemetry(ctx, model.TelemetryRecord{
		HikerID:   "pendaki_01",
		Latitude:  1,
		Longitude: 2,
	}))

	records, err := st.RecentTelemetry(ctx, "pendaki_01", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Temperature)
	assert.Nil(t, records[0].Humidity)
	assert.False(t, records[0].SOSActive)
}

func TestRecentTelemetryLimitAndOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, st.InsertTelemetry(ctx, model.TelemetryRecord{
			HikerID:   "pendaki_01",
			Latitude:  float64(i),
			Longitude: float64(i),
		}))
	}

	records, err := st.RecentTelemetry(ctx, "pendaki_01", 10)
	require.NoError(t, err)
	require.Len(t, records, 10)

	// Newest first: the five oldest readings (latitude 0..4) are excluded.
	assert.Equal(t, float64(14), records[0].Latitude)
	assert.Equal(t, float64(5), records[9].Latitude)
	for i := 1; i < len(records); i++ {
		assert.False(t, records[i].ObservedAt.After(records[i-1].ObservedAt))
	}
}

func TestRecentTelemetryEmpty(t *testing.T) {
	st := newTestStore(t)

	records, err := st.RecentTelemetry(context.Background(), "pendaki_99", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListHikerIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"pendaki_02", "pendaki_01", "pendaki_02"} {
		require.NoError(t, st.InsertTelemetry(ctx, model.TelemetryRecord{
			HikerID:   id,
			Latitude:  1,
			Longitude: 2,
		}))
	}

	ids, err := st.ListHikerIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"pendaki_01", "pendaki_02"}, ids)
}

func TestCreateAccountDuplicateUsername(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateAccount(ctx, model.Account{Username: "rina", PasswordHash: "x", Role: model.RoleRescuer})
	require.NoError(t, err)

	count, err := st.CountAccounts(ctx)
	require.NoError(t, err)

	_, err = st.CreateAccount(ctx, model.Account{Username: "rina", PasswordHash: "y", Role: model.RoleViewer, BoundHikerID: "pendaki_01"})
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	after, err := st.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, count, after)
}

func TestAccountLookups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateAccount(ctx, model.Account{
		Username:     "keluarga_01",
		PasswordHash: "hash",
		Role:         model.RoleViewer,
		BoundHikerID: "pendaki_01",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	byName, err := st.AccountByUsername(ctx, "keluarga_01")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
	assert.Equal(t, model.RoleViewer, byName.Role)
	assert.Equal(t, "pendaki_01", byName.BoundHikerID)

	byID, err := st.AccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "keluarga_01", byID.Username)

	_, err = st.AccountByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUpdateAccount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateAccount(ctx, model.Account{Username: "old", PasswordHash: "h1", Role: model.RoleRescuer})
	require.NoError(t, err)

	created.Username = "new"
	created.Role = model.RoleViewer
	created.BoundHikerID = "pendaki_02"
	require.NoError(t, st.UpdateAccount(ctx, created))

	updated, err := st.AccountByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Username)
	assert.Equal(t, model.RoleViewer, updated.Role)
	assert.Equal(t, "pendaki_02", updated.BoundHikerID)
	assert.Equal(t, "h1", updated.PasswordHash)

	missing := created
	missing.ID = 9999
	assert.ErrorIs(t, st.UpdateAccount(ctx, missing), ErrAccountNotFound)
}

func TestDeleteAccount(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created, err := st.CreateAccount(ctx, model.Account{Username: "temp", PasswordHash: "h", Role: model.RoleRescuer})
	require.NoError(t, err)

	require.NoError(t, st.DeleteAccount(ctx, created.ID))
	assert.ErrorIs(t, st.DeleteAccount(ctx, created.ID), ErrAccountNotFound)
}

func TestInsertIngestionError(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.InsertIngestionError(ctx, model.IngestionError{
		Topic:   "tracking/data",
		Payload: "{}",
		Error:   "topic does not match",
	}))

	var count int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM ingestion_errors;`).Scan(&count))
	assert.Equal(t, 1, count)
}
