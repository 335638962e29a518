package database

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

func setupMockDB(t *testing.T) (*FacilityAdapter, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return NewFacilityAdapterFromDB(sqlx.NewDb(mockDB, "postgres")), mock
}

var rowColumns = []string{
	"id", "name", "kind", "classification", "address", "city", "province", "postal_code",
	"phone", "email", "website", "latitude", "longitude", "verified", "managed_by_pipeline",
	"source_id", "source_kind", "rating", "review_count", "last_synced_at", "created_at", "updated_at",
}

func TestFacilityAdapter_FindCandidates(t *testing.T) {
	adapter, mock := setupMockDB(t)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .* FROM "facilities" WHERE .*"managed_by_pipeline".*"latitude" BETWEEN .*"longitude" BETWEEN .*ORDER BY "id" ASC`).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow(3, "Example Academic Hospital", "PUBLIC", "GENERAL", "", "Johannesburg", "Gauteng", "",
				"", "", "", -26.1715, 28.0416, false, true, "n1", "node", 0.0, 0, now, now, now).
			AddRow(8, "No Pin Clinic", "CLINIC", "CLINIC", "", "Johannesburg", "Gauteng", "",
				"", "", "", nil, nil, false, true, "n8", "node", 0.0, 0, nil, now, now))

	box := &repositories.BoundingBox{MinLatitude: -26.1725, MaxLatitude: -26.1705, MinLongitude: 28.0406, MaxLongitude: 28.0426}
	got, err := adapter.FindCandidates(context.Background(), repositories.CandidateQuery{Box: box, Name: "Example Academic Hospital", City: "Johannesburg"})

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, entities.FacilityKindPublic, got[0].Kind)
	assert.Equal(t, &entities.Location{Latitude: -26.1715, Longitude: 28.0416}, got[0].Location)
	assert.True(t, got[0].ManagedByPipeline)
	require.NotNil(t, got[0].LastSyncedAt)
	assert.Nil(t, got[1].Location)
	assert.Nil(t, got[1].LastSyncedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_FindCandidatesWithoutBox(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT .* FROM "facilities" WHERE .*"city" = .*"name" = `).
		WillReturnRows(sqlmock.NewRows(rowColumns))

	got, err := adapter.FindCandidates(context.Background(), repositories.CandidateQuery{Name: "A", City: "B"})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_Create(t *testing.T) {
	adapter, mock := setupMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO "facilities" .* RETURNING "id"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	draft := &entities.FacilityDraft{
		Name:     "Example Academic Hospital",
		Kind:     entities.FacilityKindPublic,
		City:     "Johannesburg",
		Province: "Gauteng",
		Location: &entities.Location{Latitude: -26.1715, Longitude: 28.0416},
	}
	id, err := adapter.Create(context.Background(), entities.NewManagedFacility(draft, now))

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_CreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected apperrors.ErrorType
	}{
		{"constraint violation", &pq.Error{Code: "23505", Message: "duplicate key value"}, apperrors.ErrorTypeWriteFailed},
		{"value too long", &pq.Error{Code: "22001"}, apperrors.ErrorTypeWriteFailed},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, apperrors.ErrorTypeUnavailable},
		{"server shutting down", &pq.Error{Code: "57P01"}, apperrors.ErrorTypeUnavailable},
		{"connection failure", &pq.Error{Code: "08006"}, apperrors.ErrorTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, mock := setupMockDB(t)
			mock.ExpectQuery(`INSERT INTO "facilities"`).WillReturnError(tt.err)

			_, err := adapter.Create(context.Background(), &entities.Facility{Name: "X", ManagedByPipeline: true})

			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, tt.expected), "got %v", err)
		})
	}
}

func TestFacilityAdapter_Update(t *testing.T) {
	update := entities.FacilityUpdate{
		Name:         "Example Academic Hospital",
		Kind:         entities.FacilityKindPublic,
		City:         "Johannesburg",
		Province:     "Gauteng",
		Location:     &entities.Location{Latitude: -26.1715, Longitude: 28.0416},
		LastSyncedAt: time.Now().UTC(),
	}

	t.Run("managed record", func(t *testing.T) {
		adapter, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE "facilities" SET .* WHERE .*"id" = .*"managed_by_pipeline"`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, adapter.Update(context.Background(), 3, update))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("manual or missing record", func(t *testing.T) {
		adapter, mock := setupMockDB(t)
		mock.ExpectExec(`UPDATE "facilities"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := adapter.Update(context.Background(), 1, update)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeWriteFailed))
	})
}

func TestFacilityAdapter_DeleteManaged(t *testing.T) {
	adapter, mock := setupMockDB(t)
	mock.ExpectExec(`DELETE FROM "facilities" WHERE .*"managed_by_pipeline"`).
		WillReturnResult(sqlmock.NewResult(0, 17))

	deleted, err := adapter.DeleteManaged(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_ListManaged(t *testing.T) {
	adapter, mock := setupMockDB(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .* FROM "facilities" WHERE .*"managed_by_pipeline".* ORDER BY "id" ASC`).
		WillReturnRows(sqlmock.NewRows(rowColumns).
			AddRow(1, "A", "CLINIC", "CLINIC", "", "Durban", "KwaZulu-Natal", "", "", "", "", -29.85, 31.02, false, true, "n1", "node", 0.0, 0, now, now, now))

	got, err := adapter.ListManaged(context.Background())

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Durban", got[0].City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_Counts(t *testing.T) {
	adapter, mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "facilities"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT "province" AS "key", COUNT\(\*\) AS "count" FROM "facilities" WHERE .*"managed_by_pipeline".* GROUP BY "province"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("Gauteng", 9).AddRow("Limpopo", 3))
	mock.ExpectQuery(`SELECT "kind" AS "key", COUNT\(\*\) AS "count" FROM "facilities" WHERE .*"managed_by_pipeline".* GROUP BY "kind"`).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("CLINIC", 12))

	ctx := context.Background()
	total, err := adapter.CountManaged(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)

	byProvince, err := adapter.CountByProvince(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repositories.GroupCount{{Key: "Gauteng", Count: 9}, {Key: "Limpopo", Count: 3}}, byProvince)

	byKind, err := adapter.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, []repositories.GroupCount{{Key: "CLINIC", Count: 12}}, byKind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityAdapter_ReadErrors(t *testing.T) {
	adapter, mock := setupMockDB(t)
	mock.ExpectQuery(`SELECT`).WillReturnError(&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")})
	mock.ExpectQuery(`SELECT`).WillReturnError(errors.New("relation \"facilities\" does not exist"))

	_, err := adapter.ListManaged(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable))

	_, err = adapter.CountManaged(context.Background())
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInternal))
}
