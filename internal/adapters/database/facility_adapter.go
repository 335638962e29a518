package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/domain/repositories"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/caremarket/backend/pkg/errors"
)

const facilitiesTable = "facilities"

var facilityColumns = []interface{}{
	"id", "name", "kind", "classification", "address", "city", "province", "postal_code",
	"phone", "email", "website", "latitude", "longitude", "verified", "managed_by_pipeline",
	"source_id", "source_kind", "rating", "review_count", "last_synced_at", "created_at", "updated_at",
}

// facilityRow is a facilities row; coordinates are nullable in the table
type facilityRow struct {
	entities.Facility
	Latitude  sql.NullFloat64 `db:"latitude"`
	Longitude sql.NullFloat64 `db:"longitude"`
}

func (r *facilityRow) toEntity() *entities.Facility {
	f := r.Facility
	if r.Latitude.Valid && r.Longitude.Valid {
		f.Location = &entities.Location{Latitude: r.Latitude.Float64, Longitude: r.Longitude.Float64}
	}
	return &f
}

// FacilityAdapter implements repositories.FacilityStore on PostgreSQL
type FacilityAdapter struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

var _ repositories.FacilityStore = (*FacilityAdapter)(nil)

// NewFacilityAdapter creates a new facility adapter
func NewFacilityAdapter(client *postgres.Client) *FacilityAdapter {
	return NewFacilityAdapterFromDB(client.DB())
}

// NewFacilityAdapterFromDB creates a facility adapter over an open connection pool
func NewFacilityAdapterFromDB(db *sqlx.DB) *FacilityAdapter {
	return &FacilityAdapter{
		db:      db,
		dialect: goqu.Dialect("postgres"),
	}
}

func managedOnly() goqu.Ex {
	return goqu.Ex{"managed_by_pipeline": true}
}

// FindCandidates implements repositories.FacilityStore
func (a *FacilityAdapter) FindCandidates(ctx context.Context, q repositories.CandidateQuery) ([]*entities.Facility, error) {
	match := []exp.Expression{
		goqu.Ex{"name": q.Name, "city": q.City},
	}
	if q.Box != nil {
		match = append(match, goqu.And(
			goqu.C("latitude").Between(goqu.Range(q.Box.MinLatitude, q.Box.MaxLatitude)),
			goqu.C("longitude").Between(goqu.Range(q.Box.MinLongitude, q.Box.MaxLongitude)),
		))
	}

	query, args, err := a.dialect.From(facilitiesTable).Prepared(true).
		Select(facilityColumns...).
		Where(managedOnly(), goqu.Or(match...)).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build candidate query", err)
	}

	return a.selectFacilities(ctx, "failed to find candidate facilities", query, args)
}

// Create implements repositories.FacilityStore
func (a *FacilityAdapter) Create(ctx context.Context, facility *entities.Facility) (int64, error) {
	if facility == nil {
		return 0, apperrors.NewWriteFailedError("facility is required", nil)
	}

	lat, lng := nullCoordinates(facility.Location)
	record := goqu.Record{
		"name":                facility.Name,
		"kind":                string(facility.Kind),
		"classification":      facility.Classification,
		"address":             facility.Address,
		"city":                facility.City,
		"province":            facility.Province,
		"postal_code":         facility.PostalCode,
		"phone":               facility.Phone,
		"email":               facility.Email,
		"website":             facility.Website,
		"latitude":            lat,
		"longitude":           lng,
		"verified":            facility.Verified,
		"managed_by_pipeline": facility.ManagedByPipeline,
		"source_id":           facility.SourceID,
		"source_kind":         facility.SourceKind,
		"rating":              facility.Rating,
		"review_count":        facility.ReviewCount,
		"last_synced_at":      nullTime(facility.LastSyncedAt),
		"created_at":          facility.CreatedAt,
		"updated_at":          facility.UpdatedAt,
	}

	query, args, err := a.dialect.Insert(facilitiesTable).Prepared(true).
		Rows(record).
		Returning("id").
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build insert query", err)
	}

	var id int64
	if err := a.db.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, writeError(fmt.Sprintf("failed to create facility %q", facility.Name), err)
	}
	return id, nil
}

// Update implements repositories.FacilityStore. Rows not managed by the import are never matched.
func (a *FacilityAdapter) Update(ctx context.Context, id int64, update entities.FacilityUpdate) error {
	lat, lng := nullCoordinates(update.Location)
	record := goqu.Record{
		"name":           update.Name,
		"kind":           string(update.Kind),
		"classification": update.Classification,
		"address":        update.Address,
		"city":           update.City,
		"province":       update.Province,
		"postal_code":    update.PostalCode,
		"phone":          update.Phone,
		"email":          update.Email,
		"website":        update.Website,
		"latitude":       lat,
		"longitude":      lng,
		"source_id":      update.SourceID,
		"source_kind":    update.SourceKind,
		"last_synced_at": update.LastSyncedAt,
		"updated_at":     update.LastSyncedAt,
	}

	query, args, err := a.dialect.Update(facilitiesTable).Prepared(true).
		Set(record).
		Where(goqu.Ex{"id": id}, managedOnly()).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return writeError(fmt.Sprintf("failed to update facility %d", id), err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return writeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewWriteFailedError(fmt.Sprintf("facility %d not found or not managed by the import", id), nil)
	}
	return nil
}

// DeleteManaged implements repositories.FacilityStore
func (a *FacilityAdapter) DeleteManaged(ctx context.Context) (int64, error) {
	query, args, err := a.dialect.Delete(facilitiesTable).Prepared(true).
		Where(managedOnly()).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, writeError("failed to delete managed facilities", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, writeError("failed to get rows affected", err)
	}
	return deleted, nil
}

// ListManaged implements repositories.FacilityStore
func (a *FacilityAdapter) ListManaged(ctx context.Context) ([]*entities.Facility, error) {
	query, args, err := a.dialect.From(facilitiesTable).Prepared(true).
		Select(facilityColumns...).
		Where(managedOnly()).
		Order(goqu.C("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build list query", err)
	}

	return a.selectFacilities(ctx, "failed to list managed facilities", query, args)
}

// CountManaged implements repositories.FacilityStore
func (a *FacilityAdapter) CountManaged(ctx context.Context) (int64, error) {
	query, args, err := a.dialect.From(facilitiesTable).Prepared(true).
		Select(goqu.COUNT(goqu.Star())).
		Where(managedOnly()).
		ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build count query", err)
	}

	var count int64
	if err := a.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, readError("failed to count managed facilities", err)
	}
	return count, nil
}

// CountByProvince implements repositories.FacilityStore
func (a *FacilityAdapter) CountByProvince(ctx context.Context) ([]repositories.GroupCount, error) {
	return a.groupCount(ctx, "province")
}

// CountByKind implements repositories.FacilityStore
func (a *FacilityAdapter) CountByKind(ctx context.Context) ([]repositories.GroupCount, error) {
	return a.groupCount(ctx, "kind")
}

func (a *FacilityAdapter) groupCount(ctx context.Context, column string) ([]repositories.GroupCount, error) {
	query, args, err := a.dialect.From(facilitiesTable).Prepared(true).
		Select(goqu.C(column).As("key"), goqu.COUNT(goqu.Star()).As("count")).
		Where(managedOnly()).
		GroupBy(goqu.C(column)).
		Order(goqu.I("count").Desc(), goqu.I("key").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build group query", err)
	}

	var counts []repositories.GroupCount
	if err := a.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, readError(fmt.Sprintf("failed to count managed facilities by %s", column), err)
	}
	return counts, nil
}

func (a *FacilityAdapter) selectFacilities(ctx context.Context, message, query string, args []interface{}) ([]*entities.Facility, error) {
	var rows []facilityRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, readError(message, err)
	}

	facilities := make([]*entities.Facility, 0, len(rows))
	for i := range rows {
		facilities = append(facilities, rows[i].toEntity())
	}
	return facilities, nil
}

func nullCoordinates(loc *entities.Location) (sql.NullFloat64, sql.NullFloat64) {
	if loc == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Latitude, Valid: true}, sql.NullFloat64{Float64: loc.Longitude, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// isUnavailable reports whether err means the database could not be reached at all
func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			return true
		}
	}
	return false
}

func writeError(message string, err error) error {
	if isUnavailable(err) {
		return apperrors.NewUnavailableError(message, err)
	}
	return apperrors.NewWriteFailedError(message, err)
}

func readError(message string, err error) error {
	if isUnavailable(err) {
		return apperrors.NewUnavailableError(message, err)
	}
	return apperrors.NewInternalError(message, err)
}
