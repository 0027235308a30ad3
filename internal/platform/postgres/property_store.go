package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/assessment-engine/internal/domain"
	"github.com/phrazzld/assessment-engine/internal/platform/logger"
	"github.com/phrazzld/assessment-engine/internal/store"
)

const selectProperties = `SELECT id, parcel_number, property_type, land_use_code, assessment_year,
	land_value, improvement_value, total_value, address, owner_name, last_updated
FROM properties`

// PostgresPropertyStore implements the store.PropertyStore interface
// using a PostgreSQL database as the storage backend.
type PostgresPropertyStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPropertyStore creates a new PostgreSQL implementation of the PropertyStore interface.
// If logger is nil, a default logger will be used.
func NewPostgresPropertyStore(db store.DBTX, logger *slog.Logger) *PostgresPropertyStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresPropertyStore{
		db:     db,
		logger: logger.With(slog.String("component", "property_store")),
	}
}

var _ store.PropertyStore = (*PostgresPropertyStore)(nil)

// Fetch implements store.PropertyStore.Fetch.
// Every filter constraint is pushed down into the WHERE clause.
func (s *PostgresPropertyStore) Fetch(ctx context.Context, filter domain.ValidationFilter) ([]domain.Property, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args := buildFetchQuery(filter)
	log.Debug("fetching properties", slog.Int("arg_count", len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query properties", slog.String("error", err.Error()))
		return nil, store.NewStoreError("property", "fetch", "query failed", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			log.Error("failed to scan property row", slog.String("error", err.Error()))
			return nil, store.NewStoreError("property", "fetch", "scan failed", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		log.Error("error iterating property rows", slog.String("error", err.Error()))
		return nil, store.NewStoreError("property", "fetch", "row iteration failed", MapError(err))
	}

	log.Debug("fetched properties", slog.Int("count", len(out)))
	return out, nil
}

// buildFetchQuery renders filter as a parameterised query ordered by id.
func buildFetchQuery(filter domain.ValidationFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(format string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(format, len(args)))
	}

	if len(filter.PropertyTypes) > 0 {
		add("property_type = ANY($%d)", filter.PropertyTypes)
	}
	if len(filter.LandUseCodes) > 0 {
		add("land_use_code = ANY($%d)", filter.LandUseCodes)
	}
	if len(filter.ParcelNumbers) > 0 {
		add("parcel_number = ANY($%d)", filter.ParcelNumbers)
	}
	if len(filter.AssessmentYears) > 0 {
		add("assessment_year = ANY($%d)", filter.AssessmentYears)
	}
	if r := filter.ValueRange; r != nil {
		add("total_value >= $%d", r.Min)
		add("total_value <= $%d", r.Max)
	}
	if r := filter.LastUpdatedRange; r != nil {
		add("last_updated >= $%d", r.Start)
		add("last_updated <= $%d", r.End)
	}

	var b strings.Builder
	b.WriteString(selectProperties)
	if len(conds) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString("\nORDER BY id")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, "\nLIMIT $%d", len(args))
	}
	return b.String(), args
}

func scanProperty(rows *sql.Rows) (domain.Property, error) {
	var (
		p                              domain.Property
		parcel, ptype, code, addr, own sql.NullString
		year                           sql.NullInt64
		land, improvement, total       sql.NullFloat64
	)
	err := rows.Scan(&p.ID, &parcel, &ptype, &code, &year,
		&land, &improvement, &total, &addr, &own, &p.LastUpdated)
	if err != nil {
		return domain.Property{}, err
	}

	p.ParcelNumber = parcel.String
	p.PropertyType = ptype.String
	p.LandUseCode = code.String
	p.AssessmentYear = int(year.Int64)
	p.Address = addr.String
	p.OwnerName = own.String
	p.LandValue = nullableFloat(land)
	p.ImprovementValue = nullableFloat(improvement)
	p.TotalValue = nullableFloat(total)
	return p, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return domain.Float(v.Float64)
}
