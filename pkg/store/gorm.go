package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Sternrassler/plantcare/pkg/care"
)

// Prometheus metrics for store operations.
var (
	storeOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plantcare_store_operations_total",
		Help: "Total store operations by operation and status",
	}, []string{"operation", "status"})

	storeOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plantcare_store_operation_duration_seconds",
		Help:    "Store operation duration in seconds by operation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})
)

// careColumns are written together by SaveCare.
var careColumns = []string{
	"description", "sowing", "days_to_harvest", "row_spacing_cm", "spread_cm",
	"ph_minimum", "ph_maximum", "light", "atmospheric_humidity",
	"growth_months", "bloom_months", "fruit_months",
	"minimum_precipitation_mm", "maximum_precipitation_mm",
	"minimum_temperature_celsius", "maximum_temperature_celsius",
	"soil_nutriments", "soil_salinity", "soil_texture", "soil_humidity",
	"watering_guide", "sunlight_guide", "soil_guide", "temperature_guide",
	"care_summary", "care_tips",
	"care_source", "care_cached_at",
}

// GormStore implements Store on gorm.
type GormStore struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New wraps an open gorm connection. The schema must already exist; see
// Migrate.
func New(db *gorm.DB, logger zerolog.Logger) *GormStore {
	if db == nil {
		panic("gorm db cannot be nil")
	}
	return &GormStore{db: db, logger: logger}
}

// Migrate creates or updates the plants table.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&care.Record{}); err != nil {
		return fmt.Errorf("migrate plants: %w", err)
	}
	return nil
}

// DB exposes the underlying connection.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

func observe(operation string, start time.Time, err error) {
	storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	storeOperationsTotal.WithLabelValues(operation, status).Inc()
}

// Get implements Store.
func (s *GormStore) Get(ctx context.Context, name string) (rec *care.Record, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	return getRecord(s.db.WithContext(ctx), strings.TrimSpace(name))
}

// FindOrCreate implements Store.
func (s *GormStore) FindOrCreate(ctx context.Context, name string, identity care.Identity) (rec *care.Record, err error) {
	defer func(start time.Time) { observe("find_or_create", start, err) }(time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("find or create: empty scientific name")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txErr error
		rec, txErr = upsert(tx, name, identity)
		return txErr
	})
	if err != nil {
		return nil, fmt.Errorf("find or create %q: %w", name, err)
	}
	return rec, nil
}

// SaveCare implements Store.
func (s *GormStore) SaveCare(ctx context.Context, name string, identity care.Identity, details *care.Details, source care.Source, at time.Time) (rec *care.Record, err error) {
	defer func(start time.Time) { observe("save_care", start, err) }(time.Now())

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("save care: empty scientific name")
	}
	if details == nil {
		return nil, fmt.Errorf("save care %q: nil details", name)
	}
	if !source.Valid() {
		return nil, fmt.Errorf("save care %q: invalid source %q", name, source)
	}

	cachedAt := at.UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := upsert(tx, name, identity)
		if err != nil {
			return err
		}

		current.Details = *details.Clone()
		current.CareSource = &source
		current.CareCachedAt = &cachedAt

		if err := tx.Model(current).Select(careColumns).Updates(current).Error; err != nil {
			return fmt.Errorf("update care columns: %w", err)
		}

		rec, err = getRecord(tx, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("save care %q: %w", name, err)
	}

	s.logger.Debug().
		Str("scientific_name", name).
		Str("source", string(source)).
		Msg("Stored care details")
	return rec, nil
}

// ClearCare implements Store.
func (s *GormStore) ClearCare(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { observe("clear_care", start, err) }(time.Now())

	res := s.db.WithContext(ctx).Model(&care.Record{}).
		Where("scientific_name = ?", strings.TrimSpace(name)).
		Updates(map[string]any{"care_cached_at": nil, "care_source": nil})
	if res.Error != nil {
		return fmt.Errorf("clear care %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListNeedingRefresh implements Store.
func (s *GormStore) ListNeedingRefresh(ctx context.Context, staleBefore time.Time, limit int) (recs []care.Record, err error) {
	defer func(start time.Time) { observe("list_refresh", start, err) }(time.Now())

	q := s.db.WithContext(ctx).
		Where("care_cached_at IS NULL OR care_cached_at < ?", staleBefore.UTC()).
		// NULLs sort first in ascending order on both sqlite and mysql.
		Order("care_cached_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list records needing refresh: %w", err)
	}
	return recs, nil
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func getRecord(db *gorm.DB, name string) (*care.Record, error) {
	var rec care.Record
	err := db.Where("scientific_name = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// upsert inserts the identity row unless one exists, backfills null identity
// columns and returns the stored row.
func upsert(tx *gorm.DB, name string, identity care.Identity) (*care.Record, error) {
	identity = normalizeIdentity(identity)
	row := care.Record{
		ScientificName: name,
		CommonName:     identity.CommonName,
		Family:         identity.Family,
		Genus:          identity.Genus,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scientific_name"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}

	if err := backfillIdentity(tx, name, identity); err != nil {
		return nil, err
	}
	return getRecord(tx, name)
}

// backfillIdentity sets identity columns that are still null.
func backfillIdentity(tx *gorm.DB, name string, identity care.Identity) error {
	fields := []struct {
		column string
		value  *string
	}{
		{"common_name", identity.CommonName},
		{"family", identity.Family},
		{"genus", identity.Genus},
	}

	for _, f := range fields {
		if f.value == nil {
			continue
		}
		err := tx.Model(&care.Record{}).
			Where("scientific_name = ? AND "+f.column+" IS NULL", name).
			Update(f.column, *f.value).Error
		if err != nil {
			return fmt.Errorf("backfill %s: %w", f.column, err)
		}
	}
	return nil
}

func normalizeIdentity(id care.Identity) care.Identity {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		return care.StringPtr(strings.TrimSpace(*v))
	}
	return care.Identity{
		CommonName: trim(id.CommonName),
		Family:     trim(id.Family),
		Genus:      trim(id.Genus),
	}
}
