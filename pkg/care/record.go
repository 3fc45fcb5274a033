package care

import (
	"time"
)

// StaleAfter is how long persisted care details stay fresh.
const StaleAfter = 7 * 24 * time.Hour

// Record is the persisted row for one species. It is the on-disk contract
// read by other subsystems, so column names are fixed.
type Record struct {
	ID             uint    `json:"id" gorm:"primaryKey"`
	ScientificName string  `json:"scientific_name" gorm:"column:scientific_name;size:150;not null;uniqueIndex"`
	CommonName     *string `json:"common_name" gorm:"column:common_name;size:100"`
	Family         *string `json:"family" gorm:"column:family;size:100"`
	Genus          *string `json:"genus" gorm:"column:genus;size:100"`

	Details `gorm:"embedded"`

	// CareSource and CareCachedAt are either both set or both nil.
	CareSource   *Source    `json:"care_source" gorm:"column:care_source;size:20"`
	CareCachedAt *time.Time `json:"care_cached_at" gorm:"column:care_cached_at;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name used by gorm.
func (Record) TableName() string {
	return "plants"
}

// HasCareData reports whether the record carries cached care details.
func (r *Record) HasCareData() bool {
	return r != nil && r.CareSource != nil && r.CareCachedAt != nil
}

// Source returns the care source or SourceNone.
func (r *Record) Source() Source {
	if r == nil || r.CareSource == nil {
		return SourceNone
	}
	return *r.CareSource
}

// IsUncached reports whether care details were never cached.
func (r *Record) IsUncached() bool {
	return r == nil || r.CareCachedAt == nil
}

// IsStale reports whether cached details are older than window at now.
// Uncached records are not stale.
func (r *Record) IsStale(now time.Time, window time.Duration) bool {
	if r.IsUncached() {
		return false
	}
	return r.CareCachedAt.Before(now.Add(-window))
}

// NeedsRefresh reports whether the record is uncached or stale.
func (r *Record) NeedsRefresh(now time.Time, window time.Duration) bool {
	return r.IsUncached() || r.IsStale(now, window)
}

// CareDetails returns a copy of the care attributes.
func (r *Record) CareDetails() *Details {
	return r.Details.Clone()
}

// IdentityView returns the identity fields of the record.
func (r *Record) IdentityView() Identity {
	return Identity{
		CommonName: r.CommonName,
		Family:     r.Family,
		Genus:      r.Genus,
	}
}
