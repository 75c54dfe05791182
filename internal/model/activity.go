package model

import (
	"strings"
	"time"
)

// DefaultDataSource tags records imported from the OHSS portal.
const DefaultDataSource = "OHSS"

// Location is the geographic scope of an activity record.
type Location struct {
	State  *string `json:"state,omitempty"`
	City   *string `json:"city,omitempty"`
	County *string `json:"county,omitempty"`
}

// ActivityRecord is implemented by Arrest, Detention and Removal.
type ActivityRecord interface {
	Kind() EntityKind
	Period() time.Time
	Where() Location
	// DedupKey is the source/period/location key used to suppress repeats across runs.
	DedupKey() string
	// VariantKey separates records that share a dedup key within one file
	// (facilities in the same city, countries within a state).
	VariantKey() string
}

// Arrest is a count of enforcement arrests for a period and place.
type Arrest struct {
	ID                 int64     `json:"id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	State              *string   `json:"state,omitempty"`
	County             *string   `json:"county,omitempty"`
	City               *string   `json:"city,omitempty"`
	ArrestCount        *int      `json:"arrest_count,omitempty"`
	CriminalArrests    *int      `json:"criminal_arrests,omitempty"`
	NonCriminalArrests *int      `json:"non_criminal_arrests,omitempty"`
	DataSource         string    `json:"data_source"`
	SourceURL          string    `json:"source_url,omitempty"`
	Key                string    `json:"dedup_key"`
	CreatedAt          time.Time `json:"created_at"`
}

func (a *Arrest) Kind() EntityKind   { return KindArrests }
func (a *Arrest) Period() time.Time  { return a.Timestamp }
func (a *Arrest) DedupKey() string   { return a.Key }
func (a *Arrest) VariantKey() string { return "" }
func (a *Arrest) Where() Location {
	return Location{State: a.State, City: a.City, County: a.County}
}

// Detention is a facility population snapshot.
type Detention struct {
	ID                 int64     `json:"id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	FacilityName       *string   `json:"facility_name,omitempty"`
	FacilityID         *string   `json:"facility_id,omitempty"`
	FacilityType       *string   `json:"facility_type,omitempty"`
	State              *string   `json:"state,omitempty"`
	City               *string   `json:"city,omitempty"`
	DetainedCount      *int      `json:"detained_count,omitempty"`
	Capacity           *int      `json:"capacity,omitempty"`
	AvgDailyPopulation *float64  `json:"avg_daily_population,omitempty"`
	Latitude           *float64  `json:"latitude,omitempty"`
	Longitude          *float64  `json:"longitude,omitempty"`
	DataSource         string    `json:"data_source"`
	SourceURL          string    `json:"source_url,omitempty"`
	Key                string    `json:"dedup_key"`
	CreatedAt          time.Time `json:"created_at"`
}

func (d *Detention) Kind() EntityKind  { return KindDetentions }
func (d *Detention) Period() time.Time { return d.Timestamp }
func (d *Detention) DedupKey() string  { return d.Key }
func (d *Detention) Where() Location {
	return Location{State: d.State, City: d.City}
}

func (d *Detention) VariantKey() string {
	if d.FacilityID != nil {
		return "id:" + strings.ToLower(*d.FacilityID)
	}
	if d.FacilityName != nil {
		return "name:" + strings.ToLower(*d.FacilityName)
	}
	return ""
}

// DefaultRemovalType is used when a removals file carries no type column.
const DefaultRemovalType = "removal"

// Removal is a count of removals or returns for a period and place.
type Removal struct {
	ID                   int64     `json:"id,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	State                *string   `json:"state,omitempty"`
	RemovalCount         *int      `json:"removal_count,omitempty"`
	CountryOfCitizenship *string   `json:"country_of_citizenship,omitempty"`
	RemovalType          string    `json:"removal_type"`
	DataSource           string    `json:"data_source"`
	SourceURL            string    `json:"source_url,omitempty"`
	Key                  string    `json:"dedup_key"`
	CreatedAt            time.Time `json:"created_at"`
}

func (r *Removal) Kind() EntityKind  { return KindRemovals }
func (r *Removal) Period() time.Time { return r.Timestamp }
func (r *Removal) DedupKey() string  { return r.Key }
func (r *Removal) Where() Location   { return Location{State: r.State} }

func (r *Removal) VariantKey() string {
	country := ""
	if r.CountryOfCitizenship != nil {
		country = *r.CountryOfCitizenship
	}
	return strings.ToLower(country + "|" + r.RemovalType)
}
