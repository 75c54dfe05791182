package ohss

import (
	"os"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/ohss-collector/internal/model"
)

// Canonical field names shared by the importers.
const (
	FieldState              = "state"
	FieldCounty             = "county"
	FieldCity               = "city"
	FieldDate               = "date"
	FieldArrests            = "arrests"
	FieldCriminal           = "criminal"
	FieldNonCriminal        = "non_criminal"
	FieldFacility           = "facility"
	FieldFacilityID         = "facility_id"
	FieldFacilityType       = "facility_type"
	FieldDetained           = "detained"
	FieldCapacity           = "capacity"
	FieldAvgDailyPopulation = "avg_daily_population"
	FieldLatitude           = "latitude"
	FieldLongitude          = "longitude"
	FieldRemovals           = "removals"
	FieldCountry            = "country"
	FieldType               = "type"
)

// FieldAliases lists the header labels accepted for one canonical field,
// highest priority first.
type FieldAliases struct {
	Field   string   `yaml:"field"`
	Aliases []string `yaml:"aliases"`
}

// AliasTable is the ordered alias list for one entity kind.
type AliasTable []FieldAliases

// Schema holds the alias table for each importable kind.
type Schema map[model.EntityKind]AliasTable

var (
	stateAliases = FieldAliases{FieldState, []string{"state", "state_code", "st"}}
	cityAliases  = FieldAliases{FieldCity, []string{"city", "city_name"}}
	dateAliases  = FieldAliases{FieldDate, []string{"date", "month", "year_month", "period"}}
)

// DefaultSchema returns the built-in alias tables.
func DefaultSchema() Schema {
	return Schema{
		model.KindArrests: {
			stateAliases,
			{FieldCounty, []string{"county", "county_name"}},
			cityAliases,
			{FieldArrests, []string{"arrests", "arrest_count", "total_arrests"}},
			{FieldCriminal, []string{"criminal_arrests", "criminal"}},
			{FieldNonCriminal, []string{"non_criminal_arrests", "non_criminal", "civil"}},
			dateAliases,
		},
		model.KindDetentions: {
			{FieldFacility, []string{"facility", "facility_name", "detention_facility"}},
			{FieldFacilityID, []string{"facility_id", "id", "facility_code"}},
			stateAliases,
			cityAliases,
			{FieldFacilityType, []string{"facility_type", "type"}},
			{FieldDetained, []string{"detained", "detained_count", "population", "adp"}},
			{FieldCapacity, []string{"capacity", "bed_capacity", "total_capacity"}},
			{FieldAvgDailyPopulation, []string{"avg_daily_population", "average_daily_population"}},
			{FieldLatitude, []string{"latitude", "lat"}},
			{FieldLongitude, []string{"longitude", "lon", "lng"}},
			dateAliases,
		},
		model.KindRemovals: {
			stateAliases,
			{FieldRemovals, []string{"removals", "removal_count", "deportations"}},
			{FieldCountry, []string{"country", "country_of_citizenship", "nationality"}},
			{FieldType, []string{"removal_type", "type", "category"}},
			dateAliases,
		},
	}
}

// LoadSchema reads alias overrides from a YAML file keyed by kind. Kinds
// present in the file replace the default table for that kind; others keep
// their defaults. An empty path returns DefaultSchema.
//
//	arrests:
//	  - field: state
//	    aliases: [state, state_code, st, jurisdiction]
func LoadSchema(path string) (Schema, error) {
	schema := DefaultSchema()
	if path == "" {
		return schema, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ohss: read aliases file %s", path)
	}

	var overrides map[string]AliasTable
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "ohss: parse aliases file %s", path)
	}
	for name, table := range overrides {
		kind, err := model.ParseEntityKind(name)
		if err != nil {
			return nil, eris.Wrapf(err, "ohss: aliases file %s", path)
		}
		for _, fa := range table {
			if fa.Field == "" || len(fa.Aliases) == 0 {
				return nil, eris.Errorf("ohss: aliases file %s: %s entry needs a field and at least one alias", path, name)
			}
		}
		schema[kind] = table
	}
	return schema, nil
}

// MapColumns resolves each canonical field in aliases against a file's
// headers. Matching is exact after case folding and trimming; a header is
// also tried in snake_case form, so "State Code" satisfies "state_code".
// Aliases are tried in declared order and the first present one wins.
// Fields with no matching header are left out of the map.
func MapColumns(headers []string, aliases AliasTable) model.CanonicalFieldMap {
	literal := make(map[string]string, len(headers))
	snake := make(map[string]string, len(headers))
	for _, h := range headers {
		if k := fold(strings.TrimSpace(h)); k != "" {
			if _, dup := literal[k]; !dup {
				literal[k] = h
			}
		}
		if k := snakeCase(h); k != "" {
			if _, dup := snake[k]; !dup {
				snake[k] = h
			}
		}
	}

	m := make(model.CanonicalFieldMap, len(aliases))
	for _, fa := range aliases {
		for _, alias := range fa.Aliases {
			key := fold(strings.TrimSpace(alias))
			if h, ok := literal[key]; ok {
				m[fa.Field] = h
				break
			}
			if h, ok := snake[key]; ok {
				m[fa.Field] = h
				break
			}
		}
	}
	return m
}

// snakeCase folds s and collapses every run of non-alphanumerics to "_".
func snakeCase(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range fold(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}
