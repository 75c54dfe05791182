package normalize

import (
	"strings"

	"github.com/sells-group/ohss-collector/internal/model"
)

var stateNames = map[string]string{
	"ALABAMA":        "AL",
	"ALASKA":         "AK",
	"ARIZONA":        "AZ",
	"ARKANSAS":       "AR",
	"CALIFORNIA":     "CA",
	"COLORADO":       "CO",
	"CONNECTICUT":    "CT",
	"DELAWARE":       "DE",
	"FLORIDA":        "FL",
	"GEORGIA":        "GA",
	"HAWAII":         "HI",
	"IDAHO":          "ID",
	"ILLINOIS":       "IL",
	"INDIANA":        "IN",
	"IOWA":           "IA",
	"KANSAS":         "KS",
	"KENTUCKY":       "KY",
	"LOUISIANA":      "LA",
	"MAINE":          "ME",
	"MARYLAND":       "MD",
	"MASSACHUSETTS":  "MA",
	"MICHIGAN":       "MI",
	"MINNESOTA":      "MN",
	"MISSISSIPPI":    "MS",
	"MISSOURI":       "MO",
	"MONTANA":        "MT",
	"NEBRASKA":       "NE",
	"NEVADA":         "NV",
	"NEW HAMPSHIRE":  "NH",
	"NEW JERSEY":     "NJ",
	"NEW MEXICO":     "NM",
	"NEW YORK":       "NY",
	"NORTH CAROLINA": "NC",
	"NORTH DAKOTA":   "ND",
	"OHIO":           "OH",
	"OKLAHOMA":       "OK",
	"OREGON":         "OR",
	"PENNSYLVANIA":   "PA",
	"RHODE ISLAND":   "RI",
	"SOUTH CAROLINA": "SC",
	"SOUTH DAKOTA":   "SD",
	"TENNESSEE":      "TN",
	"TEXAS":          "TX",
	"UTAH":           "UT",
	"VERMONT":        "VT",
	"VIRGINIA":       "VA",
	"WASHINGTON":     "WA",
	"WEST VIRGINIA":  "WV",
	"WISCONSIN":      "WI",
	"WYOMING":        "WY",
}

// StateCode canonicalizes a state cell to an upper-case code.
// Two-character input is returned as-is, full state names map through the
// table, anything else is truncated to its first two characters. Absent → nil.
func StateCode(v model.Value) *string {
	s := strings.ToUpper(v.Text())
	if s == "" {
		return nil
	}
	if len(s) == 2 {
		return &s
	}
	if code, ok := stateNames[s]; ok {
		return &code
	}
	r := []rune(s)
	if len(r) > 2 {
		r = r[:2]
	}
	code := string(r)
	return &code
}

// Text returns the trimmed text of a cell, or nil when absent.
func Text(v model.Value) *string {
	s := v.Text()
	if s == "" {
		return nil
	}
	return &s
}
