package normalize

import (
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

var numericCleaner = strings.NewReplacer(",", "", "$", "")

func parseFloat(v model.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	s := strings.TrimSpace(numericCleaner.Replace(v.Text()))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// CleanNumeric converts a cell to an integer, truncating toward zero.
// Strings may carry thousands separators and a dollar sign. Absent cells and
// values that do not parse return def, as do values outside the 32-bit
// range of the count columns.
func CleanNumeric(v model.Value, def int) int {
	if v.IsAbsent() {
		return def
	}
	f, ok := parseFloat(v)
	if !ok {
		zap.L().Warn("normalize: could not convert to numeric", zap.String("value", v.Text()))
		return def
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		zap.L().Warn("normalize: numeric value out of range", zap.String("value", v.Text()))
		return def
	}
	return int(f)
}

// CleanFloat is CleanNumeric without truncation.
func CleanFloat(v model.Value, def float64) float64 {
	if v.IsAbsent() {
		return def
	}
	f, ok := parseFloat(v)
	if !ok {
		zap.L().Warn("normalize: could not convert to float", zap.String("value", v.Text()))
		return def
	}
	return f
}
