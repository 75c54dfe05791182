package normalize

import (
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

// Latitude returns the cell as a latitude in [-90, 90], or nil.
func Latitude(v model.Value) *float64 {
	return bounded(v, 90, "latitude")
}

// Longitude returns the cell as a longitude in [-180, 180], or nil.
func Longitude(v model.Value) *float64 {
	return bounded(v, 180, "longitude")
}

func bounded(v model.Value, limit float64, name string) *float64 {
	if v.IsAbsent() {
		return nil
	}
	f, ok := parseFloat(v)
	if !ok {
		zap.L().Warn("normalize: coordinate is not numeric",
			zap.String("field", name),
			zap.String("value", v.Text()),
		)
		return nil
	}
	if f < -limit || f > limit {
		zap.L().Warn("normalize: coordinate out of range",
			zap.String("field", name),
			zap.Float64("value", f),
		)
		return nil
	}
	return &f
}
