package features

// Schema is the column order shared by aggregation, scaling, training and
// importance reporting. Values() emits fields in this order.
var Schema = [...]string{
	"motion_count",
	"time_range_hours",
	"unique_locations",
	"activity_hours",
	"events_per_hour",
	"morning_activity",
	"afternoon_activity",
	"evening_activity",
	"night_activity",
}

const NumFeatures = len(Schema)

// Names returns a copy of Schema as a slice.
func Names() []string {
	out := make([]string, NumFeatures)
	copy(out, Schema[:])
	return out
}

type FeatureVector struct {
	HomeID            int64   `json:"home_id"`
	MotionCount       float64 `json:"motion_count"`
	TimeRangeHours    float64 `json:"time_range_hours"`
	UniqueLocations   float64 `json:"unique_locations"`
	ActivityHours     float64 `json:"activity_hours"`
	EventsPerHour     float64 `json:"events_per_hour"`
	MorningActivity   float64 `json:"morning_activity"`
	AfternoonActivity float64 `json:"afternoon_activity"`
	EveningActivity   float64 `json:"evening_activity"`
	NightActivity     float64 `json:"night_activity"`
}

// Values returns the numeric fields in Schema order.
func (f FeatureVector) Values() []float64 {
	return []float64{
		f.MotionCount,
		f.TimeRangeHours,
		f.UniqueLocations,
		f.ActivityHours,
		f.EventsPerHour,
		f.MorningActivity,
		f.AfternoonActivity,
		f.EveningActivity,
		f.NightActivity,
	}
}

// Zero returns the all-zero vector for a household with no motion events.
func Zero(homeID int64) FeatureVector {
	return FeatureVector{HomeID: homeID}
}
