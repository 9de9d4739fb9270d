package features

import (
	"fmt"
	"time"

	"occupancy-classifier/internal/model"
)

type BucketConvention int

const (
	// HalfOpen assigns every hour to exactly one bucket:
	// night [0,6), morning [6,12), afternoon [12,18), evening [18,24).
	HalfOpen BucketConvention = iota
	// Inclusive closes both ends of each bucket, so hours 6, 12 and 18 are
	// counted in two adjacent buckets.
	Inclusive
)

func (c BucketConvention) String() string {
	switch c {
	case HalfOpen:
		return "half-open"
	case Inclusive:
		return "inclusive"
	default:
		return fmt.Sprintf("BucketConvention(%d)", int(c))
	}
}

func ParseBucketConvention(s string) (BucketConvention, error) {
	switch s {
	case "", "half-open":
		return HalfOpen, nil
	case "inclusive":
		return Inclusive, nil
	default:
		return HalfOpen, fmt.Errorf("unknown bucket convention %q", s)
	}
}

type bucket struct{ lo, hi int }

var (
	morning   = bucket{6, 12}
	afternoon = bucket{12, 18}
	evening   = bucket{18, 24}
	night     = bucket{0, 6}
)

func (b bucket) contains(hour int, c BucketConvention) bool {
	if c == Inclusive {
		return hour >= b.lo && hour <= b.hi
	}
	return hour >= b.lo && hour < b.hi
}

// Aggregator reduces a household's motion events to one FeatureVector.
// Location, when set, is the zone used to derive hour of day; otherwise
// the timestamp's own zone is used.
type Aggregator struct {
	Convention BucketConvention
	Location   *time.Location
}

func (a Aggregator) hourOf(t time.Time) int {
	if a.Location != nil {
		return t.In(a.Location).Hour()
	}
	return t.Hour()
}

// Aggregate computes the feature vector for homeID from its events.
// Zero or one event yields a zero time range and a zero event rate.
func (a Aggregator) Aggregate(homeID int64, events []model.MotionEvent) FeatureVector {
	fv := FeatureVector{HomeID: homeID}
	if len(events) == 0 {
		return fv
	}

	earliest, latest := events[0].Timestamp, events[0].Timestamp
	locations := make(map[string]struct{})
	var hours [24]bool

	for _, ev := range events {
		if ev.Timestamp.Before(earliest) {
			earliest = ev.Timestamp
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}
		locations[ev.Location] = struct{}{}

		h := a.hourOf(ev.Timestamp)
		hours[h] = true
		if morning.contains(h, a.Convention) {
			fv.MorningActivity++
		}
		if afternoon.contains(h, a.Convention) {
			fv.AfternoonActivity++
		}
		if evening.contains(h, a.Convention) {
			fv.EveningActivity++
		}
		if night.contains(h, a.Convention) {
			fv.NightActivity++
		}
	}

	fv.MotionCount = float64(len(events))
	fv.TimeRangeHours = latest.Sub(earliest).Hours()
	fv.UniqueLocations = float64(len(locations))
	for _, seen := range hours {
		if seen {
			fv.ActivityHours++
		}
	}
	if fv.TimeRangeHours > 0 {
		fv.EventsPerHour = fv.MotionCount / fv.TimeRangeHours
	}
	return fv
}

// AggregateAll groups events by household and aggregates each group.
// Households without events are absent from the result.
func (a Aggregator) AggregateAll(events []model.MotionEvent) map[int64]FeatureVector {
	byHome := make(map[int64][]model.MotionEvent)
	for _, ev := range events {
		byHome[ev.HomeID] = append(byHome[ev.HomeID], ev)
	}

	out := make(map[int64]FeatureVector, len(byHome))
	for homeID, evs := range byHome {
		out[homeID] = a.Aggregate(homeID, evs)
	}
	return out
}
