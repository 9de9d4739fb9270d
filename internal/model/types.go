// Package model holds the input records the classifier consumes: labelled
// households and the raw motion events reported by their sensors.
package model

import "time"

// Household is one labelled unit of occupancy.
type Household struct {
	ID                int64 `json:"id"`
	MultipleOccupancy bool  `json:"multiple_occupancy"`
}

// Label returns 1 for multiple occupancy and 0 for single occupancy.
func (h Household) Label() int {
	if h.MultipleOccupancy {
		return 1
	}
	return 0
}

// MotionEvent is a single timestamped sensor trigger.
type MotionEvent struct {
	ID        int64     `json:"id"`
	HomeID    int64     `json:"home_id"`
	Timestamp time.Time `json:"datetime"`
	Location  string    `json:"location"`
}
