package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"occupancy-classifier/internal/model"
)

const (
	HouseholdsFile = "households.csv"
	MotionFile     = "motion.csv"
)

var (
	householdColumns = []string{"id", "multiple_occupancy"}
	motionColumns    = []string{"id", "home_id", "datetime", "location"}
)

// LoadCSV reads households.csv and motion.csv from dir. Columns are found
// by header name and may appear in any order.
func LoadCSV(dir string) (*Relations, error) {
	rel := &Relations{}

	err := readCSV(filepath.Join(dir, HouseholdsFile), householdColumns, func(line int, get func(string) string) error {
		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid id: %w", line, err)
		}
		multiple, err := strconv.ParseBool(get("multiple_occupancy"))
		if err != nil {
			return fmt.Errorf("line %d: invalid multiple_occupancy: %w", line, err)
		}
		rel.Households = append(rel.Households, model.Household{ID: id, MultipleOccupancy: multiple})
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readCSV(filepath.Join(dir, MotionFile), motionColumns, func(line int, get func(string) string) error {
		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid id: %w", line, err)
		}
		homeID, err := strconv.ParseInt(get("home_id"), 10, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid home_id: %w", line, err)
		}
		ts, err := parseTimestamp(get("datetime"))
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rel.Motion = append(rel.Motion, model.MotionEvent{ID: id, HomeID: homeID, Timestamp: ts, Location: get("location")})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return rel, nil
}

func readCSV(path string, required []string, row func(line int, get func(string) string) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header of %s: %w", path, err)
	}

	// Map header indices
	indices := make(map[string]int)
	for i, col := range header {
		indices[col] = i
	}
	for _, col := range required {
		if _, ok := indices[col]; !ok {
			return fmt.Errorf("%s: missing column %q", path, col)
		}
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		get := func(col string) string { return record[indices[col]] }
		if err := row(line, get); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

// WriteCSV writes both relations into dir, creating it if needed.
func WriteCSV(dir string, rel *Relations) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	households := make([][]string, 0, len(rel.Households)+1)
	households = append(households, householdColumns)
	for _, h := range rel.Households {
		households = append(households, []string{strconv.FormatInt(h.ID, 10), strconv.FormatBool(h.MultipleOccupancy)})
	}
	if err := writeCSV(filepath.Join(dir, HouseholdsFile), households); err != nil {
		return err
	}

	motion := make([][]string, 0, len(rel.Motion)+1)
	motion = append(motion, motionColumns)
	for _, e := range rel.Motion {
		motion = append(motion, []string{
			strconv.FormatInt(e.ID, 10),
			strconv.FormatInt(e.HomeID, 10),
			e.Timestamp.Format(timestampFormat),
			e.Location,
		})
	}
	return writeCSV(filepath.Join(dir, MotionFile), motion)
}

func writeCSV(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}
