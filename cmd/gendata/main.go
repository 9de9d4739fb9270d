package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"occupancy-classifier/internal/common"
	"occupancy-classifier/internal/model"
	"occupancy-classifier/internal/source"
	"occupancy-classifier/internal/storage"
)

var rooms = []string{"kitchen", "living_room", "bedroom", "bathroom", "hallway", "spare_room", "study"}

func main() {
	var (
		format     = flag.String("format", common.SourceSQLite, "Output format: sqlite, boltdb, csv")
		outPath    = flag.String("out", common.DefaultDataPath, "Output file (sqlite, boltdb) or directory (csv)")
		households = flag.Int("households", 200, "Number of households")
		multiple   = flag.Float64("multiple-ratio", 0.35, "Share of multiple-occupancy households")
		days       = flag.Int("days", 14, "Days of motion history per household")
		seed       = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *households < 1 || *multiple <= 0 || *multiple >= 1 || *days < 1 {
		log.Fatal().Msg("households and days must be positive and multiple-ratio must be in (0, 1)")
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	rel := generate(rand.New(rand.NewSource(*seed)), *households, *multiple, end.AddDate(0, 0, -*days), end)

	if err := write(*format, *outPath, rel); err != nil {
		log.Fatal().Err(err).Msg("failed to write sample data")
	}

	log.Info().
		Str("format", *format).
		Str("out", *outPath).
		Int("households", len(rel.Households)).
		Int("motion_events", len(rel.Motion)).
		Msg("Sample data generated")
}

func write(format, path string, rel *source.Relations) error {
	switch format {
	case common.SourceSQLite:
		return source.WriteSQLite(context.Background(), path, rel)
	case common.SourceCSV:
		return source.WriteCSV(path, rel)
	case common.SourceBoltDB:
		store, err := storage.New(path)
		if err != nil {
			return err
		}
		defer store.Close()
		return source.WriteBolt(store, rel)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// generate simulates sensor activity. Multiple-occupancy homes are busier,
// use more rooms and stay active later into the night.
func generate(rng *rand.Rand, n int, multipleRatio float64, start, end time.Time) *source.Relations {
	rel := &source.Relations{}
	var eventID int64

	for id := int64(1); id <= int64(n); id++ {
		multiple := rng.Float64() < multipleRatio
		rel.Households = append(rel.Households, model.Household{ID: id, MultipleOccupancy: multiple})

		// Some homes report nothing at all.
		if rng.Float64() < 0.03 {
			continue
		}

		roomCount, rate := 3, 1.5
		if multiple {
			roomCount, rate = 5, 3.0
		}
		homeRooms := rooms[:roomCount+rng.Intn(2)]

		for day := start; day.Before(end); day = day.Add(24 * time.Hour) {
			for hour := 0; hour < 24; hour++ {
				events := poisson(rng, rate*hourWeight(hour, multiple))
				for e := 0; e < events; e++ {
					eventID++
					offset := time.Duration(hour)*time.Hour + time.Duration(rng.Intn(3600))*time.Second
					rel.Motion = append(rel.Motion, model.MotionEvent{
						ID:        eventID,
						HomeID:    id,
						Timestamp: day.Add(offset),
						Location:  homeRooms[rng.Intn(len(homeRooms))],
					})
				}
			}
		}
	}
	return rel
}

func hourWeight(hour int, multiple bool) float64 {
	switch {
	case hour < 6:
		if multiple {
			return 0.15
		}
		return 0.05
	case hour < 9:
		return 1.0
	case hour < 17:
		return 0.4
	case hour < 23:
		if multiple {
			return 1.2
		}
		return 0.8
	default:
		return 0.3
	}
}

// poisson draws by Knuth's method; lambda stays small here.
func poisson(rng *rand.Rand, lambda float64) int {
	l := math.Exp(-lambda)
	k, p := 0, 1.0
	for {
		p *= rng.Float64()
		if p <= l {
			return k
		}
		k++
	}
}
