package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occupancy-classifier/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "data", "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")

	store, err := New(path)
	require.NoError(t, err)
	defer store.Close()

	assert.NotNil(t, store.db)
	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestNew_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := New(filepath.Join(blocker, "events.db"))
	assert.Error(t, err)
}

func TestStore_Close(t *testing.T) {
	store, err := New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)

	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close(), "closing twice")
	assert.NoError(t, (&Store{}).Close(), "nil db")
}

func TestHouseholds(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.PutHousehold(model.Household{ID: 20, MultipleOccupancy: true}))
	require.NoError(t, store.PutHousehold(model.Household{ID: 3}))
	require.NoError(t, store.PutHousehold(model.Household{ID: -1}))
	require.NoError(t, store.PutHousehold(model.Household{ID: 3, MultipleOccupancy: true}))

	got, err := store.Households()
	require.NoError(t, err)
	assert.Equal(t, []model.Household{
		{ID: -1},
		{ID: 3, MultipleOccupancy: true},
		{ID: 20, MultipleOccupancy: true},
	}, got)
}

func eventIDs(events []model.MotionEvent) []int64 {
	ids := make([]int64, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func TestMotionEventsFor(t *testing.T) {
	store := newStore(t)
	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	events := []model.MotionEvent{
		{ID: 1, HomeID: 2, Timestamp: base.Add(2 * time.Hour), Location: "kitchen"},
		{ID: 2, HomeID: 1, Timestamp: base, Location: "hall"},
		{ID: 3, HomeID: 2, Timestamp: base, Location: "bedroom"},
		{ID: 4, HomeID: 2, Timestamp: base.Add(time.Hour), Location: "kitchen"},
		{ID: 5, HomeID: 2, Timestamp: base.Add(time.Hour), Location: "bathroom"},
		{ID: 6, HomeID: 3, Timestamp: base, Location: "hall"},
	}
	require.NoError(t, store.PutMotion(events...))

	home2, err := store.MotionEventsFor(2)
	require.NoError(t, err)
	for _, e := range home2 {
		assert.Equal(t, int64(2), e.HomeID)
	}
	assert.Equal(t, []int64{3, 4, 5, 1}, eventIDs(home2))
	assert.True(t, home2[0].Timestamp.Equal(base))
	assert.Equal(t, "bedroom", home2[0].Location)

	home1, err := store.MotionEventsFor(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, eventIDs(home1))

	none, err := store.MotionEventsFor(99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPutMotion_ReplacesByID(t *testing.T) {
	store := newStore(t)
	base := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutMotion(
		model.MotionEvent{ID: 1, HomeID: 1, Timestamp: base, Location: "hall"},
		model.MotionEvent{ID: 2, HomeID: 1, Timestamp: base.Add(time.Hour), Location: "kitchen"},
	))

	// corrected timestamp
	require.NoError(t, store.PutMotion(model.MotionEvent{ID: 1, HomeID: 1, Timestamp: base.Add(2 * time.Hour), Location: "hall"}))
	got, err := store.MotionEventsFor(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1}, eventIDs(got))
	assert.True(t, got[1].Timestamp.Equal(base.Add(2*time.Hour)))

	// moved to another household
	require.NoError(t, store.PutMotion(model.MotionEvent{ID: 2, HomeID: 7, Timestamp: base, Location: "kitchen"}))
	got, err = store.MotionEventsFor(1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, eventIDs(got))
	moved, err := store.MotionEventsFor(7)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, eventIDs(moved))

	// identical re-put is idempotent
	require.NoError(t, store.PutMotion(model.MotionEvent{ID: 2, HomeID: 7, Timestamp: base, Location: "kitchen"}))
	moved, err = store.MotionEventsFor(7)
	require.NoError(t, err)
	assert.Len(t, moved, 1)
}

func TestMotionEvents_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := New(path)
	require.NoError(t, err)
	require.NoError(t, store.PutHousehold(model.Household{ID: 1}))
	require.NoError(t, store.PutMotion(model.MotionEvent{ID: 1, HomeID: 1, Timestamp: time.Unix(0, 0).UTC(), Location: "hall"}))
	require.NoError(t, store.Close())

	store, err = New(path)
	require.NoError(t, err)
	defer store.Close()

	hh, err := store.Households()
	require.NoError(t, err)
	assert.Len(t, hh, 1)
	ev, err := store.MotionEventsFor(1)
	require.NoError(t, err)
	assert.Len(t, ev, 1)
}

func TestIDKeyOrdering(t *testing.T) {
	values := []int64{-5, -1, 0, 1, 255, 256, 1 << 40}
	for i := 1; i < len(values); i++ {
		assert.Less(t, string(idKey(values[i-1])), string(idKey(values[i])))
	}
}

func TestConcurrentAccess(t *testing.T) {
	store := newStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(home int64) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				e := model.MotionEvent{ID: home*100 + int64(i), HomeID: home, Timestamp: base.Add(time.Duration(i) * time.Minute)}
				if err := store.PutMotion(e); err != nil {
					t.Errorf("put motion: %v", err)
					return
				}
			}
		}(int64(g))
	}
	wg.Wait()

	for home := int64(0); home < 4; home++ {
		events, err := store.MotionEventsFor(home)
		require.NoError(t, err)
		assert.Len(t, events, 25)
	}
}

func BenchmarkPutMotion(b *testing.B) {
	store, err := New(filepath.Join(b.TempDir(), "events.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer store.Close()

	base := time.Now()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = store.PutMotion(model.MotionEvent{ID: int64(i), HomeID: int64(i % 50), Timestamp: base.Add(time.Duration(i) * time.Second)})
	}
}
