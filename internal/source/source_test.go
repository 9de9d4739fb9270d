package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"occupancy-classifier/internal/model"
	"occupancy-classifier/internal/storage"
)

func sample() *Relations {
	base := time.Date(2024, 2, 1, 7, 30, 0, 0, time.UTC)
	return &Relations{
		Households: []model.Household{
			{ID: 1, MultipleOccupancy: true},
			{ID: 2, MultipleOccupancy: false},
		},
		Motion: []model.MotionEvent{
			{ID: 10, HomeID: 1, Timestamp: base, Location: "kitchen"},
			{ID: 11, HomeID: 1, Timestamp: base.Add(90 * time.Minute), Location: "living_room"},
			{ID: 12, HomeID: 2, Timestamp: base.Add(time.Hour), Location: "bedroom"},
		},
	}
}

func assertRelations(t *testing.T, want, got *Relations) {
	t.Helper()
	assert.Equal(t, want.Households, got.Households)
	require.Len(t, got.Motion, len(want.Motion))
	for i := range want.Motion {
		assert.Equal(t, want.Motion[i].ID, got.Motion[i].ID)
		assert.Equal(t, want.Motion[i].HomeID, got.Motion[i].HomeID)
		assert.Equal(t, want.Motion[i].Location, got.Motion[i].Location)
		assert.True(t, want.Motion[i].Timestamp.Equal(got.Motion[i].Timestamp),
			"event %d: want %v, got %v", want.Motion[i].ID, want.Motion[i].Timestamp, got.Motion[i].Timestamp)
	}
}

func TestSQLite_WriteThenLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "occupancy.db")

	require.NoError(t, WriteSQLite(ctx, path, sample()))
	// Writing again replaces rows instead of failing on duplicate ids.
	require.NoError(t, WriteSQLite(ctx, path, sample()))

	got, err := LoadSQLite(ctx, path)
	require.NoError(t, err)
	assertRelations(t, sample(), got)
}

func TestSQLite_LegacyDatetimeColumn(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
CREATE TABLE households(id INTEGER PRIMARY KEY, multiple_occupancy BOOLEAN);
CREATE TABLE motion(id INTEGER PRIMARY KEY, home_id INTEGER, datetime DATETIME, location TEXT);
INSERT INTO households VALUES (1, 1), (2, 0);
INSERT INTO motion VALUES (1, 1, '2024-02-01 07:30:00', 'kitchen');
INSERT INTO motion VALUES (2, 2, '2024-02-01 23:05:10.5', 'hall');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	got, err := LoadSQLite(ctx, path)
	require.NoError(t, err)
	require.Len(t, got.Households, 2)
	assert.True(t, got.Households[0].MultipleOccupancy)
	assert.False(t, got.Households[1].MultipleOccupancy)
	require.Len(t, got.Motion, 2)
	assert.Equal(t, 7, got.Motion[0].Timestamp.UTC().Hour())
	assert.Equal(t, 23, got.Motion[1].Timestamp.UTC().Hour())
}

func TestSQLite_MissingTables(t *testing.T) {
	_, err := LoadSQLite(context.Background(), filepath.Join(t.TempDir(), "empty.db"))
	assert.Error(t, err)
}

func TestCSV_WriteThenLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "export")
	require.NoError(t, WriteCSV(dir, sample()))

	got, err := LoadCSV(dir)
	require.NoError(t, err)
	assertRelations(t, sample(), got)
}

func TestCSV_ColumnOrderAndLayouts(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, HouseholdsFile),
		[]byte("multiple_occupancy,id\nTrue,4\nfalse,5\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, MotionFile),
		[]byte("location,datetime,home_id,id\nhall,2024-01-01 08:15:00,4,1\nkitchen,2024-01-01T21:00:00+02:00,5,2\n"), 0o600))

	got, err := LoadCSV(dir)
	require.NoError(t, err)
	assert.Equal(t, []model.Household{{ID: 4, MultipleOccupancy: true}, {ID: 5}}, got.Households)
	require.Len(t, got.Motion, 2)
	assert.Equal(t, "hall", got.Motion[0].Location)
	assert.Equal(t, 8, got.Motion[0].Timestamp.Hour())
	assert.Equal(t, 19, got.Motion[1].Timestamp.UTC().Hour())
}

func TestCSV_Errors(t *testing.T) {
	tests := []struct {
		name       string
		households string
		motion     string
	}{
		{"missing column", "id\n1\n", "id,home_id,datetime,location\n"},
		{"bad label", "id,multiple_occupancy\n1,maybe\n", "id,home_id,datetime,location\n"},
		{"bad timestamp", "id,multiple_occupancy\n1,true\n", "id,home_id,datetime,location\n1,1,yesterday,hall\n"},
		{"bad home id", "id,multiple_occupancy\n1,true\n", "id,home_id,datetime,location\n1,x,2024-01-01 08:00,hall\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, HouseholdsFile), []byte(tt.households), 0o600))
			require.NoError(t, os.WriteFile(filepath.Join(dir, MotionFile), []byte(tt.motion), 0o600))
			_, err := LoadCSV(dir)
			assert.Error(t, err)
		})
	}

	_, err := LoadCSV(t.TempDir())
	assert.Error(t, err, "missing files")
}

func TestBolt_WriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	store, err := storage.New(path)
	require.NoError(t, err)
	require.NoError(t, WriteBolt(store, sample()))
	require.NoError(t, store.Close())

	got, err := Load(context.Background(), Config{Kind: "boltdb", Path: path})
	require.NoError(t, err)
	assertRelations(t, sample(), got)
}

func TestLoadBolt_OnlyLabelledHouseholds(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer store.Close()

	rel := sample()
	require.NoError(t, WriteBolt(store, rel))
	require.NoError(t, store.PutMotion(model.MotionEvent{ID: 99, HomeID: 42, Timestamp: time.Unix(0, 0).UTC(), Location: "hall"}))

	got, err := LoadBolt(store)
	require.NoError(t, err)
	assertRelations(t, rel, got)
}

func TestClient_Fetch(t *testing.T) {
	want := sample()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/households":
			_ = json.NewEncoder(w).Encode(want.Households)
		case "/motion":
			_ = json.NewEncoder(w).Encode(want.Motion)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	got, err := NewClient(server.URL+"/", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assertRelations(t, want, got)

	got, err = Load(context.Background(), Config{Kind: "http", URL: server.URL})
	require.NoError(t, err)
	assert.Len(t, got.Motion, 3)
}

func TestClient_FetchTimestampLayouts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/households":
			_, _ = w.Write([]byte(`[{"id": 1, "multiple_occupancy": true}]`))
		case "/motion":
			_, _ = w.Write([]byte(`[
				{"id": 1, "home_id": 1, "datetime": "2024-02-01 07:30:00", "location": "kitchen"},
				{"id": 2, "home_id": 1, "datetime": "2024-02-01T08:00:00Z", "location": "hall"},
				{"id": 3, "home_id": 1, "datetime": 1706776200, "location": "hall"}
			]`))
		}
	}))
	defer server.Close()

	got, err := NewClient(server.URL, time.Second).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, got.Motion, 3)
	assert.True(t, got.Motion[0].Timestamp.Equal(time.Date(2024, 2, 1, 7, 30, 0, 0, time.UTC)))
	assert.True(t, got.Motion[1].Timestamp.Equal(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, got.Motion[2].Timestamp.Equal(time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)))
}

func TestClient_FetchBadTimestamp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/motion" {
			_, _ = w.Write([]byte(`[{"id": 7, "home_id": 1, "datetime": "yesterday", "location": "hall"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motion event 7")
}

func TestClient_FetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestLoad_UnknownKind(t *testing.T) {
	_, err := Load(context.Background(), Config{Kind: "postgres"})
	assert.Error(t, err)
}

func TestTimestampValue(t *testing.T) {
	ts, err := timestampValue(int64(86400))
	require.NoError(t, err)
	assert.Equal(t, time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), ts)

	_, err = timestampValue(true)
	assert.Error(t, err)
}
