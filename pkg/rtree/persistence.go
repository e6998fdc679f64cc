package rtree

import (
	"encoding/gob"
	"fmt"
	"os"
	"time"

	"github.com/kass/go-aqi-viz/pkg/models"
)

// SnapshotData is the serializable form of a directory snapshot
type SnapshotData struct {
	Stations  []models.Station `json:"stations"`
	FetchedAt time.Time        `json:"fetched_at"`
	Count     int              `json:"count"`
}

// SaveToFile writes the indexed snapshot to a gob file, preserving station order
func (g *StationIndex) SaveToFile(filename string) error {
	return SaveSnapshot(filename, g.Directory())
}

// SaveSnapshot writes dir to a gob file
func SaveSnapshot(filename string, dir models.Directory) error {
	data := SnapshotData{
		Stations:  dir.Stations,
		FetchedAt: dir.FetchedAt,
		Count:     len(dir.Stations),
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	return nil
}

// LoadSnapshot reads a directory snapshot written by SaveSnapshot
func LoadSnapshot(filename string) (models.Directory, error) {
	file, err := os.Open(filename)
	if err != nil {
		return models.Directory{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var data SnapshotData
	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&data); err != nil {
		return models.Directory{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if data.Count != len(data.Stations) {
		return models.Directory{}, fmt.Errorf("corrupt snapshot: header says %d stations, found %d", data.Count, len(data.Stations))
	}

	return models.Directory{Stations: data.Stations, FetchedAt: data.FetchedAt}, nil
}

// LoadFromFile builds an index from a snapshot file
func LoadFromFile(filename string) (*StationIndex, error) {
	dir, err := LoadSnapshot(filename)
	if err != nil {
		return nil, err
	}
	return New(dir), nil
}
