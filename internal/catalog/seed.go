package catalog

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed seed/districts.csv seed/crops.json
var seedFS embed.FS

// LoadEmbedded seeds the store with the built-in survey and crop catalog.
func LoadEmbedded(ctx context.Context, s *Store) error {
	csvData, err := seedFS.ReadFile("seed/districts.csv")
	if err != nil {
		return fmt.Errorf("catalog: read embedded survey: %w", err)
	}
	rows, err := ParseDistrictsCSV(bytes.NewReader(csvData))
	if err != nil {
		return err
	}
	if err := s.ReplaceDistricts(ctx, rows); err != nil {
		return err
	}

	cropData, err := seedFS.ReadFile("seed/crops.json")
	if err != nil {
		return fmt.Errorf("catalog: read embedded crops: %w", err)
	}
	crops, err := ParseCropsJSON(bytes.NewReader(cropData))
	if err != nil {
		return err
	}
	s.SetCrops(crops)
	return nil
}

// LoadDir loads districts.csv and crops.json from a catalog directory,
// keeping whichever of the two files is present. Missing files leave the
// current data in place so a partial upload cannot wipe the catalog.
func LoadDir(ctx context.Context, s *Store, dir string) error {
	loaded := 0

	csvPath := filepath.Join(dir, "districts.csv")
	if data, err := os.ReadFile(csvPath); err == nil {
		rows, err := ParseDistrictsCSV(bytes.NewReader(data))
		if err != nil {
			return err
		}
		if err := s.ReplaceDistricts(ctx, rows); err != nil {
			return err
		}
		loaded++
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("catalog: read %s: %w", csvPath, err)
	}

	cropPath := filepath.Join(dir, "crops.json")
	if data, err := os.ReadFile(cropPath); err == nil {
		crops, err := ParseCropsJSON(bytes.NewReader(data))
		if err != nil {
			return err
		}
		s.SetCrops(crops)
		loaded++
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("catalog: read %s: %w", cropPath, err)
	}

	if loaded == 0 {
		return fmt.Errorf("catalog: no districts.csv or crops.json under %s", dir)
	}
	return nil
}
