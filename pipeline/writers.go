// Package pipeline serializes accepted records to the output artifacts.
package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aluiziolira/go-scrape-bikes/models"
)

// csvHeader lists the record's field names in struct order; it doubles
// as the CSV header row.
var csvHeader = []string{"name", "price", "availability", "image_url", "detail_url", "specs"}

// SaveJSON writes the records as a single indented JSON array in
// accumulation order. An empty run still produces a file holding [].
func SaveJSON(path string, bikes []*models.Bike) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	if bikes == nil {
		bikes = []*models.Bike{}
	}
	data, err := json.MarshalIndent(bikes, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}

// SaveCSV writes the records with a header row of the record's field
// names. An empty result yields no CSV file at all.
func SaveCSV(path string, bikes []*models.Bike) error {
	if len(bikes) == 0 {
		return nil
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, bike := range bikes {
		record, err := csvRecord(bike)
		if err != nil {
			return err
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// SaveAll writes both artifacts into a directory: bikes.json always,
// bikes.csv only when there are records.
func SaveAll(dir string, bikes []*models.Bike) error {
	if err := SaveJSON(filepath.Join(dir, "bikes.json"), bikes); err != nil {
		return err
	}
	return SaveCSV(filepath.Join(dir, "bikes.csv"), bikes)
}

func csvRecord(bike *models.Bike) ([]string, error) {
	price := ""
	if bike.Price != nil {
		price = strconv.FormatFloat(*bike.Price, 'f', -1, 64)
	}

	specs := ""
	if len(bike.Specs) > 0 {
		encoded, err := json.Marshal(bike.Specs)
		if err != nil {
			return nil, fmt.Errorf("encode specs: %w", err)
		}
		specs = string(encoded)
	}

	return []string{
		bike.Name,
		price,
		bike.Availability,
		bike.ImageURL,
		bike.DetailURL,
		specs,
	}, nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
