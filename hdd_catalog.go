// hdd_catalog.go - Custom HDD preset catalogs loaded from Parquet or CSV
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/imports"
	"github.com/xitongsys/parquet-go-source/local"
)

var (
	ErrCatalogEmpty  = errors.New("hdd catalog: no presets")
	ErrCatalogColumn = errors.New("hdd catalog: missing column")
)

// Required catalog columns, named after the HDDPreset fields.
var hddCatalogColumns = []string{
	"name", "internal_name", "zones", "avg_spt", "heads", "rpm",
	"full_stroke_ms", "track_seek_ms", "cache_segments", "cache_segment_size", "max_multiple",
}

// LoadHDDCatalog reads presets from a .parquet or .csv file. Each row is
// validated; the optional "model" column carries the IDENTIFY model string.
func LoadHDDCatalog(ctx context.Context, path string) ([]HDDPreset, error) {
	var (
		df  *dataframe.DataFrame
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		df, err = loadCatalogParquet(ctx, path)
	case ".csv":
		df, err = loadCatalogCSV(ctx, path)
	default:
		return nil, fmt.Errorf("hdd catalog %s: unsupported format", path)
	}
	if err != nil {
		return nil, fmt.Errorf("hdd catalog %s: %w", path, err)
	}
	return presetsFromFrame(df)
}

func loadCatalogParquet(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, err
	}
	defer fr.Close()
	return imports.LoadFromParquet(ctx, fr)
}

func loadCatalogCSV(ctx context.Context, path string) (*dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imports.LoadFromCSV(ctx, f, imports.CSVLoadOptions{InferDataTypes: true})
}

func presetsFromFrame(df *dataframe.DataFrame) ([]HDDPreset, error) {
	if df == nil || len(df.Series) == 0 || df.NRows() == 0 {
		return nil, ErrCatalogEmpty
	}
	cols := make(map[string]dataframe.Series, len(df.Series))
	for _, s := range df.Series {
		cols[strings.ToLower(s.Name())] = s
	}
	for _, name := range hddCatalogColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w %q", ErrCatalogColumn, name)
		}
	}

	presets := make([]HDDPreset, 0, df.NRows())
	for row := range df.NRows() {
		str := func(col string) string {
			s, ok := cols[col]
			if !ok {
				return ""
			}
			if v := s.Value(row); v != nil {
				return fmt.Sprint(v)
			}
			return ""
		}
		num := func(col string) float64 { return catalogNumber(cols[col].Value(row)) }

		p := HDDPreset{
			Name:             str("name"),
			InternalName:     str("internal_name"),
			Model:            str("model"),
			Zones:            int(num("zones")),
			AvgSPT:           int(num("avg_spt")),
			Heads:            int(num("heads")),
			RPM:              num("rpm"),
			FullStrokeMs:     num("full_stroke_ms"),
			TrackSeekMs:      num("track_seek_ms"),
			CacheSegments:    int(num("cache_segments")),
			CacheSegmentSize: int(num("cache_segment_size")),
			MaxMultiple:      int(num("max_multiple")),
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		presets = append(presets, p)
	}
	return presets, nil
}

// catalogNumber converts whatever numeric type the importer inferred.
func catalogNumber(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
	}
	return 0
}
