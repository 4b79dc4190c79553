// hdd_survey.go - Timing survey across HDD presets, exported as CSV or Parquet
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	dataframe "github.com/rocketlaunchr/dataframe-go"
	"github.com/rocketlaunchr/dataframe-go/exports"
	"github.com/xitongsys/parquet-go-source/local"
	"golang.org/x/sync/errgroup"
)

// HDDSurveyGeometry is the logical disk every preset is surveyed with.
type HDDSurveyGeometry struct {
	Tracks, HPC, SPT uint32
}

// DefaultSurveyGeometry is an ST-225 sized 20MB XT disk.
var DefaultSurveyGeometry = HDDSurveyGeometry{Tracks: 615, HPC: 4, SPT: 17}

// HDDSurveyResult is one preset's measurements in microseconds.
type HDDSurveyResult struct {
	Preset   string
	Zones    int
	ColdRead float64
	WarmRead float64
	FullSeek float64
	SeqWrite float64
}

// surveyClock is a private time base so each preset runs independently.
type surveyClock struct {
	tsc uint64
	hz  uint64
}

func (c *surveyClock) Now() uint64 { return c.tsc }
func (c *surveyClock) Hz() uint64  { return c.hz }

func (c *surveyClock) advance(us float64) {
	c.tsc += uint64(us * float64(c.hz) / 1e6)
}

// surveyPreset measures a cold 8-sector read, the same read again, a full
// stroke seek and a 128-sector sequential write.
func surveyPreset(p *HDDPreset, geom HDDSurveyGeometry) (res HDDSurveyResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("survey %s: %v", p.InternalName, r)
		}
	}()
	clk := &surveyClock{hz: 4772727}
	h := NewHDDTiming(geom.Tracks, geom.HPC, geom.SPT, p, clk)
	total := geom.Tracks * geom.HPC * geom.SPT
	mid := total / 2

	res.Preset = p.InternalName
	res.Zones = h.Zones()
	res.ColdRead = h.TimingRead(mid, 8)
	clk.advance(res.ColdRead)
	res.WarmRead = h.TimingRead(mid, 8)
	clk.advance(res.WarmRead)
	res.FullSeek = h.SeekTime(total-1, HDDOpSeek, false, 0)
	clk.advance(res.FullSeek)
	for i := range uint32(16) {
		res.SeqWrite += h.TimingWrite(i*8, 8)
	}
	return res, nil
}

// RunHDDSurvey surveys every preset in parallel. Results keep catalog
// order.
func RunHDDSurvey(ctx context.Context, presets []HDDPreset, geom HDDSurveyGeometry) ([]HDDSurveyResult, error) {
	results := make([]HDDSurveyResult, len(presets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range presets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := surveyPreset(&presets[i], geom)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SurveyFrame converts survey results to a DataFrame.
func SurveyFrame(results []HDDSurveyResult) *dataframe.DataFrame {
	n := len(results)
	names := make([]any, n)
	zones := make([]any, n)
	cold := make([]any, n)
	warm := make([]any, n)
	seek := make([]any, n)
	write := make([]any, n)
	for i, r := range results {
		names[i] = r.Preset
		zones[i] = int64(r.Zones)
		cold[i] = r.ColdRead
		warm[i] = r.WarmRead
		seek[i] = r.FullSeek
		write[i] = r.SeqWrite
	}
	return dataframe.NewDataFrame(
		dataframe.NewSeriesString("preset", nil, names...),
		dataframe.NewSeriesInt64("zones", nil, zones...),
		dataframe.NewSeriesFloat64("cold_read_us", nil, cold...),
		dataframe.NewSeriesFloat64("warm_read_us", nil, warm...),
		dataframe.NewSeriesFloat64("seek_us", nil, seek...),
		dataframe.NewSeriesFloat64("write_us", nil, write...),
	)
}

// WriteSurvey exports results to path, choosing CSV or Parquet by
// extension.
func WriteSurvey(ctx context.Context, path string, results []HDDSurveyResult) error {
	df := SurveyFrame(results)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("hdd survey: %w", err)
		}
		if err := exports.ExportToCSV(ctx, f, df); err != nil {
			f.Close()
			return fmt.Errorf("hdd survey: %w", err)
		}
		return f.Close()
	case ".parquet":
		fw, err := local.NewLocalFileWriter(path)
		if err != nil {
			return fmt.Errorf("hdd survey: %w", err)
		}
		if err := exports.ExportToParquet(ctx, fw, df); err != nil {
			fw.Close()
			return fmt.Errorf("hdd survey: %w", err)
		}
		return fw.Close()
	}
	return fmt.Errorf("hdd survey %s: unsupported format", path)
}
