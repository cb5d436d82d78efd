// Package benchmark provides performance benchmarks for the seafilter pipeline.
package benchmark

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/seaflowlab/seafilter/internal/bloom"
	"github.com/seaflowlab/seafilter/internal/evtio"
	"github.com/seaflowlab/seafilter/internal/filter"
	"github.com/seaflowlab/seafilter/internal/pipeline"
	"github.com/seaflowlab/seafilter/internal/popdb"
	"github.com/seaflowlab/seafilter/pkg/particle"
)

// generateTestTable builds a table of n random particles.
func generateTestTable(n int) *particle.Table {
	rng := rand.New(rand.NewSource(42))
	tbl := particle.New(n)
	for i := 0; i < n; i++ {
		var row [particle.NumChannels]float64
		for c := range row {
			row[c] = float64(rng.Intn(particle.MaxChannelValue + 1))
		}
		tbl.AppendRow(row)
	}
	return tbl
}

func benchParams(b *testing.B) *filter.ParamSet {
	b.Helper()
	mk := func(q, notch float64) filter.Params {
		return filter.Params{
			Quantile: q, Width: 5000,
			NotchSmallD1: notch, NotchSmallD2: notch,
			NotchLargeD1: notch * 1.5, NotchLargeD2: notch * 1.5,
			OffsetSmallD1: 100, OffsetSmallD2: 100,
			OffsetLargeD1: 10000, OffsetLargeD2: 10000,
		}
	}
	ps, err := filter.NewParamSet("bench",
		[]filter.Params{mk(2.5, 0.6), mk(50, 0.7), mk(97.5, 0.8)})
	if err != nil {
		b.Fatal(err)
	}
	return ps
}

// BenchmarkDecode measures EVT decoding throughput.
func BenchmarkDecode(b *testing.B) {
	var buf bytes.Buffer
	if err := evtio.Encode(&buf, generateTestTable(40000)); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		if _, err := evtio.Decode(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkMarkFocused measures classification throughput.
// Typical EVT files carry about 40,000 particles.
func BenchmarkMarkFocused(b *testing.B) {
	tbl := generateTestTable(40000)
	params := benchParams(b)

	b.ResetTimer()
	b.ReportAllocs()

	totalParticles := 0
	for i := 0; i < b.N; i++ {
		c := filter.MarkFocused(tbl, params)
		totalParticles += len(c.Noise)
	}

	b.ReportMetric(float64(totalParticles)/b.Elapsed().Seconds(), "particles/sec")
}

// BenchmarkSkipSetLookup measures bloom skip set lookup performance.
func BenchmarkSkipSetLookup(b *testing.B) {
	ids := make([]string, 10000)
	for i := range ids {
		ids[i] = fmt.Sprintf("2014_185/2014-07-04T%02d-%02d-00+00-00", i/60%24, i%60)
	}
	skip := bloom.NewSkipSet(ids, nil)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, err := skip.ShouldSkip(ctx, ids[i%len(ids)]); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkPipelineRun measures end-to-end filtering throughput over
// object storage.
func BenchmarkPipelineRun(b *testing.B) {
	store, cleanup := getBenchmarkStorage(b, "pipeline")
	defer cleanup()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := evtio.Encode(&buf, generateTestTable(10000)); err != nil {
		b.Fatal(err)
	}
	var keys []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("2014_185/2014-07-04T00-00-%02d+00-00", i)
		if err := store.Put(ctx, key, buf.Bytes()); err != nil {
			b.Fatal(err)
		}
		keys = append(keys, key)
	}

	tmpDir, err := os.MkdirTemp("", "seafilter-bench-run-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	db, err := popdb.Open(filepath.Join(tmpDir, "popcycle.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer db.Close()

	b.ResetTimer()
	b.ReportAllocs()

	totalFiles := 0
	for i := 0; i < b.N; i++ {
		stats, err := pipeline.Run(ctx, pipeline.Options{
			Files:    keys,
			DB:       db,
			Params:   benchParams(b),
			Workers:  4,
			Storage:  store,
			Progress: &bytes.Buffer{},
		})
		if err != nil {
			b.Fatal(err)
		}
		totalFiles += stats.FilesParsed
	}

	b.ReportMetric(float64(totalFiles)/b.Elapsed().Seconds(), "files/sec")
}
