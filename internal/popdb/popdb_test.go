package popdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/internal/filter"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "popcycle.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testParams() []filter.Params {
	mk := func(q, notch float64) filter.Params {
		return filter.Params{
			Quantile: q, Width: 5000,
			BeadsFscSmall: 40000, BeadsD1: 20000, BeadsD2: 20000,
			NotchSmallD1: notch, NotchSmallD2: notch,
			NotchLargeD1: notch * 1.5, NotchLargeD2: notch * 1.5,
			OffsetSmallD1: 100, OffsetSmallD2: 100,
			OffsetLargeD1: 10000, OffsetLargeD2: 10000,
		}
	}
	return []filter.Params{mk(2.5, 0.6), mk(50, 0.7), mk(97.5, 0.8)}
}

func TestSaveAndLoadFilterParams(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	saved, err := db.SaveFilterParams(ctx, testParams())
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" {
		t.Fatal("saved parameter set should have an id")
	}

	got, err := db.LatestFilter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != saved.ID {
		t.Errorf("latest id %q, want %q", got.ID, saved.ID)
	}
	if got.Len() != 3 {
		t.Fatalf("expected 3 quantile rows, got %d", got.Len())
	}
	wantRows := saved.Rows()
	for i, p := range got.Rows() {
		if p != wantRows[i] {
			t.Errorf("row %d: got %+v, want %+v", i, p, wantRows[i])
		}
	}
}

func TestLatestFilterPicksNewestSet(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.SaveFilterParams(ctx, testParams()); err != nil {
		t.Fatal(err)
	}
	newer := testParams()
	for i := range newer {
		newer[i].Width = 2500
	}
	// Same-second saves sort by date then id lookup; force distinct dates
	// by bumping the stored date on the first set.
	if _, err := db.db.Exec(`UPDATE filter SET date = '2000-01-01T00:00:00Z' WHERE width = 5000`); err != nil {
		t.Fatal(err)
	}
	want, err := db.SaveFilterParams(ctx, newer)
	if err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestFilter(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != want.ID {
		t.Errorf("latest id %q, want newest set %q", got.ID, want.ID)
	}
	if got.Width() != 2500 {
		t.Errorf("latest width %v, want 2500", got.Width())
	}
}

func TestLatestFilterEmpty(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LatestFilter(context.Background())
	if errors.GetCode(err) != errors.CodeNoFilterParams {
		t.Fatalf("expected NO_FILTER_PARAMS, got %v", err)
	}
}

func TestSaveOppStatsAndProcessedFiles(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	quantiles := []float64{2.5, 50, 97.5}
	err := db.SaveOppStats(ctx, "2014_185/f1", 1000, 800, quantiles, []int{10, 20, 40}, "fid")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SaveOppStats(ctx, "2014_185/f2", 500, 0, quantiles, []int{0, 0, 0}, "fid"); err != nil {
		t.Fatal(err)
	}

	var ratio float64
	err = db.db.QueryRow(`SELECT opp_evt_ratio FROM opp WHERE file = ? AND quantile = 50`,
		"2014_185/f1").Scan(&ratio)
	if err != nil {
		t.Fatal(err)
	}
	if ratio != 20.0/800.0 {
		t.Errorf("ratio %v, want %v", ratio, 20.0/800.0)
	}
	err = db.db.QueryRow(`SELECT opp_evt_ratio FROM opp WHERE file = ? AND quantile = 50`,
		"2014_185/f2").Scan(&ratio)
	if err != nil {
		t.Fatal(err)
	}
	if ratio != 0 {
		t.Errorf("zero evt count should give ratio 0, got %v", ratio)
	}

	files, err := db.ProcessedFiles(ctx, "fid")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != "2014_185/f1" || files[1] != "2014_185/f2" {
		t.Errorf("processed files %v", files)
	}
	none, err := db.ProcessedFiles(ctx, "other")
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("expected no files for unknown filter id, got %v", none)
	}
}

func TestFileProcessed(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SaveOppStats(ctx, "2014_185/f1", 100, 90, []float64{50}, []int{5}, "fid"); err != nil {
		t.Fatal(err)
	}

	done, err := db.FileProcessed(ctx, "2014_185/f1", "fid")
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Error("file with opp rows should be processed")
	}
	done, err = db.FileProcessed(ctx, "2014_185/f1", "other")
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Error("file should not be processed under a different filter id")
	}
}

func TestSaveOppStatsCountMismatch(t *testing.T) {
	db := openTestDB(t)
	err := db.SaveOppStats(context.Background(), "f", 1, 1, []float64{2.5}, []int{1, 2}, "fid")
	if err == nil {
		t.Fatal("expected error for mismatched counts")
	}
}

func TestSaveOppStatsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := db.SaveOppStats(ctx, "f", 100, 90, []float64{50}, []int{5}, "fid"); err != nil {
			t.Fatal(err)
		}
	}
	var n int
	if err := db.db.QueryRow(`SELECT COUNT(*) FROM opp`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("re-saving the same file should replace, got %d rows", n)
	}
}

func TestSaveOutlier(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.SaveOutlier(ctx, "2014_185/f1", 0); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveOutlier(ctx, "2014_185/f1", 2); err != nil {
		t.Fatal(err)
	}
	var flag int
	if err := db.db.QueryRow(`SELECT flag FROM outlier WHERE file = ?`, "2014_185/f1").Scan(&flag); err != nil {
		t.Fatal(err)
	}
	if flag != 2 {
		t.Errorf("flag %d, want 2 after replace", flag)
	}
}

func TestMetadata(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Cruise(ctx); err == nil {
		t.Error("cruise lookup on empty metadata should fail")
	}
	if err := db.SaveMetadata(ctx, "SCOPE_1", "740"); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveMetadata(ctx, "SCOPE_2", "751"); err != nil {
		t.Fatal(err)
	}

	cruise, err := db.Cruise(ctx)
	if err != nil {
		t.Fatal(err)
	}
	serial, err := db.Serial(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if cruise != "SCOPE_2" || serial != "751" {
		t.Errorf("metadata = %q/%q, want SCOPE_2/751", cruise, serial)
	}
}
