package pipeline

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Result carries the outcome of filtering one EVT file from the worker
// through the saver to the reporter.
type Result struct {
	// Path is the input path or storage key.
	Path string
	// FileID is the canonical SeaFlow file ID derived from Path.
	FileID string
	// ErrText records a per-file failure. Empty means the file parsed
	// and filtered cleanly.
	ErrText string
	// Skipped is set when the resume skip set matched this file.
	Skipped bool

	// Counts from classification. Quantiles mirrors the parameter set.
	AllCount  int
	EvtCount  int
	Quantiles []float64
	OppCounts []int
}

// OK reports whether the file was processed without error.
func (r *Result) OK() bool {
	return r.ErrText == "" && !r.Skipped
}

var julianDirRe = regexp.MustCompile(`^[0-9]{4}_[0-9]{1,3}$`)

// FileID converts an EVT path into the canonical SeaFlow file ID: the
// file name without compression or opp extensions, prefixed with its
// julian day directory when the path has one.
// tests/evt/2014_185/2014-07-04T00-00-02+00-00.gz becomes
// 2014_185/2014-07-04T00-00-02+00-00.
func FileID(path string) string {
	name := filepath.Base(filepath.FromSlash(path))
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".opp")
	name = strings.TrimSuffix(name, ".evt")

	dir := filepath.Base(filepath.Dir(filepath.FromSlash(path)))
	if julianDirRe.MatchString(dir) {
		return dir + "/" + name
	}
	return name
}
