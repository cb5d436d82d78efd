package evtio

import (
	"io"
	"os"
	"path/filepath"

	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/pkg/particle"
)

// OppQuantilePath returns the output path for a single quantile's focused
// particles: <oppDir>/<quantile>/<fileID>.opp.gz.
func OppQuantilePath(oppDir string, quantile float64, fileID string) string {
	return filepath.Join(oppDir, particle.QuantileString(quantile), fileID+".opp.gz")
}

// OppPath returns the output path for the combined bit flag format:
// <oppDir>/<fileID>.opp.gz.
func OppPath(oppDir, fileID string) string {
	return filepath.Join(oppDir, fileID+".opp.gz")
}

// WriteOppQuantile writes one quantile's focused particles in the plain
// EVT layout under the quantile's subdirectory.
func WriteOppQuantile(oppDir string, quantile float64, fileID string, t *particle.Table) error {
	path := OppQuantilePath(oppDir, quantile, fileID)
	if err := WriteFile(path, t); err != nil {
		return errors.NewWriteError("writing opp file "+path, err)
	}
	return nil
}

// WriteOppBitFlags writes focused particles for all quantiles in a single
// file with a trailing bit flag column encoding per-quantile membership.
func WriteOppBitFlags(oppDir, fileID string, t *particle.Table, flags []uint16) error {
	path := OppPath(oppDir, fileID)
	err := writeFile(path, func(w io.Writer) error {
		return EncodeOpp(w, t, flags)
	})
	if err != nil {
		return errors.NewWriteError("writing opp file "+path, err)
	}
	return nil
}

// ReadOppFile decodes a combined-format OPP file, returning the particle
// table and the per-particle quantile bit flags.
func ReadOppFile(path string) (*particle.Table, []uint16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	r, closeReader, err := newReader(f, path)
	if err != nil {
		return nil, nil, err
	}
	defer closeReader()
	return DecodeOpp(r)
}
