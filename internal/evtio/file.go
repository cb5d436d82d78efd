package evtio

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/pkg/particle"
)

// ReadFile decodes the EVT file at path. Files ending in ".gz" are
// decompressed transparently.
func ReadFile(path string) (*particle.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r, closeReader, err := newReader(f, path)
	if err != nil {
		return nil, err
	}
	defer closeReader()
	return Decode(r)
}

// DecodeBytes decodes EVT data held in memory. name is consulted for the
// ".gz" suffix only, matching the on-disk convention for fetched objects.
func DecodeBytes(name string, data []byte) (*particle.Table, error) {
	r, closeReader, err := newReader(bytes.NewReader(data), name)
	if err != nil {
		return nil, err
	}
	defer closeReader()
	return Decode(r)
}

// WriteFile encodes a particle table to path, creating parent directories
// as needed. Files ending in ".gz" are compressed.
func WriteFile(path string, t *particle.Table) error {
	return writeFile(path, func(w io.Writer) error {
		return Encode(w, t)
	})
}

// ReadRowCount reads only the header of the file at path and returns the
// row count it reports. Much cheaper than decoding the whole file.
func ReadRowCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	r, closeReader, err := newReader(f, path)
	if err != nil {
		return 0, err
	}
	defer closeReader()

	header := make([]byte, headerBytes)
	n, _ := io.ReadFull(r, header)
	if n == 0 {
		return 0, errors.NewFormatError(errors.CodeEmptyFile, "file is empty")
	}
	if n < headerBytes {
		return 0, errors.NewFormatError(errors.CodeShortHeader,
			"file has invalid particle count header")
	}
	return int(binary.LittleEndian.Uint32(header)), nil
}

// newReader wraps r in a gzip reader when name has a ".gz" suffix. The
// returned func releases the gzip reader if one was created.
func newReader(r io.Reader, name string) (io.Reader, func() error, error) {
	if !strings.HasSuffix(name, ".gz") {
		return r, func() error { return nil }, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil, errors.NewFormatError(errors.CodeEmptyFile, "file is empty")
		}
		return nil, nil, errors.Wrap(errors.ErrCategoryFormat, errors.CodeShortHeader,
			"reading gzip header", err)
	}
	return gz, gz.Close, nil
}

func writeFile(path string, encodeTo func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := encodeTo(w); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			os.Remove(path)
			return err
		}
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
