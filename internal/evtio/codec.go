// Package evtio reads and writes SeaFlow LabVIEW binary particle files.
//
// The on-disk layout is a 32-bit little-endian unsigned row count followed
// by one row per particle. Each row starts with the leading uint16 pair
// (10, 0) that LabVIEW emits, then the channel values as little-endian
// unsigned 16-bit integers. Focused particle (OPP) files carry one extra
// trailing bit flag column per row.
package evtio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/seaflowlab/seafilter/internal/errors"
	"github.com/seaflowlab/seafilter/pkg/particle"
)

const (
	headerBytes = 4
	// Leading uint16 pair on every row.
	sentinelFirst  = 10
	sentinelSecond = 0
)

// Decode reads a raw EVT stream into a particle table.
func Decode(r io.Reader) (*particle.Table, error) {
	t, _, err := decode(r, false)
	return t, err
}

// DecodeOpp reads an OPP stream, returning the particle table and the
// per-particle quantile bit flags from the trailing column.
func DecodeOpp(r io.Reader) (*particle.Table, []uint16, error) {
	return decode(r, true)
}

func decode(r io.Reader, withFlags bool) (*particle.Table, []uint16, error) {
	header := make([]byte, headerBytes)
	n, _ := io.ReadFull(r, header)
	if n == 0 {
		return nil, nil, errors.NewFormatError(errors.CodeEmptyFile, "file is empty")
	}
	if n < headerBytes {
		return nil, nil, errors.NewFormatError(errors.CodeShortHeader,
			"file has invalid particle count header")
	}
	rows := binary.LittleEndian.Uint32(header)
	if rows == 0 {
		return nil, nil, errors.NewFormatError(errors.CodeZeroRows,
			"file has no particle data")
	}

	colcnt := particle.NumChannels + 2
	if withFlags {
		colcnt++
	}
	expected := int(rows) * colcnt * 2
	buf := make([]byte, expected)
	found, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, errors.Wrap(errors.ErrCategoryFormat, errors.CodeTruncated,
			"reading particle data", err)
	}

	// There should be nothing after the last row. Drain the remainder so a
	// byte count mismatch in either direction is reported the same way.
	extra, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, nil, errors.Wrap(errors.ErrCategoryFormat, errors.CodeTruncated,
			"reading particle data", err)
	}
	found += int(extra)
	if found != expected {
		code := errors.CodeTruncated
		if found > expected {
			code = errors.CodeSizeMismatch
		}
		return nil, nil, errors.NewFormatError(code, fmt.Sprintf(
			"file has incorrect number of data bytes, expected %d, saw %d",
			expected, found))
	}

	t := particle.New(int(rows))
	var flags []uint16
	if withFlags {
		flags = make([]uint16, 0, rows)
	}
	off := 0
	for i := 0; i < int(rows); i++ {
		off += 4 // skip the leading pair
		var row [particle.NumChannels]float64
		for j := 0; j < particle.NumChannels; j++ {
			row[j] = float64(binary.LittleEndian.Uint16(buf[off:]))
			off += 2
		}
		t.AppendRow(row)
		if withFlags {
			flags = append(flags, binary.LittleEndian.Uint16(buf[off:]))
			off += 2
		}
	}
	return t, flags, nil
}

// Encode writes a particle table as a raw EVT stream. Channel values are
// narrowed to uint16, so the table should hold integer values in
// [0, particle.MaxChannelValue].
func Encode(w io.Writer, t *particle.Table) error {
	return encode(w, t, nil)
}

// EncodeOpp writes a particle table with a trailing bit flag column.
// flags must have one entry per particle.
func EncodeOpp(w io.Writer, t *particle.Table, flags []uint16) error {
	if len(flags) != t.Len() {
		return fmt.Errorf("bit flag count %d does not match particle count %d",
			len(flags), t.Len())
	}
	return encode(w, t, flags)
}

func encode(w io.Writer, t *particle.Table, flags []uint16) error {
	bw := bufio.NewWriter(w)
	header := make([]byte, headerBytes)
	binary.LittleEndian.PutUint32(header, uint32(t.Len()))
	if _, err := bw.Write(header); err != nil {
		return err
	}

	rowLen := 4 + particle.NumChannels*2
	if flags != nil {
		rowLen += 2
	}
	row := make([]byte, rowLen)
	binary.LittleEndian.PutUint16(row[0:], sentinelFirst)
	binary.LittleEndian.PutUint16(row[2:], sentinelSecond)
	for i := 0; i < t.Len(); i++ {
		vals := t.Row(i)
		off := 4
		for _, v := range vals {
			binary.LittleEndian.PutUint16(row[off:], uint16(v))
			off += 2
		}
		if flags != nil {
			binary.LittleEndian.PutUint16(row[off:], flags[i])
		}
		if _, err := bw.Write(row); err != nil {
			return err
		}
	}
	return bw.Flush()
}
