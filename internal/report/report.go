// Package report implements the binary wire protocol between a worker
// process and the fleet listener: little-endian 4-byte integers over a
// unidirectional pipe.
//
// A worker's steady-state message is the pair [completed, errorCount].
// The bootstrap worker additionally writes the discovered device count as
// its very first integer, before any steady-state message. A worker that is
// about to die writes the sentinel pair [-1, -1] and exits nonzero.
package report

import (
	"encoding/binary"
	"io"

	"codeberg.org/mutker/gpuburn/internal/errors"
)

// Sentinel marks a worker's fatal termination when received as the
// completed count of a report pair.
const Sentinel int32 = -1

// Pair is one steady-state worker report.
type Pair struct {
	Completed  int32
	ErrorCount int32
}

// IsSentinel reports whether the pair announces the worker's death.
func (p Pair) IsSentinel() bool {
	return p.Completed == Sentinel
}

// WritePair writes one steady-state report. The two integers go out in a
// single write so the pair stays atomic on the pipe.
func WritePair(w io.Writer, completed, errorCount int32) error {
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(completed))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(errorCount))

	if _, err := w.Write(buf[:]); err != nil {
		return errors.New().Wrap(errors.ErrPipeRead, err)
	}

	return nil
}

// WriteSentinel writes the death pair [-1, -1].
func WriteSentinel(w io.Writer) error {
	return WritePair(w, Sentinel, Sentinel)
}

// ReadPair reads one report pair. Any failure to obtain both integers,
// including a short read, is returned as an error; the caller treats it as
// the worker's death, as the protocol has no partial-message recovery.
func ReadPair(r io.Reader) (Pair, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Pair{Completed: Sentinel, ErrorCount: Sentinel}, errors.New().Wrap(errors.ErrPipeRead, err)
	}

	return Pair{
		Completed:  int32(binary.LittleEndian.Uint32(buf[0:4])),
		ErrorCount: int32(binary.LittleEndian.Uint32(buf[4:8])),
	}, nil
}

// WriteDeviceCount writes the bootstrap worker's device count message.
func WriteDeviceCount(w io.Writer, count int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(count))

	if _, err := w.Write(buf[:]); err != nil {
		return errors.New().Wrap(errors.ErrDeviceCountRead, err)
	}

	return nil
}

// ReadDeviceCount reads the bootstrap worker's device count message.
func ReadDeviceCount(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.New().Wrap(errors.ErrDeviceCountRead, err)
	}

	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}
