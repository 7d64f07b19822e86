// Package tickfile reads and writes recordings of raw model output.
// A recording is a sequence of ticks, each of which is modelschema.TotalSize little-endian float32s,
// with no header or padding.
package tickfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cyclopcam/drivenet/pkg/floatpool"
	ms "github.com/cyclopcam/drivenet/pkg/modelschema"
)

// Size of one tick, in bytes
var TickBytes = ms.TotalSize * 4

var ErrTruncatedTick = errors.New("recording ends partway through a tick")

// Reader reads ticks out of a recording
type Reader struct {
	Tick int // Number of ticks read so far

	r    *bufio.Reader
	pool floatpool.Pool
}

// Create a new Reader. Tick buffers are drawn from pool.
func NewReader(r io.Reader, pool floatpool.Pool) *Reader {
	return &Reader{
		r:    bufio.NewReaderSize(r, TickBytes),
		pool: pool,
	}
}

// Next reads the next tick into a buffer from the pool.
// The caller must return the buffer with Release when done with it.
// Returns io.EOF after the last complete tick.
func (r *Reader) Next() ([]float32, error) {
	buf := r.pool.Acquire(ms.TotalSize)
	if err := binary.Read(r.r, binary.LittleEndian, buf); err != nil {
		r.pool.Release(buf)
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w (tick %v)", ErrTruncatedTick, r.Tick)
		}
		return nil, err
	}
	r.Tick++
	return buf, nil
}

func (r *Reader) Release(buf []float32) {
	r.pool.Release(buf)
}

// CountTicks returns the number of ticks in a recording of the given size in bytes
func CountTicks(size int64) (int, error) {
	if size%int64(TickBytes) != 0 {
		return 0, fmt.Errorf("%w: %v bytes is not a multiple of %v", ErrTruncatedTick, size, TickBytes)
	}
	return int(size / int64(TickBytes)), nil
}

// Write ticks to a new recording. If anything fails, the partial file is removed.
func WriteFile(filename string, ticks [][]float32) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	err = Write(f, ticks)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(filename)
		return err
	}
	return nil
}

// Write ticks to w. Every tick must be exactly modelschema.TotalSize floats.
func Write(w io.Writer, ticks [][]float32) error {
	bw := bufio.NewWriter(w)
	for i, tick := range ticks {
		if err := ms.Validate(len(tick)); err != nil {
			return fmt.Errorf("tick %v: %w", i, err)
		}
		if err := binary.Write(bw, binary.LittleEndian, tick); err != nil {
			return err
		}
	}
	return bw.Flush()
}
