// Package ranges splits a known object size into contiguous byte ranges.
package ranges

import (
	"fmt"
	"iter"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/s3types"
)

// Plan is an immutable partition of [0, total) into ranges of at most chunk bytes.
type Plan struct {
	total int64
	chunk int64
}

// New creates a plan for an object of total bytes read in chunk-sized ranges.
func New(total, chunk int64) (Plan, error) {
	if chunk <= 0 {
		return Plan{}, errors.NewError("planRanges",
			fmt.Errorf("%w: chunk size must be positive, got %d", errors.ErrInvalidInput, chunk))
	}
	if total < 0 {
		return Plan{}, errors.NewError("planRanges",
			fmt.Errorf("%w: total size must not be negative, got %d", errors.ErrInvalidInput, total))
	}
	return Plan{total: total, chunk: chunk}, nil
}

// Total returns the planned object size.
func (p Plan) Total() int64 { return p.total }

// ChunkSize returns the nominal range length.
func (p Plan) ChunkSize() int64 { return p.chunk }

// Count returns the number of ranges. An empty object has none.
func (p Plan) Count() int {
	if p.total == 0 || p.chunk == 0 {
		return 0
	}
	return int((p.total + p.chunk - 1) / p.chunk)
}

// At returns the i-th range. The last range is clamped to total-1.
func (p Plan) At(i int) s3types.ByteRange {
	start := int64(i) * p.chunk
	return s3types.ByteRange{
		Start: start,
		End:   min(start+p.chunk, p.total) - 1,
	}
}

// All yields every range with its 0-based index in offset order.
// The sequence can be iterated any number of times.
func (p Plan) All() iter.Seq2[int, s3types.ByteRange] {
	return func(yield func(int, s3types.ByteRange) bool) {
		for i := range p.Count() {
			if !yield(i, p.At(i)) {
				return
			}
		}
	}
}

// Slice materializes the plan.
func (p Plan) Slice() []s3types.ByteRange {
	out := make([]s3types.ByteRange, 0, p.Count())
	for _, r := range p.All() {
		out = append(out, r)
	}
	return out
}
