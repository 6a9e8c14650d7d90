// Package testutil provides test data generators.
package testutil

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// Payload returns size deterministic pseudo-random bytes.
func (g *TestDataGenerator) Payload(size int) []byte {
	data := make([]byte, size)
	_, _ = g.rand.Read(data)
	return data
}

// Split cuts data into consecutive buffers of random length between 0 and
// maxLen bytes, including empty ones.
func (g *TestDataGenerator) Split(data []byte, maxLen int) [][]byte {
	if maxLen < 1 {
		maxLen = 1
	}
	var out [][]byte
	for len(data) > 0 {
		n := min(g.rand.Intn(maxLen+1), len(data))
		out = append(out, data[:n:n])
		data = data[n:]
	}
	return out
}

// GenerateObjectList generates a list of test S3 objects.
func (g *TestDataGenerator) GenerateObjectList(count int, prefix string) []types.Object {
	objects := make([]types.Object, count)
	baseTime := FixedTime.Add(-24 * time.Hour)

	for i := 0; i < count; i++ {
		key := fmt.Sprintf("%sobject-%04d.bin", prefix, i)
		size := int64(g.rand.Intn(1000000) + 1000)
		modified := baseTime.Add(time.Duration(i) * time.Minute)
		objects[i] = CreateTestObject(key, size, modified)
	}

	return objects
}

// BufferSource replays fixed buffers. It satisfies s3types.BufferSource.
type BufferSource struct {
	Buffers [][]byte

	// Err, when set, is returned after the buffers instead of io.EOF
	Err error
}

// Next returns the next buffer or io.EOF.
func (s *BufferSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Buffers) == 0 {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	b := s.Buffers[0]
	s.Buffers = s.Buffers[1:]
	return b, nil
}
