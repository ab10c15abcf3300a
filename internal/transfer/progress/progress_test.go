package progress

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name           string
		done, total    int64
		elapsed        time.Duration
		wantThroughput float64
		wantPercent    float64
		wantETA        float64
		wantHasETA     bool
	}{
		{
			name: "halfway at steady rate",
			done: 50, total: 100, elapsed: 5 * time.Second,
			wantThroughput: 10, wantPercent: 50, wantETA: 5, wantHasETA: true,
		},
		{
			name: "zero elapsed yields zero throughput",
			done: 50, total: 100, elapsed: 0,
			wantThroughput: 0, wantPercent: 50, wantHasETA: false,
		},
		{
			name: "unknown total yields zero percent",
			done: 50, total: 0, elapsed: 5 * time.Second,
			wantThroughput: 10, wantPercent: 0, wantHasETA: false,
		},
		{
			name: "complete transfer has no ETA",
			done: 100, total: 100, elapsed: 10 * time.Second,
			wantThroughput: 10, wantPercent: 100, wantHasETA: false,
		},
		{
			name: "nothing moved yet",
			done: 0, total: 100, elapsed: 2 * time.Second,
			wantThroughput: 0, wantPercent: 0, wantHasETA: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := Compute(tt.done, tt.total, tt.elapsed)

			assert.InDelta(t, tt.wantThroughput, snap.ThroughputBytesPerSec, 0.001)
			assert.InDelta(t, tt.wantPercent, snap.PercentComplete, 0.001)
			assert.Equal(t, tt.wantHasETA, snap.HasETA)
			if tt.wantHasETA {
				assert.InDelta(t, tt.wantETA, snap.ETASeconds, 0.001)
			}
		})
	}
}

func TestComputeBounds(t *testing.T) {
	// Percent stays within [0, 100] and ETA is non-negative whenever defined,
	// for any done <= total.
	totals := []int64{1, 10, 1024, 1 << 30}
	for _, total := range totals {
		for _, done := range []int64{0, 1, total / 2, total - 1, total} {
			if done < 0 || done > total {
				continue
			}
			snap := Compute(done, total, 3*time.Second)

			assert.GreaterOrEqual(t, snap.PercentComplete, 0.0)
			assert.LessOrEqual(t, snap.PercentComplete, 100.0)
			if snap.HasETA {
				assert.GreaterOrEqual(t, snap.ETASeconds, 0.0)
			}
		}
	}
}

func TestWriterReportsCumulativeBytes(t *testing.T) {
	var out bytes.Buffer
	var seen []int64

	pw := NewWriter(&out, 10, func(s Snapshot) {
		seen = append(seen, s.BytesDone)
	})

	_, err := io.Copy(pw, iotest(strings.NewReader("0123456789"), 3))
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	assert.Equal(t, int64(10), seen[len(seen)-1])
	assert.Equal(t, int64(10), pw.Written())
	assert.Equal(t, "0123456789", out.String())

	// Cumulative counts never decrease.
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestReaderReportsCumulativeBytes(t *testing.T) {
	var seen []Snapshot

	pr := NewReader(strings.NewReader("hello world"), 11, func(s Snapshot) {
		seen = append(seen, s)
	})

	data, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	assert.Equal(t, int64(11), last.BytesDone)
	assert.Equal(t, int64(11), last.BytesTotal)
}

// iotest limits reads to chunkSize bytes so the wrapper sees several chunk
// boundaries.
func iotest(r io.Reader, chunkSize int) io.Reader {
	return &chunkedReader{r: r, n: chunkSize}
}

type chunkedReader struct {
	r io.Reader
	n int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(p) > c.n {
		p = p[:c.n]
	}
	return c.r.Read(p)
}
