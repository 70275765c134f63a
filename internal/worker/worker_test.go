package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/facepack/internal/compact"
	"github.com/andresmejia3/facepack/internal/testutil"
	"github.com/andresmejia3/facepack/internal/types"
)

var landmarksOnly = compact.Selection{Landmarks: true, StripZCoordinates: true}

func frameLine(ts float64, x float64) string {
	return fmt.Sprintf(`{"timestamp":%v,"dataPoint":{"faceLandmarks":[[{"x":%v,"y":0.5}]],"faceBlendshapes":[]}}`, ts, x)
}

func newCompactor(opts ...compact.Option) *compact.Compactor {
	return compact.New(append([]compact.Option{compact.WithClock(testutil.NewFakeClock(2000))}, opts...)...)
}

func TestEngine_Process(t *testing.T) {
	e := NewEngine(1, newCompactor(), landmarksOnly)

	tests := []struct {
		name   string
		line   string
		status Status
		check  func(t *testing.T, r Result)
	}{
		{
			name:   "Compacted",
			line:   frameLine(1990, 0.25),
			status: StatusCompacted,
			check: func(t *testing.T, r Result) {
				assert.Equal(t, 1990.0, r.Timestamp)
				assert.Equal(t, `{"l":[{"p":[25000,50000],"z":false}],"t":1990,"dt":10}`+"\n", string(r.Output.Text))
			},
		},
		{
			name:   "Skipped without blendshapes",
			line:   `{"timestamp":1,"dataPoint":{"faceLandmarks":[]}}`,
			status: StatusSkipped,
		},
		{
			name:   "Line is not JSON",
			line:   `timestamp=1`,
			status: StatusFailed,
			check: func(t *testing.T, r Result) {
				var decErr *compact.DecodeError
				require.True(t, errors.As(r.Err, &decErr))
				assert.Equal(t, "frame", decErr.Input)
			},
		},
		{
			name:   "Datapoint missing",
			line:   `{"timestamp":1}`,
			status: StatusFailed,
			check: func(t *testing.T, r Result) {
				var decErr *compact.DecodeError
				require.True(t, errors.As(r.Err, &decErr))
				assert.Equal(t, "datapoint", decErr.Input)
			},
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.Process(types.FrameTask{Index: i, Data: []byte(tt.line)})
			assert.Equal(t, i, r.Index)
			assert.Equal(t, len(tt.line), r.InputBytes)
			assert.Equal(t, tt.status, r.Status())
			if tt.check != nil {
				tt.check(t, r)
			}
		})
	}
}

func TestResult_Frame(t *testing.T) {
	r := NewEngine(0, newCompactor(), landmarksOnly).Process(types.FrameTask{Index: 7, Data: []byte(frameLine(1500, 0.1))})
	require.Equal(t, StatusCompacted, r.Status())

	f := r.Frame()
	assert.Equal(t, 7, f.Seq)
	assert.Equal(t, 1500.0, f.T)
	assert.Equal(t, 500.0, f.DT)
	assert.Equal(t, r.Output.Text, f.Payload)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "compacted", StatusCompacted.String())
	assert.Equal(t, "skipped", StatusSkipped.String())
	assert.Equal(t, "failed", StatusFailed.String())
}

// jitterDecoder delays decoding of early frames so later frames finish
// first.
func jitterDecoder(data []byte, v any) error {
	if _, ok := v.(*types.DetectionResult); ok {
		var probe struct {
			FaceLandmarks [][]struct{ X float64 } `json:"faceLandmarks"`
		}
		if json.Unmarshal(data, &probe) == nil && len(probe.FaceLandmarks) > 0 && len(probe.FaceLandmarks[0]) > 0 {
			if probe.FaceLandmarks[0][0].X < 0.5 {
				time.Sleep(5 * time.Millisecond)
			}
		}
	}
	return json.Unmarshal(data, v)
}

func TestPool_PreservesOrder(t *testing.T) {
	const n = 40
	var input strings.Builder
	for i := 0; i < n; i++ {
		x := 0.9
		if i%3 == 0 {
			x = 0.1
		}
		input.WriteString(frameLine(float64(1000+i), x))
		input.WriteString("\n")
		if i == 10 {
			input.WriteString("not json\n")
		}
	}

	pool := NewPool(newCompactor(compact.WithDecoder(jitterDecoder)), landmarksOnly, 4, nil)
	tasks := make(chan types.FrameTask, 4)

	var got []Result
	ctx := context.Background()
	errCh := make(chan error, 1)
	go func() {
		_, err := Scan(ctx, strings.NewReader(input.String()), tasks)
		errCh <- err
	}()

	err := pool.Run(ctx, tasks, func(r Result) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	require.Len(t, got, n+1)
	failed := 0
	for i, r := range got {
		assert.Equal(t, i, r.Index)
		if r.Status() == StatusFailed {
			failed++
			assert.Equal(t, 11, r.Index)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 1000.0, got[0].Timestamp)
	assert.Equal(t, float64(1000+n-1), got[n].Timestamp)
}

func TestPool_EmitErrorStops(t *testing.T) {
	var input strings.Builder
	for i := 0; i < 200; i++ {
		input.WriteString(frameLine(float64(i), 0.5) + "\n")
	}

	pool := NewPool(newCompactor(), landmarksOnly, 3, nil)
	tasks := make(chan types.FrameTask)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = Scan(ctx, strings.NewReader(input.String()), tasks)
	}()

	stop := errors.New("sink full")
	emitted := 0
	err := pool.Run(ctx, tasks, func(r Result) error {
		emitted++
		if emitted == 5 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 5, emitted)

	cancel()
	wg.Wait()
}

func TestPool_AggregateFlushesGaps(t *testing.T) {
	pool := NewPool(newCompactor(), landmarksOnly, 1, nil)
	results := make(chan Result, 3)
	results <- Result{Index: 0}
	results <- Result{Index: 4}
	results <- Result{Index: 2}
	close(results)

	var order []int
	require.NoError(t, pool.aggregate(results, func(r Result) error {
		order = append(order, r.Index)
		return nil
	}))
	assert.Equal(t, []int{0, 2, 4}, order)
}

func TestScan(t *testing.T) {
	tasks := make(chan types.FrameTask, 10)
	sent, err := Scan(context.Background(), strings.NewReader("a\n\n  \nb\r\nc"), tasks)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)

	var lines []string
	for task := range tasks {
		assert.Equal(t, len(lines), task.Index)
		lines = append(lines, string(task.Data))
	}
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestScan_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := make(chan types.FrameTask)
	sent, err := Scan(ctx, strings.NewReader("a\nb\n"), tasks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sent)

	_, open := <-tasks
	assert.False(t, open)
}
