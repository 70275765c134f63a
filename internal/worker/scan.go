package worker

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/andresmejia3/facepack/internal/types"
)

const megabyte = 1024 * 1024

// MaxLine is the longest input line Scan accepts.
const MaxLine = 64 * megabyte

// Line buffers are recycled once an engine has decoded them.
var lineBufferPool = sync.Pool{
	New: func() any { return make([]byte, 0, 64*1024) },
}

func releaseBuffer(b []byte) {
	if b != nil {
		lineBufferPool.Put(b[:0])
	}
}

// Scan splits r into lines and sends each non-blank line as a task, with
// indices counting up from zero. It closes tasks when it returns and
// reports the number of tasks sent.
func Scan(ctx context.Context, r io.Reader, tasks chan<- types.FrameTask) (int, error) {
	defer close(tasks)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), MaxLine)

	sent := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		buf := lineBufferPool.Get().([]byte)
		if cap(buf) < len(line) {
			buf = make([]byte, len(line))
		}
		buf = buf[:len(line)]
		copy(buf, line)

		select {
		case tasks <- types.FrameTask{Index: sent, Data: buf}:
			sent++
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, scanner.Err()
}
