package simulation

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const (
	InsertLatencyFileName = "insert_latency.txt"
	UpdateLatencyFileName = "update_latency.txt"
)

// FileLatencySink appends samples to two text files in a directory, one value in milliseconds per line.
type FileLatencySink struct {
	mu  sync.Mutex
	dir string
}

// NewFileLatencySink creates a sink writing below dir. The directory is created on first write.
func NewFileLatencySink(dir string) *FileLatencySink {
	return &FileLatencySink{dir: dir}
}

// WriteSamples implements LatencySink.
func (s *FileLatencySink) WriteSamples(inserts, updates []time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	return errors.Join(
		appendSamples(filepath.Join(s.dir, InsertLatencyFileName), inserts),
		appendSamples(filepath.Join(s.dir, UpdateLatencyFileName), updates),
	)
}

func appendSamples(path string, samples []time.Duration) (err error) {
	if len(samples) == 0 {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()

	w := bufio.NewWriter(file)
	for _, sample := range samples {
		ms := float64(sample) / float64(time.Millisecond)
		if _, err = w.WriteString(strconv.FormatFloat(ms, 'f', 3, 64) + "\n"); err != nil {
			return err
		}
	}

	return w.Flush()
}
