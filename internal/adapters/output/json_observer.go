package output

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/xoelrdgz/idsreplay/internal/domain"
)

// JSONObserver writes each watched observation as one JSON line to a file
// or stdout. Writes are buffered and flushed every FlushInterval.
type JSONObserver struct {
	bufWriter *bufio.Writer
	file      *os.File
	encoder   *json.Encoder
	mu        sync.Mutex
	stopFlush chan struct{}
	closeOnce sync.Once
	written   int64
}

type JSONObserverConfig struct {
	FilePath      string
	Stdout        bool
	Pretty        bool
	FlushInterval time.Duration
}

type observationRecord struct {
	Seq       int64             `json:"seq"`
	At        time.Time         `json:"at"`
	Mode      string            `json:"mode"`
	Actual    string            `json:"actual,omitempty"`
	Predicted string            `json:"predicted,omitempty"`
	Match     bool              `json:"match"`
	LatencyMS float64           `json:"latency_ms"`
	Error     string            `json:"error,omitempty"`
	Row       domain.FeatureRow `json:"row,omitempty"`
}

// NewJSONObserver picks stdout, then FilePath (appended, 0600), then
// io.Discard.
func NewJSONObserver(config JSONObserverConfig) (*JSONObserver, error) {
	return newJSONObserver(config, os.Stdout)
}

func newJSONObserver(config JSONObserverConfig, stdout io.Writer) (*JSONObserver, error) {
	var writer io.Writer
	var file *os.File

	switch {
	case config.Stdout:
		writer = stdout
	case config.FilePath != "":
		var err error
		file, err = os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		writer = file
	default:
		writer = io.Discard
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}

	bufWriter := bufio.NewWriterSize(writer, 64*1024)
	o := &JSONObserver{
		bufWriter: bufWriter,
		file:      file,
		encoder:   json.NewEncoder(bufWriter),
		stopFlush: make(chan struct{}),
	}
	if config.Pretty {
		o.encoder.SetIndent("", "  ")
	}

	go o.periodicFlush(config.FlushInterval)
	return o, nil
}

func (o *JSONObserver) periodicFlush(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := o.Flush(); err != nil {
				log.Warn().Err(err).Msg("Failed to flush observation log")
			}
		case <-o.stopFlush:
			return
		}
	}
}

func (o *JSONObserver) OnObservation(obs domain.Observation) {
	rec := observationRecord{
		Seq:       obs.Seq,
		At:        obs.At,
		Mode:      obs.Mode.String(),
		Actual:    obs.Actual,
		Predicted: obs.Predicted,
		Match:     obs.Match(),
		LatencyMS: float64(obs.Latency.Microseconds()) / 1000,
		Error:     obs.Err,
		Row:       obs.Row,
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.encoder.Encode(rec); err != nil {
		log.Warn().Err(err).Int64("seq", obs.Seq).Msg("Failed to encode observation")
		return
	}
	o.written++
}

func (o *JSONObserver) Written() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.written
}

func (o *JSONObserver) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.bufWriter.Flush(); err != nil {
		return err
	}
	if o.file != nil {
		return o.file.Sync()
	}
	return nil
}

// Close stops the flusher, drains the buffer and closes the file. Safe to
// call more than once.
func (o *JSONObserver) Close() error {
	var err error
	o.closeOnce.Do(func() {
		close(o.stopFlush)

		o.mu.Lock()
		defer o.mu.Unlock()

		if err = o.bufWriter.Flush(); err != nil {
			return
		}
		if o.file != nil {
			if err = o.file.Sync(); err != nil {
				return
			}
			err = o.file.Close()
		}
	})
	return err
}
