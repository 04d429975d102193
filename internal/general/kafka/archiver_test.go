package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"fleet-tracker/internal/domain/tracking"
	"fleet-tracker/internal/general/logger"
)

type recordingWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestArchiveKeysByDriver(t *testing.T) {
	w := &recordingWriter{}
	a := &Archiver{writer: w, logger: logger.Nop()}

	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	rec := tracking.LocationRecord{DriverID: "d7", Latitude: 9.01, Longitude: 38.76, Timestamp: ts}
	if err := a.Archive(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "d7" || !msg.Time.Equal(ts) {
		t.Errorf("unexpected key/time: %q %v", msg.Key, msg.Time)
	}

	var decoded tracking.LocationRecord
	if err := json.Unmarshal(msg.Value, &decoded); err != nil || decoded.Latitude != 9.01 {
		t.Errorf("unexpected value %s (%v)", msg.Value, err)
	}

	_ = a.Close()
	if !w.closed {
		t.Error("close should reach the writer")
	}
}

func TestArchiveWrapsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	a := &Archiver{writer: &recordingWriter{err: boom}, logger: logger.Nop()}

	if err := a.Archive(context.Background(), tracking.LocationRecord{DriverID: "d1"}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped writer error, got %v", err)
	}
}
