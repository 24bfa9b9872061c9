package stream

import (
	"context"
	"encoding/json"

	"sysmon-agent/internal/model"
)

// Sink receives one snapshot per sampling cycle.
type Sink interface {
	Publish(ctx context.Context, s model.Snapshot) error
	Close(ctx context.Context) error
}

func NewSnapshotFrame(s model.Snapshot) model.Frame {
	return model.Frame{Type: model.FrameTypeSnapshot, TimestampUnix: s.TimestampUnix, Payload: s}
}

func EncodeFrame(f model.Frame) ([]byte, error) {
	return json.Marshal(f)
}
