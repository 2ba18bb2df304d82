package domain

import (
	"context"
	"time"
)

// RawReport is one unprocessed vehicle report from the source topic. The
// payload is the JSON object a RawRecord decodes from; transport position
// fields travel along for logging and offset commits.
type RawReport struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}
