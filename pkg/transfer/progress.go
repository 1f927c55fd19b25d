package transfer

import (
	"time"
)

// Progress is a snapshot of a running sequence, delivered after every state
// change and every packet.
type Progress struct {
	Session    string
	Direction  Direction
	Name       string
	State      State
	BytesDone  int
	TotalBytes int
	Packets    int
	Elapsed    time.Duration
	Err        error // set when State is StateFailed
}

// Percent returns completion in [0,1]. An empty file is complete once done.
func (p Progress) Percent() float64 {
	if p.TotalBytes == 0 {
		if p.State == StateDone {
			return 1
		}
		return 0
	}
	return float64(p.BytesDone) / float64(p.TotalBytes)
}

// Rate returns bytes per second over the elapsed time.
func (p Progress) Rate() float64 {
	if p.Elapsed <= 0 {
		return 0
	}
	return float64(p.BytesDone) / p.Elapsed.Seconds()
}

// ProgressCallback receives progress snapshots. It runs on the transfer
// goroutine and must not block.
type ProgressCallback func(Progress)
