// Package batching splits a scanned segment's entries into downstream
// push batches bounded by entry count and payload size, per spec.md §6
// ("batch_max_entries", "batch_max_bytes").
//
// Grounded on the teacher's pkg/batching/adaptive_batcher.go: that
// batcher buffers a live stream and dynamically resizes its batch
// window against observed latency/throughput. The forwarder instead
// batches a whole already-read segment at once, so there is no stream
// to buffer and nothing to adapt — Split keeps the teacher's
// size-and-count bounding idea as a single pure function.
package batching

import (
	"encoding/json"

	"ssw-logs-capture/pkg/types"
)

// Limits bounds a single downstream push batch.
type Limits struct {
	MaxEntries int
	MaxBytes   int64
}

// Split partitions entries into batches that each respect limits. An
// entry whose own marshaled size already exceeds MaxBytes is placed
// alone in its own batch rather than dropped, since the segment must
// still be forwarded in full.
func Split(entries []types.LogEntry, limits Limits) [][]types.LogEntry {
	if len(entries) == 0 {
		return nil
	}
	maxEntries := limits.MaxEntries
	if maxEntries <= 0 {
		maxEntries = len(entries)
	}

	var batches [][]types.LogEntry
	var current []types.LogEntry
	var currentBytes int64

	flush := func() {
		if len(current) > 0 {
			batches = append(batches, current)
			current = nil
			currentBytes = 0
		}
	}

	for i := range entries {
		size := entrySize(&entries[i])
		if len(current) > 0 && (len(current) >= maxEntries ||
			(limits.MaxBytes > 0 && currentBytes+size > limits.MaxBytes)) {
			flush()
		}
		current = append(current, entries[i])
		currentBytes += size
	}
	flush()
	return batches
}

func entrySize(e *types.LogEntry) int64 {
	payload, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return int64(len(payload))
}
