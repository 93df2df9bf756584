package wal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"ssw-logs-capture/pkg/types"

	"github.com/sirupsen/logrus"
)

// ScanResult is the outcome of reading one segment file: the records
// that parsed cleanly, plus counts of the records skipped to corrupt
// checksums.
type ScanResult struct {
	Entries        []types.LogEntry
	SkippedCorrupt int
}

// ScanSegment reads every record from path, per spec.md §4.3's reader
// scan: a bad checksum on an otherwise well-framed record is logged
// and skipped; a short read (a crash mid-write) stops the scan and
// returns everything read so far without error. This is the function
// the forwarder uses to load a ready segment's contents before
// shipping them downstream.
func ScanSegment(path string, logger *logrus.Logger) (ScanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ScanResult{}, fmt.Errorf("wal: open segment %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var result ScanResult

	for {
		payload, outcome, err := readFrame(r)
		if err != nil {
			return result, fmt.Errorf("wal: read frame in %s: %w", path, err)
		}

		switch outcome {
		case readDone:
			return result, nil
		case readTorn:
			logger.WithField("segment", path).Warn("wal: tail-torn record, stopping scan")
			return result, nil
		case readChecksumMismatch:
			result.SkippedCorrupt++
			logger.WithField("segment", path).Warn("wal: checksum mismatch, skipping record")
			continue
		}

		var entry types.LogEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			result.SkippedCorrupt++
			logger.WithField("segment", path).WithError(err).Warn("wal: malformed record json, skipping")
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
}
