package wal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"ssw-logs-capture/pkg/types"
)

const (
	activeExt = ".wal"
	readyExt  = ".ready"
)

var segmentFilePattern = regexp.MustCompile(`^segment_(\d+)(\.wal|\.ready)$`)
var tokenSanitizePattern = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// sanitizeTenant implements spec.md §4.3's tenant directory naming
// rule: the bearer token is never used verbatim as a directory name.
// The result is `<prefix>_<hash>` where prefix is the token with every
// character outside [A-Za-z0-9_-] stripped and truncated to 20 bytes,
// and hash is the first 8 hex characters of SHA-256(token). This
// bounds the directory name's length, rules out path traversal, and
// keeps distinct tokens from colliding.
func sanitizeTenant(token string) string {
	prefix := tokenSanitizePattern.ReplaceAllString(token, "")
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:])[:8])
}

// segmentName returns the active (.wal) filename for sequence n.
func segmentName(n int) string {
	return fmt.Sprintf("segment_%03d.wal", n)
}

// readySegmentName returns the name segmentName(n) takes after rotation.
func readySegmentName(n int) string {
	return strings.TrimSuffix(segmentName(n), activeExt) + readyExt
}

// parseSegmentName extracts the sequence number and state encoded in
// a segment's filename, per spec.md §3 invariant I3 ("a segment
// file's name encodes its sequence number and state").
func parseSegmentName(name string) (seq int, state types.SegmentState, ok bool) {
	m := segmentFilePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	if m[2] == activeExt {
		return n, types.SegmentActive, true
	}
	return n, types.SegmentReady, true
}

// listSegments returns every segment file in dir, sorted by ascending
// sequence number, skipping names that don't match the segment
// pattern.
func listSegments(dir string) ([]types.SegmentInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []types.SegmentInfo
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		seq, state, ok := parseSegmentName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, types.SegmentInfo{
			TenantDir:      dir,
			Path:           filepath.Join(dir, de.Name()),
			SequenceNumber: seq,
			State:          state,
			SizeBytes:      info.Size(),
			CreationTime:   info.ModTime(),
			LastWriteTime:  info.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out, nil
}

// highestActiveSequence returns the sequence number of the current
// active segment, and whether one exists at all.
func highestActiveSequence(segments []types.SegmentInfo) (int, bool) {
	max, found := 0, false
	for _, s := range segments {
		if s.State == types.SegmentActive && s.SequenceNumber > max {
			max = s.SequenceNumber
			found = true
		}
	}
	return max, found
}

// shouldRotate evaluates rotation rules R1-R4 from spec.md §4.3
// against an open segment's accumulated state.
func shouldRotate(cfg types.WALConfig, size int64, creation, lastWrite, now time.Time) bool {
	// R1: hard size cap, unconditional.
	if size >= cfg.SegmentMaxBytes {
		return true
	}

	idle := now.Sub(lastWrite) >= cfg.IdleThreshold

	// R2: actively written, aged past rotation_time_active, and past
	// the minimum size floor (avoids rotating tiny, fast-filling
	// segments every few seconds).
	if !idle &&
		now.Sub(creation) >= cfg.RotationTimeActive &&
		size >= cfg.MinRotationBytes {
		return true
	}

	// R3: idle long enough that a small segment is still flushed
	// instead of sitting unforwarded indefinitely.
	if idle && now.Sub(creation) >= cfg.RotationTimeIdle {
		return true
	}

	// R4: force rotation regardless of size, so a segment under
	// constant light write pressure doesn't live forever.
	if now.Sub(creation) >= cfg.ForceRotation {
		return true
	}

	return false
}
