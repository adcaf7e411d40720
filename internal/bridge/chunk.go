package bridge

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Chunk framing: messages too large for one BLE notification travel as
// numbered frames of the form "CHUNK:n/N:<data>", 1-based, reassembled on
// the far side.
const (
	chunkPrefix = "CHUNK:"

	// MaxFrameBytes is the largest complete frame sent in one notification.
	MaxFrameBytes = 480

	// headerReserve leaves room for the "CHUNK:n/N:" prefix inside a frame.
	headerReserve = 20

	// reassemblyTimeout discards an incomplete frame sequence.
	reassemblyTimeout = 5 * time.Second
)

// splitFrames splits a message into CHUNK frames. Messages that already fit
// come back as a single unframed element.
func splitFrames(msg string) []string {
	if len(msg) <= MaxFrameBytes {
		return []string{msg}
	}
	size := MaxFrameBytes - headerReserve
	total := (len(msg) + size - 1) / size

	frames := make([]string, 0, total)
	for i := 0; i < total; i++ {
		start := i * size
		end := start + size
		if end > len(msg) {
			end = len(msg)
		}
		frames = append(frames, fmt.Sprintf("%s%d/%d:%s", chunkPrefix, i+1, total, msg[start:end]))
	}
	return frames
}

// errMalformedFrame marks a frame that carries the CHUNK prefix but cannot
// be parsed; the caller forwards it raw instead of dropping it.
type errMalformedFrame struct{ frame string }

func (e errMalformedFrame) Error() string {
	return "bridge: malformed chunk frame"
}

// assembler reassembles one frame sequence at a time. Frames may arrive out
// of order; a sequence left incomplete past the timeout is discarded when
// the next frame arrives.
type assembler struct {
	parts     map[int]string
	total     int
	startedAt time.Time
}

func newAssembler() *assembler {
	return &assembler{parts: make(map[int]string)}
}

// feed processes one CHUNK frame. It returns the complete message once all
// parts are present.
func (a *assembler) feed(frame string, now time.Time) (string, bool, error) {
	rest := strings.TrimPrefix(frame, chunkPrefix)
	header, data, ok := strings.Cut(rest, ":")
	if !ok {
		return "", false, errMalformedFrame{frame}
	}
	nStr, totalStr, ok := strings.Cut(header, "/")
	if !ok {
		return "", false, errMalformedFrame{frame}
	}
	n, err := strconv.Atoi(nStr)
	if err != nil || n < 1 {
		return "", false, errMalformedFrame{frame}
	}
	total, err := strconv.Atoi(totalStr)
	if err != nil || total < 1 || n > total {
		return "", false, errMalformedFrame{frame}
	}

	// A different total or a stale sequence starts over.
	if total != a.total || (a.total != 0 && now.Sub(a.startedAt) > reassemblyTimeout) {
		a.parts = make(map[int]string)
		a.total = total
		a.startedAt = now
	}

	a.parts[n] = data
	if len(a.parts) < a.total {
		return "", false, nil
	}

	var b strings.Builder
	for i := 1; i <= a.total; i++ {
		b.WriteString(a.parts[i])
	}
	a.parts = make(map[int]string)
	a.total = 0
	return b.String(), true, nil
}
