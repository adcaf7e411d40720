// Package bridge forwards newline-delimited traffic between a USB serial
// port and the BLE TX/RX characteristics. Long lines are split into CHUNK
// frames on the way out and reassembled on the way in, so payloads larger
// than one notification survive the trip.
package bridge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"
)

// maxLineBuffer guards against a runaway unterminated line.
const maxLineBuffer = 4096

// Notifier is the slice of the GATT session the bridge needs.
type Notifier interface {
	Send(data []byte) error
	Connected() bool
}

// OpenPort opens the serial side of the bridge.
func OpenPort(name string, baud int) (serial.Port, error) {
	port, err := serial.Open(name, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("bridge: open %s: %w", name, err)
	}
	return port, nil
}

// lineQueueDepth bounds serial lines awaiting a Service pass.
const lineQueueDepth = 32

// Bridge shuttles lines between the serial port and the BLE session. Run
// owns the serial read side and only queues complete lines; HandleNotify
// and Service must be called from the coordination loop, which is the sole
// caller into the session.
type Bridge struct {
	port    io.ReadWriter
	session Notifier

	asm   *assembler
	buf   []byte
	lines chan string
	now   func() time.Time
}

// New creates a bridge over an open port.
func New(port io.ReadWriter, session Notifier) *Bridge {
	return &Bridge{
		port:    port,
		session: session,
		asm:     newAssembler(),
		lines:   make(chan string, lineQueueDepth),
		now:     time.Now,
	}
}

// HandleNotify processes one payload received over BLE: chunk frames are
// reassembled, complete messages written to the serial port with a trailing
// newline. Malformed chunk frames are forwarded raw rather than dropped.
func (b *Bridge) HandleNotify(payload []byte) {
	msg := string(payload)

	if !bytes.HasPrefix(payload, []byte(chunkPrefix)) {
		b.writeLine(msg)
		return
	}

	full, done, err := b.asm.feed(msg, b.now())
	if err != nil {
		slog.Warn("[Bridge] malformed chunk frame, forwarding raw")
		b.writeLine("RAW:" + msg)
		return
	}
	if done {
		b.writeLine(full)
	}
}

// Run reads the serial port until ctx is cancelled, queueing each complete
// line for the next Service pass. It never touches the session.
func (b *Bridge) Run(ctx context.Context) error {
	slog.Info("[Bridge] serial reader started")
	chunk := make([]byte, 256)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := b.port.Read(chunk)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("bridge: serial read: %w", err)
		}
		if n == 0 {
			continue
		}
		b.buf = append(b.buf, chunk[:n]...)
		b.drainLines()
	}
}

// drainLines extracts complete lines from the buffer and queues them. A
// full queue means the loop has stalled; the line is dropped.
func (b *Bridge) drainLines() {
	if len(b.buf) > maxLineBuffer && !bytes.ContainsRune(b.buf, '\n') {
		slog.Warn("[Bridge] line buffer overflow, clearing", "len", len(b.buf))
		b.buf = b.buf[:0]
		return
	}

	for {
		idx := bytes.IndexByte(b.buf, '\n')
		if idx < 0 {
			return
		}
		line := string(b.buf[:idx])
		b.buf = b.buf[idx+1:]
		select {
		case b.lines <- line:
		default:
			slog.Warn("[Bridge] line queue full, dropping")
		}
	}
}

// Service flushes queued serial lines over BLE, framed if necessary. Called
// once per coordination pass, on the loop goroutine.
func (b *Bridge) Service() {
	for {
		select {
		case line := <-b.lines:
			b.sendLine(line)
		default:
			return
		}
	}
}

// sendLine ships one serial line over BLE, framed if necessary. Send
// failures are logged and the line dropped; serial input is a live stream
// and stale lines are worse than missing ones.
func (b *Bridge) sendLine(line string) {
	if !b.session.Connected() {
		return
	}
	frames := splitFrames(line + "\n")
	for _, f := range frames {
		if err := b.session.Send([]byte(f)); err != nil {
			slog.Warn("[Bridge] send failed", "error", err)
			return
		}
	}
}

func (b *Bridge) writeLine(msg string) {
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	if _, err := io.WriteString(b.port, msg); err != nil {
		slog.Warn("[Bridge] serial write failed", "error", err)
	}
}
