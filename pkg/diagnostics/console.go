package diagnostics

import (
	"encoding/binary"
	"errors"

	"github.com/smallnest/ringbuffer"
	"go.uber.org/zap"
)

// maxEncodedEvent bounds one event's wire size; messages longer than this
// are truncated before encoding so a single runaway diagnostic can never
// force the ring buffer to grow or block the producer.
const maxEncodedEvent = 512

// Console is the producer-side handle a task function's TaskContext.Emit
// wraps: a single-producer/single-consumer byte ring that never blocks the
// real-time thread. A full ring silently drops the event and counts it,
// rather than stalling the audio callback waiting for the consumer to
// catch up, matching the engine's real-time constraint that diagnostics
// are best-effort.
type Console struct {
	ring    *ringbuffer.RingBuffer
	dropped uint64
}

// NewConsole allocates a ring buffer sized in bytes. capacityBytes should
// comfortably hold a chunk's worth of worst-case events between two Drain
// calls.
func NewConsole(capacityBytes int) *Console {
	r := ringbuffer.New(capacityBytes)
	r.SetBlocking(false)
	return &Console{ring: r}
}

// Push encodes ev and attempts a non-blocking write. It is safe to call
// from the audio thread: on a full ring it increments Dropped and returns
// immediately rather than waiting for space.
func (c *Console) Push(ev Event) {
	buf := encode(ev)
	n, err := c.ring.TryWrite(buf)
	if err != nil || n < len(buf) {
		c.dropped++
	}
}

// Dropped returns how many events have been discarded for lack of ring
// space since the console was created.
func (c *Console) Dropped() uint64 {
	return c.dropped
}

// Drain pulls every event currently buffered and invokes fn for each, in
// FIFO order. Intended to run off the real-time thread, once per chunk or
// on a background ticker.
func (c *Console) Drain(fn func(Event)) {
	for {
		ev, ok := c.tryPop()
		if !ok {
			return
		}
		fn(ev)
	}
}

func (c *Console) tryPop() (Event, bool) {
	var header [16]byte
	n, err := c.ring.TryRead(header[:])
	if err != nil || n < len(header) {
		return Event{}, false
	}
	size := binary.LittleEndian.Uint32(header[4:8])
	body := make([]byte, size)
	if size > 0 {
		read, err := c.ring.TryRead(body)
		if err != nil || read < int(size) {
			return Event{}, false
		}
	}
	return decodeBody(header, body), true
}

func encode(ev Event) []byte {
	msg := ev.Message
	if len(msg) > maxEncodedEvent {
		msg = msg[:maxEncodedEvent]
	}
	body := encodeBody(ev, msg)
	out := make([]byte, 16+len(body))
	out[0] = byte(ev.Severity)
	out[1] = byte(ev.TaskIndex)
	out[2] = byte(ev.TaskIndex >> 8)
	out[3] = byte(ev.TaskIndex >> 16)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(body)))
	binary.LittleEndian.PutUint64(out[8:16], ev.ChunkSeq)
	copy(out[16:], body)
	return out
}

// encodeBody packs Stage and the (possibly truncated) message behind a
// length-prefixed field each, concatenated; the sizes are tiny and
// fixed-count so a manual scheme is simpler than pulling in a general
// serializer for two strings.
func encodeBody(ev Event, msg string) []byte {
	var out []byte
	out = appendString(out, ev.Stage)
	out = appendString(out, msg)
	return out
}

func appendString(dst []byte, s string) []byte {
	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(s)))
	dst = append(dst, l[:]...)
	return append(dst, s...)
}

func decodeBody(header [16]byte, body []byte) Event {
	severity := Severity(header[0])
	taskIndex := int(header[1]) | int(header[2])<<8 | int(header[3])<<16
	chunkSeq := binary.LittleEndian.Uint64(header[8:16])

	stage, rest := readString(body)
	message, _ := readString(rest)

	return Event{
		ChunkSeq:  chunkSeq,
		Stage:     stage,
		TaskIndex: taskIndex,
		Severity:  severity,
		Message:   message,
	}
}

func readString(b []byte) (string, []byte) {
	if len(b) < 2 {
		return "", nil
	}
	l := binary.LittleEndian.Uint16(b[0:2])
	b = b[2:]
	if int(l) > len(b) {
		return "", nil
	}
	return string(b[:l]), b[l:]
}

// ErrRingClosed is returned by callers that want to distinguish a shutdown
// console from a transient full-ring drop; Console itself never returns it
// today but keeps the sentinel available for a future explicit Close.
var ErrRingClosed = errors.New("diagnostics: console closed")

// Log drains ev into the given zap logger at a level matching its
// Severity, the shape a production driver wires Console.Drain to.
func Log(logger *zap.Logger, ev Event) {
	fields := []zap.Field{
		zap.Uint64("chunk_seq", ev.ChunkSeq),
		zap.String("stage", ev.Stage),
		zap.Int("task_index", ev.TaskIndex),
	}
	switch ev.Severity {
	case Error:
		logger.Error(ev.Message, fields...)
	case Warn:
		logger.Warn(ev.Message, fields...)
	default:
		logger.Info(ev.Message, fields...)
	}
}
