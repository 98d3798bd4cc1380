// Package rpc implements the request/response pairing that consumes the
// queue family: one shared-memory queue per direction, keyed by a common
// channel name. The server creates both queues; clients attach. Framing
// and serialization live entirely here; the queue only sees a fixed-size
// trivially-copyable Frame.
package rpc

import (
	"errors"
	"fmt"

	"github.com/sugawarayuuta/sonnet"
	"github.com/valyala/bytebufferpool"
)

const (
	// MaxMethodLen bounds the method name carried in a frame.
	MaxMethodLen = 32
	// MaxPayloadLen bounds the serialized payload carried in a frame.
	MaxPayloadLen = 1024

	queueNamePrefix = "/omnirt_rpc"
)

// ReqQueueName returns the request-direction queue name for a channel.
func ReqQueueName(channel string) string { return queueNamePrefix + "_req_" + channel }

// RespQueueName returns the response-direction queue name for a channel.
func RespQueueName(channel string) string { return queueNamePrefix + "_resp_" + channel }

const (
	kindRequest  = 1
	kindResponse = 2
)

// Response status codes carried in Frame.Status.
const (
	statusOK         = 0
	statusAppError   = 1
	statusNoMethod   = 2
	statusBadPayload = 3
)

var (
	// ErrMethodTooLong reports a method name over MaxMethodLen bytes.
	ErrMethodTooLong = errors.New("rpc: method name too long")
	// ErrPayloadTooLarge reports a serialized payload over MaxPayloadLen
	// bytes; frames are fixed-size, nothing is fragmented.
	ErrPayloadTooLarge = errors.New("rpc: payload exceeds frame capacity")
)

// Frame is the fixed-size wire element. Every field is a scalar or byte
// array, keeping the type trivially copyable as the shared-memory queue
// requires.
type Frame struct {
	Seq        uint64
	Kind       uint8
	Status     uint8
	MethodLen  uint8
	Method     [MaxMethodLen]byte
	_          [5]byte // align PayloadLen, keep layout explicit
	PayloadLen uint32
	Payload    [MaxPayloadLen]byte
}

func (f *Frame) setMethod(method string) error {
	if len(method) > MaxMethodLen {
		return fmt.Errorf("%w: %q (%d bytes)", ErrMethodTooLong, method, len(method))
	}
	f.MethodLen = uint8(copy(f.Method[:], method))
	return nil
}

func (f *Frame) method() string {
	return string(f.Method[:f.MethodLen])
}

func (f *Frame) payload() []byte {
	return f.Payload[:f.PayloadLen]
}

// encodePayload serializes v into the frame through a pooled scratch
// buffer. A nil v leaves the payload empty.
func (f *Frame) encodePayload(v any) error {
	if v == nil {
		f.PayloadLen = 0
		return nil
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonnet.NewEncoder(buf).Encode(v); err != nil {
		return fmt.Errorf("rpc: encode payload: %w", err)
	}
	b := buf.B
	if n := len(b); n > 0 && b[n-1] == '\n' { // Encode appends a newline
		b = b[:n-1]
	}
	if len(b) > MaxPayloadLen {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(b))
	}
	f.PayloadLen = uint32(copy(f.Payload[:], b))
	return nil
}

// decodePayload deserializes the frame payload into out. A nil out or an
// empty payload is a no-op.
func (f *Frame) decodePayload(out any) error {
	if out == nil || f.PayloadLen == 0 {
		return nil
	}
	if err := sonnet.Unmarshal(f.payload(), out); err != nil {
		return fmt.Errorf("rpc: decode payload: %w", err)
	}
	return nil
}

// wireError is the payload of a non-OK response.
type wireError struct {
	Error string `json:"error"`
}
