// Package ipc implements the host-DSP mailbox protocol: a binary
// command protocol with a 32-bit primary header, message classes
// (GLB_TPLG/GLB_STREAM/GLB_PM/GLB_DEBUG/NOTIFY), single-outstanding-
// request serialization, a notification ring with reserved
// never-dropped slots for xrun/watchdog, and large-config fragmentation
// for payloads that exceed one mailbox window.
package ipc

import "fmt"

// Class is the message class occupying the header's top nibble.
type Class uint8

const (
	ClassTplg Class = iota
	ClassStream
	ClassPM
	ClassDebug
	ClassNotify
)

func (c Class) String() string {
	switch c {
	case ClassTplg:
		return "GLB_TPLG"
	case ClassStream:
		return "GLB_STREAM"
	case ClassPM:
		return "GLB_PM"
	case ClassDebug:
		return "GLB_DEBUG"
	case ClassNotify:
		return "NOTIFY"
	default:
		return "unknown"
	}
}

// Header is the 32-bit primary IPC header: a 4-bit class, a 4-bit
// command within that class, and a 24-bit payload field that carries
// the request's body size on the way in and the reply status on the
// way out.
type Header uint32

const (
	classShift   = 28
	commandShift = 24
	payloadMask  = 0x00FFFFFF
)

// NewHeader packs a class, command, and 24-bit payload into a Header.
// An out-of-range payload is truncated to 24 bits rather than silently
// corrupting the class/command nibbles.
func NewHeader(class Class, command uint8, payload uint32) Header {
	return Header(uint32(class&0xF)<<classShift | uint32(command&0xF)<<commandShift | (payload & payloadMask))
}

func (h Header) Class() Class     { return Class((h >> classShift) & 0xF) }
func (h Header) Command() uint8   { return uint8((h >> commandShift) & 0xF) }
func (h Header) Payload() uint32  { return uint32(h) & payloadMask }

func (h Header) String() string {
	return fmt.Sprintf("%s/%d payload=%d", h.Class(), h.Command(), h.Payload())
}

// WithPayload returns a copy of h with its payload field replaced,
// leaving class and command untouched — used to turn a request header
// into its reply by swapping the size field for a status code.
func (h Header) WithPayload(payload uint32) Header {
	return NewHeader(h.Class(), h.Command(), payload)
}
