// Package device implements the memory-mapped peripherals the guest
// program can drive: an audio output device backed by oto/v3 and a
// file-backed disk.
package device

import (
	"sync"
	"sync/atomic"
)

// Audio register offsets, relative to the device's mapped base.
// freq/channels/samples configure a pending stream; writing a non-zero
// value to init latches them and (re)starts playback; count reports how
// many sample bytes the host backend has drained since the last init.
const (
	AudioRegFreq     = 0x00 // RW, Hz
	AudioRegChannels = 0x04 // RW, 1 or 2
	AudioRegSamples  = 0x08 // RW, frames per buffer
	AudioRegSBufSize = 0x0C // RO, byte size of the stream ring buffer
	AudioRegInit     = 0x10 // WO, a non-zero write (re)initializes the stream
	AudioRegCount    = 0x14 // RO, bytes drained since last init
	AudioRegsSize    = 0x18

	sbufBytes = 64 * 1024
)

// ringBuffer is a byte ring that PCM samples are written into and the
// host audio backend drains from; every access, including the reads
// of the filled count, happens with mu held.
type ringBuffer struct {
	mu     sync.Mutex
	buf    []byte
	head   int // next byte position to write
	tail   int // next byte position to read
	filled int32
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{buf: make([]byte, size)}
}

func (r *ringBuffer) Write(p []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range p {
		if int(atomic.LoadInt32(&r.filled)) >= len(r.buf) {
			break
		}
		r.buf[r.head] = b
		r.head = (r.head + 1) % len(r.buf)
		atomic.AddInt32(&r.filled, 1)
		n++
	}
	return n
}

// ReadSample drains one byte, or 0 if the ring is empty (silence).
func (r *ringBuffer) ReadSample() byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if atomic.LoadInt32(&r.filled) == 0 {
		return 0
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	atomic.AddInt32(&r.filled, -1)
	return b
}

// Player is the host audio backend contract; AudioDevice drives it
// through Start/Stop/SetupStream, and production builds back it with
// oto/v3 while headless builds use a discarding stub.
type Player interface {
	SetupStream(freq, channels int, source func([]byte) (int, error))
	Start()
	Stop()
	Close()
}

// AudioDevice implements machine.DeviceHandler over the register
// contract above, feeding a ring buffer that the host Player drains.
type AudioDevice struct {
	player Player
	ring   *ringBuffer

	freq, channels, samples uint32
	consumed                uint32

	mu sync.Mutex
}

// NewAudioDevice wires player (nil is fine — registers still work, but
// nothing is audible) to a fresh sample ring.
func NewAudioDevice(player Player) *AudioDevice {
	return &AudioDevice{player: player, ring: newRingBuffer(sbufBytes)}
}

// PushSamples feeds PCM bytes into the ring buffer and returns how many
// fit. No bus region routes guest stores here: the device maps only its
// register block.
func (a *AudioDevice) PushSamples(p []byte) int {
	return a.ring.Write(p)
}

func (a *AudioDevice) Read(offset uint32, length int) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch offset {
	case AudioRegFreq:
		return a.freq
	case AudioRegChannels:
		return a.channels
	case AudioRegSamples:
		return a.samples
	case AudioRegSBufSize:
		return sbufBytes
	case AudioRegCount:
		return a.consumed
	default:
		return 0
	}
}

func (a *AudioDevice) Write(offset uint32, length int, value uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch offset {
	case AudioRegFreq:
		a.freq = value
	case AudioRegChannels:
		a.channels = value
	case AudioRegSamples:
		a.samples = value
	case AudioRegInit:
		if value == 0 {
			break
		}
		a.consumed = 0
		if a.player != nil {
			a.player.SetupStream(int(a.freq), int(a.channels), a.drain)
			a.player.Start()
		}
	}
}

func (a *AudioDevice) drain(p []byte) (int, error) {
	for i := range p {
		p[i] = a.ring.ReadSample()
	}
	a.mu.Lock()
	a.consumed += uint32(len(p))
	a.mu.Unlock()
	return len(p), nil
}

// Close stops and releases the host backend.
func (a *AudioDevice) Close() {
	if a.player != nil {
		a.player.Close()
	}
}
