package machine

import (
	"encoding/binary"
	"fmt"
)

// DeviceHandler is implemented by memory-mapped peripherals. offset is
// relative to the region's registered base address; length is 1, 2 or 4.
type DeviceHandler interface {
	Read(offset uint32, length int) uint32
	Write(offset uint32, length int, value uint32)
}

type deviceRegion struct {
	name    string
	base    uint32
	length  uint32
	handler DeviceHandler
}

// Bus is the memory fabric: a contiguous RAM block plus a small list of
// registered device regions, dispatched by address range the way the
// teacher's SystemBus multiplexes RAM and I/O — generalized here to
// byte/half/word granularity rather than word-only access, since the
// guest ISA this spec targets needs all three.
type Bus struct {
	ram     []byte
	base    uint32
	devices []deviceRegion
}

// NewBus allocates size bytes of RAM addressed starting at base.
func NewBus(base, size uint32) *Bus {
	return &Bus{ram: make([]byte, size), base: base}
}

// MapDevice registers a device over [base, base+length).
func (b *Bus) MapDevice(name string, base, length uint32, h DeviceHandler) {
	b.devices = append(b.devices, deviceRegion{name: name, base: base, length: length, handler: h})
}

func (b *Bus) find(paddr uint32) (*deviceRegion, bool) {
	for i := range b.devices {
		d := &b.devices[i]
		if paddr >= d.base && paddr < d.base+d.length {
			return d, true
		}
	}
	return nil, false
}

// ReadPhysical performs a 1/2/4-byte physical read, routing through a
// device handler when the address falls in a registered region.
func (b *Bus) ReadPhysical(paddr uint32, length int) uint32 {
	if d, ok := b.find(paddr); ok {
		return d.handler.Read(paddr-d.base, length)
	}
	off := paddr - b.base
	switch length {
	case 1:
		return uint32(b.ram[off])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b.ram[off : off+2]))
	case 4:
		return binary.LittleEndian.Uint32(b.ram[off : off+4])
	default:
		panic(fmt.Sprintf("machine: unsupported access length %d", length))
	}
}

// WritePhysical performs a 1/2/4-byte physical write, routing through a
// device handler when the address falls in a registered region.
func (b *Bus) WritePhysical(paddr uint32, length int, value uint32) {
	if d, ok := b.find(paddr); ok {
		d.handler.Write(paddr-d.base, length, value)
		return
	}
	off := paddr - b.base
	switch length {
	case 1:
		b.ram[off] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(b.ram[off:off+2], uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(b.ram[off:off+4], value)
	default:
		panic(fmt.Sprintf("machine: unsupported access length %d", length))
	}
}

// ReadPhysical32 is a convenience wrapper used by the MMU page walk.
func (b *Bus) ReadPhysical32(paddr uint32) uint32 { return b.ReadPhysical(paddr, 4) }

// ReadBytes copies n bytes of RAM starting at the physical address
// paddr, for bulk transfers like disk DMA. It does not route through
// device regions; callers use it only against RAM-backed buffers.
func (b *Bus) ReadBytes(paddr uint32, n int) []byte {
	off := paddr - b.base
	out := make([]byte, n)
	copy(out, b.ram[off:int(off)+n])
	return out
}

// WriteBytes is the bulk-transfer counterpart to ReadBytes.
func (b *Bus) WriteBytes(paddr uint32, data []byte) {
	off := paddr - b.base
	copy(b.ram[off:int(off)+len(data)], data)
}

// RAM exposes the raw backing slice, for snapshot save/load.
func (b *Bus) RAM() []byte { return b.ram }

// Base returns the guest base address RAM is mapped at.
func (b *Bus) Base() uint32 { return b.base }

// Reset clears RAM to zero. Device state is untouched.
func (b *Bus) Reset() {
	for i := range b.ram {
		b.ram[i] = 0
	}
}
