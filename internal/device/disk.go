package device

import (
	"fmt"
	"os"
)

// Disk register offsets. The guest stages a block number and count,
// points io_buf at a guest physical address holding (or to receive)
// blkcnt*BlockSize bytes, then writes a command to io_cmd.
const (
	DiskRegPresent  = 0x00 // RO, 1 if a disk image is attached
	DiskRegBlkSize  = 0x04 // RO, bytes per block
	DiskRegBlkCnt   = 0x08 // RO, total blocks in the image
	DiskRegIOBuf    = 0x0C // RW, guest physical address of the transfer buffer
	DiskRegIOBlkNo  = 0x10 // RW, starting block number
	DiskRegIOBlkCnt = 0x14 // RW, blocks to transfer
	DiskRegIOCmd    = 0x18 // WO, DiskCmdRead or DiskCmdWrite
	DiskRegsSize    = 0x1C

	// BlockSize is the fixed sector size this device ever transfers.
	BlockSize = 512
)

// Disk commands written to DiskRegIOCmd.
const (
	DiskCmdRead  = 1
	DiskCmdWrite = 2
)

// MemoryAccessor is the slice of Bus the disk needs to move bytes
// to/from guest physical memory without importing package machine
// (avoiding a device -> machine -> device import cycle risk as more
// devices are added).
type MemoryAccessor interface {
	ReadBytes(paddr uint32, n int) []byte
	WriteBytes(paddr uint32, data []byte)
}

// Disk implements machine.DeviceHandler over a file-backed image. Open
// a path (typically from the "diskimg" environment variable) with
// NewDisk; present is false and every transfer is a no-op if no image
// was attached.
type Disk struct {
	f       *os.File
	size    int64
	present bool

	ioBuf, ioBlkNo, ioBlkCnt uint32
	mem                      MemoryAccessor
}

// NewDisk opens path for read/write. An empty path yields a Disk with
// present()==0, matching "no disk attached".
func NewDisk(path string, mem MemoryAccessor) (*Disk, error) {
	d := &Disk{mem: mem}
	if path == "" {
		return d, nil
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("device: open disk image %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("device: stat disk image %s: %w", path, err)
	}
	d.f = f
	d.size = info.Size()
	d.present = true
	return d, nil
}

func (d *Disk) blockCount() uint32 {
	return uint32((d.size + BlockSize - 1) / BlockSize)
}

func (d *Disk) Read(offset uint32, length int) uint32 {
	switch offset {
	case DiskRegPresent:
		if d.present {
			return 1
		}
		return 0
	case DiskRegBlkSize:
		return BlockSize
	case DiskRegBlkCnt:
		return d.blockCount()
	case DiskRegIOBuf:
		return d.ioBuf
	case DiskRegIOBlkNo:
		return d.ioBlkNo
	case DiskRegIOBlkCnt:
		return d.ioBlkCnt
	default:
		return 0
	}
}

func (d *Disk) Write(offset uint32, length int, value uint32) {
	switch offset {
	case DiskRegIOBuf:
		d.ioBuf = value
	case DiskRegIOBlkNo:
		d.ioBlkNo = value
	case DiskRegIOBlkCnt:
		d.ioBlkCnt = value
	case DiskRegIOCmd:
		d.doTransfer(value)
	}
}

func (d *Disk) doTransfer(cmd uint32) {
	if !d.present || d.mem == nil {
		return
	}
	n := int(d.ioBlkCnt) * BlockSize
	off := int64(d.ioBlkNo) * BlockSize
	switch cmd {
	case DiskCmdRead:
		buf := make([]byte, n)
		if _, err := d.f.ReadAt(buf, off); err != nil {
			return
		}
		d.mem.WriteBytes(d.ioBuf, buf)
	case DiskCmdWrite:
		buf := d.mem.ReadBytes(d.ioBuf, n)
		d.f.WriteAt(buf, off)
	}
}

// Close releases the backing file.
func (d *Disk) Close() error {
	if d.f != nil {
		return d.f.Close()
	}
	return nil
}
