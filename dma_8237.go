// dma_8237.go - Intel 8237A DMA controller with XT page registers

package main

import (
	"fmt"
	"os"
)

const (
	// DMAOver is ORed into a transfer result on terminal count.
	DMAOver = 0x10000
	// DMANoData is returned when the channel is masked.
	DMANoData = -1
)

// DMAController is the device-side view of the DMA engine used by the FDC.
type DMAController interface {
	SetDRQ(ch int, active bool)
	ChannelRead(ch int) int
	ChannelWrite(ch int, b byte) int
	Mode(ch int) byte
}

// dmaMemory is the memory side of a transfer.
type dmaMemory interface {
	Read(addr uint32) byte
	Write(addr uint32, value byte)
}

type dmaChannel struct {
	baseAddr  uint16
	baseCount uint16
	addr      uint16
	count     uint16
	page      byte
	mode      byte
	masked    bool
	drq       bool
}

// DMA8237 is the 4-channel 8-bit controller of the PC/XT.
type DMA8237 struct {
	ch       [4]dmaChannel
	command  byte
	status   byte
	flipflop bool
	temp     byte

	mem dmaMemory

	Debug bool
}

// XT page register port for each channel.
var dmaPagePorts = [4]uint16{0x87, 0x83, 0x81, 0x82}

func NewDMA8237(mem dmaMemory) *DMA8237 {
	d := &DMA8237{mem: mem}
	d.Reset()
	return d
}

// Reset is a master clear: all channels masked, flip-flop cleared.
func (d *DMA8237) Reset() {
	for i := range d.ch {
		d.ch[i].masked = true
		d.ch[i].drq = false
	}
	d.command = 0
	d.status = 0
	d.flipflop = false
}

// SetDRQ drives the request line of channel ch.
func (d *DMA8237) SetDRQ(ch int, active bool) {
	d.ch[ch&3].drq = active
	if active {
		d.status |= 0x10 << (ch & 3)
	} else {
		d.status &^= 0x10 << (ch & 3)
	}
}

func (ch *dmaChannel) physAddr() uint32 {
	return uint32(ch.page)<<16 | uint32(ch.addr)
}

// step advances address and count after one byte. It reports terminal
// count, reloading on autoinit or masking the channel otherwise.
func (d *DMA8237) step(n int) bool {
	ch := &d.ch[n]
	if ch.mode&0x20 != 0 {
		ch.addr--
	} else {
		ch.addr++
	}
	ch.count--
	if ch.count != 0xFFFF {
		return false
	}
	d.status |= 1 << n
	if ch.mode&0x10 != 0 {
		ch.addr = ch.baseAddr
		ch.count = ch.baseCount
	} else {
		ch.masked = true
	}
	if d.Debug {
		fmt.Fprintf(os.Stderr, "dma: channel %d terminal count\n", n)
	}
	return true
}

// ChannelRead fetches the next byte from memory for a device (memory read
// transfer).
func (d *DMA8237) ChannelRead(n int) int {
	n &= 3
	ch := &d.ch[n]
	if ch.masked || d.command&0x04 != 0 {
		return DMANoData
	}
	v := int(d.mem.Read(ch.physAddr()))
	if d.step(n) {
		v |= DMAOver
	}
	return v
}

// ChannelWrite stores a byte from a device into memory (memory write
// transfer). Verify transfers advance without writing.
func (d *DMA8237) ChannelWrite(n int, b byte) int {
	n &= 3
	ch := &d.ch[n]
	if ch.masked || d.command&0x04 != 0 {
		return DMANoData
	}
	if ch.mode&0x0C == 0x04 {
		d.mem.Write(ch.physAddr(), b)
	}
	if d.step(n) {
		return DMAOver
	}
	return 0
}

// Count returns the remaining count of channel n.
func (d *DMA8237) Count(n int) uint16 { return d.ch[n&3].count }

// Address returns the current 20-bit address of channel n.
func (d *DMA8237) Address(n int) uint32 { return d.ch[n&3].physAddr() }

// Mode returns the mode register of channel n.
func (d *DMA8237) Mode(n int) byte { return d.ch[n&3].mode }

// Masked reports whether channel n is masked.
func (d *DMA8237) Masked(n int) bool { return d.ch[n&3].masked }

// Read handles an IN from ports 00h-0Fh.
func (d *DMA8237) Read(port uint16) byte {
	port &= 0x0F
	if port < 8 {
		ch := &d.ch[port>>1]
		v := ch.addr
		if port&1 != 0 {
			v = ch.count
		}
		d.flipflop = !d.flipflop
		if d.flipflop {
			return byte(v)
		}
		return byte(v >> 8)
	}
	switch port {
	case 0x08:
		v := d.status
		d.status &^= 0x0F
		return v
	case 0x0D:
		return d.temp
	case 0x0F:
		var v byte = 0xF0
		for i := range d.ch {
			if d.ch[i].masked {
				v |= 1 << i
			}
		}
		return v
	}
	return 0xFF
}

// Write handles an OUT to ports 00h-0Fh.
func (d *DMA8237) Write(port uint16, v byte) {
	port &= 0x0F
	if port < 8 {
		ch := &d.ch[port>>1]
		p := &ch.baseAddr
		if port&1 != 0 {
			p = &ch.baseCount
		}
		if !d.flipflop {
			*p = *p&0xFF00 | uint16(v)
		} else {
			*p = *p&0x00FF | uint16(v)<<8
		}
		d.flipflop = !d.flipflop
		ch.addr = ch.baseAddr
		ch.count = ch.baseCount
		return
	}
	switch port {
	case 0x08:
		d.command = v
	case 0x09:
		d.SetDRQ(int(v&3), v&4 != 0)
	case 0x0A:
		d.ch[v&3].masked = v&4 != 0
	case 0x0B:
		d.ch[v&3].mode = v
	case 0x0C:
		d.flipflop = false
	case 0x0D:
		d.Reset()
	case 0x0E:
		for i := range d.ch {
			d.ch[i].masked = false
		}
	case 0x0F:
		for i := range d.ch {
			d.ch[i].masked = v&(1<<i) != 0
		}
	}
}

// ReadPage handles an IN from a page register port.
func (d *DMA8237) ReadPage(port uint16) byte {
	for i, p := range dmaPagePorts {
		if p == port {
			return d.ch[i].page
		}
	}
	return 0xFF
}

// WritePage handles an OUT to a page register port.
func (d *DMA8237) WritePage(port uint16, v byte) {
	for i, p := range dmaPagePorts {
		if p == port {
			d.ch[i].page = v & 0x0F
		}
	}
}
