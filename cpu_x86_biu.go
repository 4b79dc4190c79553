// cpu_x86_biu.go - 808x bus interface unit: prefetch queue, bus cycles and cycle accounting
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// The BIU runs a 4 T-state bus cycle. biu tracks the current T-state; a free
// bus cycle is one that completes (biu wraps to 0) while no EU access holds
// the bus, and each one can fetch a byte (8088) or word (8086) into the queue.

// -----------------------------------------------------------------------------
// Cycle accounting
// -----------------------------------------------------------------------------

func (c *CPU_X86) clockStart() {
	c.cycDiff = c.cycles
}

// clockEnd closes an accounting period: cycles consumed since clockStart are
// converted to TSC ticks and due timers run.
func (c *CPU_X86) clockEnd() {
	diff := c.cycDiff - c.cycles
	c.tsc += uint64(diff) * c.multiplier
	if c.timers != nil && c.tsc >= c.timers.NextDeadline() {
		c.timers.ProcessDue(c.tsc)
	}
}

// fetchAndBus advances the BIU by n T-states. Pending DRAM refresh cycles are
// inserted first, aligned to the next bus cycle boundary. bus is 0 for an
// idle-bus wait (prefetch allowed), 1 for an EU bus access and 2 for a
// device-side debit that must not close the accounting period.
func (c *CPU_X86) fetchAndBus(n int, bus int) {
	if c.refresh > 0 {
		align := (4 - (c.biu & 3)) & 3
		c.cycles -= align
		c.pfqAdd(align, true)
		c.cycles -= 4
		c.pfqAdd(4, false)
		c.refresh--
	}
	c.pfqAdd(n, bus == 0)
	if bus < 2 {
		c.clockEnd()
		c.clockStart()
	}
}

func (c *CPU_X86) wait(n int, bus int) {
	c.cycles -= n
	c.fetchAndBus(n, bus)
}

// SubCycles consumes n cycles with the bus held (no prefetch).
func (c *CPU_X86) SubCycles(n int) {
	if n > 0 {
		c.cycles -= n
		c.fetchAndBus(n, 2)
	}
}

// resubCycles accounts for cycles a device debited directly during an access.
func (c *CPU_X86) resubCycles(old int) {
	if old > c.cycles {
		diff := old - c.cycles
		c.cycles = old
		c.SubCycles(diff)
	}
}

// RefreshRead schedules one DRAM refresh bus cycle (DMA channel 0 / PIT 1).
func (c *CPU_X86) RefreshRead() {
	c.refresh++
}

// -----------------------------------------------------------------------------
// Prefetch queue
// -----------------------------------------------------------------------------

func (c *CPU_X86) pfqWrite() {
	if c.wide {
		// 8086 fetches a word at a time and needs room for both bytes
		if c.pfqPos < c.pfqSize-1 {
			w := c.bus.Read16((c.csBase() + uint32(c.pfqIP)) & x86AddressMask)
			c.pfq[c.pfqPos] = byte(w)
			c.pfq[c.pfqPos+1] = byte(w >> 8)
			c.pfqIP += 2
			c.pfqPos += 2
		}
		return
	}
	if c.pfqPos < c.pfqSize {
		c.pfq[c.pfqPos] = c.bus.Read((c.csBase() + uint32(c.pfqIP)) & x86AddressMask)
		c.pfqIP++
		c.pfqPos++
	}
}

func (c *CPU_X86) pfqRead() byte {
	v := c.pfq[0]
	copy(c.pfq[:c.pfqSize-1], c.pfq[1:c.pfqSize])
	c.pfqPos--
	c.IP++
	return v
}

func (c *CPU_X86) fetchCommon() byte {
	if c.pfqPos == 0 {
		// Queue empty: the EU waits for a fetch started at IP
		c.pfqIP = c.IP
		c.wait(4-(c.biu&3), 0)
	}
	return c.pfqRead()
}

func (c *CPU_X86) fetchByte() byte {
	v := c.fetchCommon()
	c.wait(1, 0)
	return v
}

func (c *CPU_X86) fetchWord() uint16 {
	lo := c.fetchCommon()
	c.wait(1, 0)
	hi := c.fetchCommon()
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU_X86) pfqAdd(n int, add bool) {
	if n <= 0 || c.pfqPos >= c.pfqSize {
		return
	}
	for i := 0; i < n; i++ {
		c.biu = (c.biu + 1) & 3
		if c.prefetching && add && c.biu == 0 {
			c.pfqWrite()
		}
	}
}

func (c *CPU_X86) clearQueue() {
	c.pfqPos = 0
	c.prefetching = false
}

// setIP restarts prefetch at ip after a queue flush.
func (c *CPU_X86) setIP(ip uint16) {
	c.pfqIP = ip
	c.IP = ip
	c.prefetching = true
}

// QueueLen returns the number of bytes currently in the prefetch queue.
func (c *CPU_X86) QueueLen() int { return c.pfqPos }

// QueueBytes returns a copy of the valid prefetch queue contents.
func (c *CPU_X86) QueueBytes() []byte {
	out := make([]byte, c.pfqPos)
	copy(out, c.pfq[:c.pfqPos])
	return out
}

// -----------------------------------------------------------------------------
// Memory and I/O bus cycles
// -----------------------------------------------------------------------------

func (c *CPU_X86) ioWait() int {
	if c.mazovia {
		return 5
	}
	return 4
}

func (c *CPU_X86) cpuIO(bits int, out bool, port uint16, val uint16) uint16 {
	c.wait(c.ioWait(), 1)
	var ret uint16
	if bits == 16 {
		if c.wide && port&1 == 0 {
			old := c.cycles
			if out {
				c.bus.Out16(port, val)
			} else {
				ret = c.bus.In16(port)
			}
			c.resubCycles(old)
		} else {
			c.wait(c.ioWait(), 1)
			old := c.cycles
			if out {
				c.bus.Out(port, byte(val))
				c.bus.Out(port+1, byte(val>>8))
			} else {
				ret = uint16(c.bus.In(port)) | uint16(c.bus.In(port+1))<<8
			}
			c.resubCycles(old)
		}
		return ret
	}
	old := c.cycles
	if out {
		c.bus.Out(port, byte(val))
	} else {
		ret = uint16(c.bus.In(port))
	}
	c.resubCycles(old)
	return ret
}

func (c *CPU_X86) inByte(port uint16) byte { return byte(c.cpuIO(8, false, port, 0)) }
func (c *CPU_X86) inWord(port uint16) uint16 { return c.cpuIO(16, false, port, 0) }
func (c *CPU_X86) outByte(port uint16, v byte) { c.cpuIO(8, true, port, uint16(v)) }
func (c *CPU_X86) outWord(port uint16, v uint16) { c.cpuIO(16, true, port, v) }

func (c *CPU_X86) readMemB(addr uint32) byte {
	c.wait(4, 1)
	return c.bus.Read(addr & x86AddressMask)
}

// highOffset is where the second byte of a split word access lands. The
// 80186 carries into the next segment; the others wrap at 64K.
func (c *CPU_X86) highOffset(off uint16) uint32 {
	if c.ext186 && !c.nec {
		return uint32(off) + 1
	}
	return uint32(off + 1)
}

func (c *CPU_X86) readMemW(seg uint32, off uint16) uint16 {
	c.wait(4, 1)
	if c.wide && off&1 == 0 {
		return c.bus.Read16((seg + uint32(off)) & x86AddressMask)
	}
	c.wait(4, 1)
	lo := c.bus.Read((seg + uint32(off)) & x86AddressMask)
	hi := c.bus.Read((seg + c.highOffset(off)) & x86AddressMask)
	return uint16(lo) | uint16(hi)<<8
}

func (c *CPU_X86) readMemL(seg uint32, off uint16) uint32 {
	hi := c.readMemW(seg, off+2)
	return uint32(hi)<<16 | uint32(c.readMemW(seg, off))
}

func (c *CPU_X86) readMemQ(seg uint32, off uint16) uint64 {
	hi := c.readMemL(seg, off+4)
	return uint64(hi)<<32 | uint64(c.readMemL(seg, off))
}

func (c *CPU_X86) noteBIOSWrite(addr uint32) {
	if addr >= 0xF0000 && addr <= 0xFFFFF {
		c.lastAddr = uint16(addr)
	}
}

func (c *CPU_X86) writeMemB(seg uint32, off uint32, v byte) {
	addr := (seg + off) & x86AddressMask
	c.wait(4, 1)
	c.bus.Write(addr, v)
	c.noteBIOSWrite(addr)
}

func (c *CPU_X86) writeMemW(seg uint32, off uint16, v uint16) {
	addr := (seg + uint32(off)) & x86AddressMask
	c.wait(4, 1)
	if c.wide && off&1 == 0 {
		c.bus.Write16(addr, v)
	} else {
		c.bus.Write(addr, byte(v))
		c.wait(4, 1)
		addr = (seg + c.highOffset(off)) & x86AddressMask
		c.bus.Write(addr, byte(v>>8))
	}
	c.noteBIOSWrite(addr)
}

func (c *CPU_X86) writeMemL(seg uint32, off uint16, v uint32) {
	c.writeMemW(seg, off, uint16(v))
	c.writeMemW(seg, off+2, uint16(v>>16))
}

func (c *CPU_X86) writeMemQ(seg uint32, off uint16, v uint64) {
	c.writeMemL(seg, off, uint32(v))
	c.writeMemL(seg, off+4, uint32(v>>32))
}

// access inserts the EU-internal delay that precedes bus access number n in
// the microcode. Most are fixed; a few flush the queue mid-sequence.
func (c *CPU_X86) access(n int) {
	switch n {
	case 1, 6, 7, 8, 9, 17, 20, 21, 24, 28, 47, 48, 49, 50, 51, 55, 56, 62, 66, 68:
		c.wait(1, 0)
	case 3, 11, 15, 22, 23, 25, 26, 35, 44, 45, 46, 52, 53, 54:
		c.wait(2, 0)
	case 16, 18, 19, 27, 32, 37, 42:
		c.wait(3, 0)
	case 10, 12, 13, 14, 29, 30, 33, 34, 39, 41, 60:
		c.wait(4, 0)
	case 4, 70:
		c.wait(5, 0)
	case 31, 38, 40:
		c.wait(6, 0)
	case 5:
		if c.opcode == 0xCC {
			c.wait(7, 0)
		} else {
			c.wait(4, 0)
		}
	case 36:
		c.wait(1, 0)
		c.clearQueue()
		c.wait(1, 0)
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.wait(3, 0)
	case 43:
		c.wait(2, 0)
		c.clearQueue()
		c.wait(1, 0)
	case 57:
		if c.mod != 3 {
			c.wait(2, 0)
		}
		c.wait(4, 0)
	case 58:
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.wait(4, 0)
	case 59:
		c.wait(2, 0)
		c.clearQueue()
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.wait(3, 0)
	case 65:
		c.wait(1, 0)
		c.clearQueue()
		c.wait(2, 0)
		if c.mod != 3 {
			c.wait(1, 0)
		}
	}
}
