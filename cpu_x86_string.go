// cpu_x86_string.go - 808x string instructions and the REP element state machine
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// A REP-prefixed string instruction runs one element per Step. Between
// elements the instruction stays "repeating" with completed cleared, so the
// opcode is not refetched and interrupts are only taken by repAction, which
// rewinds IP to the prefix so the instruction restarts after the handler.

// repAction runs the per-element REP bookkeeping. It returns true when the
// repetition is over (CX exhausted or an interrupt is pending).
func (c *CPU_X86) repAction() bool {
	if c.inRep == 0 {
		return false
	}
	c.wait(2, 0)
	t := c.regs[x86RegCX]
	if c.irqPending(false) && c.repeating {
		c.clearQueue()
		rewind := uint16(2)
		if c.nec && c.ovr != x86NoOverride {
			rewind = 3
		}
		c.setIP(c.IP - rewind)
		t = 0
	}
	if t == 0 {
		c.wait(1, 0)
		c.completed = true
		c.repeating = false
		return true
	}
	c.regs[x86RegCX]--
	c.completed = false
	c.wait(2, 0)
	if !c.repeating {
		c.wait(2, 0)
	}
	return false
}

// continueRep marks the instruction as mid-repetition and closes the
// accounting period so timers see each element.
func (c *CPU_X86) continueRep() {
	c.repeating = true
	c.clockEnd()
}

func (c *CPU_X86) stringIncrement(width int) uint16 {
	d := uint16(width >> 3)
	if c.DF() {
		c.eaAddr -= d
	} else {
		c.eaAddr += d
	}
	return c.eaAddr
}

func (c *CPU_X86) lods(width int) {
	c.eaAddr = c.regs[x86RegSI]
	c.data = c.readMemEA(c.dataSeg(), width)
	c.regs[x86RegSI] = c.stringIncrement(width)
}

func (c *CPU_X86) stos(width int) {
	c.eaAddr = c.regs[x86RegDI]
	c.writeMemEA(c.esBase(), width, c.data)
	c.regs[x86RegDI] = c.stringIncrement(width)
}

func (c *CPU_X86) opMOVS_LODS() {
	width := c.opBits()
	isLODS := c.opcode&8 != 0
	if !c.repeating {
		c.wait(1, 0)
		if !isLODS && c.inRep != 0 {
			c.wait(1, 0)
		}
	}
	if c.repAction() {
		c.wait(1, 0)
		if isLODS {
			c.wait(1, 0)
		}
		return
	}
	if c.inRep != 0 && isLODS {
		c.wait(1, 0)
	}
	c.access(20)
	c.lods(width)
	if !isLODS {
		c.access(27)
		c.stos(width)
	} else {
		c.setAccum(width, c.data)
		if c.inRep != 0 {
			c.wait(2, 0)
		}
	}
	if c.inRep == 0 {
		c.wait(3, 0)
		if isLODS {
			c.wait(1, 0)
		}
		return
	}
	c.continueRep()
}

func (c *CPU_X86) opCMPS_SCAS() {
	width := c.opBits()
	if !c.repeating {
		c.wait(1, 0)
	}
	if c.repAction() {
		c.wait(2, 0)
		return
	}
	if c.inRep != 0 {
		c.wait(1, 0)
	}
	c.wait(1, 0)
	c.dest = c.getAccum(width)
	if c.opcode&8 == 0 {
		// CMPS compares DS:SI against ES:DI
		c.access(21)
		c.lods(width)
		c.wait(1, 0)
		c.dest = c.data
	}
	c.access(2)
	c.eaAddr = c.regs[x86RegDI]
	c.data = c.readMemEA(c.esBase(), width)
	c.regs[x86RegDI] = c.stringIncrement(width)
	c.src = c.data
	c.sub(width)
	c.wait(2, 0)
	if c.inRep == 0 {
		c.wait(3, 0)
		return
	}
	// REPE stops on mismatch (ZF clear), REPNE on match; REPC/REPNC use CF
	flag := c.ZF()
	if c.repCFlag {
		flag = c.CF()
	}
	if flag == (c.inRep == 1) {
		c.completed = true
		c.wait(4, 0)
		return
	}
	c.continueRep()
}

func (c *CPU_X86) opSTOS() {
	width := c.opBits()
	if !c.repeating {
		c.wait(1, 0)
		if c.inRep != 0 {
			c.wait(1, 0)
		}
	}
	if c.repAction() {
		c.wait(1, 0)
		return
	}
	c.data = uint32(c.regs[x86RegAX])
	c.access(28)
	c.stos(width)
	if c.inRep == 0 {
		c.wait(3, 0)
		return
	}
	c.continueRep()
}

// opINS reads DX into ES:DI (80186/V-series).
func (c *CPU_X86) opINS() {
	width := c.opBits()
	if !c.repeating {
		c.wait(2, 0)
	}
	if c.repAction() {
		return
	} else if !c.repeating {
		c.wait(7, 0)
	}
	v := c.cpuIO(width, false, c.regs[x86RegDX], 0)
	if width == 16 {
		c.writeMemW(c.esBase(), c.regs[x86RegDI], v)
	} else {
		c.writeMemB(c.esBase(), uint32(c.regs[x86RegDI]), byte(v))
	}
	c.regs[x86RegDI] = c.stepIndex(c.regs[x86RegDI], width)
	if c.inRep == 0 {
		return
	}
	c.continueRep()
}

// opOUTS writes DS:SI (or the override segment) to DX.
func (c *CPU_X86) opOUTS() {
	seg := c.dataSeg()
	width := c.opBits()
	if !c.repeating {
		c.wait(2, 0)
	}
	if c.repAction() {
		return
	} else if !c.repeating {
		c.wait(7, 0)
	}
	var v uint16
	if width == 16 {
		v = c.readMemW(seg, c.regs[x86RegSI])
	} else {
		v = uint16(c.readMemB(seg + uint32(c.regs[x86RegSI])))
	}
	c.cpuIO(width, true, c.regs[x86RegDX], v)
	c.regs[x86RegSI] = c.stepIndex(c.regs[x86RegSI], width)
	if c.inRep == 0 {
		return
	}
	c.continueRep()
}

func (c *CPU_X86) stepIndex(v uint16, width int) uint16 {
	if c.DF() {
		return v - uint16(width>>3)
	}
	return v + uint16(width>>3)
}
