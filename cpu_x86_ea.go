// cpu_x86_ea.go - ModRM decoding, effective address accessors and the stack
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "fmt"

// X86FatalError is raised (via panic) when the core hits a state that real
// hardware cannot reach, such as an 8087 operand of an unsupported width.
type X86FatalError struct {
	CS, IP uint16
	Msg    string
}

func (e *X86FatalError) Error() string {
	return fmt.Sprintf("cpu_x86: fatal at %04X:%04X: %s", e.CS, e.IP, e.Msg)
}

func (c *CPU_X86) fatal(format string, args ...any) {
	panic(&X86FatalError{CS: c.CS(), IP: c.IP, Msg: fmt.Sprintf(format, args...)})
}

var (
	modrmBase0 = [8]int{x86RegBX, x86RegBX, x86RegBP, x86RegBP, x86RegSI, x86RegDI, x86RegBP, x86RegBX}
	modrmBase1 = [8]int{x86RegSI, x86RegDI, x86RegSI, x86RegDI, -1, -1, -1, -1}
	modrmSeg   = [8]int{x86SegDS, x86SegDS, x86SegSS, x86SegSS, x86SegDS, x86SegDS, x86SegSS, x86SegDS}
)

// decodeModRM fetches the ModRM byte and any displacement and computes the
// effective address with the 8088's EA calculation timing.
func (c *CPU_X86) decodeModRM() {
	c.modrm = c.fetchByte()
	c.reg = (c.modrm >> 3) & 7
	c.mod = (c.modrm >> 6) & 3
	c.rm = c.modrm & 7

	if c.mod == 3 {
		return
	}

	c.wait(1, 0)
	if c.modrm&0xC7 == 0x06 {
		// [disp16]
		c.wait(1, 0)
		c.eaAddr = c.fetchWord()
		c.eaSeg = c.dataSeg()
		c.wait(1, 0)
		return
	}

	switch c.rm {
	case 0, 3:
		c.wait(2, 0)
	case 1, 2:
		c.wait(3, 0)
	}
	ea := c.regs[modrmBase0[c.rm]]
	if r := modrmBase1[c.rm]; r >= 0 {
		ea += c.regs[r]
	}
	if c.ovr != x86NoOverride {
		c.eaSeg = c.segs[c.ovr].Base
	} else {
		c.eaSeg = c.segs[modrmSeg[c.rm]].Base
	}
	switch c.mod {
	case 1:
		c.wait(3, 0)
		ea += uint16(int8(c.fetchByte()))
	case 2:
		c.wait(3, 0)
		ea += c.fetchWord()
	}
	c.eaAddr = ea
	c.wait(2, 0)
}

// opBits is the operand width selected by the W bit of the opcode.
func (c *CPU_X86) opBits() int {
	if c.opcode&1 != 0 {
		return 16
	}
	return 8
}

// readEA loads the r/m operand into data. With memOnly set a register form
// leaves data untouched (LES/LDS and far indirect jumps).
func (c *CPU_X86) readEA(memOnly bool, bits int) {
	if c.mod != 3 {
		if bits == 16 {
			c.data = uint32(c.readMemW(c.eaSeg, c.eaAddr))
		} else {
			c.data = uint32(c.readMemB(c.eaSeg + uint32(c.eaAddr)))
		}
		return
	}
	if !memOnly {
		if bits == 8 {
			c.data = uint32(c.getReg8(c.rm))
		} else {
			c.data = uint32(c.regs[c.rm])
		}
	}
}

// readEA2 reads the second word of a far pointer operand.
func (c *CPU_X86) readEA2(bits int) {
	c.eaAddr += 2
	if bits == 16 {
		c.data = uint32(c.readMemW(c.eaSeg, c.eaAddr))
	} else {
		c.data = uint32(c.readMemB(c.eaSeg + uint32(c.eaAddr)))
	}
}

// getEAB and friends access the ModRM operand without microcode delays.
func (c *CPU_X86) getEAB() byte {
	if c.mod == 3 {
		return c.getReg8(c.rm)
	}
	return c.readMemB(c.eaSeg + uint32(c.eaAddr))
}

func (c *CPU_X86) getEAW() uint16 {
	if c.mod == 3 {
		return c.regs[c.rm]
	}
	return c.readMemW(c.eaSeg, c.eaAddr)
}

func (c *CPU_X86) setEAB(v byte) {
	if c.mod == 3 {
		c.setReg8(c.rm, v)
		return
	}
	c.writeMemB(c.eaSeg, uint32(c.eaAddr), v)
}

func (c *CPU_X86) setEAW(v uint16) {
	if c.mod == 3 {
		c.regs[c.rm] = v
		return
	}
	c.writeMemW(c.eaSeg, c.eaAddr, v)
}

func (c *CPU_X86) setEA(v uint32) {
	if c.opcode&1 != 0 {
		c.setEAW(uint16(v))
	} else {
		c.setEAB(byte(v))
	}
}

func (c *CPU_X86) getReg(bits int) uint32 {
	if bits == 16 {
		return uint32(c.regs[c.reg])
	}
	return uint32(c.getReg8(c.reg))
}

func (c *CPU_X86) setReg(bits int, v uint32) {
	if bits == 16 {
		c.regs[c.reg] = uint16(v)
	} else {
		c.setReg8(c.reg, byte(v))
	}
}

func (c *CPU_X86) getAccum(bits int) uint32 {
	if bits == 16 {
		return uint32(c.regs[x86RegAX])
	}
	return uint32(c.AL())
}

func (c *CPU_X86) setAccum(bits int, v uint32) {
	if bits == 16 {
		c.regs[x86RegAX] = uint16(v)
	} else {
		c.SetAL(byte(v))
	}
}

// opffData widens a byte-form FE /2../5 operand to a word the way the
// microcode does: memory reads get a high byte of FF, registers use the
// full 16-bit register.
func (c *CPU_X86) opffData() {
	if c.opcode&1 == 0 {
		if c.mod != 3 {
			c.data |= 0xFF00
		} else {
			c.data = uint32(c.regs[c.rm])
		}
	}
}

// -----------------------------------------------------------------------------
// Stack
// -----------------------------------------------------------------------------

func (c *CPU_X86) push(v uint16) {
	if c.ext186 && !c.nec && c.regs[x86RegSP] == 1 {
		c.writeMemW(c.ssBase()-1, 0, v)
		c.regs[x86RegSP] = 0xFFFF
		c.eaAddr = 0xFFFF
		return
	}
	c.regs[x86RegSP] -= 2
	c.eaAddr = c.regs[x86RegSP]
	c.writeMemW(c.ssBase(), c.eaAddr, v)
}

func (c *CPU_X86) pop() uint16 {
	c.eaAddr = c.regs[x86RegSP]
	c.regs[x86RegSP] += 2
	return c.readMemW(c.ssBase(), c.eaAddr)
}
