// cpu_x86_alu.go - 808x ALU: flag computation, bit-serial multiply/divide, shifts and BCD adjust
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "math/bits"

// The ALU works on the src/dest/data scratch registers. Results can carry
// bits above the operand width; flag helpers mask to the width they are
// given.

func topBit(v uint32, width int) bool {
	return v&(1<<(width-1)) != 0
}

func widthMask(width int) uint32 {
	return 1<<width - 1
}

func (c *CPU_X86) setPF() {
	c.setFlag(x86FlagPF, bits.OnesCount8(uint8(c.data))&1 == 0)
}

func (c *CPU_X86) setSF(width int) {
	c.setFlag(x86FlagSF, topBit(c.data, width))
}

func (c *CPU_X86) setZF(width int) {
	c.setFlag(x86FlagZF, c.data&widthMask(width) == 0)
}

func (c *CPU_X86) setPZS(width int) {
	c.setPF()
	c.setZF(width)
	c.setSF(width)
}

func (c *CPU_X86) doAF() {
	c.setFlag(x86FlagAF, (c.data^c.src^c.dest)&0x10 != 0)
}

func (c *CPU_X86) setOFAdd(width int) {
	c.setFlag(x86FlagOF, topBit((c.data^c.src)&(c.data^c.dest), width))
}

func (c *CPU_X86) setOFSub(width int) {
	c.setFlag(x86FlagOF, topBit((c.dest^c.src)&(c.data^c.dest), width))
}

func (c *CPU_X86) setOFRotate(width int) {
	c.setFlag(x86FlagOF, topBit(c.data^c.dest, width))
}

func (c *CPU_X86) bitwise(width int, v uint32) {
	c.data = v
	c.Flags &^= x86FlagCF | x86FlagAF | x86FlagOF
	c.setPZS(width)
}

func (c *CPU_X86) test(width int, dest, src uint32) {
	c.dest = dest
	c.src = src
	c.bitwise(width, dest&src)
}

// add computes dest+src. For ADC the caller has already folded the carry
// into src; an ADC of all-ones with carry set wraps src to zero, which
// would lose the carry out, so that case forces CF.
func (c *CPU_X86) add(width int) {
	mask := widthMask(width)
	carryIn := c.aluOp == 2 && c.CF()
	forceCarry := carryIn && c.src&mask == 0
	tempSrc := c.src

	c.data = c.dest + c.src
	if carryIn {
		c.src--
	}
	c.setPZS(width)
	c.doAF()
	c.setOFAdd(width)

	if forceCarry {
		c.Flags |= x86FlagCF
	} else {
		c.setFlag(x86FlagCF, tempSrc&mask > c.data&mask)
	}
}

// sub computes dest-src with the same SBB wrap handling as add.
func (c *CPU_X86) sub(width int) {
	mask := widthMask(width)
	borrowIn := c.aluOp == 3 && c.CF()
	forceCarry := borrowIn && c.src&mask == 0
	tempSrc := c.src

	c.data = c.dest - c.src
	if borrowIn {
		c.src--
	}
	c.setPZS(width)
	c.doAF()
	c.setOFSub(width)

	if forceCarry {
		c.Flags |= x86FlagCF
	} else {
		c.setFlag(x86FlagCF, tempSrc&mask > c.dest&mask)
	}
}

// aluExec runs the operation selected by aluOp (the reg field of the
// classic ALU opcodes: ADD OR ADC SBB AND SUB XOR CMP).
func (c *CPU_X86) aluExec(width int) {
	switch c.aluOp {
	case 0:
		c.add(width)
	case 1:
		c.bitwise(width, c.dest|c.src)
	case 2:
		if c.CF() {
			c.src++
		}
		c.add(width)
	case 3:
		if c.CF() {
			c.src++
		}
		c.sub(width)
	case 4:
		c.test(width, c.dest, c.src)
	case 5, 7:
		c.sub(width)
	case 6:
		c.bitwise(width, c.dest^c.src)
	}
}

// -----------------------------------------------------------------------------
// Multiply / divide
// -----------------------------------------------------------------------------

// mul is the microcoded shift-and-add multiplier. On return data holds the
// low half and dest the high half. Timing depends on the operand bits.
func (c *CPU_X86) mul(a, b uint16) {
	negate := false
	width := 8
	highBit := uint16(0x80)
	mask := uint16(0xFF)

	if c.opcode != 0xD5 {
		if c.opcode&1 != 0 {
			width = 16
			highBit = 0x8000
			mask = 0xFFFF
		} else {
			c.wait(8, 0)
		}

		if c.modrm&0x38 == 0x28 {
			// IMUL: multiply magnitudes and fix the sign afterwards
			if a&highBit == 0 {
				if b&highBit != 0 {
					c.wait(1, 0)
					if b&mask != highBit {
						c.wait(1, 0)
					}
					b = -b
					negate = true
				}
			} else {
				c.wait(1, 0)
				a = -a
				negate = true
				if b&highBit != 0 {
					b = -b
					negate = false
				} else {
					c.wait(4, 0)
				}
			}
			c.wait(10, 0)
		}
		c.wait(3, 0)
	}

	var hi uint16
	a &= mask
	carry := a&1 != 0
	a >>= 1
	for i := 0; i < width; i++ {
		c.wait(7, 0)
		if carry {
			c.src = uint32(hi)
			c.dest = uint32(b)
			c.add(width)
			hi = uint16(c.data) & mask
			c.wait(1, 0)
			carry = c.CF()
		}
		r := hi >> 1
		if carry {
			r += highBit
		}
		carry = hi&1 != 0
		hi = r
		r = a >> 1
		if carry {
			r += highBit
		}
		carry = a&1 != 0
		a = r
	}
	if negate {
		hi = ^hi
		a = -a & mask
		if a == 0 {
			hi++
		}
		c.wait(9, 0)
	}
	c.data = uint32(a)
	c.dest = uint32(hi)

	c.setSF(width)
	c.setPF()
	c.setFlag(x86FlagAF, false)
}

// setCoMul sets CF/OF for a multiply whose upper half is significant.
func (c *CPU_X86) setCoMul(carry bool) {
	c.setFlag(x86FlagCF, carry)
	c.setFlag(x86FlagOF, carry)
	c.setFlag(x86FlagZF, !carry)
	if !carry {
		c.wait(1, 0)
	}
}

// div is the microcoded non-restoring divider shared by DIV, IDIV and AAM.
// The divisor is in src. It returns false after raising INT 0.
func (c *CPU_X86) div(l, h uint16) bool {
	width := 8
	negative := false
	dividendNegative := false

	if c.opcode&1 != 0 {
		l = c.regs[x86RegAX]
		h = c.regs[x86RegDX]
		width = 16
	}
	mask := uint16(widthMask(width))
	top := func(v uint16) bool { return topBit(uint32(v), width) }

	if c.opcode != 0xD4 {
		if c.modrm&0x38 == 0x38 {
			// IDIV
			if top(h) {
				h = ^h
				l = -l & mask
				if l == 0 {
					h++
				}
				h &= mask
				negative = true
				dividendNegative = true
				c.wait(4, 0)
			}
			if topBit(c.src, width) {
				c.src = -c.src
				negative = !negative
			} else {
				c.wait(1, 0)
			}
			c.wait(9, 0)
		}
		c.wait(3, 0)
	}
	c.wait(8, 0)
	c.src &= uint32(mask)
	if uint32(h) >= c.src {
		if c.opcode != 0xD4 {
			c.wait(1, 0)
		}
		c.interrupt(0)
		return false
	}
	if c.opcode != 0xD4 {
		c.wait(1, 0)
	}
	c.wait(2, 0)

	carry := true
	divisor := uint16(c.src)
	for b := 0; b < width; b++ {
		r := l << 1
		if carry {
			r++
		}
		carry = top(l)
		l = r
		r = h << 1
		if carry {
			r++
		}
		carry = top(h)
		h = r
		c.wait(8, 0)
		if carry {
			carry = false
			h -= divisor
			if b == width-1 {
				c.wait(2, 0)
			}
		} else {
			carry = divisor > h
			if !carry {
				h -= divisor
				c.wait(1, 0)
				if b == width-1 {
					c.wait(2, 0)
				}
			}
		}
	}
	r := l << 1
	if carry {
		r++
	}
	l = ^r

	if c.opcode != 0xD4 && c.modrm&0x38 == 0x38 {
		c.wait(4, 0)
		if top(l) {
			if c.mod == 3 {
				c.wait(1, 0)
			}
			c.interrupt(0)
			return false
		}
		c.wait(7, 0)
		if negative {
			l = -l
		}
		if dividendNegative {
			h = -h
		}
	}

	if c.opcode == 0xD4 {
		c.SetAL(byte(h))
		c.SetAH(byte(l))
	} else {
		c.SetAH(byte(h))
		c.SetAL(byte(l))
		if c.opcode&1 != 0 {
			c.regs[x86RegDX] = h
			c.regs[x86RegAX] = l
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Shifts and rotates
// -----------------------------------------------------------------------------

// shiftLoop applies the group-2 operation selected by the reg field src
// times to data, one bit per iteration. CL-count forms pay 4 cycles per bit.
func (c *CPU_X86) shiftLoop(width int) {
	signBit := uint32(1) << (width - 1)
	for c.src != 0 {
		c.dest = c.data
		oldC := c.CF()
		switch c.modrm & 0x38 {
		case 0x00: // ROL
			c.setFlag(x86FlagCF, topBit(c.data, width))
			c.data <<= 1
			if c.CF() {
				c.data |= 1
			}
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
		case 0x08: // ROR
			c.setFlag(x86FlagCF, c.data&1 != 0)
			c.data >>= 1
			if c.CF() {
				c.data |= signBit
			}
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
		case 0x10: // RCL
			c.setFlag(x86FlagCF, topBit(c.data, width))
			c.data <<= 1
			if oldC {
				c.data |= 1
			}
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
		case 0x18: // RCR
			c.data >>= 1
			if oldC {
				c.data |= signBit
			}
			c.setFlag(x86FlagCF, c.dest&1 != 0)
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
		case 0x20: // SHL
			c.setFlag(x86FlagCF, topBit(c.data, width))
			c.data <<= 1
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, c.data&0x10 != 0)
			c.setPZS(width)
		case 0x28: // SHR
			c.setFlag(x86FlagCF, c.data&1 != 0)
			c.data >>= 1
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
			c.setPZS(width)
		case 0x30: // SETMO
			c.bitwise(width, 0xFFFF)
			c.setFlag(x86FlagCF, false)
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
			c.setPZS(width)
		case 0x38: // SAR
			c.setFlag(x86FlagCF, c.data&1 != 0)
			c.data >>= 1
			c.data |= c.dest & signBit
			c.setOFRotate(width)
			c.setFlag(x86FlagAF, false)
			c.setPZS(width)
		}
		if c.opcode&2 != 0 {
			c.wait(4, 0)
		}
		c.src--
	}
}

// -----------------------------------------------------------------------------
// Decimal adjust
// -----------------------------------------------------------------------------

func (c *CPU_X86) daa() {
	c.dest = uint32(c.AL())
	c.data = c.dest
	c.setFlag(x86FlagOF, false)
	oldAF := c.AF()
	if c.AF() || c.AL()&0x0F > 9 {
		c.src = 6
		c.data = c.dest + c.src
		c.setOFAdd(8)
		c.dest = c.data
		c.setFlag(x86FlagAF, true)
	}
	limit := byte(0x99)
	if oldAF {
		limit = 0x9F
	}
	if c.CF() || c.AL() > limit {
		c.src = 0x60
		c.data = c.dest + c.src
		c.setOFAdd(8)
		c.dest = c.data
		c.setFlag(x86FlagCF, true)
	}
	c.SetAL(byte(c.dest))
	c.setPZS(8)
	c.wait(3, 0)
}

func (c *CPU_X86) das() {
	c.dest = uint32(c.AL())
	c.data = c.dest
	c.setFlag(x86FlagOF, false)
	oldAF := c.AF()
	if c.AF() || c.AL()&0x0F > 9 {
		c.src = 6
		c.data = c.dest - c.src
		c.setOFSub(8)
		c.dest = c.data
		c.setFlag(x86FlagAF, true)
	}
	limit := byte(0x99)
	if oldAF {
		limit = 0x9F
	}
	if c.CF() || c.AL() > limit {
		c.src = 0x60
		c.data = c.dest - c.src
		c.setOFSub(8)
		c.dest = c.data
		c.setFlag(x86FlagCF, true)
	}
	c.SetAL(byte(c.dest))
	c.setPZS(8)
	c.wait(3, 0)
}

// aaa and aas share the ASCII adjust tail in aa.
func (c *CPU_X86) aaa() {
	c.wait(1, 0)
	if c.AF() || c.AL()&0x0F > 9 {
		c.src = 6
		c.SetAH(c.AH() + 1)
		c.setFlag(x86FlagCF|x86FlagAF, true)
	} else {
		c.src = 0
		c.setFlag(x86FlagCF|x86FlagAF, false)
		c.wait(1, 0)
	}
	c.dest = uint32(c.AL())
	c.data = c.dest + c.src
	c.setOFAdd(8)
	c.aa()
}

func (c *CPU_X86) aas() {
	c.wait(1, 0)
	if c.AF() || c.AL()&0x0F > 9 {
		c.src = 6
		c.SetAH(c.AH() - 1)
		c.setFlag(x86FlagCF|x86FlagAF, true)
	} else {
		c.src = 0
		c.setFlag(x86FlagCF|x86FlagAF, false)
		c.wait(1, 0)
	}
	c.dest = uint32(c.AL())
	c.data = c.dest - c.src
	c.setOFSub(8)
	c.aa()
}

func (c *CPU_X86) aa() {
	c.setPZS(8)
	c.SetAL(byte(c.data) & 0x0F)
	c.wait(6, 0)
}
