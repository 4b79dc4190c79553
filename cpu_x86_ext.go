// cpu_x86_ext.go - 80186 instruction overlay and NEC V20/V30 extensions
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// The 80186 overlay is consulted before the base table on 80186-class and
// NEC parts. Entries left nil fall through to the base decode, which is how
// 63/66/67 keep their 8086 Jcc aliases.

func (c *CPU_X86) initExt186Ops() {
	for i := range c.ext186Ops {
		c.ext186Ops[i] = nil
	}
	if !c.ext186 {
		return
	}
	c.ext186Ops[0x60] = (*CPU_X86).opPUSHA
	c.ext186Ops[0x61] = (*CPU_X86).opPOPA
	c.ext186Ops[0x62] = (*CPU_X86).opBOUND
	if c.nec {
		c.ext186Ops[0x64] = (*CPU_X86).opREPC
		c.ext186Ops[0x65] = (*CPU_X86).opREPC
	}
	c.ext186Ops[0x68] = (*CPU_X86).opPUSH_imm16
	c.ext186Ops[0x69] = (*CPU_X86).opIMUL_imm
	c.ext186Ops[0x6A] = (*CPU_X86).opPUSH_imm8
	c.ext186Ops[0x6B] = (*CPU_X86).opIMUL_imm
	c.ext186Ops[0x6C] = (*CPU_X86).opINS
	c.ext186Ops[0x6D] = (*CPU_X86).opINS
	c.ext186Ops[0x6E] = (*CPU_X86).opOUTS
	c.ext186Ops[0x6F] = (*CPU_X86).opOUTS
	c.ext186Ops[0xC0] = (*CPU_X86).opGrp2_imm
	c.ext186Ops[0xC1] = (*CPU_X86).opGrp2_imm
	c.ext186Ops[0xC8] = (*CPU_X86).opENTER
	c.ext186Ops[0xC9] = (*CPU_X86).opLEAVE
}

func (c *CPU_X86) initNECOps() {
	for i := range c.necOps0F {
		c.necOps0F[i] = nil
	}
	if !c.nec {
		return
	}
	for _, op := range []int{0x10, 0x11, 0x18, 0x19} {
		c.necOps0F[op] = (*CPU_X86).opTEST1
	}
	for _, op := range []int{0x12, 0x13, 0x1A, 0x1B} {
		c.necOps0F[op] = (*CPU_X86).opCLR1
	}
	for _, op := range []int{0x14, 0x15, 0x1C, 0x1D} {
		c.necOps0F[op] = (*CPU_X86).opSET1
	}
	for _, op := range []int{0x16, 0x17, 0x1E, 0x1F} {
		c.necOps0F[op] = (*CPU_X86).opNOT1
	}
	c.necOps0F[0x20] = (*CPU_X86).opADD4S
	c.necOps0F[0x22] = (*CPU_X86).opSUB4S
	c.necOps0F[0x26] = (*CPU_X86).opCMP4S
	c.necOps0F[0x28] = (*CPU_X86).opROL4
	c.necOps0F[0x2A] = (*CPU_X86).opROR4
	c.necOps0F[0x31] = (*CPU_X86).opINS_bits
	c.necOps0F[0x39] = (*CPU_X86).opINS_bits
	c.necOps0F[0x33] = (*CPU_X86).opEXT_bits
	c.necOps0F[0x3B] = (*CPU_X86).opEXT_bits
	c.necOps0F[0xFF] = (*CPU_X86).opBRKEM
}

// =============================================================================
// 80186 overlay
// =============================================================================

func (c *CPU_X86) opPUSHA() {
	origSP := c.regs[x86RegSP]
	c.wait(1, 0)
	c.push(c.regs[x86RegAX])
	c.push(c.regs[x86RegCX])
	c.push(c.regs[x86RegDX])
	c.push(c.regs[x86RegBX])
	c.push(origSP)
	c.push(c.regs[x86RegBP])
	c.push(c.regs[x86RegSI])
	c.push(c.regs[x86RegDI])
}

func (c *CPU_X86) opPOPA() {
	c.wait(9, 0)
	c.regs[x86RegDI] = c.pop()
	c.regs[x86RegSI] = c.pop()
	c.regs[x86RegBP] = c.pop()
	c.pop() // saved SP is discarded
	c.regs[x86RegBX] = c.pop()
	c.regs[x86RegDX] = c.pop()
	c.regs[x86RegCX] = c.pop()
	c.regs[x86RegAX] = c.pop()
}

// opBOUND raises INT 5 with IP pointing back at the instruction.
func (c *CPU_X86) opBOUND() {
	c.decodeModRM()
	low := c.readMemW(c.eaSeg, c.eaAddr)
	high := c.readMemW(c.eaSeg, c.eaAddr+2)
	v := uint16(c.getReg(c.opBits()))
	if low > v || high < v {
		c.IP = c.oldPC
		c.interrupt(5)
	}
}

// opREPC is the V-series REPC (64) / REPNC (65) prefix: repeat on CF.
func (c *CPU_X86) opREPC() {
	c.wait(1, 0)
	if c.opcode == 0x64 {
		c.inRep = 1
	} else {
		c.inRep = 2
	}
	c.repCFlag = true
	c.completed = false
}

func (c *CPU_X86) opPUSH_imm16() {
	v := c.fetchWord()
	c.wait(1, 0)
	c.push(v)
}

func (c *CPU_X86) opPUSH_imm8() {
	c.push(signExtend8(c.fetchByte()))
}

// opIMUL_imm covers 69 (imm16) and 6B (imm8). The imm8 form is not sign
// extended before the multiply.
func (c *CPU_X86) opIMUL_imm() {
	c.decodeModRM()
	c.readEA(false, 16)
	var imm uint16
	if c.opcode == 0x69 {
		imm = c.fetchWord()
	} else {
		imm = uint16(c.fetchByte())
	}
	c.mul(uint16(c.data), imm)
	c.setReg(16, c.data)
	c.setCoMul(c.dest != 0)
}

func (c *CPU_X86) opGrp2_imm() {
	width := c.opBits()
	c.decodeModRM()
	if c.mod == 3 {
		c.wait(1, 0)
	}
	c.access(53)
	c.data = c.getEAOperand(width)
	c.src = uint32(c.fetchByte())
	if c.mod != 3 {
		c.wait(9, 0)
	} else {
		c.wait(6, 0)
	}
	if !c.nec {
		c.src &= 0x1F
	}
	c.shiftLoop(width)
	c.access(17)
	c.setEA(c.data)
}

func (c *CPU_X86) opENTER() {
	size := c.fetchWord()
	nests := c.fetchByte()
	c.push(c.regs[x86RegBP])
	frame := c.regs[x86RegSP]
	if nests > 0 {
		for nests--; nests > 0; nests-- {
			c.regs[x86RegBP] -= 2
			c.push(c.readMemW(c.ssBase(), c.regs[x86RegBP]))
		}
		c.push(frame)
	}
	c.regs[x86RegBP] = frame
	c.regs[x86RegSP] -= size
}

func (c *CPU_X86) opLEAVE() {
	c.regs[x86RegSP] = c.regs[x86RegBP]
	c.regs[x86RegBP] = c.pop()
}

// =============================================================================
// NEC 0F xx
// =============================================================================

// opNEC0F decodes the second byte of a V-series 0F opcode. Unknown second
// bytes make 0F behave as POP CS with the byte pushed back.
func (c *CPU_X86) opNEC0F() bool {
	orig := c.opcode
	c.opcode = c.fetchByte()
	if op := c.necOps0F[c.opcode]; op != nil {
		op(c)
		return true
	}
	c.opcode = orig
	c.IP--
	return false
}

// bitOperand decodes the bit number for TEST1/SET1/CLR1/NOT1 and loads the
// operand into data.
func (c *CPU_X86) bitOperand() (width int, bit uint) {
	width = c.opBits()
	c.decodeModRM()
	c.wait(3, 0)
	var b byte
	if c.opcode&8 != 0 {
		b = c.fetchByte()
	} else {
		b = c.CL()
	}
	b &= byte(width - 1)
	c.readEA(false, width)
	return width, uint(b)
}

func (c *CPU_X86) opTEST1() {
	_, bit := c.bitOperand()
	c.setFlag(x86FlagZF, c.data&(1<<bit) == 0)
	c.Flags &^= x86FlagOF | x86FlagCF
}

func (c *CPU_X86) opSET1() {
	width, bit := c.bitOperand()
	c.writeBitOperand(width, c.data|1<<bit)
}

func (c *CPU_X86) opCLR1() {
	width, bit := c.bitOperand()
	c.writeBitOperand(width, c.data&^(1<<bit))
}

func (c *CPU_X86) opNOT1() {
	width, bit := c.bitOperand()
	c.writeBitOperand(width, c.data^1<<bit)
}

func (c *CPU_X86) writeBitOperand(width int, v uint32) {
	if width == 8 {
		c.setEAB(byte(v))
	} else {
		c.setEAW(uint16(v))
	}
}

func (c *CPU_X86) opROL4() {
	c.decodeModRM()
	c.wait(21, 0)
	v := c.getEAB()
	al := c.AL()
	al = al&0x0F | v&0xF0
	v = al&0x0F | (v&0x0F)<<4
	c.setEAB(v)
	c.SetAL(al >> 4 & 0x0F)
}

func (c *CPU_X86) opROR4() {
	c.decodeModRM()
	c.wait(21, 0)
	v := c.getEAB()
	al := c.AL()
	c.SetAL(v & 0x0F)
	c.setEAB(v>>4 | (al&0x0F)<<4)
}

// bcdString runs the packed-BCD string loop shared by ADD4S, SUB4S and
// CMP4S over CL digits of DS:SI and ES:DI. add selects decimal carry
// (ADD4S) over decimal borrow. The operand bytes are read
// without bus timing; the loop charges 19 cycles per byte instead.
func (c *CPU_X86) bcdString(op func(d, s, carry int8, last bool) int8, add, store bool) {
	cl := c.CL()
	odd := cl & 1
	nibbles := cl - odd
	zero := true
	carry := 0
	srcSeg := c.dataSeg()

	c.wait(5, 0)
	for i := uint32(0); i < uint32(nibbles/2+odd); i++ {
		c.wait(19, 0)
		dst := c.bus.Read((c.esBase() + uint32(c.regs[x86RegDI]) + i) & x86AddressMask)
		for nibble := 0; nibble < 2; nibble++ {
			shift := uint(nibble * 4)
			d := int8(dst >> shift & 0x0F)
			s := int8(c.bus.Read((srcSeg+uint32(c.regs[x86RegSI])+i)&x86AddressMask) >> shift & 0x0F)
			last := i == uint32(nibbles/2) && nibble == 1
			r := op(d, s, int8(carry), last)
			carry = 0
			if add {
				for r >= 10 {
					r -= 10
					carry++
				}
			} else {
				for r < 0 {
					r += 10
					carry++
				}
			}
			if zero || last {
				zero = r == 0
			}
			if nibble == 0 {
				dst = dst&0xF0 | byte(r)
			} else {
				dst = dst&0x0F | byte(r)<<4
			}
		}
		if store {
			c.bus.Write((c.esBase()+uint32(c.regs[x86RegDI])+i)&x86AddressMask, dst)
		}
	}
	c.setFlag(x86FlagCF, carry != 0)
	c.setFlag(x86FlagZF, zero)
}

func (c *CPU_X86) opADD4S() {
	c.bcdString(func(d, s, carry int8, last bool) int8 {
		if last {
			return d + carry
		}
		return d + s + carry
	}, true, true)
}

func (c *CPU_X86) opSUB4S() {
	c.bcdString(func(d, s, carry int8, last bool) int8 {
		if last {
			return d - carry
		}
		return d - s - carry
	}, false, true)
}

func (c *CPU_X86) opCMP4S() {
	c.bcdString(func(d, s, carry int8, _ bool) int8 {
		return d - s - carry
	}, false, false)
}

// opINS_bits is the V-series bit field insert: AX bits go to ES:DI at the
// bit offset held in the rm byte register, which is updated afterwards.
func (c *CPU_X86) opINS_bits() {
	c.decodeModRM()
	c.wait(1, 0)
	length := c.bitFieldLength()
	offset := c.getReg8(c.rm) & 0x0F
	if offset >= 8 {
		c.regs[x86RegDI]++
		offset -= 8
	}
	for i := byte(0); i < length; i++ {
		addr := c.esBase() + uint32(c.regs[x86RegDI])
		cur := c.bus.Read(addr & x86AddressMask)
		bit := byte(c.regs[x86RegAX]>>i) & 1
		c.writeMemB(c.esBase(), uint32(c.regs[x86RegDI]), cur&^(1<<offset)|bit<<offset)
		offset++
		if offset == 8 {
			c.regs[x86RegDI]++
			offset = 0
		}
	}
	c.setReg8(c.rm, offset)
}

// opEXT_bits extracts a bit field from DS:SI into AX.
func (c *CPU_X86) opEXT_bits() {
	c.decodeModRM()
	c.wait(1, 0)
	length := c.bitFieldLength()
	offset := c.getReg8(c.rm) & 0x0F
	if offset >= 8 {
		c.regs[x86RegSI]++
		offset -= 8
	}
	c.regs[x86RegAX] = 0
	for i := byte(0); i < length; i++ {
		v := c.readMemB(c.dsBase() + uint32(c.regs[x86RegSI]))
		if v&(1<<offset) != 0 {
			c.regs[x86RegAX] |= 1 << i
		}
		offset++
		if offset == 8 {
			c.regs[x86RegSI]++
			offset = 0
		}
	}
	c.setReg8(c.rm, offset)
}

func (c *CPU_X86) bitFieldLength() byte {
	if c.opcode&8 != 0 {
		return c.fetchByte()&0x0F + 1
	}
	return c.getReg8(c.reg)&0x0F + 1
}

func (c *CPU_X86) opBRKEM() {
	c.interruptBRKEM(uint16(c.fetchByte()))
}
