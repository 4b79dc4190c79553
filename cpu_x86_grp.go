// cpu_x86_grp.go - 808x ModRM group opcodes (80-83, D0-D3, F6/F7, FE/FF) and ESC
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// =============================================================================
// Group 1: ALU r/m, imm
// =============================================================================

func (c *CPU_X86) opGrp1() {
	width := c.opBits()
	c.decodeModRM()
	c.access(47)
	c.data = c.getEAOperand(width)
	c.dest = c.data
	if c.mod != 3 {
		c.wait(3, 0)
	} else {
		c.wait(1, 0)
	}
	switch c.opcode {
	case 0x81:
		c.src = uint32(c.fetchWord())
	case 0x83:
		c.src = uint32(signExtend8(c.fetchByte()))
	default:
		c.src = uint32(c.fetchByte()) | 0xFF00
	}
	c.wait(1, 0)
	c.aluOp = int(c.reg)
	c.aluExec(width)
	if c.aluOp != 7 {
		c.access(11)
		c.setEA(c.data)
	} else if c.mod != 3 {
		c.wait(1, 0)
	}
}

// =============================================================================
// Group 2: shifts and rotates by 1 or CL
// =============================================================================

func (c *CPU_X86) opGrp2() {
	width := c.opBits()
	c.decodeModRM()
	if c.mod == 3 {
		c.wait(1, 0)
	}
	c.access(53)
	c.data = c.getEAOperand(width)
	if c.opcode&2 == 0 {
		c.src = 1
		if c.mod != 3 {
			c.wait(4, 0)
		}
	} else {
		c.src = uint32(c.CL())
		if c.mod != 3 {
			c.wait(9, 0)
		} else {
			c.wait(6, 0)
		}
	}
	if c.ext186 && !c.nec {
		c.src &= 0x1F
	}
	c.shiftLoop(width)
	c.access(17)
	c.setEA(c.data)
}

// =============================================================================
// Group 3: TEST/NOT/NEG/MUL/IMUL/DIV/IDIV
// =============================================================================

func (c *CPU_X86) opGrp3() {
	width := c.opBits()
	c.decodeModRM()
	c.access(55)
	c.data = c.getEAOperand(width)
	switch c.reg {
	case 0, 1: // TEST
		c.wait(2, 0)
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.src = c.fetchImm()
		c.wait(1, 0)
		c.test(width, c.data, c.src)
		if c.mod != 3 {
			c.wait(1, 0)
		}
	case 2, 3: // NOT, NEG
		c.wait(2, 0)
		if c.reg == 2 {
			c.data = ^c.data
		} else {
			c.src = c.data
			c.dest = 0
			c.sub(width)
		}
		c.access(18)
		c.setEA(c.data)
	case 4, 5: // MUL, IMUL
		oldFlags := c.Flags
		c.wait(1, 0)
		c.mul(uint16(c.getAccum(width)), uint16(c.data))
		signed := c.reg == 5
		if width == 16 {
			c.regs[x86RegAX] = uint16(c.data)
			c.regs[x86RegDX] = uint16(c.dest)
			var ext uint16
			if signed && c.regs[x86RegAX]&0x8000 != 0 {
				ext = 0xFFFF
			}
			c.setCoMul(c.regs[x86RegDX] != ext)
			c.data = uint32(c.regs[x86RegDX])
		} else {
			c.SetAL(byte(c.data))
			c.SetAH(byte(c.dest))
			var ext byte
			if signed && c.AL()&0x80 != 0 {
				ext = 0xFF
			}
			c.setCoMul(c.AH() != ext)
			if !c.nec {
				c.data = uint32(c.AH())
			}
		}
		c.setSF(width)
		c.setPF()
		if c.mod != 3 {
			c.wait(1, 0)
		}
		if c.nec {
			// V20/V30 leave ZF untouched
			c.Flags = c.Flags&^x86FlagZF | oldFlags&x86FlagZF
		}
	case 6, 7: // DIV, IDIV
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.src = c.data
		if c.div(uint16(c.AL()), uint16(c.AH())) {
			c.wait(1, 0)
		}
	}
}

// =============================================================================
// Group 4/5: INC/DEC/CALL/JMP/PUSH r/m
// =============================================================================

func (c *CPU_X86) opGrp4() {
	width := c.opBits()
	c.decodeModRM()
	c.access(56)
	c.readEA(c.reg == 3 || c.reg == 5, width)
	switch c.reg {
	case 0, 1: // INC, DEC
		c.dest = c.data
		c.src = 1
		if c.reg == 0 {
			c.data = c.dest + c.src
			c.setOFAdd(width)
		} else {
			c.data = c.dest - c.src
			c.setOFSub(width)
		}
		c.doAF()
		c.setPZS(width)
		c.wait(2, 0)
		c.access(19)
		c.setEA(c.data)
	case 2: // CALL r/m
		c.opffData()
		c.wait(1, 0)
		c.clearQueue()
		c.wait(4, 0)
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.wait(1, 0)
		c.oldPC = c.IP
		c.setIP(uint16(c.data))
		c.wait(2, 0)
		c.access(35)
		c.push(c.oldPC)
	case 3: // CALL m16:16
		newIP := uint16(c.data)
		c.access(58)
		c.readEA2(width)
		if c.opcode&1 == 0 {
			c.data |= 0xFF00
		}
		newCS := uint16(c.data)
		c.access(36)
		c.push(c.CS())
		c.wait(4, 0)
		c.oldPC = c.IP
		c.loadCS(newCS)
		c.setIP(newIP)
		c.access(37)
		c.push(c.oldPC)
	case 4: // JMP r/m
		c.opffData()
		c.access(65)
		c.setIP(uint16(c.data))
	case 5: // JMP m16:16
		newIP := uint16(c.data)
		c.access(59)
		c.readEA2(width)
		if c.opcode&1 == 0 {
			c.data |= 0xFF00
		}
		c.loadCS(uint16(c.data))
		c.access(66)
		c.setIP(newIP)
	default: // PUSH r/m (7 aliases 6)
		if c.mod != 3 {
			c.wait(1, 0)
		}
		c.access(38)
		c.push(uint16(c.data))
	}
}

// =============================================================================
// ESC (8087)
// =============================================================================

// opESC hands the decoded operand to the coprocessor. Without one the CPU
// still performs the EA read cycle. IP is restored afterwards since the
// coprocessor must not advance the instruction stream.
func (c *CPU_X86) opESC() {
	c.decodeModRM()
	c.access(54)
	ip := c.IP
	if c.fpu == nil {
		c.getEAW()
	} else {
		c.fpu.Execute(c, c.opcode, c.modrm)
	}
	c.IP = ip
	c.wait(1, 0)
	if c.mod != 3 {
		c.wait(2, 0)
	}
}
