// cpu_x86_ops.go - 808x dispatcher and base opcode table
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// =============================================================================
// Dispatcher
// =============================================================================

// Execute runs instructions until the cycle budget is exhausted. Leftover
// overshoot carries into the next call.
func (c *CPU_X86) Execute(cycles int) {
	c.cycles += cycles
	for c.cycles > 0 {
		c.Step()
	}
}

// Step runs one outer loop iteration: one instruction, one prefix byte, one
// REP element, one HLT poll or one 8080 instruction. Interrupts are only
// taken at completed instruction boundaries.
func (c *CPU_X86) Step() {
	c.clockStart()

	if c.InEmulationMode() {
		c.stepEmulation()
	} else {
		if !c.repeating {
			c.oldPC = c.IP
			c.opcode = c.fetchByte()
			c.oldC = c.CF()
			if c.clearLock {
				c.inLock = false
				c.clearLock = false
			}
			c.wait(1, 0)
			c.InstructionCount++
		}

		c.completed = true
		c.handled = false
		if c.ext186 {
			if op := c.ext186Ops[c.opcode]; op != nil {
				c.handled = true
				op(c)
			}
		}
		if !c.handled {
			c.baseOps[c.opcode](c)
		}
	}

	if c.completed {
		c.repeating = false
		c.ovr = x86NoOverride
		c.inRep = 0
		c.repCFlag = false
		if c.inLock {
			c.clearLock = true
		}
		c.clockEnd()
		c.checkInterrupts(false)
		c.noint = 0
		c.aluOp = 0
	}
}

// =============================================================================
// Table setup
// =============================================================================

func (c *CPU_X86) initBaseOps() {
	for i := range c.baseOps {
		c.baseOps[i] = (*CPU_X86).opIllegal
	}

	for op := 0x00; op < 0x40; op += 8 {
		c.baseOps[op+0] = (*CPU_X86).opALU_rm
		c.baseOps[op+1] = (*CPU_X86).opALU_rm
		c.baseOps[op+2] = (*CPU_X86).opALU_rm
		c.baseOps[op+3] = (*CPU_X86).opALU_rm
		c.baseOps[op+4] = (*CPU_X86).opALU_AccImm
		c.baseOps[op+5] = (*CPU_X86).opALU_AccImm
	}
	for _, op := range []int{0x06, 0x0E, 0x16, 0x1E} {
		c.baseOps[op] = (*CPU_X86).opPUSH_seg
	}
	for _, op := range []int{0x07, 0x0F, 0x17, 0x1F} {
		c.baseOps[op] = (*CPU_X86).opPOP_seg
	}
	for _, op := range []int{0x26, 0x2E, 0x36, 0x3E} {
		c.baseOps[op] = (*CPU_X86).opSegOverride
	}
	c.baseOps[0x27] = (*CPU_X86).daa
	c.baseOps[0x2F] = (*CPU_X86).das
	c.baseOps[0x37] = (*CPU_X86).aaa
	c.baseOps[0x3F] = (*CPU_X86).aas

	for op := 0x40; op < 0x50; op++ {
		c.baseOps[op] = (*CPU_X86).opINCDEC_r16
	}
	for op := 0x50; op < 0x58; op++ {
		c.baseOps[op] = (*CPU_X86).opPUSH_r16
	}
	for op := 0x58; op < 0x60; op++ {
		c.baseOps[op] = (*CPU_X86).opPOP_r16
	}
	// 60-6F decode as Jcc on the 8088/8086
	for op := 0x60; op < 0x80; op++ {
		c.baseOps[op] = (*CPU_X86).opJcc
	}

	c.baseOps[0x80] = (*CPU_X86).opGrp1
	c.baseOps[0x81] = (*CPU_X86).opGrp1
	c.baseOps[0x82] = (*CPU_X86).opGrp1
	c.baseOps[0x83] = (*CPU_X86).opGrp1
	c.baseOps[0x84] = (*CPU_X86).opTEST_rm
	c.baseOps[0x85] = (*CPU_X86).opTEST_rm
	c.baseOps[0x86] = (*CPU_X86).opXCHG_rm
	c.baseOps[0x87] = (*CPU_X86).opXCHG_rm
	c.baseOps[0x88] = (*CPU_X86).opMOV_rm_reg
	c.baseOps[0x89] = (*CPU_X86).opMOV_rm_reg
	c.baseOps[0x8A] = (*CPU_X86).opMOV_reg_rm
	c.baseOps[0x8B] = (*CPU_X86).opMOV_reg_rm
	c.baseOps[0x8C] = (*CPU_X86).opMOV_rm_sreg
	c.baseOps[0x8D] = (*CPU_X86).opLEA
	c.baseOps[0x8E] = (*CPU_X86).opMOV_sreg_rm
	c.baseOps[0x8F] = (*CPU_X86).opPOP_rm

	for op := 0x90; op < 0x98; op++ {
		c.baseOps[op] = (*CPU_X86).opXCHG_AX
	}
	c.baseOps[0x98] = (*CPU_X86).opCBW
	c.baseOps[0x99] = (*CPU_X86).opCWD
	c.baseOps[0x9A] = (*CPU_X86).opCALL_far
	c.baseOps[0x9B] = (*CPU_X86).opWAIT
	c.baseOps[0x9C] = (*CPU_X86).opPUSHF
	c.baseOps[0x9D] = (*CPU_X86).opPOPF
	c.baseOps[0x9E] = (*CPU_X86).opSAHF
	c.baseOps[0x9F] = (*CPU_X86).opLAHF

	c.baseOps[0xA0] = (*CPU_X86).opMOV_Acc_Mem
	c.baseOps[0xA1] = (*CPU_X86).opMOV_Acc_Mem
	c.baseOps[0xA2] = (*CPU_X86).opMOV_Mem_Acc
	c.baseOps[0xA3] = (*CPU_X86).opMOV_Mem_Acc
	c.baseOps[0xA4] = (*CPU_X86).opMOVS_LODS
	c.baseOps[0xA5] = (*CPU_X86).opMOVS_LODS
	c.baseOps[0xA6] = (*CPU_X86).opCMPS_SCAS
	c.baseOps[0xA7] = (*CPU_X86).opCMPS_SCAS
	c.baseOps[0xA8] = (*CPU_X86).opTEST_AccImm
	c.baseOps[0xA9] = (*CPU_X86).opTEST_AccImm
	c.baseOps[0xAA] = (*CPU_X86).opSTOS
	c.baseOps[0xAB] = (*CPU_X86).opSTOS
	c.baseOps[0xAC] = (*CPU_X86).opMOVS_LODS
	c.baseOps[0xAD] = (*CPU_X86).opMOVS_LODS
	c.baseOps[0xAE] = (*CPU_X86).opCMPS_SCAS
	c.baseOps[0xAF] = (*CPU_X86).opCMPS_SCAS

	for op := 0xB0; op < 0xB8; op++ {
		c.baseOps[op] = (*CPU_X86).opMOV_r8_imm
	}
	for op := 0xB8; op < 0xC0; op++ {
		c.baseOps[op] = (*CPU_X86).opMOV_r16_imm
	}

	// C0/C1 and C8/C9 alias the RET forms on the 8088/8086
	for _, op := range []int{0xC0, 0xC1, 0xC2, 0xC3, 0xC8, 0xC9, 0xCA, 0xCB} {
		c.baseOps[op] = (*CPU_X86).opRET
	}
	c.baseOps[0xC4] = (*CPU_X86).opLxS
	c.baseOps[0xC5] = (*CPU_X86).opLxS
	c.baseOps[0xC6] = (*CPU_X86).opMOV_rm_imm
	c.baseOps[0xC7] = (*CPU_X86).opMOV_rm_imm
	c.baseOps[0xCC] = (*CPU_X86).opINT3
	c.baseOps[0xCD] = (*CPU_X86).opINT
	c.baseOps[0xCE] = (*CPU_X86).opINTO
	c.baseOps[0xCF] = (*CPU_X86).opIRET

	for op := 0xD0; op < 0xD4; op++ {
		c.baseOps[op] = (*CPU_X86).opGrp2
	}
	c.baseOps[0xD4] = (*CPU_X86).opAAM
	c.baseOps[0xD5] = (*CPU_X86).opAAD
	c.baseOps[0xD6] = (*CPU_X86).opSALC
	c.baseOps[0xD7] = (*CPU_X86).opXLAT
	for op := 0xD8; op < 0xE0; op++ {
		c.baseOps[op] = (*CPU_X86).opESC
	}

	for op := 0xE0; op < 0xE4; op++ {
		c.baseOps[op] = (*CPU_X86).opLOOP
	}
	for _, op := range []int{0xE4, 0xE5, 0xE6, 0xE7, 0xEC, 0xED, 0xEE, 0xEF} {
		c.baseOps[op] = (*CPU_X86).opINOUT
	}
	c.baseOps[0xE8] = (*CPU_X86).opCALL_near
	c.baseOps[0xE9] = (*CPU_X86).opJMP_near
	c.baseOps[0xEA] = (*CPU_X86).opJMP_far
	c.baseOps[0xEB] = (*CPU_X86).opJMP_short

	c.baseOps[0xF0] = (*CPU_X86).opLOCK
	c.baseOps[0xF1] = (*CPU_X86).opLOCK
	c.baseOps[0xF2] = (*CPU_X86).opREP
	c.baseOps[0xF3] = (*CPU_X86).opREP
	c.baseOps[0xF4] = (*CPU_X86).opHLT
	c.baseOps[0xF5] = (*CPU_X86).opCMC
	c.baseOps[0xF6] = (*CPU_X86).opGrp3
	c.baseOps[0xF7] = (*CPU_X86).opGrp3
	c.baseOps[0xF8] = (*CPU_X86).opCLC_STC
	c.baseOps[0xF9] = (*CPU_X86).opCLC_STC
	c.baseOps[0xFA] = (*CPU_X86).opCLI_STI
	c.baseOps[0xFB] = (*CPU_X86).opCLI_STI
	c.baseOps[0xFC] = (*CPU_X86).opCLD_STD
	c.baseOps[0xFD] = (*CPU_X86).opCLD_STD
	c.baseOps[0xFE] = (*CPU_X86).opGrp4
	c.baseOps[0xFF] = (*CPU_X86).opGrp4
}

// =============================================================================
// Operand helpers
// =============================================================================

// fetchImm fetches an immediate of the opcode's operand width.
func (c *CPU_X86) fetchImm() uint32 {
	if c.opcode&1 != 0 {
		return uint32(c.fetchWord())
	}
	return uint32(c.fetchByte())
}

func signExtend8(v byte) uint16 {
	return uint16(int16(int8(v)))
}

// readMemEA reads an operand of the given width at seg:eaAddr.
func (c *CPU_X86) readMemEA(seg uint32, width int) uint32 {
	if width == 16 {
		return uint32(c.readMemW(seg, c.eaAddr))
	}
	return uint32(c.readMemB(seg + uint32(c.eaAddr)))
}

func (c *CPU_X86) writeMemEA(seg uint32, width int, v uint32) {
	if width == 16 {
		c.writeMemW(seg, c.eaAddr, uint16(v))
	} else {
		c.writeMemB(seg, uint32(c.eaAddr), byte(v))
	}
}

// jump flushes the queue and redirects to IP+delta, returning the old IP.
func (c *CPU_X86) jump(delta uint16) uint16 {
	c.clearQueue()
	c.wait(5, 0)
	old := c.IP
	c.setIP(c.IP + delta)
	return old
}

func (c *CPU_X86) jumpShort() {
	c.jump(signExtend8(byte(c.data)))
}

func (c *CPU_X86) jumpNear() uint16 {
	return c.jump(c.fetchWord())
}

// =============================================================================
// ALU
// =============================================================================

func (c *CPU_X86) opALU_rm() {
	width := c.opBits()
	c.decodeModRM()
	c.access(46)
	v := c.getEAOperand(width)
	c.aluOp = int(c.opcode>>3) & 7
	if c.opcode&2 == 0 {
		c.dest = v
		c.src = c.getReg(width)
	} else {
		c.dest = c.getReg(width)
		c.src = v
	}
	if c.mod != 3 {
		c.wait(2, 0)
	}
	c.wait(1, 0)
	c.aluExec(width)
	if c.aluOp == 7 {
		c.wait(1, 0)
		return
	}
	if c.opcode&2 == 0 {
		c.access(10)
		c.setEA(c.data)
		if c.mod == 3 {
			c.wait(1, 0)
		}
	} else {
		c.setReg(width, c.data)
		c.wait(1, 0)
	}
}

func (c *CPU_X86) getEAOperand(width int) uint32 {
	if width == 16 {
		return uint32(c.getEAW())
	}
	return uint32(c.getEAB())
}

func (c *CPU_X86) opALU_AccImm() {
	width := c.opBits()
	c.wait(1, 0)
	c.data = c.fetchImm()
	c.dest = c.getAccum(width)
	c.src = c.data
	c.aluOp = int(c.opcode>>3) & 7
	c.aluExec(width)
	if c.aluOp != 7 {
		c.setAccum(width, c.data)
	}
	c.wait(1, 0)
}

func (c *CPU_X86) opINCDEC_r16() {
	c.wait(1, 0)
	r := c.opcode & 7
	c.dest = uint32(c.regs[r])
	c.src = 1
	if c.opcode&8 == 0 {
		c.data = c.dest + c.src
		c.setOFAdd(16)
	} else {
		c.data = c.dest - c.src
		c.setOFSub(16)
	}
	c.doAF()
	c.setPZS(16)
	c.regs[r] = uint16(c.data)
}

// =============================================================================
// Segment registers and prefixes
// =============================================================================

func (c *CPU_X86) opPUSH_seg() {
	c.access(29)
	c.push(c.segs[(c.opcode>>3)&3].Sel)
}

func (c *CPU_X86) opPOP_seg() {
	if c.nec && c.opcode == 0x0F && c.opNEC0F() {
		return
	}
	c.access(22)
	v := c.pop()
	if c.opcode == 0x0F {
		c.loadCS(v)
		c.pfqPos = 0
	} else {
		c.loadSeg(int(c.opcode>>3)&3, v)
	}
	c.wait(1, 0)
	c.noint = 1
}

func (c *CPU_X86) opSegOverride() {
	c.wait(1, 0)
	c.ovr = int(c.opcode>>3) & 3
	c.completed = false
}

func (c *CPU_X86) opLOCK() {
	c.inLock = true
	c.wait(1, 0)
	c.completed = false
}

func (c *CPU_X86) opREP() {
	c.wait(1, 0)
	if c.opcode == 0xF2 {
		c.inRep = 1
	} else {
		c.inRep = 2
	}
	c.completed = false
	c.repCFlag = false
}

// =============================================================================
// Stack and register moves
// =============================================================================

func (c *CPU_X86) opPUSH_r16() {
	c.access(30)
	c.push(c.regs[c.opcode&7])
}

func (c *CPU_X86) opPOP_r16() {
	c.access(23)
	c.regs[c.opcode&7] = c.pop()
	c.wait(1, 0)
}

func (c *CPU_X86) opXCHG_AX() {
	c.wait(1, 0)
	r := c.opcode & 7
	c.data = uint32(c.regs[r])
	c.regs[r] = c.regs[x86RegAX]
	c.regs[x86RegAX] = uint16(c.data)
	c.wait(1, 0)
}

func (c *CPU_X86) opTEST_rm() {
	width := c.opBits()
	c.decodeModRM()
	c.access(48)
	c.data = c.getEAOperand(width)
	c.test(width, c.data, c.getReg(width))
	if c.mod == 3 {
		c.wait(2, 0)
	}
	c.wait(2, 0)
}

func (c *CPU_X86) opXCHG_rm() {
	width := c.opBits()
	c.decodeModRM()
	c.access(49)
	c.data = c.getEAOperand(width)
	c.src = c.getReg(width)
	c.setReg(width, c.data)
	c.wait(3, 0)
	c.access(12)
	c.setEA(c.src)
}

func (c *CPU_X86) opMOV_rm_reg() {
	width := c.opBits()
	c.decodeModRM()
	c.wait(1, 0)
	c.access(13)
	c.setEA(c.getReg(width))
}

func (c *CPU_X86) opMOV_reg_rm() {
	width := c.opBits()
	c.decodeModRM()
	c.access(50)
	c.setReg(width, c.getEAOperand(width))
	c.wait(1, 0)
	if c.mod != 3 {
		c.wait(2, 0)
	}
}

func (c *CPU_X86) opMOV_rm_sreg() {
	c.decodeModRM()
	if c.mod == 3 {
		c.wait(1, 0)
	}
	c.access(14)
	c.setEAW(c.segs[(c.modrm>>3)&3].Sel)
}

func (c *CPU_X86) opLEA() {
	c.decodeModRM()
	c.regs[c.reg] = c.eaAddr
	c.wait(1, 0)
	if c.mod != 3 {
		c.wait(2, 0)
	}
}

func (c *CPU_X86) opMOV_sreg_rm() {
	c.decodeModRM()
	c.access(51)
	v := c.getEAW()
	sreg := int(c.modrm>>3) & 3
	if sreg == x86SegCS {
		c.loadCS(v)
		c.pfqPos = 0
	} else {
		c.loadSeg(sreg, v)
	}
	c.wait(1, 0)
	if c.mod != 3 {
		c.wait(2, 0)
	}
	if sreg == x86SegSS {
		c.noint = 1
	}
}

func (c *CPU_X86) opPOP_rm() {
	c.decodeModRM()
	c.wait(1, 0)
	ea := c.eaAddr
	c.access(24)
	if c.mod != 3 {
		c.wait(2, 0)
	}
	c.data = uint32(c.pop())
	c.eaAddr = ea
	c.wait(2, 0)
	c.access(15)
	c.setEAW(uint16(c.data))
}

func (c *CPU_X86) opCBW() {
	c.wait(1, 0)
	c.regs[x86RegAX] = signExtend8(c.AL())
}

func (c *CPU_X86) opCWD() {
	c.wait(4, 0)
	if c.regs[x86RegAX]&0x8000 == 0 {
		c.regs[x86RegDX] = 0
	} else {
		c.wait(1, 0)
		c.regs[x86RegDX] = 0xFFFF
	}
}

func (c *CPU_X86) opMOV_Acc_Mem() {
	width := c.opBits()
	c.wait(1, 0)
	c.eaAddr = c.fetchWord()
	c.access(1)
	c.setAccum(width, c.readMemEA(c.dataSeg(), width))
	c.wait(1, 0)
}

func (c *CPU_X86) opMOV_Mem_Acc() {
	width := c.opBits()
	c.wait(1, 0)
	c.eaAddr = c.fetchWord()
	c.access(7)
	c.writeMemEA(c.dataSeg(), width, c.getAccum(width))
}

func (c *CPU_X86) opTEST_AccImm() {
	width := c.opBits()
	c.wait(1, 0)
	c.data = c.fetchImm()
	c.test(width, c.getAccum(width), c.data)
	c.wait(1, 0)
}

func (c *CPU_X86) opMOV_r8_imm() {
	c.wait(1, 0)
	c.setReg8(c.opcode&7, c.fetchByte())
	c.wait(1, 0)
}

func (c *CPU_X86) opMOV_r16_imm() {
	c.wait(1, 0)
	c.regs[c.opcode&7] = c.fetchWord()
	c.wait(1, 0)
}

func (c *CPU_X86) opLxS() {
	c.decodeModRM()
	c.access(52)
	c.readEA(true, 16)
	c.regs[c.reg] = uint16(c.data)
	c.access(57)
	c.readEA2(16)
	if c.opcode&1 != 0 {
		c.loadSeg(x86SegDS, uint16(c.data))
	} else {
		c.loadSeg(x86SegES, uint16(c.data))
	}
	c.wait(1, 0)
}

func (c *CPU_X86) opMOV_rm_imm() {
	c.decodeModRM()
	c.wait(1, 0)
	if c.mod != 3 {
		c.wait(2, 0)
	}
	c.data = c.fetchImm()
	if c.mod == 3 {
		c.wait(1, 0)
	}
	c.access(16)
	c.setEA(c.data)
}

// =============================================================================
// Flags
// =============================================================================

func (c *CPU_X86) opPUSHF() {
	c.access(33)
	var v uint16
	if c.nec {
		v = c.Flags&0x8FD7 | 0x7000
	} else {
		v = c.Flags&0x0FD7 | 0xF000
	}
	c.push(v)
}

// poppedFlags applies the fixed bits to a flags image loaded from the stack.
// NEC parts keep MD set unless BRKEM has enabled writes to it.
func (c *CPU_X86) poppedFlags(v uint16) uint16 {
	if c.nec && c.mdWriteDisable {
		return v | 0x8002
	}
	return v | 0x0002
}

func (c *CPU_X86) opPOPF() {
	old := c.Flags
	c.access(25)
	c.Flags = c.poppedFlags(c.pop())
	c.wait(1, 0)
	if (old^c.Flags)&x86FlagTF != 0 {
		c.noint = 1
	}
	c.syncTo8080()
}

func (c *CPU_X86) opSAHF() {
	c.wait(1, 0)
	c.Flags = c.Flags&0xFF02 | uint16(c.AH())
	c.wait(2, 0)
}

func (c *CPU_X86) opLAHF() {
	c.wait(1, 0)
	c.SetAH(byte(c.Flags & 0xD7))
}

func (c *CPU_X86) opCMC() {
	c.wait(1, 0)
	c.Flags ^= x86FlagCF
}

func (c *CPU_X86) opCLC_STC() {
	c.wait(1, 0)
	c.setFlag(x86FlagCF, c.opcode&1 != 0)
}

func (c *CPU_X86) opCLI_STI() {
	c.wait(1, 0)
	// STI holds off interrupts until after the next instruction
	if c.opcode&1 != 0 && !c.IF() {
		c.noint = 1
	}
	c.setFlag(x86FlagIF, c.opcode&1 != 0)
}

func (c *CPU_X86) opCLD_STD() {
	c.wait(1, 0)
	c.setFlag(x86FlagDF, c.opcode&1 != 0)
}

// =============================================================================
// Control transfer
// =============================================================================

// jccCondition evaluates the even (jump-if-true) form of condition code cc.
func (c *CPU_X86) jccCondition(cc byte) bool {
	switch cc & 7 {
	case 0:
		return c.OF()
	case 1:
		return c.CF()
	case 2:
		return c.ZF()
	case 3:
		return c.CF() || c.ZF()
	case 4:
		return c.SF()
	case 5:
		return c.PF()
	case 6:
		return c.SF() != c.OF()
	default:
		return c.ZF() || c.SF() != c.OF()
	}
}

func (c *CPU_X86) opJcc() {
	cond := c.jccCondition(c.opcode >> 1)
	c.wait(1, 0)
	c.data = uint32(c.fetchByte())
	c.wait(1, 0)
	if cond != (c.opcode&1 != 0) {
		c.jumpShort()
	}
}

func (c *CPU_X86) opCALL_far() {
	c.wait(1, 0)
	newIP := c.fetchWord()
	c.wait(1, 0)
	newCS := c.fetchWord()
	c.clearQueue()
	c.access(31)
	c.push(c.CS())
	c.access(60)
	c.oldPC = c.IP
	c.loadCS(newCS)
	c.setIP(newIP)
	c.access(32)
	c.push(c.oldPC)
}

func (c *CPU_X86) opCALL_near() {
	c.wait(1, 0)
	c.oldPC = c.jumpNear()
	c.access(34)
	c.push(c.oldPC)
}

func (c *CPU_X86) opJMP_near() {
	c.wait(1, 0)
	c.jumpNear()
}

func (c *CPU_X86) opJMP_far() {
	c.wait(1, 0)
	ip := c.fetchWord()
	c.wait(1, 0)
	cs := c.fetchWord()
	c.loadCS(cs)
	c.access(70)
	c.clearQueue()
	c.setIP(ip)
}

func (c *CPU_X86) opJMP_short() {
	c.wait(1, 0)
	c.data = uint32(c.fetchByte())
	c.jumpShort()
	c.wait(1, 0)
}

// opRET covers near/far RET with and without an immediate stack adjust.
func (c *CPU_X86) opRET() {
	if c.opcode&9 != 1 {
		c.wait(1, 0)
	}
	if c.opcode&1 == 0 {
		c.src = uint32(c.fetchWord())
		c.wait(1, 0)
	}
	if c.opcode&9 == 9 {
		c.wait(1, 0)
	}
	c.clearQueue()
	c.access(26)
	newIP := c.pop()
	c.wait(2, 0)
	newCS := c.CS()
	if c.opcode&8 != 0 {
		c.access(42)
		newCS = c.pop()
		if c.opcode&1 != 0 {
			c.wait(1, 0)
		}
	}
	if c.opcode&1 == 0 {
		c.regs[x86RegSP] += uint16(c.src)
		c.wait(1, 0)
	}
	c.loadCS(newCS)
	c.setIP(newIP)
}

func (c *CPU_X86) opINT3() {
	c.interrupt(3)
}

func (c *CPU_X86) opINT() {
	c.wait(1, 0)
	c.interrupt(uint16(c.fetchByte()))
}

func (c *CPU_X86) opINTO() {
	c.wait(3, 0)
	if c.OF() {
		c.wait(2, 0)
		c.interrupt(4)
	}
}

func (c *CPU_X86) opIRET() {
	c.access(43)
	newIP := c.pop()
	c.wait(3, 0)
	c.access(44)
	newCS := c.pop()
	c.loadCS(newCS)
	c.access(62)
	c.setIP(newIP)
	c.access(45)
	c.Flags = c.poppedFlags(c.pop())
	c.wait(5, 0)
	c.noint = 2
	c.nmiEnable = true
	if c.InEmulationMode() {
		c.syncTo8080()
	}
}

func (c *CPU_X86) opLOOP() {
	c.wait(3, 0)
	c.data = uint32(c.fetchByte())
	if c.opcode != 0xE2 {
		c.wait(1, 0)
	}
	var taken bool
	if c.opcode != 0xE3 {
		c.regs[x86RegCX]--
		taken = c.regs[x86RegCX] != 0
		switch c.opcode {
		case 0xE0: // LOOPNZ
			if c.ZF() {
				taken = false
			}
		case 0xE1: // LOOPZ
			if !c.ZF() {
				taken = false
			}
		}
	} else {
		taken = c.regs[x86RegCX] == 0
	}
	if taken {
		c.jumpShort()
	}
}

// =============================================================================
// I/O, BCD and misc
// =============================================================================

func (c *CPU_X86) opINOUT() {
	width := c.opBits()
	if c.opcode&0x0E != 0x0C {
		c.wait(1, 0)
	}
	var port uint16
	if c.opcode&8 == 0 {
		port = uint16(c.fetchByte())
	} else {
		port = c.regs[x86RegDX]
	}
	c.eaAddr = port
	if c.opcode&2 == 0 {
		c.access(3)
		c.setAccum(width, uint32(c.cpuIO(width, false, port, 0)))
		c.wait(1, 0)
		return
	}
	if c.opcode&8 == 0 {
		c.access(8)
	} else {
		c.access(9)
	}
	c.cpuIO(width, true, port, uint16(c.getAccum(width)))
}

func (c *CPU_X86) opAAM() {
	c.wait(1, 0)
	c.src = uint32(c.fetchByte())
	if c.div(uint16(c.AL()), 0) {
		c.data = uint32(c.AL())
		c.setPZS(8)
	}
}

// opAAD multiplies AH by the immediate (always 10 on NEC parts) and adds AL.
func (c *CPU_X86) opAAD() {
	c.wait(1, 0)
	base := c.fetchByte()
	if c.nec {
		base = 10
	}
	c.mul(uint16(base), uint16(c.AH()))
	c.dest = uint32(c.AL())
	c.src = c.data
	c.add(8)
	c.SetAL(byte(c.data))
	c.SetAH(0)
	c.setPZS(8)
}

// opSALC is undocumented on Intel parts; NEC decodes D6 as XLAT.
func (c *CPU_X86) opSALC() {
	if c.nec {
		c.opXLAT()
		return
	}
	c.wait(1, 0)
	if c.CF() {
		c.SetAL(0xFF)
	} else {
		c.SetAL(0)
	}
	c.wait(1, 0)
}

func (c *CPU_X86) opXLAT() {
	c.eaAddr = c.regs[x86RegBX] + uint16(c.AL())
	c.access(4)
	c.SetAL(c.readMemB(c.dataSeg() + uint32(c.eaAddr)))
	c.wait(1, 0)
}

// opWAIT samples TEST#, which is never asserted on this board, so it only
// burns the polling cycles and takes any pending interrupt.
func (c *CPU_X86) opWAIT() {
	if !c.repeating {
		c.wait(2, 0)
	}
	c.wait(5, 0)
	c.wait(7, 0)
	c.checkInterrupts(false)
}

func (c *CPU_X86) opHLT() {
	if !c.repeating {
		c.wait(1, 0)
		c.clearQueue()
	}
	c.wait(1, 0)
	if c.irqPending(c.nec) {
		c.wait(c.cycles&1, 0)
		c.checkInterrupts(c.nec)
		return
	}
	c.repeating = true
	c.completed = false
	c.clockEnd()
}

func (c *CPU_X86) opIllegal() {
	c.logf("illegal opcode %02X at %04X:%04X\n", c.opcode, c.CS(), c.oldPC)
	c.fetchByte()
	c.wait(8, 0)
}
