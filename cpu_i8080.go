// cpu_i8080.go - Intel 8080 interpreter used by the NEC V20/V30 emulation mode
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import "math/bits"

// I8080Bus is the memory/I/O interface of the 8080 sub-interpreter. On a
// V20/V30 every access goes through the host bus unit. CallNative and
// ReturnNative implement the CALLN (ED ED) and RETEM (ED FD) escapes.
type I8080Bus interface {
	FetchOpcode(addr uint16) byte
	ReadData(addr uint16) byte
	WriteData(addr uint16, value byte)
	In(port byte) byte
	Out(port byte, value byte)
	CallNative(vector byte)
	ReturnNative()
}

// CPU_I8080 represents the 8080 register file and flags.
type CPU_I8080 struct {
	A, B, C, D, E, H, L byte
	SP, PC              uint16

	FlagS, FlagZ, FlagAC, FlagP, FlagCY bool

	IFF            bool
	InterruptDelay int
	Halted         bool

	bus I8080Bus
	cyc int
}

// Base cycle counts (untaken conditional CALL/RET; taken adds 6)
var i8080Cycles = [256]byte{
	4, 10, 7, 5, 5, 5, 7, 4, 4, 10, 7, 5, 5, 5, 7, 4, // 00
	4, 10, 7, 5, 5, 5, 7, 4, 4, 10, 7, 5, 5, 5, 7, 4, // 10
	4, 10, 16, 5, 5, 5, 7, 4, 4, 10, 16, 5, 5, 5, 7, 4, // 20
	4, 10, 13, 5, 10, 10, 10, 4, 4, 10, 13, 5, 5, 5, 7, 4, // 30
	5, 5, 5, 5, 5, 5, 7, 5, 5, 5, 5, 5, 5, 5, 7, 5, // 40
	5, 5, 5, 5, 5, 5, 7, 5, 5, 5, 5, 5, 5, 5, 7, 5, // 50
	5, 5, 5, 5, 5, 5, 7, 5, 5, 5, 5, 5, 5, 5, 7, 5, // 60
	7, 7, 7, 7, 7, 7, 7, 7, 5, 5, 5, 5, 5, 5, 7, 5, // 70
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 80
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // 90
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // A0
	4, 4, 4, 4, 4, 4, 7, 4, 4, 4, 4, 4, 4, 4, 7, 4, // B0
	5, 10, 10, 10, 11, 11, 7, 11, 5, 10, 10, 10, 11, 17, 7, 11, // C0
	5, 10, 10, 10, 11, 11, 7, 11, 5, 10, 10, 10, 11, 17, 7, 11, // D0
	5, 10, 10, 18, 11, 11, 7, 11, 5, 5, 10, 4, 11, 17, 7, 11, // E0
	5, 10, 10, 4, 11, 11, 7, 11, 5, 5, 10, 4, 11, 17, 7, 11, // F0
}

func NewCPU_I8080(bus I8080Bus) *CPU_I8080 {
	cpu := &CPU_I8080{bus: bus}
	cpu.Reset()
	return cpu
}

func (cpu *CPU_I8080) Reset() {
	cpu.A, cpu.B, cpu.C, cpu.D, cpu.E, cpu.H, cpu.L = 0, 0, 0, 0, 0, 0, 0
	cpu.SP, cpu.PC = 0, 0
	cpu.FlagS, cpu.FlagZ, cpu.FlagAC, cpu.FlagP, cpu.FlagCY = false, false, false, false, false
	cpu.IFF = false
	cpu.InterruptDelay = 0
	cpu.Halted = false
}

// -----------------------------------------------------------------------------
// Register pairs and PSW
// -----------------------------------------------------------------------------

func (cpu *CPU_I8080) BC() uint16 { return uint16(cpu.B)<<8 | uint16(cpu.C) }
func (cpu *CPU_I8080) DE() uint16 { return uint16(cpu.D)<<8 | uint16(cpu.E) }
func (cpu *CPU_I8080) HL() uint16 { return uint16(cpu.H)<<8 | uint16(cpu.L) }

func (cpu *CPU_I8080) SetBC(v uint16) { cpu.B, cpu.C = byte(v>>8), byte(v) }
func (cpu *CPU_I8080) SetDE(v uint16) { cpu.D, cpu.E = byte(v>>8), byte(v) }
func (cpu *CPU_I8080) SetHL(v uint16) { cpu.H, cpu.L = byte(v>>8), byte(v) }

// F packs the flags in the 8080 PSW layout (bit 1 always set).
func (cpu *CPU_I8080) F() byte {
	f := byte(0x02)
	if cpu.FlagS {
		f |= 0x80
	}
	if cpu.FlagZ {
		f |= 0x40
	}
	if cpu.FlagAC {
		f |= 0x10
	}
	if cpu.FlagP {
		f |= 0x04
	}
	if cpu.FlagCY {
		f |= 0x01
	}
	return f
}

func (cpu *CPU_I8080) SetF(f byte) {
	cpu.FlagS = f&0x80 != 0
	cpu.FlagZ = f&0x40 != 0
	cpu.FlagAC = f&0x10 != 0
	cpu.FlagP = f&0x04 != 0
	cpu.FlagCY = f&0x01 != 0
}

// reg reads a register by its 3-bit opcode encoding (6 is M = (HL)).
func (cpu *CPU_I8080) reg(r byte) byte {
	switch r & 7 {
	case 0:
		return cpu.B
	case 1:
		return cpu.C
	case 2:
		return cpu.D
	case 3:
		return cpu.E
	case 4:
		return cpu.H
	case 5:
		return cpu.L
	case 6:
		return cpu.bus.ReadData(cpu.HL())
	default:
		return cpu.A
	}
}

func (cpu *CPU_I8080) setReg(r byte, v byte) {
	switch r & 7 {
	case 0:
		cpu.B = v
	case 1:
		cpu.C = v
	case 2:
		cpu.D = v
	case 3:
		cpu.E = v
	case 4:
		cpu.H = v
	case 5:
		cpu.L = v
	case 6:
		cpu.bus.WriteData(cpu.HL(), v)
	default:
		cpu.A = v
	}
}

// pair reads BC/DE/HL/SP by the 2-bit rp encoding.
func (cpu *CPU_I8080) pair(rp byte) uint16 {
	switch rp & 3 {
	case 0:
		return cpu.BC()
	case 1:
		return cpu.DE()
	case 2:
		return cpu.HL()
	default:
		return cpu.SP
	}
}

func (cpu *CPU_I8080) setPair(rp byte, v uint16) {
	switch rp & 3 {
	case 0:
		cpu.SetBC(v)
	case 1:
		cpu.SetDE(v)
	case 2:
		cpu.SetHL(v)
	default:
		cpu.SP = v
	}
}

// -----------------------------------------------------------------------------
// Memory helpers
// -----------------------------------------------------------------------------

func (cpu *CPU_I8080) fetch() byte {
	v := cpu.bus.FetchOpcode(cpu.PC)
	cpu.PC++
	return v
}

func (cpu *CPU_I8080) fetch16() uint16 {
	lo := cpu.fetch()
	hi := cpu.fetch()
	return uint16(hi)<<8 | uint16(lo)
}

func (cpu *CPU_I8080) read16(addr uint16) uint16 {
	return uint16(cpu.bus.ReadData(addr)) | uint16(cpu.bus.ReadData(addr+1))<<8
}

func (cpu *CPU_I8080) write16(addr uint16, v uint16) {
	cpu.bus.WriteData(addr, byte(v))
	cpu.bus.WriteData(addr+1, byte(v>>8))
}

func (cpu *CPU_I8080) push(v uint16) {
	cpu.SP -= 2
	cpu.write16(cpu.SP, v)
}

func (cpu *CPU_I8080) pop() uint16 {
	v := cpu.read16(cpu.SP)
	cpu.SP += 2
	return v
}

// -----------------------------------------------------------------------------
// ALU
// -----------------------------------------------------------------------------

func (cpu *CPU_I8080) setZSP(v byte) {
	cpu.FlagZ = v == 0
	cpu.FlagS = v&0x80 != 0
	cpu.FlagP = bits.OnesCount8(v)&1 == 0
}

func (cpu *CPU_I8080) add(v byte, carry bool) {
	cin := byte(0)
	if carry {
		cin = 1
	}
	r := uint16(cpu.A) + uint16(v) + uint16(cin)
	cpu.FlagAC = (cpu.A&0x0F)+(v&0x0F)+cin > 0x0F
	cpu.FlagCY = r > 0xFF
	cpu.A = byte(r)
	cpu.setZSP(cpu.A)
}

// sub computes A - v - borrow; the 8080 AC is the inverted nibble borrow.
func (cpu *CPU_I8080) sub(v byte, borrow bool) byte {
	bin := byte(0)
	if borrow {
		bin = 1
	}
	r := int(cpu.A) - int(v) - int(bin)
	cpu.FlagAC = int(cpu.A&0x0F)-int(v&0x0F)-int(bin) >= 0
	cpu.FlagCY = r < 0
	res := byte(r)
	cpu.setZSP(res)
	return res
}

func (cpu *CPU_I8080) and(v byte) {
	cpu.FlagAC = (cpu.A|v)&0x08 != 0
	cpu.A &= v
	cpu.FlagCY = false
	cpu.setZSP(cpu.A)
}

func (cpu *CPU_I8080) xor(v byte) {
	cpu.A ^= v
	cpu.FlagCY = false
	cpu.FlagAC = false
	cpu.setZSP(cpu.A)
}

func (cpu *CPU_I8080) or(v byte) {
	cpu.A |= v
	cpu.FlagCY = false
	cpu.FlagAC = false
	cpu.setZSP(cpu.A)
}

func (cpu *CPU_I8080) alu(op byte, v byte) {
	switch op & 7 {
	case 0:
		cpu.add(v, false)
	case 1:
		cpu.add(v, cpu.FlagCY)
	case 2:
		cpu.A = cpu.sub(v, false)
	case 3:
		cpu.A = cpu.sub(v, cpu.FlagCY)
	case 4:
		cpu.and(v)
	case 5:
		cpu.xor(v)
	case 6:
		cpu.or(v)
	case 7:
		cpu.sub(v, false)
	}
}

func (cpu *CPU_I8080) inr(v byte) byte {
	r := v + 1
	cpu.FlagAC = r&0x0F == 0
	cpu.setZSP(r)
	return r
}

func (cpu *CPU_I8080) dcr(v byte) byte {
	r := v - 1
	cpu.FlagAC = r&0x0F != 0x0F
	cpu.setZSP(r)
	return r
}

func (cpu *CPU_I8080) daa() {
	correction := byte(0)
	cy := cpu.FlagCY
	lsb := cpu.A & 0x0F
	msb := cpu.A >> 4
	if cpu.FlagAC || lsb > 9 {
		correction |= 0x06
	}
	if cpu.FlagCY || msb > 9 || (msb >= 9 && lsb > 9) {
		correction |= 0x60
		cy = true
	}
	cpu.add(correction, false)
	cpu.FlagCY = cy
}

// condition evaluates the 3-bit ccc field: NZ Z NC C PO PE P M.
func (cpu *CPU_I8080) condition(cc byte) bool {
	switch cc & 7 {
	case 0:
		return !cpu.FlagZ
	case 1:
		return cpu.FlagZ
	case 2:
		return !cpu.FlagCY
	case 3:
		return cpu.FlagCY
	case 4:
		return !cpu.FlagP
	case 5:
		return cpu.FlagP
	case 6:
		return !cpu.FlagS
	default:
		return cpu.FlagS
	}
}

// -----------------------------------------------------------------------------
// Execution
// -----------------------------------------------------------------------------

// Step executes one instruction and returns its cycle cost.
func (cpu *CPU_I8080) Step() int {
	if cpu.Halted {
		return 4
	}
	op := cpu.fetch()
	cpu.cyc = int(i8080Cycles[op])
	cpu.execute(op)
	return cpu.cyc
}

func (cpu *CPU_I8080) execute(op byte) {
	switch {
	case op == 0x76: // HLT
		cpu.Halted = true
		return
	case op >= 0x40 && op < 0x80: // MOV d,s
		cpu.setReg(op>>3, cpu.reg(op))
		return
	case op >= 0x80 && op < 0xC0: // ALU r
		cpu.alu(op>>3, cpu.reg(op))
		return
	}

	switch op {
	case 0x00, 0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38: // NOP (and undocumented aliases)

	case 0x01, 0x11, 0x21, 0x31: // LXI rp
		cpu.setPair(op>>4, cpu.fetch16())
	case 0x02: // STAX B
		cpu.bus.WriteData(cpu.BC(), cpu.A)
	case 0x12: // STAX D
		cpu.bus.WriteData(cpu.DE(), cpu.A)
	case 0x0A: // LDAX B
		cpu.A = cpu.bus.ReadData(cpu.BC())
	case 0x1A: // LDAX D
		cpu.A = cpu.bus.ReadData(cpu.DE())
	case 0x22: // SHLD
		cpu.write16(cpu.fetch16(), cpu.HL())
	case 0x2A: // LHLD
		cpu.SetHL(cpu.read16(cpu.fetch16()))
	case 0x32: // STA
		cpu.bus.WriteData(cpu.fetch16(), cpu.A)
	case 0x3A: // LDA
		cpu.A = cpu.bus.ReadData(cpu.fetch16())

	case 0x03, 0x13, 0x23, 0x33: // INX
		rp := op >> 4
		cpu.setPair(rp, cpu.pair(rp)+1)
	case 0x0B, 0x1B, 0x2B, 0x3B: // DCX
		rp := op >> 4
		cpu.setPair(rp, cpu.pair(rp)-1)
	case 0x09, 0x19, 0x29, 0x39: // DAD
		r := uint32(cpu.HL()) + uint32(cpu.pair(op>>4))
		cpu.FlagCY = r > 0xFFFF
		cpu.SetHL(uint16(r))

	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C: // INR
		cpu.setReg(op>>3, cpu.inr(cpu.reg(op>>3)))
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D: // DCR
		cpu.setReg(op>>3, cpu.dcr(cpu.reg(op>>3)))
	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E: // MVI
		cpu.setReg(op>>3, cpu.fetch())

	case 0x07: // RLC
		cpu.FlagCY = cpu.A&0x80 != 0
		cpu.A = cpu.A<<1 | cpu.A>>7
	case 0x0F: // RRC
		cpu.FlagCY = cpu.A&1 != 0
		cpu.A = cpu.A>>1 | cpu.A<<7
	case 0x17: // RAL
		cy := cpu.FlagCY
		cpu.FlagCY = cpu.A&0x80 != 0
		cpu.A <<= 1
		if cy {
			cpu.A |= 1
		}
	case 0x1F: // RAR
		cy := cpu.FlagCY
		cpu.FlagCY = cpu.A&1 != 0
		cpu.A >>= 1
		if cy {
			cpu.A |= 0x80
		}
	case 0x27: // DAA
		cpu.daa()
	case 0x2F: // CMA
		cpu.A = ^cpu.A
	case 0x37: // STC
		cpu.FlagCY = true
	case 0x3F: // CMC
		cpu.FlagCY = !cpu.FlagCY

	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE: // ALU imm
		cpu.alu(op>>3, cpu.fetch())

	case 0xC3, 0xCB: // JMP
		cpu.PC = cpu.fetch16()
	case 0xC2, 0xCA, 0xD2, 0xDA, 0xE2, 0xEA, 0xF2, 0xFA: // Jcc
		addr := cpu.fetch16()
		if cpu.condition(op >> 3) {
			cpu.PC = addr
		}
	case 0xCD, 0xDD, 0xFD: // CALL
		addr := cpu.fetch16()
		cpu.push(cpu.PC)
		cpu.PC = addr
	case 0xC4, 0xCC, 0xD4, 0xDC, 0xE4, 0xEC, 0xF4, 0xFC: // Ccc
		addr := cpu.fetch16()
		if cpu.condition(op >> 3) {
			cpu.push(cpu.PC)
			cpu.PC = addr
			cpu.cyc += 6
		}
	case 0xC9, 0xD9: // RET
		cpu.PC = cpu.pop()
	case 0xC0, 0xC8, 0xD0, 0xD8, 0xE0, 0xE8, 0xF0, 0xF8: // Rcc
		if cpu.condition(op >> 3) {
			cpu.PC = cpu.pop()
			cpu.cyc += 6
		}
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST
		cpu.push(cpu.PC)
		cpu.PC = uint16(op & 0x38)

	case 0xC5, 0xD5, 0xE5: // PUSH rp
		cpu.push(cpu.pair(op >> 4))
	case 0xF5: // PUSH PSW
		cpu.push(uint16(cpu.A)<<8 | uint16(cpu.F()))
	case 0xC1, 0xD1, 0xE1: // POP rp
		cpu.setPair(op>>4, cpu.pop())
	case 0xF1: // POP PSW
		v := cpu.pop()
		cpu.A = byte(v >> 8)
		cpu.SetF(byte(v))

	case 0xE3: // XTHL
		v := cpu.read16(cpu.SP)
		cpu.write16(cpu.SP, cpu.HL())
		cpu.SetHL(v)
	case 0xE9: // PCHL
		cpu.PC = cpu.HL()
	case 0xF9: // SPHL
		cpu.SP = cpu.HL()
	case 0xEB: // XCHG
		cpu.D, cpu.H = cpu.H, cpu.D
		cpu.E, cpu.L = cpu.L, cpu.E

	case 0xDB: // IN
		cpu.A = cpu.bus.In(cpu.fetch())
	case 0xD3: // OUT
		cpu.bus.Out(cpu.fetch(), cpu.A)
	case 0xF3: // DI
		cpu.IFF = false
	case 0xFB: // EI
		cpu.IFF = true
		cpu.InterruptDelay = 1

	case 0xED: // V-series escape: CALLN / RETEM, otherwise CALL
		cpu.executeED()
	}
}

// executeED handles the ED prefix, which the V20/V30 use to leave 8080
// mode. Any other second byte leaves ED as the undocumented CALL alias.
func (cpu *CPU_I8080) executeED() {
	switch cpu.bus.FetchOpcode(cpu.PC) {
	case 0xED: // CALLN imm8
		cpu.PC++
		vec := cpu.fetch()
		cpu.cyc = 38
		cpu.bus.CallNative(vec)
	case 0xFD: // RETEM
		cpu.PC++
		cpu.cyc = 27
		cpu.bus.ReturnNative()
	default:
		addr := cpu.fetch16()
		cpu.push(cpu.PC)
		cpu.PC = addr
	}
}
