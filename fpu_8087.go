// fpu_8087.go - 8087 numeric coprocessor attached to the 808x ESC opcodes
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"math"
)

// The register stack is held as float64. Operands that need the full 80-bit
// range (FLD/FSTP m80, FSAVE/FRSTOR) are converted at the memory boundary.

var fpuSmallestNormal = math.Float64frombits(0x0010000000000000)

const (
	fpuTagValid   = uint16(0)
	fpuTagZero    = uint16(1)
	fpuTagSpecial = uint16(2)
	fpuTagEmpty   = uint16(3)
)

const (
	fpuSW_IE       = uint16(1 << 0)
	fpuSW_DE       = uint16(1 << 1)
	fpuSW_ZE       = uint16(1 << 2)
	fpuSW_OE       = uint16(1 << 3)
	fpuSW_UE       = uint16(1 << 4)
	fpuSW_PE       = uint16(1 << 5)
	fpuSW_IR       = uint16(1 << 7) // interrupt request (ES on later parts)
	fpuSW_C0       = uint16(1 << 8)
	fpuSW_C1       = uint16(1 << 9)
	fpuSW_C2       = uint16(1 << 10)
	fpuSW_TOPMask  = uint16(7 << 11)
	fpuSW_TOPShift = 11
	fpuSW_C3       = uint16(1 << 14)
	fpuSW_B        = uint16(1 << 15)

	fpuCW_IEM     = uint16(1 << 7) // 8087 only: global interrupt mask
	fpuCW_RCShift = 10
)

const (
	fpuRCNearest = uint16(0)
	fpuRCDown    = uint16(1)
	fpuRCUp      = uint16(2)
	fpuRCChop    = uint16(3)
)

// FPU_8087 is the coprocessor state. Exception requests are routed through
// OnInterrupt; the XT wires the 8087 INT pin to NMI.
type FPU_8087 struct {
	regs [8]float64

	CW uint16
	SW uint16
	TW uint16

	// Last-instruction pointers in 20-bit real-mode form
	IPtr   uint32
	DPtr   uint32
	Opcode uint16

	OnInterrupt func()
}

func NewFPU_8087() *FPU_8087 {
	f := &FPU_8087{}
	f.Reset()
	return f
}

// Reset is FINIT: all registers empty, exceptions masked, round to nearest.
func (f *FPU_8087) Reset() {
	f.regs = [8]float64{}
	f.CW = 0x03FF
	f.SW = 0
	f.TW = 0xFFFF
	f.IPtr = 0
	f.DPtr = 0
	f.Opcode = 0
}

func (f *FPU_8087) top() int { return int((f.SW & fpuSW_TOPMask) >> fpuSW_TOPShift) }

func (f *FPU_8087) setTop(top int) {
	f.SW = f.SW&^fpuSW_TOPMask | uint16(top&7)<<fpuSW_TOPShift
}

func (f *FPU_8087) physReg(i int) int { return (f.top() + i) & 7 }

// ST returns stack register i.
func (f *FPU_8087) ST(i int) float64 { return f.regs[f.physReg(i)] }

func (f *FPU_8087) setST(i int, v float64) {
	p := f.physReg(i)
	f.regs[p] = v
	f.setTag(p, classifyFPUTag(v))
}

func (f *FPU_8087) getTag(phys int) uint16 { return f.TW >> uint(phys*2) & 3 }

func (f *FPU_8087) setTag(phys int, tag uint16) {
	shift := uint(phys&7) * 2
	f.TW = f.TW&^(3<<shift) | (tag&3)<<shift
}

func classifyFPUTag(v float64) uint16 {
	switch {
	case v == 0:
		return fpuTagZero
	case math.IsNaN(v) || math.IsInf(v, 0):
		return fpuTagSpecial
	case math.Abs(v) < fpuSmallestNormal:
		return fpuTagSpecial
	}
	return fpuTagValid
}

// raise records an exception. An unmasked one sets IR and, unless the
// global IEM mask is on, asserts the INT pin.
func (f *FPU_8087) raise(mask uint16) {
	f.SW |= mask
	if f.CW&mask != 0 {
		return
	}
	f.SW |= fpuSW_IR | fpuSW_B
	if f.CW&fpuCW_IEM == 0 && f.OnInterrupt != nil {
		f.OnInterrupt()
	}
}

func (f *FPU_8087) clearCond() {
	f.SW &^= fpuSW_C0 | fpuSW_C1 | fpuSW_C2 | fpuSW_C3
}

func (f *FPU_8087) empty(i int) bool { return f.getTag(f.physReg(i)) == fpuTagEmpty }

// underflow reports (and flags) a read of an empty register.
func (f *FPU_8087) underflow(regs ...int) bool {
	for _, i := range regs {
		if f.empty(i) {
			f.raise(fpuSW_IE)
			return true
		}
	}
	return false
}

func (f *FPU_8087) push(v float64) {
	next := (f.top() - 1) & 7
	if f.getTag(next) != fpuTagEmpty {
		f.raise(fpuSW_IE)
		return
	}
	f.setTop(next)
	f.regs[next] = v
	f.setTag(next, classifyFPUTag(v))
}

func (f *FPU_8087) pop() float64 {
	t := f.top()
	v := f.regs[t]
	f.setTag(t, fpuTagEmpty)
	f.setTop(t + 1)
	return v
}

func (f *FPU_8087) round(v float64) float64 {
	switch f.CW >> fpuCW_RCShift & 3 {
	case fpuRCDown:
		return math.Floor(v)
	case fpuRCUp:
		return math.Ceil(v)
	case fpuRCChop:
		return math.Trunc(v)
	}
	return math.RoundToEven(v)
}

// toInt converts with the integer indefinite (most negative value) on
// overflow or NaN.
func (f *FPU_8087) toInt(v float64, bits int) int64 {
	r := f.round(v)
	lim := math.Ldexp(1, bits-1)
	if math.IsNaN(r) || r < -lim || r >= lim {
		f.raise(fpuSW_IE)
		return -int64(1) << (bits - 1)
	}
	if r != v {
		f.raise(fpuSW_PE)
	}
	return int64(r)
}

// -----------------------------------------------------------------------------
// Memory operands
// -----------------------------------------------------------------------------

// fpuOperand addresses a memory operand through the host BIU. Offsets wrap
// within the segment.
type fpuOperand struct {
	cpu *CPU_X86
	seg uint32
	off uint16
}

func (m fpuOperand) read(n int) uint64 {
	switch n {
	case 2:
		return uint64(m.cpu.readMemW(m.seg, m.off))
	case 4:
		return uint64(m.cpu.readMemL(m.seg, m.off))
	case 8:
		return m.cpu.readMemQ(m.seg, m.off)
	}
	m.cpu.fatal("fpu operand of %d bytes", n)
	return 0
}

func (m fpuOperand) write(n int, v uint64) {
	switch n {
	case 2:
		m.cpu.writeMemW(m.seg, m.off, uint16(v))
	case 4:
		m.cpu.writeMemL(m.seg, m.off, uint32(v))
	case 8:
		m.cpu.writeMemQ(m.seg, m.off, v)
	default:
		m.cpu.fatal("fpu operand of %d bytes", n)
	}
}

func (m fpuOperand) at(delta uint16) fpuOperand {
	m.off += delta
	return m
}

func (m fpuOperand) loadExtended() float64 {
	mant := m.read(8)
	se := uint16(m.at(8).read(2))
	return extendedToFloat64(se, mant)
}

func (m fpuOperand) storeExtended(v float64) {
	se, mant := float64ToExtended(v)
	m.write(8, mant)
	m.at(8).write(2, uint64(se))
}

func extendedToFloat64(se uint16, mant uint64) float64 {
	neg := se&0x8000 != 0
	exp := int(se & 0x7FFF)
	var v float64
	switch {
	case exp == 0x7FFF && mant<<1 == 0:
		v = math.Inf(1)
	case exp == 0x7FFF:
		return math.NaN()
	case mant == 0:
		v = 0
	default:
		v = math.Ldexp(float64(mant), exp-16383-63)
	}
	if neg {
		v = math.Copysign(v, -1)
	}
	return v
}

func float64ToExtended(v float64) (uint16, uint64) {
	var sign uint16
	if math.Signbit(v) {
		sign = 0x8000
	}
	switch {
	case math.IsNaN(v):
		return 0x7FFF, 0xC000000000000000
	case math.IsInf(v, 0):
		return sign | 0x7FFF, 1 << 63
	case v == 0:
		return sign, 0
	}
	frac, exp := math.Frexp(math.Abs(v))
	mant := uint64(math.Ldexp(frac, 64))
	return sign | uint16(exp-1+16383), mant
}

func (m fpuOperand) loadBCD() float64 {
	var val float64
	for i := 8; i >= 0; i-- {
		b := m.at(uint16(i)).readByte()
		val = val*100 + float64(b>>4)*10 + float64(b&0x0F)
	}
	if m.at(9).readByte()&0x80 != 0 {
		val = -val
	}
	return val
}

func (m fpuOperand) readByte() byte {
	return m.cpu.readMemB(m.seg + uint32(m.off))
}

func (f *FPU_8087) storeBCD(m fpuOperand, v float64) {
	r := f.round(v)
	if math.IsNaN(r) || math.Abs(r) >= 1e18 {
		f.raise(fpuSW_IE)
		m.write(8, 0)
		m.at(8).write(2, 0xFFFF)
		return
	}
	neg := math.Signbit(r)
	u := uint64(math.Abs(r))
	var packed uint64
	for i := 0; i < 16; i++ {
		packed |= (u % 10) << (4 * i)
		u /= 10
	}
	hi := u%10 | (u/10%10)<<4
	if neg {
		hi |= 0x8000
	}
	m.write(8, packed)
	m.at(8).write(2, hi)
}

// -----------------------------------------------------------------------------
// Dispatch
// -----------------------------------------------------------------------------

var fpuArith = [8]func(a, b float64) float64{
	0: func(a, b float64) float64 { return a + b },
	1: func(a, b float64) float64 { return a * b },
	4: func(a, b float64) float64 { return a - b },
	5: func(a, b float64) float64 { return b - a },
	6: func(a, b float64) float64 { return a / b },
	7: func(a, b float64) float64 { return b / a },
}

var fpuConstants = [7]float64{1, math.Log2(10), math.Log2E, math.Pi, math.Log10(2), math.Ln2, 0}

// Execute runs one ESC instruction. The CPU has already decoded ModRM; for
// memory forms eaSeg:eaAddr holds the operand address.
func (f *FPU_8087) Execute(cpu *CPU_X86, opcode, modrm byte) {
	esc := opcode & 7
	reg := int(modrm >> 3 & 7)
	rm := int(modrm & 7)
	f.Opcode = uint16(esc)<<8 | uint16(modrm)
	f.IPtr = (cpu.csBase() + uint32(cpu.IP)) & x86AddressMask
	if modrm < 0xC0 {
		f.DPtr = (cpu.eaSeg + uint32(cpu.eaAddr)) & x86AddressMask
		f.execMem(cpu, esc, reg, fpuOperand{cpu: cpu, seg: cpu.eaSeg, off: cpu.eaAddr})
		return
	}
	f.execReg(cpu, esc, reg, rm, modrm)
}

func (f *FPU_8087) arith(op int, dst int, a, b float64) {
	fn := fpuArith[op]
	if fn == nil {
		return
	}
	if op >= 6 && ((op == 6 && b == 0) || (op == 7 && a == 0)) {
		f.raise(fpuSW_ZE)
	}
	r := fn(a, b)
	if math.IsNaN(r) && !math.IsNaN(a) && !math.IsNaN(b) {
		f.raise(fpuSW_IE)
	}
	if math.IsInf(r, 0) && !math.IsInf(a, 0) && !math.IsInf(b, 0) && op < 6 {
		f.raise(fpuSW_OE)
	}
	f.setST(dst, r)
}

func (f *FPU_8087) compare(a, b float64) {
	f.clearCond()
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		f.SW |= fpuSW_C0 | fpuSW_C2 | fpuSW_C3
		f.raise(fpuSW_IE)
	case a < b:
		f.SW |= fpuSW_C0
	case a == b:
		f.SW |= fpuSW_C3
	}
}

func (f *FPU_8087) execMem(cpu *CPU_X86, esc byte, reg int, m fpuOperand) {
	// Arithmetic with a memory operand: D8 m32real, DA m32int, DC m64real, DE m16int
	if esc&1 == 0 {
		var v float64
		switch esc {
		case 0:
			v = float64(math.Float32frombits(uint32(m.read(4))))
		case 2:
			v = float64(int32(m.read(4)))
		case 4:
			v = math.Float64frombits(m.read(8))
		case 6:
			v = float64(int16(m.read(2)))
		}
		if f.underflow(0) {
			return
		}
		switch reg {
		case 2, 3:
			f.compare(f.ST(0), v)
			if reg == 3 {
				f.pop()
			}
		default:
			f.arith(reg, 0, f.ST(0), v)
		}
		return
	}

	switch esc<<3 | byte(reg) {
	case 1<<3 | 0: // FLD m32
		f.push(float64(math.Float32frombits(uint32(m.read(4)))))
	case 1<<3 | 2, 1<<3 | 3: // FST(P) m32
		if !f.underflow(0) {
			v := f.ST(0)
			if float64(float32(v)) != v && !math.IsNaN(v) {
				f.raise(fpuSW_PE)
			}
			m.write(4, uint64(math.Float32bits(float32(v))))
			if reg == 3 {
				f.pop()
			}
		}
	case 1<<3 | 4: // FLDENV
		f.loadEnv(m)
	case 1<<3 | 5: // FLDCW
		f.CW = uint16(m.read(2))
	case 1<<3 | 6: // FSTENV
		f.storeEnv(m)
	case 1<<3 | 7: // FSTCW
		m.write(2, uint64(f.CW))

	case 3<<3 | 0: // FILD m32
		f.push(float64(int32(m.read(4))))
	case 3<<3 | 2, 3<<3 | 3: // FIST(P) m32
		if !f.underflow(0) {
			m.write(4, uint64(f.toInt(f.ST(0), 32)))
			if reg == 3 {
				f.pop()
			}
		}
	case 3<<3 | 5: // FLD m80
		f.push(m.loadExtended())
	case 3<<3 | 7: // FSTP m80
		if !f.underflow(0) {
			m.storeExtended(f.ST(0))
			f.pop()
		}

	case 5<<3 | 0: // FLD m64
		f.push(math.Float64frombits(m.read(8)))
	case 5<<3 | 2, 5<<3 | 3: // FST(P) m64
		if !f.underflow(0) {
			m.write(8, math.Float64bits(f.ST(0)))
			if reg == 3 {
				f.pop()
			}
		}
	case 5<<3 | 4: // FRSTOR
		f.loadEnv(m)
		for i := range 8 {
			f.regs[(f.top()+i)&7] = m.at(uint16(14 + i*10)).loadExtended()
		}
	case 5<<3 | 6: // FSAVE
		f.storeEnv(m)
		for i := range 8 {
			m.at(uint16(14 + i*10)).storeExtended(f.regs[(f.top()+i)&7])
		}
		f.Reset()
	case 5<<3 | 7: // FSTSW m16
		m.write(2, uint64(f.SW))

	case 7<<3 | 0: // FILD m16
		f.push(float64(int16(m.read(2))))
	case 7<<3 | 2, 7<<3 | 3: // FIST(P) m16
		if !f.underflow(0) {
			m.write(2, uint64(f.toInt(f.ST(0), 16)))
			if reg == 3 {
				f.pop()
			}
		}
	case 7<<3 | 4: // FBLD
		f.push(m.loadBCD())
	case 7<<3 | 5: // FILD m64
		f.push(float64(int64(m.read(8))))
	case 7<<3 | 6: // FBSTP
		if !f.underflow(0) {
			f.storeBCD(m, f.ST(0))
			f.pop()
		}
	case 7<<3 | 7: // FISTP m64
		if !f.underflow(0) {
			m.write(8, uint64(f.toInt(f.ST(0), 64)))
			f.pop()
		}
	default:
		cpu.logf("fpu: unhandled ESC %d /%d\n", esc, reg)
	}
}

// storeEnv writes the 14-byte real-mode environment.
func (f *FPU_8087) storeEnv(m fpuOperand) {
	m.write(2, uint64(f.CW))
	m.at(2).write(2, uint64(f.SW))
	m.at(4).write(2, uint64(f.TW))
	m.at(6).write(2, uint64(f.IPtr&0xFFFF))
	m.at(8).write(2, uint64(f.IPtr>>16&0xF)<<12|uint64(f.Opcode&0x7FF))
	m.at(10).write(2, uint64(f.DPtr&0xFFFF))
	m.at(12).write(2, uint64(f.DPtr>>16&0xF)<<12)
}

func (f *FPU_8087) loadEnv(m fpuOperand) {
	f.CW = uint16(m.read(2))
	f.SW = uint16(m.at(2).read(2))
	f.TW = uint16(m.at(4).read(2))
	hi := uint16(m.at(8).read(2))
	f.IPtr = uint32(m.at(6).read(2)) | uint32(hi>>12)<<16
	f.Opcode = hi & 0x7FF
	f.DPtr = uint32(m.at(10).read(2)) | uint32(m.at(12).read(2)>>12)<<16
}

func (f *FPU_8087) execReg(cpu *CPU_X86, esc byte, reg, rm int, modrm byte) {
	switch esc {
	case 0: // D8: ST(0) op ST(i)
		if f.underflow(0, rm) {
			return
		}
		switch reg {
		case 2, 3:
			f.compare(f.ST(0), f.ST(rm))
			if reg == 3 {
				f.pop()
			}
		default:
			f.arith(reg, 0, f.ST(0), f.ST(rm))
		}
	case 1:
		f.execD9(reg, rm, modrm)
	case 3:
		switch modrm {
		case 0xE0: // FENI
			f.CW &^= fpuCW_IEM
		case 0xE1: // FDISI
			f.CW |= fpuCW_IEM
		case 0xE2: // FCLEX
			f.SW &^= 0x80FF
		case 0xE3: // FINIT
			f.Reset()
		}
	case 4, 6: // DC/DE: ST(i) op ST(0), the reversed forms swap sub/div
		if esc == 6 && modrm == 0xD9 { // FCOMPP
			if !f.underflow(0, 1) {
				f.compare(f.ST(0), f.ST(1))
				f.pop()
				f.pop()
			}
			return
		}
		if reg == 2 || reg == 3 || f.underflow(0, rm) {
			return
		}
		op := reg
		if op >= 4 {
			op ^= 1
		}
		f.arith(op, rm, f.ST(rm), f.ST(0))
		if esc == 6 {
			f.pop()
		}
	case 5:
		switch reg {
		case 0: // FFREE
			f.setTag(f.physReg(rm), fpuTagEmpty)
		case 2, 3: // FST(P) ST(i)
			if !f.underflow(0) {
				f.setST(rm, f.ST(0))
				if reg == 3 {
					f.pop()
				}
			}
		}
	default:
		cpu.logf("fpu: unhandled ESC %d reg form %02X\n", esc, modrm)
	}
}

func (f *FPU_8087) execD9(reg, rm int, modrm byte) {
	switch reg {
	case 0: // FLD ST(i)
		if !f.underflow(rm) {
			f.push(f.ST(rm))
		}
		return
	case 1: // FXCH
		if !f.underflow(0, rm) {
			a, b := f.ST(0), f.ST(rm)
			f.setST(0, b)
			f.setST(rm, a)
		}
		return
	case 5:
		if rm < 7 { // FLD1 .. FLDZ
			f.push(fpuConstants[rm])
		}
		return
	}

	switch modrm {
	case 0xD0: // FNOP
	case 0xE0: // FCHS
		if !f.underflow(0) {
			f.setST(0, -f.ST(0))
		}
	case 0xE1: // FABS
		if !f.underflow(0) {
			f.setST(0, math.Abs(f.ST(0)))
		}
	case 0xE4: // FTST
		if !f.underflow(0) {
			f.compare(f.ST(0), 0)
		}
	case 0xE5: // FXAM
		f.xam()
	case 0xF0: // F2XM1
		if !f.underflow(0) {
			f.setST(0, math.Exp2(f.ST(0))-1)
		}
	case 0xF1: // FYL2X
		if !f.underflow(0, 1) {
			f.setST(1, f.ST(1)*math.Log2(f.ST(0)))
			f.pop()
		}
	case 0xF2: // FPTAN
		if !f.underflow(0) {
			f.setST(0, math.Tan(f.ST(0)))
			f.push(1)
		}
	case 0xF3: // FPATAN
		if !f.underflow(0, 1) {
			f.setST(1, math.Atan2(f.ST(1), f.ST(0)))
			f.pop()
		}
	case 0xF4: // FXTRACT
		if !f.underflow(0) {
			frac, exp := math.Frexp(f.ST(0))
			f.setST(0, float64(exp-1))
			f.push(frac * 2)
		}
	case 0xF6: // FDECSTP
		f.setTop(f.top() - 1)
	case 0xF7: // FINCSTP
		f.setTop(f.top() + 1)
	case 0xF8: // FPREM
		if !f.underflow(0, 1) {
			a, b := f.ST(0), f.ST(1)
			q := math.Trunc(a / b)
			f.setST(0, math.Mod(a, b))
			f.clearCond()
			qi := int64(math.Abs(q))
			if qi&4 != 0 {
				f.SW |= fpuSW_C0
			}
			if qi&2 != 0 {
				f.SW |= fpuSW_C3
			}
			if qi&1 != 0 {
				f.SW |= fpuSW_C1
			}
		}
	case 0xF9: // FYL2XP1
		if !f.underflow(0, 1) {
			f.setST(1, f.ST(1)*math.Log2(f.ST(0)+1))
			f.pop()
		}
	case 0xFA: // FSQRT
		if !f.underflow(0) {
			v := f.ST(0)
			if v < 0 {
				f.raise(fpuSW_IE)
			}
			f.setST(0, math.Sqrt(v))
		}
	case 0xFC: // FRNDINT
		if !f.underflow(0) {
			f.setST(0, f.round(f.ST(0)))
		}
	case 0xFD: // FSCALE
		if !f.underflow(0, 1) {
			f.setST(0, math.Ldexp(f.ST(0), int(math.Trunc(f.ST(1)))))
		}
	}
}

func (f *FPU_8087) xam() {
	f.clearCond()
	if f.empty(0) {
		f.SW |= fpuSW_C0 | fpuSW_C3
		return
	}
	v := f.ST(0)
	if math.Signbit(v) {
		f.SW |= fpuSW_C1
	}
	switch {
	case math.IsNaN(v):
		f.SW |= fpuSW_C0
	case math.IsInf(v, 0):
		f.SW |= fpuSW_C0 | fpuSW_C2
	case v == 0:
		f.SW |= fpuSW_C3
	case math.Abs(v) < fpuSmallestNormal:
		f.SW |= fpuSW_C2 | fpuSW_C3
	default:
		f.SW |= fpuSW_C2
	}
}
