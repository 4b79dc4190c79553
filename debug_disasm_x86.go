// debug_disasm_x86.go - 8086/80186/V20 disassembler for the monitor

package main

import (
	"fmt"
	"strings"
)

var x86Reg16 = [8]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}
var x86Reg8 = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}
var x86SegRegs = [4]string{"ES", "CS", "SS", "DS"}
var x86Cond = [16]string{
	"O", "NO", "B", "NB", "Z", "NZ", "BE", "A",
	"S", "NS", "P", "NP", "L", "GE", "LE", "G",
}
var x86EABase = [8]string{"BX+SI", "BX+DI", "BP+SI", "BP+DI", "SI", "DI", "BP", "BX"}
var x86ALUNames = [8]string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}
var x86ShiftNames = [8]string{"ROL", "ROR", "RCL", "RCR", "SHL", "SHR", "SETMO", "SAR"}

type x86Disasm struct {
	readMem func(addr uint64, size int) []byte
	pos     uint64
	start   uint64
	ip      uint16
	seg     string
	model   X86Model
}

func (d *x86Disasm) readByte() (byte, bool) {
	data := d.readMem(d.pos, 1)
	if len(data) < 1 {
		return 0, false
	}
	d.pos++
	return data[0], true
}

func (d *x86Disasm) readWord() (uint16, bool) {
	data := d.readMem(d.pos, 2)
	if len(data) < 2 {
		return 0, false
	}
	d.pos += 2
	return uint16(data[0]) | uint16(data[1])<<8, true
}

func (d *x86Disasm) imm(wide bool) string {
	if wide {
		w, _ := d.readWord()
		return fmt.Sprintf("0x%04X", w)
	}
	b, _ := d.readByte()
	return fmt.Sprintf("0x%02X", b)
}

func x86RegName(r byte, wide bool) string {
	if wide {
		return x86Reg16[r&7]
	}
	return x86Reg8[r&7]
}

// decodeModRM returns the reg field and the r/m operand text.
func (d *x86Disasm) decodeModRM(wide bool) (byte, string) {
	b, ok := d.readByte()
	if !ok {
		return 0, "???"
	}
	mod := b >> 6
	reg := b >> 3 & 7
	rm := b & 7

	if mod == 3 {
		return reg, x86RegName(rm, wide)
	}
	if mod == 0 && rm == 6 {
		w, _ := d.readWord()
		return reg, fmt.Sprintf("%s[0x%04X]", d.seg, w)
	}
	base := x86EABase[rm]
	switch mod {
	case 1:
		db, _ := d.readByte()
		off := int8(db)
		if off >= 0 {
			return reg, fmt.Sprintf("%s[%s+0x%02X]", d.seg, base, off)
		}
		return reg, fmt.Sprintf("%s[%s-0x%02X]", d.seg, base, -int(off))
	case 2:
		w, _ := d.readWord()
		return reg, fmt.Sprintf("%s[%s+0x%04X]", d.seg, base, w)
	}
	return reg, fmt.Sprintf("%s[%s]", d.seg, base)
}

// sized prefixes a memory operand with its width so that forms without a
// register operand are unambiguous.
func sized(op string, wide bool) string {
	if !strings.HasSuffix(op, "]") {
		return op
	}
	if wide {
		return "WORD " + op
	}
	return "BYTE " + op
}

// disassembleX86 decodes count instructions starting at seg:off. Addresses
// in the result are linear.
func disassembleX86(readMem func(addr uint64, size int) []byte, model X86Model, seg, off uint16, count int) []DisassembledLine {
	var lines []DisassembledLine
	base := uint64(seg) << 4
	ip := off

	for range count {
		instrAddr := (base + uint64(ip)) & x86AddressMask
		dis := &x86Disasm{readMem: readMem, pos: instrAddr, start: instrAddr, ip: ip, model: model}

		mnemonic := decodeX86Instruction(dis)
		size := int(dis.pos - instrAddr)
		if size == 0 {
			size = 1
		}
		hexData := readMem(instrAddr, size)
		hexParts := make([]string, 0, len(hexData))
		for _, b := range hexData {
			hexParts = append(hexParts, fmt.Sprintf("%02X", b))
		}

		line := DisassembledLine{
			Address:  instrAddr,
			Segment:  seg,
			Offset:   ip,
			HexBytes: strings.Join(hexParts, " "),
			Mnemonic: mnemonic,
			Size:     size,
		}
		if t, ok := x86BranchTarget(hexData, ip); ok {
			line.IsBranch = true
			line.BranchTarget = t
		}
		lines = append(lines, line)
		ip += uint16(size)
	}
	return lines
}

// x86BranchTarget returns the in-segment target of a relative branch.
func x86BranchTarget(b []byte, ip uint16) (uint16, bool) {
	if len(b) == 0 {
		return 0, false
	}
	next := ip + uint16(len(b))
	switch op := b[0]; {
	case (op >= 0x70 && op <= 0x7F) || (op >= 0xE0 && op <= 0xE3) || op == 0xEB:
		if len(b) >= 2 {
			return next + uint16(int8(b[1])), true
		}
	case op == 0xE8 || op == 0xE9:
		if len(b) >= 3 {
			return next + (uint16(b[1]) | uint16(b[2])<<8), true
		}
	}
	return 0, false
}

func decodeX86Instruction(d *x86Disasm) string {
	var prefix string
	for {
		b, ok := d.readByte()
		if !ok {
			return "DB ??"
		}
		switch b {
		case 0x26, 0x2E, 0x36, 0x3E:
			d.seg = x86SegRegs[b>>3&3] + ":"
			continue
		case 0xF0, 0xF1:
			prefix += "LOCK "
			continue
		case 0xF2:
			prefix += "REPNE "
			continue
		case 0xF3:
			prefix += "REP "
			continue
		case 0x64:
			if d.model.NEC() {
				prefix += "REPNC "
				continue
			}
		case 0x65:
			if d.model.NEC() {
				prefix += "REPC "
				continue
			}
		}
		return prefix + decodeX86Opcode(d, b)
	}
}

// next returns the offset of the byte after those consumed so far.
func (d *x86Disasm) next() uint16 { return d.ip + uint16(d.pos-d.start) }

func (d *x86Disasm) rel8() string {
	b, _ := d.readByte()
	return fmt.Sprintf("0x%04X", d.next()+uint16(int8(b)))
}

func (d *x86Disasm) rel16() string {
	w, _ := d.readWord()
	return fmt.Sprintf("0x%04X", d.next()+w)
}

func decodeX86Opcode(d *x86Disasm, op byte) string {
	ext := d.model.Ext186()
	wide := op&1 != 0

	switch {
	case op < 0x40 && op&7 < 6:
		name := x86ALUNames[op>>3]
		switch op & 7 {
		case 0, 1:
			reg, rm := d.decodeModRM(wide)
			return fmt.Sprintf("%s %s, %s", name, rm, x86RegName(reg, wide))
		case 2, 3:
			reg, rm := d.decodeModRM(wide)
			return fmt.Sprintf("%s %s, %s", name, x86RegName(reg, wide), rm)
		case 4:
			return fmt.Sprintf("%s AL, %s", name, d.imm(false))
		default:
			return fmt.Sprintf("%s AX, %s", name, d.imm(true))
		}
	case op >= 0x40 && op < 0x48:
		return "INC " + x86Reg16[op&7]
	case op >= 0x48 && op < 0x50:
		return "DEC " + x86Reg16[op&7]
	case op >= 0x50 && op < 0x58:
		return "PUSH " + x86Reg16[op&7]
	case op >= 0x58 && op < 0x60:
		return "POP " + x86Reg16[op&7]
	case op >= 0x70 && op < 0x80, op >= 0x60 && op < 0x70 && !ext:
		return fmt.Sprintf("J%s %s", x86Cond[op&0x0F], d.rel8())
	case op >= 0x91 && op < 0x98:
		return "XCHG AX, " + x86Reg16[op&7]
	case op >= 0xB0 && op < 0xB8:
		return fmt.Sprintf("MOV %s, %s", x86Reg8[op&7], d.imm(false))
	case op >= 0xB8 && op < 0xC0:
		return fmt.Sprintf("MOV %s, %s", x86Reg16[op&7], d.imm(true))
	case op >= 0xD8 && op < 0xE0:
		_, rm := d.decodeModRM(true)
		return fmt.Sprintf("ESC 0x%02X, %s", op&7, rm)
	}

	switch op {
	case 0x06, 0x0E, 0x16, 0x1E:
		return "PUSH " + x86SegRegs[op>>3]
	case 0x07, 0x17, 0x1F:
		return "POP " + x86SegRegs[op>>3]
	case 0x0F:
		if d.model.NEC() {
			if s, ok := decodeNEC0F(d); ok {
				return s
			}
		}
		return "POP CS"
	case 0x27:
		return "DAA"
	case 0x2F:
		return "DAS"
	case 0x37:
		return "AAA"
	case 0x3F:
		return "AAS"

	case 0x60:
		return "PUSHA"
	case 0x61:
		return "POPA"
	case 0x62:
		reg, rm := d.decodeModRM(true)
		return fmt.Sprintf("BOUND %s, %s", x86Reg16[reg], rm)
	case 0x68:
		return "PUSH " + d.imm(true)
	case 0x69, 0x6B:
		reg, rm := d.decodeModRM(true)
		return fmt.Sprintf("IMUL %s, %s, %s", x86Reg16[reg], rm, d.imm(op == 0x69))
	case 0x6A:
		return "PUSH " + d.imm(false)
	case 0x6C:
		return "INSB"
	case 0x6D:
		return "INSW"
	case 0x6E:
		return "OUTSB"
	case 0x6F:
		return "OUTSW"

	case 0x80, 0x81, 0x82, 0x83:
		reg, rm := d.decodeModRM(wide)
		return fmt.Sprintf("%s %s, %s", x86ALUNames[reg], sized(rm, wide), d.imm(op == 0x81))
	case 0x84, 0x85:
		reg, rm := d.decodeModRM(wide)
		return fmt.Sprintf("TEST %s, %s", rm, x86RegName(reg, wide))
	case 0x86, 0x87:
		reg, rm := d.decodeModRM(wide)
		return fmt.Sprintf("XCHG %s, %s", rm, x86RegName(reg, wide))
	case 0x88, 0x89:
		reg, rm := d.decodeModRM(wide)
		return fmt.Sprintf("MOV %s, %s", rm, x86RegName(reg, wide))
	case 0x8A, 0x8B:
		reg, rm := d.decodeModRM(wide)
		return fmt.Sprintf("MOV %s, %s", x86RegName(reg, wide), rm)
	case 0x8C:
		reg, rm := d.decodeModRM(true)
		return fmt.Sprintf("MOV %s, %s", rm, x86SegRegs[reg&3])
	case 0x8D:
		reg, rm := d.decodeModRM(true)
		return fmt.Sprintf("LEA %s, %s", x86Reg16[reg], rm)
	case 0x8E:
		reg, rm := d.decodeModRM(true)
		return fmt.Sprintf("MOV %s, %s", x86SegRegs[reg&3], rm)
	case 0x8F:
		_, rm := d.decodeModRM(true)
		return "POP " + sized(rm, true)

	case 0x90:
		return "NOP"
	case 0x98:
		return "CBW"
	case 0x99:
		return "CWD"
	case 0x9A, 0xEA:
		o, _ := d.readWord()
		s, _ := d.readWord()
		name := "CALL"
		if op == 0xEA {
			name = "JMP"
		}
		return fmt.Sprintf("%s FAR 0x%04X:0x%04X", name, s, o)
	case 0x9B:
		return "WAIT"
	case 0x9C:
		return "PUSHF"
	case 0x9D:
		return "POPF"
	case 0x9E:
		return "SAHF"
	case 0x9F:
		return "LAHF"

	case 0xA0, 0xA1:
		w, _ := d.readWord()
		return fmt.Sprintf("MOV %s, %s[0x%04X]", x86RegName(0, wide), d.seg, w)
	case 0xA2, 0xA3:
		w, _ := d.readWord()
		return fmt.Sprintf("MOV %s[0x%04X], %s", d.seg, w, x86RegName(0, wide))
	case 0xA4, 0xA5, 0xA6, 0xA7, 0xAA, 0xAB, 0xAC, 0xAD, 0xAE, 0xAF:
		names := map[byte]string{0xA4: "MOVS", 0xA6: "CMPS", 0xAA: "STOS", 0xAC: "LODS", 0xAE: "SCAS"}
		suffix := "B"
		if wide {
			suffix = "W"
		}
		return names[op&^1] + suffix
	case 0xA8:
		return "TEST AL, " + d.imm(false)
	case 0xA9:
		return "TEST AX, " + d.imm(true)

	case 0xC0, 0xC1:
		if ext {
			reg, rm := d.decodeModRM(wide)
			return fmt.Sprintf("%s %s, %s", x86ShiftNames[reg], sized(rm, wide), d.imm(false))
		}
		if op == 0xC1 {
			return "RET"
		}
		return "RET " + d.imm(true)
	case 0xC2:
		return "RET " + d.imm(true)
	case 0xC3:
		return "RET"
	case 0xC4, 0xC5:
		reg, rm := d.decodeModRM(true)
		name := "LES"
		if op == 0xC5 {
			name = "LDS"
		}
		return fmt.Sprintf("%s %s, %s", name, x86Reg16[reg], rm)
	case 0xC6, 0xC7:
		_, rm := d.decodeModRM(wide)
		return fmt.Sprintf("MOV %s, %s", sized(rm, wide), d.imm(wide))
	case 0xC8:
		if ext {
			size := d.imm(true)
			return fmt.Sprintf("ENTER %s, %s", size, d.imm(false))
		}
		return "RETF " + d.imm(true)
	case 0xC9:
		if ext {
			return "LEAVE"
		}
		return "RETF"
	case 0xCA:
		return "RETF " + d.imm(true)
	case 0xCB:
		return "RETF"
	case 0xCC:
		return "INT 3"
	case 0xCD:
		return "INT " + d.imm(false)
	case 0xCE:
		return "INTO"
	case 0xCF:
		return "IRET"

	case 0xD0, 0xD1, 0xD2, 0xD3:
		reg, rm := d.decodeModRM(wide)
		count := "1"
		if op >= 0xD2 {
			count = "CL"
		}
		return fmt.Sprintf("%s %s, %s", x86ShiftNames[reg], sized(rm, wide), count)
	case 0xD4:
		return "AAM " + d.imm(false)
	case 0xD5:
		return "AAD " + d.imm(false)
	case 0xD6:
		return "SALC"
	case 0xD7:
		return "XLAT"

	case 0xE0:
		return "LOOPNZ " + d.rel8()
	case 0xE1:
		return "LOOPZ " + d.rel8()
	case 0xE2:
		return "LOOP " + d.rel8()
	case 0xE3:
		return "JCXZ " + d.rel8()
	case 0xE4, 0xE5:
		return fmt.Sprintf("IN %s, %s", x86RegName(0, wide), d.imm(false))
	case 0xE6, 0xE7:
		return fmt.Sprintf("OUT %s, %s", d.imm(false), x86RegName(0, wide))
	case 0xE8:
		return "CALL " + d.rel16()
	case 0xE9:
		return "JMP " + d.rel16()
	case 0xEB:
		return "JMP SHORT " + d.rel8()
	case 0xEC, 0xED:
		return fmt.Sprintf("IN %s, DX", x86RegName(0, wide))
	case 0xEE, 0xEF:
		return fmt.Sprintf("OUT DX, %s", x86RegName(0, wide))

	case 0xF4:
		return "HLT"
	case 0xF5:
		return "CMC"
	case 0xF6, 0xF7:
		return decodeX86Group3(d, wide)
	case 0xF8:
		return "CLC"
	case 0xF9:
		return "STC"
	case 0xFA:
		return "CLI"
	case 0xFB:
		return "STI"
	case 0xFC:
		return "CLD"
	case 0xFD:
		return "STD"
	case 0xFE:
		reg, rm := d.decodeModRM(false)
		switch reg {
		case 0:
			return "INC " + sized(rm, false)
		case 1:
			return "DEC " + sized(rm, false)
		}
		return "DB 0xFE"
	case 0xFF:
		return decodeX86Group5(d)
	}
	return fmt.Sprintf("DB 0x%02X", op)
}

func decodeX86Group3(d *x86Disasm, wide bool) string {
	reg, rm := d.decodeModRM(wide)
	switch reg {
	case 0, 1:
		return fmt.Sprintf("TEST %s, %s", sized(rm, wide), d.imm(wide))
	case 2:
		return "NOT " + sized(rm, wide)
	case 3:
		return "NEG " + sized(rm, wide)
	case 4:
		return "MUL " + sized(rm, wide)
	case 5:
		return "IMUL " + sized(rm, wide)
	case 6:
		return "DIV " + sized(rm, wide)
	}
	return "IDIV " + sized(rm, wide)
}

func decodeX86Group5(d *x86Disasm) string {
	reg, rm := d.decodeModRM(true)
	switch reg {
	case 0:
		return "INC " + sized(rm, true)
	case 1:
		return "DEC " + sized(rm, true)
	case 2:
		return "CALL " + rm
	case 3:
		return "CALL FAR " + rm
	case 4:
		return "JMP " + rm
	case 5:
		return "JMP FAR " + rm
	}
	return "PUSH " + sized(rm, true)
}

// decodeNEC0F decodes V20/V30 0F-prefixed opcodes. ok is false for second
// bytes the CPU treats as POP CS; the byte is left unconsumed.
func decodeNEC0F(d *x86Disasm) (string, bool) {
	save := d.pos
	op, ok := d.readByte()
	if !ok {
		return "", false
	}
	bitNames := [4]string{"TEST1", "CLR1", "SET1", "NOT1"}
	switch {
	case op >= 0x10 && op < 0x20:
		wide := op&1 != 0
		_, rm := d.decodeModRM(wide)
		name := bitNames[op>>1&3]
		if op&8 != 0 {
			return fmt.Sprintf("%s %s, %s", name, sized(rm, wide), d.imm(false)), true
		}
		return fmt.Sprintf("%s %s, CL", name, sized(rm, wide)), true
	}
	switch op {
	case 0x20:
		return "ADD4S", true
	case 0x22:
		return "SUB4S", true
	case 0x26:
		return "CMP4S", true
	case 0x28, 0x2A:
		_, rm := d.decodeModRM(false)
		name := "ROL4"
		if op == 0x2A {
			name = "ROR4"
		}
		return name + " " + sized(rm, false), true
	case 0x31, 0x33:
		reg, rm := d.decodeModRM(false)
		name := "INS"
		if op == 0x33 {
			name = "EXT"
		}
		return fmt.Sprintf("%s %s, %s", name, rm, x86Reg8[reg]), true
	case 0x39, 0x3B:
		_, rm := d.decodeModRM(false)
		name := "INS"
		if op == 0x3B {
			name = "EXT"
		}
		return fmt.Sprintf("%s %s, %s", name, rm, d.imm(false)), true
	case 0xFF:
		return "BRKEM " + d.imm(false), true
	}
	d.pos = save
	return "", false
}
