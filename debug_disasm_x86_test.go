package main

import "testing"

// disasmBytes decodes code placed at 1000:0100.
func disasmBytes(model X86Model, count int, code ...byte) []DisassembledLine {
	mem := make([]byte, 0x100000)
	copy(mem[0x10100:], code)
	read := func(addr uint64, size int) []byte {
		out := make([]byte, size)
		for i := range out {
			out[i] = mem[(addr+uint64(i))&x86AddressMask]
		}
		return out
	}
	return disassembleX86(read, model, 0x1000, 0x0100, count)
}

func TestDisassembleX86(t *testing.T) {
	tests := []struct {
		name  string
		model X86Model
		code  []byte
		want  string
		size  int
	}{
		{"mov imm16", X86Model8088, []byte{0xB8, 0x34, 0x12}, "MOV AX, 0x1234", 3},
		{"mov reg", X86Model8088, []byte{0x89, 0xC3}, "MOV BX, AX", 2},
		{"bp disp8", X86Model8088, []byte{0x8B, 0x46, 0xFE}, "MOV AX, [BP-0x02]", 3},
		{"segment override", X86Model8088, []byte{0x26, 0x8A, 0x07}, "MOV AL, ES:[BX]", 3},
		{"direct word", X86Model8088, []byte{0xC7, 0x06, 0x00, 0x20, 0x34, 0x12}, "MOV WORD [0x2000], 0x1234", 6},
		{"group1 byte", X86Model8088, []byte{0x80, 0x3E, 0x00, 0x20, 0x05}, "CMP BYTE [0x2000], 0x05", 5},
		{"rep movsb", X86Model8088, []byte{0xF3, 0xA4}, "REP MOVSB", 2},
		{"call rel16", X86Model8088, []byte{0xE8, 0x00, 0x00}, "CALL 0x0103", 3},
		{"far jump", X86Model8088, []byte{0xEA, 0x5B, 0xE0, 0x00, 0xF0}, "JMP FAR 0xF000:0xE05B", 5},
		{"shift by CL", X86Model8088, []byte{0xD3, 0xE0}, "SHL AX, CL", 2},
		{"esc", X86Model8088, []byte{0xD9, 0x06, 0x00, 0x20}, "ESC 0x01, [0x2000]", 4},
		{"8088 push imm is JS", X86Model8088, []byte{0x68, 0x34, 0x12}, "JS 0x0136", 2},
		{"80188 push imm", X86Model80188, []byte{0x68, 0x34, 0x12}, "PUSH 0x1234", 3},
		{"80188 shift imm", X86Model80188, []byte{0xC1, 0xE0, 0x04}, "SHL AX, 0x04", 3},
		{"8088 C1 is RET", X86Model8088, []byte{0xC1}, "RET", 1},
		{"8088 pop cs", X86Model8088, []byte{0x0F, 0xFF, 0x40}, "POP CS", 1},
		{"v20 brkem", X86ModelV20, []byte{0x0F, 0xFF, 0x40}, "BRKEM 0x40", 3},
		{"v20 set1", X86ModelV20, []byte{0x0F, 0x1C, 0xC0, 0x03}, "SET1 AL, 0x03", 4},
		{"v20 repc", X86ModelV20, []byte{0x65, 0xA6}, "REPC CMPSB", 2},
		{"v20 unknown 0F falls back", X86ModelV20, []byte{0x0F, 0x90}, "POP CS", 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := disasmBytes(tc.model, 1, tc.code...)[0]
			if l.Mnemonic != tc.want || l.Size != tc.size {
				t.Fatalf("got %q (%d bytes), want %q (%d bytes)", l.Mnemonic, l.Size, tc.want, tc.size)
			}
			if l.Address != 0x10100 || l.Segment != 0x1000 || l.Offset != 0x0100 {
				t.Fatalf("address %05X %04X:%04X", l.Address, l.Segment, l.Offset)
			}
		})
	}
}

func TestDisassembleX86_Branches(t *testing.T) {
	lines := disasmBytes(X86Model8088, 3,
		0x90,       // 0100 NOP
		0x75, 0xFD, // 0101 JNZ 0100
		0xEB, 0x00, // 0103 JMP SHORT 0105
	)
	if lines[1].Mnemonic != "JNZ 0x0100" || !lines[1].IsBranch || lines[1].BranchTarget != 0x0100 {
		t.Fatalf("line 1 = %+v", lines[1])
	}
	if lines[2].Offset != 0x0103 || lines[2].HexBytes != "EB 00" || lines[2].BranchTarget != 0x0105 {
		t.Fatalf("line 2 = %+v", lines[2])
	}
	if lines[0].IsBranch {
		t.Fatal("NOP marked as a branch")
	}
}
