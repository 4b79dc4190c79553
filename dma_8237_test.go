package main

import "testing"

type testDMAMemory struct{ mem [xtMemSize]byte }

func (m *testDMAMemory) Read(addr uint32) byte     { return m.mem[addr&x86AddressMask] }
func (m *testDMAMemory) Write(addr uint32, v byte) { m.mem[addr&x86AddressMask] = v }

// programDMA sets up channel ch for count+1 bytes at page:addr.
func programDMA(d *DMA8237, ch int, mode byte, page byte, addr, count uint16) {
	d.Write(0x0A, 0x04|byte(ch)) // mask
	d.Write(0x0B, mode|byte(ch))
	d.Write(0x0C, 0)
	d.Write(uint16(ch*2), byte(addr))
	d.Write(uint16(ch*2), byte(addr>>8))
	d.Write(uint16(ch*2+1), byte(count))
	d.Write(uint16(ch*2+1), byte(count>>8))
	d.WritePage(dmaPagePorts[ch], page)
	d.Write(0x0A, byte(ch)) // unmask
}

func TestDMA_WriteTransfer(t *testing.T) {
	mem := &testDMAMemory{}
	d := NewDMA8237(mem)
	programDMA(d, 2, 0x44, 0x01, 0x2000, 2)

	for i, b := range []byte{0xAA, 0xBB, 0xCC} {
		r := d.ChannelWrite(2, b)
		last := i == 2
		if (r&DMAOver != 0) != last {
			t.Fatalf("byte %d: result %X, terminal count expected=%v", i, r, last)
		}
	}
	for i, want := range []byte{0xAA, 0xBB, 0xCC} {
		if got := mem.mem[0x12000+i]; got != want {
			t.Fatalf("mem[%05X] = %02X, want %02X", 0x12000+i, got, want)
		}
	}
	if !d.Masked(2) {
		t.Fatal("channel should mask itself at terminal count")
	}
	if got := d.ChannelWrite(2, 0); got != DMANoData {
		t.Fatalf("masked channel returned %X", got)
	}
	if d.Read(0x08)&0x04 == 0 {
		t.Fatal("status should report terminal count on channel 2")
	}
}

func TestDMA_ReadTransferAutoinit(t *testing.T) {
	mem := &testDMAMemory{}
	mem.mem[0x0500] = 0x11
	mem.mem[0x0501] = 0x22
	d := NewDMA8237(mem)
	programDMA(d, 1, 0x58, 0x00, 0x0500, 1) // read, autoinit

	got := []int{d.ChannelRead(1), d.ChannelRead(1), d.ChannelRead(1)}
	if got[0] != 0x11 || got[1] != 0x22|DMAOver || got[2] != 0x11 {
		t.Fatalf("autoinit reads = %X", got)
	}
	if d.Masked(1) {
		t.Fatal("autoinit channel must stay unmasked")
	}
}

func TestDMA_VerifyDoesNotWrite(t *testing.T) {
	mem := &testDMAMemory{}
	d := NewDMA8237(mem)
	programDMA(d, 2, 0x40, 0x00, 0x0800, 0)
	d.ChannelWrite(2, 0x5A)
	if mem.mem[0x0800] != 0 {
		t.Fatal("verify transfer wrote memory")
	}
	if d.Address(2) != 0x0801 {
		t.Fatalf("address = %05X, want 00801", d.Address(2))
	}
}

func TestDMA_RegisterReadback(t *testing.T) {
	d := NewDMA8237(&testDMAMemory{})
	programDMA(d, 2, 0x44, 0x03, 0x1234, 0x01FF)
	d.Write(0x0C, 0)
	lo, hi := d.Read(0x04), d.Read(0x04)
	if uint16(hi)<<8|uint16(lo) != 0x1234 {
		t.Fatalf("address readback %02X%02X", hi, lo)
	}
	lo, hi = d.Read(0x05), d.Read(0x05)
	if uint16(hi)<<8|uint16(lo) != 0x01FF {
		t.Fatalf("count readback %02X%02X", hi, lo)
	}
	if d.ReadPage(0x81) != 0x03 {
		t.Fatalf("page = %02X", d.ReadPage(0x81))
	}
	d.Write(0x0D, 0) // master clear
	if !d.Masked(2) {
		t.Fatal("master clear should mask every channel")
	}
}
