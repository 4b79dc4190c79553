// cpu_x86_interrupt.go - 808x interrupt delivery, arbitration and NEC emulation mode switching
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

// Priority at an instruction boundary is single-step trap, then NMI, then
// maskable IRQ. noint suppresses the trap and IRQs (but not NMI) for one
// instruction after MOV/POP SS, POP seg, POPF toggling TF, and IRET.

// interruptEntry performs the common vector dispatch: read the IVT entry,
// flush the queue, push FLAGS/CS/IP and clear IF/TF.
func (c *CPU_X86) interruptEntry(vec uint16, newIP, newCS func() uint16, native bool) {
	c.eaAddr = vec << 2
	oldCS := c.CS()
	c.access(5)
	ip := newIP()
	c.wait(1, 0)
	c.eaAddr += 2
	c.access(6)
	cs := newCS()
	c.clearQueue()
	c.ovr = x86NoOverride
	c.access(39)
	mask := uint16(0x0FD7)
	if c.nec {
		mask = 0x8FD7
	}
	c.push(c.Flags & mask)
	if native {
		c.Flags &^= x86FlagIF | x86FlagTF
		if c.nec {
			c.Flags |= x86FlagMD
		}
	} else {
		c.Flags &^= x86FlagMD
		c.mdWriteDisable = false
	}
	c.access(40)
	c.push(oldCS)
	oldIP := c.IP
	c.loadCS(cs)
	c.access(68)
	c.setIP(ip)
	c.access(41)
	c.push(oldIP)
}

func (c *CPU_X86) ivtRead() uint16 {
	return c.readMemW(0, c.eaAddr)
}

// interrupt dispatches through IVT entry vec. A NEC part running 8080 code
// first folds the 8080 state back into the native registers.
func (c *CPU_X86) interrupt(vec uint16) {
	if c.InEmulationMode() {
		c.syncFrom8080()
	}
	c.interruptEntry(vec, c.ivtRead, c.ivtRead, true)
}

// Interrupt raises a software interrupt from outside the instruction stream
// (BIOS traps, 8080 CALLN).
func (c *CPU_X86) Interrupt(vec uint8) {
	c.interrupt(uint16(vec))
}

// interruptBRKEM enters 8080 emulation mode through IVT entry vec. IF and TF
// are preserved and MD becomes writable until RETEM.
func (c *CPU_X86) interruptBRKEM(vec uint16) {
	c.interruptEntry(vec, c.ivtRead, c.ivtRead, false)
	c.syncTo8080()
	c.logf("BRKEM vector %02X\n", vec)
}

// retEM returns from emulation mode: pop IP, CS and FLAGS (restoring MD).
func (c *CPU_X86) retEM() {
	c.syncFrom8080()
	c.clearQueue()
	c.setIP(c.pop())
	c.loadCS(c.pop())
	c.Flags = c.pop()
	c.i8080.IFF = c.IF()
	c.mdWriteDisable = true
	c.noint = 1
	c.nmiEnable = true
	c.logf("RETEM to %04X:%04X\n", c.CS(), c.IP)
}

// customNMIEntry delivers NMI to the board-supplied vector. The IVT bus
// cycles still happen but their data is ignored.
func (c *CPU_X86) customNMIEntry() {
	if c.InEmulationMode() {
		c.syncFrom8080()
	}
	ip := func() uint16 {
		c.readMemW(0, c.eaAddr)
		return uint16(c.customNMI)
	}
	cs := func() uint16 {
		c.readMemW(0, c.eaAddr)
		return uint16(c.customNMI >> 16)
	}
	c.interruptEntry(0, ip, cs, true)
}

func (c *CPU_X86) picPending() bool {
	return c.pic != nil && c.pic.IRQPending()
}

// irqPending reports whether checkInterrupts would deliver something.
// necHlt lets a halted V20/V30 wake on an IRQ with IF clear.
func (c *CPU_X86) irqPending(necHlt bool) bool {
	ifFlag := c.IF() || necHlt
	return (c.nmi && c.nmiEnable && c.nmiMask) ||
		(c.TF() && c.noint == 0) ||
		(ifFlag && c.picPending() && c.noint == 0)
}

func (c *CPU_X86) checkInterrupts(necHlt bool) {
	if !c.irqPending(necHlt) {
		return
	}
	if c.TF() && c.noint&1 == 0 {
		c.interrupt(1)
		return
	}
	if c.nmi && c.nmiEnable && c.nmiMask {
		c.nmiEnable = false
		if c.useCustomNMI {
			c.customNMIEntry()
		} else {
			c.interrupt(2)
		}
		c.nmi = false
		return
	}
	ifFlag := c.IF() || necHlt
	if ifFlag && c.picPending() && c.noint == 0 {
		c.repeating = false
		c.completed = true
		c.ovr = x86NoOverride
		c.wait(3, 0)
		// Two INTA bus cycles; the vector comes from the second
		c.pic.Acknowledge()
		c.wait(4, 1)
		c.wait(1, 0)
		vec := c.pic.Acknowledge()
		c.wait(4, 1)
		c.wait(1, 0)
		c.inLock = false
		c.clearLock = false
		c.wait(1, 0)
		c.wait(3, 0)
		c.opcode = 0x00
		c.interrupt(uint16(vec))
	}
}

// =============================================================================
// NEC 8080 emulation mode
// =============================================================================

// stepEmulation runs one 8080 instruction and charges its cycle cost.
func (c *CPU_X86) stepEmulation() {
	cyc := c.i8080.Step()
	if c.InEmulationMode() {
		c.setFlag(x86FlagIF, c.i8080.IFF)
		if c.i8080.InterruptDelay > 0 {
			c.i8080.InterruptDelay--
			c.noint = 1
		}
	}
	c.cycles -= cyc
	c.completed = true
}

// syncFrom8080 copies the 8080 register file back into its native mapping:
// A=AL, HL=BX, BC=CX, DE=DX, SP=BP.
func (c *CPU_X86) syncFrom8080() {
	e := c.i8080
	c.SetAL(e.A)
	c.regs[x86RegBX] = uint16(e.H)<<8 | uint16(e.L)
	c.regs[x86RegCX] = uint16(e.B)<<8 | uint16(e.C)
	c.regs[x86RegDX] = uint16(e.D)<<8 | uint16(e.E)
	c.regs[x86RegBP] = e.SP
	c.IP = e.PC

	f := c.Flags&0xFF00 | 0x02
	if e.FlagS {
		f |= x86FlagSF
	}
	if e.FlagZ {
		f |= x86FlagZF
	}
	if e.FlagAC {
		f |= x86FlagAF
	}
	if e.FlagP {
		f |= x86FlagPF
	}
	if e.FlagCY {
		f |= x86FlagCF
	}
	c.Flags = f
	c.setFlag(x86FlagIF, e.IFF)
}

func (c *CPU_X86) syncTo8080() {
	if !c.nec {
		return
	}
	e := c.i8080
	e.A = c.AL()
	e.H, e.L = byte(c.regs[x86RegBX]>>8), byte(c.regs[x86RegBX])
	e.B, e.C = byte(c.regs[x86RegCX]>>8), byte(c.regs[x86RegCX])
	e.D, e.E = byte(c.regs[x86RegDX]>>8), byte(c.regs[x86RegDX])
	e.SP = c.regs[x86RegBP]
	e.PC = c.IP
	e.IFF = c.IF()
	e.FlagS = c.SF()
	e.FlagZ = c.ZF()
	e.FlagAC = c.AF()
	e.FlagP = c.PF()
	e.FlagCY = c.CF()
	e.InterruptDelay = c.noint
	e.Halted = false
}

// x86EmulationBus routes 8080 bus cycles through the host BIU: opcode
// fetches from CS, data from DS, and I/O through AL.
type x86EmulationBus struct {
	cpu *CPU_X86
}

func (b *x86EmulationBus) FetchOpcode(addr uint16) byte {
	return b.cpu.readMemB(b.cpu.csBase() + uint32(addr))
}

func (b *x86EmulationBus) ReadData(addr uint16) byte {
	return b.cpu.readMemB(b.cpu.dsBase() + uint32(addr))
}

func (b *x86EmulationBus) WriteData(addr uint16, v byte) {
	b.cpu.writeMemB(b.cpu.dsBase(), uint32(addr), v)
}

func (b *x86EmulationBus) In(port byte) byte {
	v := b.cpu.inByte(uint16(port))
	b.cpu.SetAL(v)
	return v
}

func (b *x86EmulationBus) Out(port byte, v byte) {
	b.cpu.SetAL(v)
	b.cpu.outByte(uint16(port), v)
}

func (b *x86EmulationBus) CallNative(vec byte) {
	b.cpu.interrupt(uint16(vec))
}

func (b *x86EmulationBus) ReturnNative() {
	b.cpu.retEM()
}
