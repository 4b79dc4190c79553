// fdc_765.go - NEC uPD765 / Intel 82077AA floppy disk controller: register surface and command phase
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"fmt"
	"os"
)

// FDCFlags selects controller variant behaviour.
type FDCFlags uint32

const (
	FDCFlagPCjr FDCFlags = 1 << iota // no DMA, watchdog on DOR bit 6
	FDCFlagAT                        // CCR/DIR and perpendicular mode
	FDCFlagPS2                       // PS/2 SRA/SRB and DIR layout
	FDCFlagPS2MCA                    // PS/2 MCA SRA/SRB and DIR layout
	FDCFlagToshiba
	FDCFlagNSC // National Semiconductor extensions (MODE, NSC)
	FDCFlagUMC
	FDCFlagMoreTracks // drives step to 86 cylinders
	FDCFlagNEC        // original uPD765: no 82077 commands
	FDCFlagALI        // powerdown command
	FDCFlagFINTR      // FINTR stays set after result phase
	FDCFlagNoDSRReset
	FDCFlagDiskChgActLow
)

// FDCConfig configures an FDC765.
type FDCConfig struct {
	Flags      FDCFlags
	IRQ        int
	DMAChannel int
	Debug      bool
}

// DefaultXTFDCConfig is the IBM XT controller: uPD765, IRQ 6, DMA 2.
func DefaultXTFDCConfig() FDCConfig {
	return FDCConfig{Flags: FDCFlagNEC, IRQ: 6, DMAChannel: 2}
}

const (
	fdcCmdMode          = 0x01
	fdcCmdReadTrack     = 0x02
	fdcCmdSpecify       = 0x03
	fdcCmdSenseDrive    = 0x04
	fdcCmdWriteData     = 0x05
	fdcCmdReadData      = 0x06
	fdcCmdRecalibrate   = 0x07
	fdcCmdSenseInt      = 0x08
	fdcCmdWriteDeleted  = 0x09
	fdcCmdReadID        = 0x0A
	fdcCmdReadDeleted   = 0x0C
	fdcCmdFormat        = 0x0D
	fdcCmdDumpRegs      = 0x0E
	fdcCmdSeek          = 0x0F
	fdcCmdVersion       = 0x10
	fdcCmdScanEqual     = 0x11
	fdcCmdPerpendicular = 0x12
	fdcCmdConfigure     = 0x13
	fdcCmdUnlock        = 0x14
	fdcCmdVerify        = 0x16
	fdcCmdPowerdown     = 0x17
	fdcCmdNSC           = 0x18
	fdcCmdScanLowEqual  = 0x19
	fdcCmdScanHighEqual = 0x1D
	fdcCmdLock          = 0x94
	fdcCmdInvalid       = 0xFC
)

// Internal timer actions (the non-negative values are command codes).
const (
	fdcIntReset        = -1
	fdcIntEnd          = -2
	fdcIntEndWithIRQ   = -3
	fdcIntSeekIRQPCjr  = -4
	fdcIntPowerdownRst = -5
	fdcIntDSRClear     = -6
)

// Commands whose first parameter byte selects drive and head.
var fdcCommandHasDriveSel = [32]bool{
	fdcCmdReadTrack: true, fdcCmdSenseDrive: true, fdcCmdWriteData: true,
	fdcCmdReadData: true, fdcCmdRecalibrate: true, fdcCmdWriteDeleted: true,
	fdcCmdReadID: true, fdcCmdReadDeleted: true, fdcCmdFormat: true,
	fdcCmdSeek: true, fdcCmdScanEqual: true, fdcCmdVerify: true,
	fdcCmdScanLowEqual: true, fdcCmdScanHighEqual: true,
}

type fdcSectorID struct {
	C, H, R, N byte
}

// fdcFIFO is the 82077 data FIFO. Its length is the threshold plus one.
type fdcFIFO struct {
	buf   [16]byte
	start int
	count int
	size  int
}

func (q *fdcFIFO) reset()        { q.start, q.count = 0, 0 }
func (q *fdcFIFO) setLen(n int)  { q.size = min(max(n, 1), len(q.buf)) }
func (q *fdcFIFO) full() bool    { return q.count >= q.size }
func (q *fdcFIFO) empty() bool   { return q.count == 0 }
func (q *fdcFIFO) write(v byte) {
	if q.full() {
		return
	}
	q.buf[(q.start+q.count)%len(q.buf)] = v
	q.count++
}
func (q *fdcFIFO) read() byte {
	if q.empty() {
		return 0
	}
	v := q.buf[q.start]
	q.start = (q.start + 1) % len(q.buf)
	q.count--
	return v
}

// FDC765 is the controller state machine. The phase is encoded in the main
// status register (stat) together with pnum/ptot and paramsToGo.
type FDC765 struct {
	cfg FDCConfig

	dor, stat, st0, dsr byte
	command             byte
	processedCmd        byte
	params              [256]byte
	pnum, ptot          int
	res                 [11]byte
	paramsToGo          int

	pcn       [4]int
	drive     int
	rwDrive   int
	lastDrive int

	head, sector, rwTrack byte
	eot                   [4]byte
	gap, dtl              byte
	rate                  byte
	bitRate               int
	enhMode               bool
	rwc                   [4]int
	denselForce           byte
	noprec                bool
	mediaID               byte

	specify    [2]byte
	dma        bool
	config     byte
	pretrk     byte
	lock       bool
	perp       byte
	fifo       bool
	tfifo      int
	fifoBuf    fdcFIFO
	fifoInTest bool

	tc, dataReady bool
	wrongAM       bool
	deleted       byte
	mfm           bool
	sc            int
	satisfying    int
	dat           byte

	formatState   int
	formatSectors byte
	formatNVal    byte
	formatID      fdcSectorID
	readTrackID   fdcSectorID

	interrupt int
	fintr     bool
	resetStat int
	step      bool
	seekDir   bool
	maxTrack  int
	powerDown bool

	watchdogCount int
	watchdog      TimerHandle
	timer         TimerHandle

	drives [4]*FloppyDrive
	sched  *Scheduler
	dmac   DMAController

	// RaiseIRQ/LowerIRQ drive the interrupt line; WaitStates charges the
	// host for an ISA access.
	RaiseIRQ   func(irq int)
	LowerIRQ   func(irq int)
	WaitStates func(cycles int)
}

// NewFDC765 creates a controller in its power-on state.
func NewFDC765(cfg FDCConfig, sched *Scheduler, dmac DMAController) *FDC765 {
	f := &FDC765{cfg: cfg, sched: sched, dmac: dmac}
	f.Reset()
	return f
}

// AttachDrive fits a drive in bay n (0-3).
func (f *FDC765) AttachDrive(n int, d *FloppyDrive) {
	f.drives[n&3] = d
	if d != nil {
		d.fdc = f
		d.sched = f.sched
		if f.has(FDCFlagMoreTracks) {
			d.extraTracks = 6
		}
	}
}

// Drive returns the drive in bay n, or nil.
func (f *FDC765) Drive(n int) *FloppyDrive { return f.drives[n&3] }

// FDCStatus is a side-effect free snapshot for debuggers.
type FDCStatus struct {
	MSR     byte
	DOR     byte
	ST0     byte
	Command byte
	PCN     [4]int
	Busy    bool
}

func (f *FDC765) Status() FDCStatus {
	return FDCStatus{
		MSR:     f.stat,
		DOR:     f.dor,
		ST0:     f.st0,
		Command: f.command,
		PCN:     f.pcn,
		Busy:    f.sched.Pending(f.timer),
	}
}

func (f *FDC765) has(flag FDCFlags) bool { return f.cfg.Flags&flag != 0 }

func (f *FDC765) logf(format string, args ...any) {
	if f.cfg.Debug {
		fmt.Fprintf(os.Stderr, "fdc: "+format, args...)
	}
}

func (f *FDC765) usesDMA() bool { return !f.has(FDCFlagPCjr) && f.dma && f.dmac != nil }

func (f *FDC765) cur() *FloppyDrive { return f.drives[f.drive&3] }

func (f *FDC765) setDRQ(on bool) {
	if f.dmac != nil {
		f.dmac.SetDRQ(f.cfg.DMAChannel, on)
	}
}

func (f *FDC765) setTimer(us float64, action int) {
	f.sched.Cancel(f.timer)
	f.interrupt = action
	f.timer = f.sched.ScheduleUsec(us, f.callback)
}

func (f *FDC765) disableTimer() { f.sched.Cancel(f.timer) }

func (f *FDC765) irq(setFINTR bool) {
	enable := false
	switch {
	case f.has(FDCFlagPS2MCA):
		enable = true
	case !f.has(FDCFlagPCjr):
		enable = f.dor&0x08 != 0
	}
	if enable {
		if f.RaiseIRQ != nil {
			f.RaiseIRQ(f.cfg.IRQ)
		}
		if setFINTR {
			f.fintr = true
		}
	}
}

func (f *FDC765) clearIRQ() {
	if f.LowerIRQ != nil {
		f.LowerIRQ(f.cfg.IRQ)
	}
}

// -----------------------------------------------------------------------------
// Reset
// -----------------------------------------------------------------------------

// Reset is a hardware reset of the controller.
func (f *FDC765) Reset() {
	if f.sched != nil {
		f.sched.Cancel(f.timer)
		f.sched.Cancel(f.watchdog)
	}
	f.enhMode = false
	f.rwc = [4]int{}
	f.denselForce = 0
	if f.has(FDCFlagNSC) {
		f.denselForce = 3
	}
	f.fifo = false
	f.tfifo = 1
	f.fifoInTest = false
	f.dma = !f.has(FDCFlagPCjr)
	f.specify = [2]byte{}
	if f.has(FDCFlagPCjr) {
		f.specify[1] = 1
	}
	f.config = 0x20
	f.pretrk = 0
	f.lock = false
	f.dor = 0
	f.dsr = 0
	f.paramsToGo = 0
	f.interrupt = 0
	f.fintr = false
	f.resetStat = 0
	f.ctrlReset()
	if !f.has(FDCFlagAT) {
		f.rate = 2
	}
	f.updateRate()
	f.maxTrack = 79
	if f.has(FDCFlagMoreTracks) {
		f.maxTrack = 85
	}
	f.powerDown = false
	f.mediaID = 0
}

func (f *FDC765) ctrlReset() {
	f.stat = 0x80
	f.pnum, f.ptot = 0, 0
	f.st0 = 0
	f.head = 0
	f.step = false
	f.powerDown = false
	if !f.lock && !f.fifoInTest {
		f.fifo = false
		f.tfifo = 1
		f.fifoBuf.reset()
		f.fifoBuf.setLen(f.tfifo + 1)
	}
}

func (f *FDC765) softReset() {
	if f.powerDown {
		f.setTimer(1000, fdcIntPowerdownRst)
		return
	}
	f.setTimer(8, fdcIntReset)
	f.perp &= 0xFC
	f.ctrlReset()
}

// updateRate derives the bit rate from the data rate select and, in
// enhanced mode, the per-drive RWC setting.
func (f *FDC765) updateRate() {
	rwc := f.rwc[f.drive&3]
	switch {
	case f.enhMode && (rwc == 1 || rwc == 2):
		f.bitRate = 500
	case f.enhMode && rwc == 3:
		f.bitRate = 250
	default:
		switch f.rate {
		case 0:
			f.bitRate = 500
		case 1:
			f.bitRate = 300
		case 2:
			f.bitRate = 250
		case 3:
			f.bitRate = 1000
		}
	}
}

func (f *FDC765) bitRateKbps() int { return f.bitRate }

// SetEnhancedMode enables TDR-driven RWC rate overrides.
func (f *FDC765) SetEnhancedMode(on bool) {
	f.enhMode = on
	f.updateRate()
}

// -----------------------------------------------------------------------------
// Port access
// -----------------------------------------------------------------------------

// Write handles an OUT to base+(port&7).
func (f *FDC765) Write(port uint16, v byte) {
	f.logf("write %d %02X\n", port&7, v)
	if f.WaitStates != nil {
		f.WaitStates(8)
	}
	reg := port & 7
	if f.powerDown && reg != 2 && reg != 4 {
		return
	}
	switch reg {
	case 2:
		f.writeDOR(v)
	case 3:
		f.writeTDR(v)
	case 4:
		if !f.has(FDCFlagNoDSRReset) {
			if v&0x80 == 0 {
				f.setTimer(8, fdcIntDSRClear)
			}
			if f.powerDown || (v&0x80 != 0 && f.dsr&0x80 == 0) {
				f.softReset()
			}
		}
		f.dsr = v
	case 5:
		f.writeData(v)
	case 7:
		if !f.has(FDCFlagToshiba) && !f.has(FDCFlagAT) && !f.has(FDCFlagUMC) {
			return
		}
		f.rate = v & 3
		f.updateRate()
		if f.has(FDCFlagPS2) {
			f.noprec = v&0x04 != 0
		}
	}
}

func (f *FDC765) writeDOR(v byte) {
	if f.has(FDCFlagPCjr) {
		if f.dor&0x40 != 0 && v&0x40 == 0 {
			f.sched.Cancel(f.watchdog)
			f.watchdogCount = 1000
			f.watchdog = f.sched.ScheduleUsec(1000, f.watchdogPoll)
			f.clearIRQ()
		}
		if v&0x80 != 0 && f.dor&0x80 == 0 {
			f.setTimer(8, fdcIntReset)
			f.ctrlReset()
		}
		d := f.drives[0]
		if d == nil {
			v &^= 0x01
		} else {
			d.setMotor(v&0x01 != 0)
		}
		f.st0 &^= 0x07
		if d != nil && d.Head() != 0 {
			f.st0 |= 0x04
		}
		f.dor = v
		return
	}

	if v&0x08 == 0 && f.dor&0x08 != 0 && !f.has(FDCFlagPS2MCA) {
		f.tc = true
		f.fintr = false
		f.clearIRQ()
	}
	if v&0x04 == 0 {
		if d := f.drives[v&3]; d != nil {
			d.stop()
		}
		f.stat = 0x00
		f.pnum, f.ptot = 0, 0
	}
	if v&0x04 != 0 && f.dor&0x04 == 0 {
		f.softReset()
	}
	for i, d := range f.drives {
		if d == nil {
			v &^= 0x10 << i
		} else {
			d.setMotor(v&(0x10<<i) != 0)
		}
	}
	f.st0 = f.st0&0xF8 | v&0x03
	if d := f.drives[v&3]; d != nil && d.Head() != 0 {
		f.st0 |= 0x04
	}
	f.dor = v
}

func (f *FDC765) writeTDR(v byte) {
	if f.enhMode {
		f.rwc[f.dor&3] = int(v&0x30) >> 4
		f.updateRate()
	}
	if f.has(FDCFlagPS2MCA) {
		// FIFO test mode: the POST writes and reads back 8 bytes through 3F5h
		if v&0x04 != 0 {
			f.tfifo = 8
			f.fifoInTest = true
		} else {
			f.tfifo = 1
			f.fifoInTest = false
		}
		f.fifoBuf.reset()
		f.fifoBuf.setLen(f.tfifo + 1)
	}
}

func (f *FDC765) watchdogPoll() {
	f.watchdogCount--
	if f.watchdogCount > 0 {
		f.watchdog = f.sched.ScheduleUsec(1000, f.watchdogPoll)
		return
	}
	if f.dor&0x20 != 0 && f.RaiseIRQ != nil {
		f.RaiseIRQ(f.cfg.IRQ)
	}
}

func (f *FDC765) badCommand() {
	f.stat = 0x10
	f.setTimer(100, fdcCmdInvalid)
}

func (f *FDC765) writeData(v byte) {
	if f.fifoInTest {
		f.fifoBuf.write(v)
		if f.fifoBuf.full() {
			f.stat &^= 0x80
		}
		return
	}
	if f.stat&0xF0 == 0xB0 {
		// PIO write transfer byte
		if f.has(FDCFlagPCjr) || !f.fifo {
			f.dat = v
			f.stat &^= 0x80
		} else {
			f.fifoBuf.write(v)
			if f.fifoBuf.full() {
				f.stat &^= 0x80
			}
		}
		return
	}
	if f.pnum == f.ptot {
		f.startCommand(v)
		return
	}
	f.collectParam(v)
}

// startCommand latches a command byte and sets up parameter collection.
func (f *FDC765) startCommand(v byte) {
	if f.stat&0xF0 != 0x80 {
		// Not in the command phase
		return
	}
	f.stat &= 0x0F
	f.tc = false
	f.dataReady = false
	f.command = v
	f.stat |= 0x10
	f.logf("command %02X\n", v)

	switch v & 0x1F {
	case fdcCmdReadTrack, fdcCmdWriteData, fdcCmdReadData, fdcCmdReadID,
		fdcCmdReadDeleted, fdcCmdFormat, fdcCmdScanEqual, fdcCmdVerify,
		fdcCmdScanLowEqual, fdcCmdScanHighEqual:
		f.processedCmd = v & 0x1F
	default:
		f.processedCmd = v
	}
	if v&0x3F == fdcCmdSeek && !f.has(FDCFlagNEC) {
		// 82077 relative seek: bit 7 relative, bit 6 direction
		f.processedCmd = fdcCmdSeek
	}

	params := func(n int) {
		f.pnum = 0
		f.ptot = n
		f.stat |= 0x90
	}
	switch f.processedCmd {
	case fdcCmdMode:
		if !f.has(FDCFlagNSC) {
			f.badCommand()
			return
		}
		params(4)
		f.formatState = 0
	case fdcCmdReadTrack:
		f.satisfying, f.sc, f.wrongAM = 0, 0, false
		params(8)
		f.mfm = v&0x40 != 0
	case fdcCmdSpecify:
		params(2)
	case fdcCmdSenseDrive:
		params(1)
	case fdcCmdWriteData, fdcCmdWriteDeleted:
		f.satisfying, f.sc, f.wrongAM = 0, 0, false
		f.deleted = 0
		if v&0x1F == fdcCmdWriteDeleted {
			f.deleted = 1
		}
		params(8)
		f.mfm = v&0x40 != 0
	case fdcCmdReadData, fdcCmdReadDeleted, fdcCmdScanEqual,
		fdcCmdScanLowEqual, fdcCmdVerify, fdcCmdScanHighEqual:
		f.satisfying, f.sc, f.wrongAM = 0, 0, false
		f.deleted = 0
		switch v & 0x1F {
		case fdcCmdReadDeleted:
			f.deleted = 1
		case fdcCmdVerify:
			f.deleted = 2
		}
		f.deleted |= v & 0x20
		params(8)
		f.mfm = v&0x40 != 0
	case fdcCmdPowerdown:
		if !f.has(FDCFlagALI) {
			f.badCommand()
			return
		}
		params(1)
	case fdcCmdRecalibrate:
		params(1)
	case fdcCmdSenseInt:
		f.lastDrive = f.drive
		f.senseInterrupt()
	case fdcCmdReadID:
		params(1)
		f.mfm = v&0x40 != 0
	case fdcCmdFormat:
		params(5)
		f.mfm = v&0x40 != 0
		f.formatState = 0
	case fdcCmdDumpRegs:
		if f.has(FDCFlagNEC) {
			f.badCommand()
			return
		}
		f.lastDrive = f.drive
		f.interrupt = fdcCmdDumpRegs
		f.callback()
	case fdcCmdSeek:
		params(2)
	case fdcCmdNSC, fdcCmdVersion, fdcCmdUnlock, fdcCmdLock:
		if f.processedCmd == fdcCmdNSC && !f.has(FDCFlagNSC) {
			f.badCommand()
			return
		}
		if f.has(FDCFlagNEC) {
			f.badCommand()
			return
		}
		f.lastDrive = f.drive
		f.interrupt = int(f.command)
		f.callback()
	case fdcCmdPerpendicular:
		if !f.has(FDCFlagAT) || f.has(FDCFlagPCjr) {
			f.badCommand()
			return
		}
		params(1)
	case fdcCmdConfigure:
		if f.has(FDCFlagNEC) {
			f.badCommand()
			return
		}
		params(3)
	default:
		f.badCommand()
	}
}

func (f *FDC765) collectParam(v byte) {
	f.stat = 0x10 | f.stat&0x0F
	f.params[f.pnum] = v
	f.pnum++
	if f.pnum == 1 && fdcCommandHasDriveSel[f.command&0x1F] {
		if f.has(FDCFlagPCjr) {
			f.drive = 0
		} else {
			f.drive = int(f.dor & 3)
		}
		f.rwDrive = int(f.params[0] & 3)
		if c := f.command & 0x1F; c == fdcCmdRecalibrate || c == fdcCmdSeek {
			f.stat |= 1 << f.drive
		}
	}
	if f.pnum < f.ptot {
		f.stat = 0x90 | f.stat&0x0F
		return
	}
	f.fifoBuf.reset()
	f.interrupt = int(f.processedCmd)
	f.resetStat = 0
	f.disableTimer()
	switch f.interrupt & 0x1F {
	case fdcCmdReadTrack, fdcCmdSpecify, fdcCmdReadID, fdcCmdWriteData,
		fdcCmdReadData, fdcCmdWriteDeleted, fdcCmdReadDeleted, fdcCmdScanEqual,
		fdcCmdPerpendicular, fdcCmdVerify, fdcCmdScanLowEqual, fdcCmdScanHighEqual:
	case fdcCmdRecalibrate, fdcCmdSeek:
		if f.has(FDCFlagPCjr) {
			f.setTimer(1000, f.interrupt)
		} else {
			f.setTimer(256, f.interrupt)
		}
	default:
		f.setTimer(256, f.interrupt)
	}
	f.executePhase1()
}

// senseInterrupt builds the SENSE INTERRUPT STATUS result. After a reset it
// reports each of the four drives in turn.
func (f *FDC765) senseInterrupt() {
	f.stat = f.stat&0x0F | 0xD0
	if f.resetStat > 0 {
		n := 4 - f.resetStat
		f.res[9] = 0xC0 | byte(n)
		if d := f.drives[n]; d != nil {
			d.stop()
			d.setHead(0)
		}
		f.resetStat--
	} else if f.fintr {
		f.res[9] = f.st0 &^ 0x04
		if d := f.cur(); d != nil && d.Head() != 0 {
			f.res[9] |= 0x04
		}
		f.fintr = false
	} else {
		f.res[10] = 0x80
		f.paramsToGo = 1
		return
	}
	f.res[10] = byte(f.pcn[f.res[9]&3])
	f.paramsToGo = 2
}

// Read handles an IN from base+(port&7).
func (f *FDC765) Read(port uint16) byte {
	if f.WaitStates != nil {
		f.WaitStates(8)
	}
	reg := port & 7
	if f.powerDown && reg != 2 {
		return 0xFF
	}
	var ret byte = 0xFF
	drive := int(f.dor & 3)
	d := f.drives[drive]
	switch reg {
	case 0:
		ret = f.readSRA(d)
	case 1:
		ret = f.readSRB(drive)
	case 2:
		ret = f.dor
	case 3:
		switch {
		case f.has(FDCFlagPS2) || f.has(FDCFlagPS2MCA):
			ret = 0x00
			if d != nil && d.Is525() {
				ret = 0x20
			} else if d != nil && d.IsED() {
				ret = 0x10
			}
		case !f.enhMode:
			ret = 0x20
		default:
			ret = byte(f.rwc[drive])<<4 | f.mediaID<<6
		}
	case 4:
		ret = f.stat
	case 5:
		ret = f.readData()
	case 7:
		ret = f.readDIR(drive, d)
	}
	f.logf("read %d %02X\n", reg, ret)
	return ret
}

func (f *FDC765) readSRA(d *FloppyDrive) byte {
	switch {
	case f.has(FDCFlagPS2):
		var ret byte
		if f.seekDir {
			ret |= 0x01
		}
		if d != nil && d.WriteProtect() {
			ret |= 0x02
		}
		if d == nil || d.Head() == 0 {
			ret |= 0x08
		}
		if d != nil && d.Track0() {
			ret |= 0x10
		}
		if f.step {
			ret |= 0x20
		}
		if f.fintr || f.resetStat > 0 {
			ret |= 0x80
		}
		return ret
	case f.has(FDCFlagPS2MCA):
		ret := byte(0x04)
		if !f.seekDir {
			ret |= 0x01
		}
		if d == nil || !d.WriteProtect() {
			ret |= 0x02
		}
		if d != nil && d.Head() != 0 {
			ret |= 0x08
		}
		if d == nil || !d.Track0() {
			ret |= 0x10
		}
		if f.step {
			ret |= 0x20
		}
		if f.drives[1] == nil {
			ret |= 0x40
		}
		if f.fintr || f.resetStat > 0 {
			ret |= 0x80
		}
		return ret
	}
	return 0xFF
}

func (f *FDC765) readSRB(drive int) byte {
	switch {
	case f.has(FDCFlagPS2):
		var ret byte
		if f.drives[1] == nil {
			ret |= 0x80
		}
		ret |= [4]byte{0x43, 0x23, 0x62, 0x61}[drive]
		return ret
	case f.has(FDCFlagPS2MCA):
		return 0xC0 | (f.dor&0x01)<<5 | (f.dor&0x30)>>4
	}
	return 0xFF
}

func (f *FDC765) readDIR(drive int, d *FloppyDrive) byte {
	changed := d == nil || d.Changed()
	motor := f.dor&(0x10<<drive) != 0
	var ret byte
	switch {
	case f.has(FDCFlagPS2):
		if motor {
			if !changed {
				ret = 0x80
			}
			ret |= f.dor & 0x08
			if f.noprec {
				ret |= 0x04
			}
			ret |= f.rate & 0x03
		}
	case f.has(FDCFlagPS2MCA):
		ret = 0xF9
		if motor {
			ret = 0x78 | (f.rate&0x03)<<1
			if changed {
				ret |= 0x80
			}
		}
	default:
		if motor && changed && !(drive == 1 && f.has(FDCFlagToshiba)) {
			ret = 0x80
		}
		if f.has(FDCFlagDiskChgActLow) {
			ret ^= 0x80
		}
		if f.has(FDCFlagToshiba) {
			ret |= 3<<5 | 0x01
		} else {
			ret |= 0x7F
		}
	}
	f.step = false
	return ret
}

func (f *FDC765) readData() byte {
	if f.fifoInTest {
		return f.fifoBuf.read()
	}
	if f.stat&0xF0 == 0xF0 {
		// PIO read transfer byte
		f.stat &^= 0x80
		if f.has(FDCFlagPCjr) || !f.fifo {
			f.dataReady = false
			return f.dat
		}
		v := f.fifoBuf.read()
		if f.fifoBuf.empty() {
			f.dataReady = false
		} else {
			f.stat |= 0x80
		}
		return v
	}
	var ret byte
	switch {
	case f.paramsToGo > 0:
		f.stat &^= 0x80
		f.paramsToGo--
		ret = f.res[10-f.paramsToGo]
		if f.paramsToGo == 0 {
			f.stat = 0x80
		} else {
			f.stat |= 0xC0
		}
	case f.dma:
		return f.dat
	default:
		f.stat &^= 0x80
		ret = f.dat
		f.dataReady = false
	}
	f.stat &= 0xF0
	return ret
}
