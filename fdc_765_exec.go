// fdc_765_exec.go - FDC command execution, data transfer and result phase
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

func (f *FDC765) headBit() byte {
	if d := f.cur(); d != nil && d.Head() != 0 {
		return 0x04
	}
	return 0
}

func (f *FDC765) doubleSided() bool {
	d := f.cur()
	return d != nil && d.DoubleSided()
}

func (f *FDC765) seekDrive(delta int) {
	if d := f.cur(); d != nil {
		d.seek(delta)
	}
	f.stat |= 1 << f.drive
}

// endWithIRQ completes a seek-class command. The PCjr has no interrupt
// enable in the DOR, so its completion is left to the pending timer.
func (f *FDC765) endWithIRQ() {
	if f.has(FDCFlagPCjr) {
		f.fintr = true
		f.interrupt = fdcIntSeekIRQPCjr
		return
	}
	f.disableTimer()
	f.interrupt = fdcIntEndWithIRQ
	f.callback()
}

// ioCommandPhase1 latches C/H/R/N/EOT for a data command and arms the
// transfer: DRQ for DMA, or RQM in the MSR for PIO.
func (f *FDC765) ioCommandPhase1(out bool) {
	f.fifoBuf.reset()
	f.updateRate()
	f.head = f.params[2]
	if d := f.cur(); d != nil {
		d.setHead(int(f.params[0]>>2) & 1)
	}
	f.sector = f.params[3]
	f.eot[f.drive] = f.params[5]
	f.gap = f.params[6]
	f.dtl = f.params[7]
	f.rwTrack = f.params[1]

	// Implied seek
	if f.config&0x40 != 0 {
		pcn := f.pcn[f.params[0]&3]
		if int(f.rwTrack) != pcn {
			f.seekDrive(int(f.rwTrack) - pcn)
			f.pcn[f.params[0]&3] = int(f.rwTrack)
		}
	}

	if out {
		f.stat = 0x10
	} else {
		f.stat = 0x50
	}
	if !f.usesDMA() {
		f.stat |= 0x20
		if out {
			f.stat |= 0x80
		}
	} else {
		f.setDRQ(true)
	}
}

// singleSidedHead1 rejects head 1 on a drive without a second head.
func (f *FDC765) singleSidedHead1() bool {
	if f.head&1 != 0 && !f.doubleSided() {
		f.noIDAM()
		return true
	}
	return false
}

func (f *FDC765) executePhase1() {
	d := f.cur()
	switch f.processedCmd {
	case fdcCmdReadTrack:
		f.ioCommandPhase1(false)
		f.readTrackID = fdcSectorID{C: f.params[1], H: f.params[2], R: 1, N: f.params[4]}
		if f.singleSidedHead1() {
			return
		}
		if d == nil {
			f.noIDAM()
			return
		}
		d.ReadTrack(fddSectorFirst, f.params[4])

	case fdcCmdSpecify:
		f.stat = 0x80
		f.specify = [2]byte{f.params[0], f.params[1]}
		f.dma = f.specify[1]&1 == 0
		if !f.dma {
			f.setDRQ(false)
		}

	case fdcCmdSenseDrive:
		if d != nil {
			d.setHead(int(f.params[0]>>2) & 1)
		}

	case fdcCmdWriteData, fdcCmdWriteDeleted:
		f.ioCommandPhase1(true)
		if f.singleSidedHead1() {
			return
		}
		if d == nil {
			f.noIDAM()
			return
		}
		d.WriteSector(f.params[1], f.head, f.sector, f.params[4])

	case fdcCmdScanEqual, fdcCmdScanLowEqual, fdcCmdScanHighEqual:
		f.ioCommandPhase1(true)
		if f.singleSidedHead1() {
			return
		}
		if d == nil {
			f.noIDAM()
			return
		}
		d.CompareSector(f.params[1], f.head, f.sector, f.params[4])

	case fdcCmdVerify, fdcCmdReadData, fdcCmdReadDeleted:
		if f.processedCmd == fdcCmdVerify && f.params[0]&0x80 != 0 {
			f.sc = int(f.params[7])
		}
		f.ioCommandPhase1(false)
		f.logf("read drive %d C=%d H=%d R=%d N=%d EOT=%d\n", f.drive,
			f.params[1], f.params[2], f.params[3], f.params[4], f.params[5])
		if f.singleSidedHead1() {
			return
		}
		if d == nil {
			f.noIDAM()
			return
		}
		if f.usesDMA() && f.dmac.Mode(f.cfg.DMAChannel)&0x0C == 0 {
			// DMA channel programmed for verify: no data reaches memory
			f.tc = true
			f.deleted |= 2
		}
		d.ReadSector(f.params[1], f.head, f.sector, f.params[4])

	case fdcCmdRecalibrate:
		f.rwDrive = int(f.params[0] & 3)
		f.stat = 1 << f.drive
		if !f.has(FDCFlagPCjr) {
			f.stat |= 0x80
		}
		f.st0 = f.params[0]&3 | f.headBit() | 0x80
		if d == nil || !d.motor || d.Track0() {
			if d == nil || !d.motor {
				f.st0 = 0x70 | f.params[0]&3
			} else {
				f.st0 = 0x20 | f.params[0]&3
			}
			f.pcn[f.params[0]&3] = 0
			f.endWithIRQ()
			return
		}
		f.seekDrive(-f.maxTrack)
		f.seekDir, f.step = true, true

	case fdcCmdReadID:
		f.updateRate()
		f.head = (f.params[0] >> 2) & 1
		if d == nil {
			f.noIDAM()
			return
		}
		d.setHead(int(f.head))
		d.ReadAddress()
		if f.usesDMA() {
			f.stat = 0x50
		} else {
			f.stat = 0x70
		}

	case fdcCmdFormat:
		f.updateRate()
		f.head = (f.params[0] >> 2) & 1
		if d != nil {
			d.setHead(int(f.head))
		}
		f.gap = f.params[3]
		f.formatSectors = f.params[2]
		f.formatNVal = f.params[1]
		f.formatState = 1
		f.stat = 0x10

	case fdcCmdSeek:
		f.seek(d)

	case fdcCmdPerpendicular:
		f.stat = 0x80
		if f.params[0]&0x80 != 0 {
			f.perp = f.params[0] & 0x3F
		} else {
			f.perp = f.perp&0xFC | f.params[0]&0x03
		}
	}
}

// seek runs SEEK and relative SEEK (command bit 7, direction in bit 6).
// A SEEK that cannot move still reports seek end.
func (f *FDC765) seek(d *FloppyDrive) {
	unit := f.params[0] & 3
	f.rwDrive = int(unit)
	f.stat = 1 << f.drive
	if !f.has(FDCFlagPCjr) {
		f.stat |= 0x80
	}
	f.head = 0
	f.st0 = unit | f.params[0]&4 | 0x80
	if d != nil {
		d.setHead(int(f.params[0]>>2) & 1)
	}
	relative := f.command&0x80 != 0
	inward := f.command&0x40 != 0
	n := int(f.params[1])

	if d == nil || !d.motor {
		f.st0 = 0x20 | unit
		switch {
		case relative && inward:
			f.pcn[unit] += n
		case relative:
			f.pcn[unit] -= n
		default:
			f.pcn[unit] = n
		}
		f.endWithIRQ()
		return
	}

	if relative {
		if n == 0 {
			f.st0 = 0x20 | unit
			f.endWithIRQ()
			return
		}
		if inward {
			f.seekDir = false
			f.seekDrive(n)
			f.pcn[unit] += n
		} else {
			f.seekDir = true
			f.seekDrive(-n)
			f.pcn[unit] -= n
		}
		f.step = true
		return
	}

	f.logf("seek to %d (PCN %d)\n", n, f.pcn[unit])
	if n == f.pcn[unit] {
		f.st0 = 0x20 | unit
		f.endWithIRQ()
		return
	}
	f.seekDir = n <= f.pcn[unit]
	f.seekDrive(n - f.pcn[unit])
	f.pcn[unit] = n
	f.step = true
}

// -----------------------------------------------------------------------------
// Timer callback
// -----------------------------------------------------------------------------

func (f *FDC765) resultPhase(n int) {
	f.stat = f.stat&0x0F | 0xD0
	f.paramsToGo = n
	f.interrupt = 0
}

func (f *FDC765) callback() {
	f.logf("callback %d\n", f.interrupt)
	switch f.interrupt {
	case fdcIntEndWithIRQ, fdcIntSeekIRQPCjr:
		f.irq(f.interrupt == fdcIntEndWithIRQ)
		f.stat = f.stat&0x0F | 0x80
	case fdcIntEnd:
		f.stat = f.stat&0x0F | 0x80
	case fdcIntPowerdownRst:
		f.perp &= 0xFC
		f.ctrlReset()
		f.fintr = false
		f.pcn = [4]int{}
	case fdcIntReset:
		f.irq(true)
		f.fintr = false
		f.pcn = [4]int{}
		f.resetStat = 4
	case fdcIntDSRClear:
		f.dsr |= 0x80

	case fdcCmdMode:
		f.stat = 0x80
		f.denselForce = f.params[2] >> 6

	case fdcCmdReadTrack:
		f.eot[f.drive]--
		f.readTrackID.R++
		if f.eot[f.drive] == 0 || f.tc {
			f.readWriteFinish(2)
			return
		}
		f.cur().ReadTrack(fddSectorNext, f.params[4])
		f.armTransfer(false)

	case fdcCmdSenseDrive:
		d := f.cur()
		f.res[10] = f.params[0]&7 | 0x20
		if d != nil && d.DoubleSided() {
			f.res[10] |= 0x08
		}
		if d != nil && d.Track0() {
			f.res[10] |= 0x10
		}
		if d == nil || d.WriteProtect() {
			f.res[10] |= 0x40
		}
		f.resultPhase(1)

	case fdcCmdWriteData, fdcCmdWriteDeleted, fdcCmdReadData, fdcCmdReadDeleted,
		fdcCmdScanEqual, fdcCmdVerify, fdcCmdScanLowEqual, fdcCmdScanHighEqual:
		f.nextSector()

	case fdcCmdRecalibrate:
		f.pcn[f.params[0]&3] = 0
		f.st0 = 0x20 | f.params[0]&3
		if d := f.drives[f.rwDrive]; d == nil || !d.Track0() {
			f.st0 |= 0x50
		}
		action := fdcIntEndWithIRQ
		if f.has(FDCFlagPCjr) {
			f.fintr = true
			action = fdcIntSeekIRQPCjr
		}
		f.setTimer(2048, action)
		f.stat = 0x80 | 1<<f.rwDrive

	case fdcCmdFormat:
		switch f.formatState {
		case 1:
			f.formatState = 2
			f.setTimer(8, fdcCmdFormat)
		case 2:
			f.formatState = 3
			if d := f.cur(); d != nil {
				f.armTransfer(true)
				d.Format(f.params[4])
			} else {
				f.noIDAM()
			}
		default:
			f.interrupt = fdcIntEnd
			f.irq(true)
			if !f.has(FDCFlagFINTR) {
				f.fintr = false
			}
			f.stat = 0xD0
			f.st0 = f.headBit() | byte(f.drive)
			f.res[4] = f.st0
			f.res[5], f.res[6] = 0, 0
			f.res[7] = f.formatID.C
			f.res[8] = f.formatID.H
			f.res[9] = f.formatID.R
			f.res[10] = f.formatID.N
			f.paramsToGo = 7
			f.formatState = 0
			f.setDRQ(false)
		}

	case fdcCmdDumpRegs:
		for i := range 4 {
			f.res[1+i] = byte(f.pcn[i])
		}
		f.res[5] = f.specify[0]
		f.res[6] = f.specify[1]
		f.res[7] = f.eot[f.drive]
		f.res[8] = f.perp & 0x7F
		if f.lock {
			f.res[8] |= 0x80
		}
		f.res[9] = f.config
		f.res[10] = f.pretrk
		f.resultPhase(10)

	case fdcCmdSeek:
		f.st0 = 0x20 | f.params[0]&3
		f.stat = 0x80 | 1<<f.rwDrive
		if f.has(FDCFlagPCjr) {
			f.fintr = true
			f.setTimer(1024, fdcIntSeekIRQPCjr)
			return
		}
		f.interrupt = fdcIntEndWithIRQ
		f.callback()

	case fdcCmdVersion, fdcCmdNSC:
		if f.interrupt&0x08 != 0 {
			f.res[10] = 0x73
		} else {
			f.res[10] = 0x90
		}
		f.resultPhase(1)

	case fdcCmdPowerdown:
		f.res[10] = f.params[0]
		f.resultPhase(1)

	case fdcCmdConfigure:
		f.config = f.params[1]
		f.pretrk = f.params[2]
		f.fifo = f.params[1]&0x20 == 0
		f.tfifo = int(f.params[1] & 0x0F)
		f.fifoBuf.reset()
		f.fifoBuf.setLen(f.tfifo + 1)
		f.stat = 0x80

	case fdcCmdUnlock, fdcCmdLock:
		f.lock = f.interrupt&0x80 != 0
		f.res[10] = 0
		if f.lock {
			f.res[10] = 0x10
		}
		f.resultPhase(1)

	case fdcCmdInvalid:
		f.st0 = 0x80
		f.dat = 0x80
		f.res[10] = f.st0
		f.resultPhase(1)
	}
}

// armTransfer requests the next sector's bytes from the host.
func (f *FDC765) armTransfer(out bool) {
	if !f.usesDMA() {
		if out {
			f.stat = 0xB0
		} else {
			f.stat = 0x70
		}
		return
	}
	f.setDRQ(true)
	if out {
		f.stat = 0x10
	} else {
		f.stat = 0x50
	}
}

// nextSector runs after each sector of a multi-sector command: it stops on
// TC or EOT, steps R (and H for multi-track), and starts the next sector.
func (f *FDC765) nextSector() {
	compare := 0
	switch f.interrupt {
	case fdcCmdScanEqual, fdcCmdScanLowEqual, fdcCmdScanHighEqual:
		compare = 1
	case fdcCmdReadData, fdcCmdReadDeleted:
		// Data mark mismatch without SK ends the command after this sector
		if f.wrongAM && f.deleted&0x20 == 0 {
			f.tc = true
		}
	}
	multiTrack := f.command&0x80 != 0
	d := f.cur()
	old := f.sector

	if f.tc {
		if f.sector == f.params[5] {
			if !multiTrack {
				f.rwTrack++
			} else {
				if f.head != 0 {
					f.rwTrack++
				}
				f.head ^= 1
				d.setHead(int(f.head))
			}
			f.sector = 1
		} else {
			f.sector++
		}
		f.readWriteFinish(compare)
		return
	}

	if f.interrupt == fdcCmdVerify && f.params[0]&0x80 != 0 {
		f.sc--
		if f.sc == 0 {
			f.sector++
			f.readWriteFinish(0)
			return
		}
	}

	switch {
	case f.sector == f.params[5]:
		if !multiTrack || d.Head() == 1 {
			if f.dma {
				f.rwTrack++
				f.sector = 1
				if multiTrack {
					f.head &= 0xFE
					d.setHead(0)
				}
			}
			if f.usesDMA() && old == 0xFF {
				f.disableTimer()
				f.commonFinish(compare, 0x80)
			} else {
				f.readWriteFinish(compare)
			}
			return
		}
		f.sector = 1
		f.head |= 1
		d.setHead(1)
		if !d.DoubleSided() {
			f.noIDAM()
			return
		}
	case f.sector < f.params[5], f.params[5] == 0:
		f.sector++
	}

	switch f.interrupt {
	case fdcCmdWriteData, fdcCmdWriteDeleted:
		d.WriteSector(f.rwTrack, f.head, f.sector, f.params[4])
		f.armTransfer(true)
	case fdcCmdReadData, fdcCmdReadDeleted, fdcCmdVerify:
		d.ReadSector(f.rwTrack, f.head, f.sector, f.params[4])
		f.armTransfer(false)
	case fdcCmdScanEqual, fdcCmdScanLowEqual, fdcCmdScanHighEqual:
		d.CompareSector(f.rwTrack, f.head, f.sector, f.params[4])
		f.armTransfer(true)
	}
}

func (f *FDC765) readWriteFinish(compare int) {
	f.interrupt = fdcIntEnd
	f.commonFinish(compare, 0)
}

// commonFinish builds the 7-byte ST0/ST1/ST2/C/H/R/N result.
func (f *FDC765) commonFinish(compare int, st5 byte) {
	f.irq(true)
	if !f.has(FDCFlagFINTR) {
		f.fintr = false
	}
	f.stat = 0xD0
	f.st0 = f.headBit() | byte(f.rwDrive)
	f.res[4] = f.st0
	f.res[5] = st5
	f.res[6] = 0
	if f.wrongAM {
		f.res[6] |= 0x40
		f.wrongAM = false
	}
	switch compare {
	case 1:
		full := int(f.params[5])
		if f.command&0x80 != 0 {
			full <<= 1
		}
		if f.satisfying == 0 {
			f.res[6] |= 0x04
		} else if f.satisfying == full {
			f.res[6] |= 0x08
		}
	case 2:
		if f.satisfying&1 != 0 {
			f.res[5] |= 0x20
		}
		if f.satisfying&2 != 0 {
			f.res[5] |= 0x20
			f.res[6] |= 0x20
		}
		if f.satisfying&4 != 0 {
			f.res[5] |= 0x04
		}
		if f.satisfying&8 != 0 {
			f.res[5] |= 0x04
			f.res[6] |= 0x02
		}
		if f.satisfying&0x10 != 0 {
			f.res[5] |= 0x04
			f.res[6] |= 0x10
		}
	}
	f.res[7] = f.rwTrack
	f.res[8] = f.head
	f.res[9] = f.sector
	f.res[10] = f.params[4]
	f.logf("finish %02X %02X %02X %02X %02X %02X %02X\n",
		f.res[4], f.res[5], f.res[6], f.res[7], f.res[8], f.res[9], f.res[10])
	f.paramsToGo = 7
	f.setDRQ(false)
}

// -----------------------------------------------------------------------------
// Errors reported by the drive
// -----------------------------------------------------------------------------

func (f *FDC765) fail(st5, st6 byte) {
	f.setDRQ(false)
	f.disableTimer()
	f.irq(true)
	if !f.has(FDCFlagFINTR) {
		f.fintr = false
	}
	f.stat = 0xD0
	f.st0 = 0x40 | f.headBit() | byte(f.rwDrive)
	f.res[4] = f.st0
	if f.head != 0 && !f.doubleSided() {
		f.st0 |= 0x08
	}
	f.res[5] = st5
	f.res[6] = st6
	if f.wrongAM {
		f.res[6] |= 0x40
		f.wrongAM = false
	}
	f.logf("error %02X %02X %02X\n", f.res[4], f.res[5], f.res[6])
	switch f.interrupt {
	case fdcCmdReadTrack, fdcCmdWriteData, fdcCmdReadData, fdcCmdWriteDeleted,
		fdcCmdReadDeleted, fdcCmdScanEqual, fdcCmdVerify, fdcCmdScanLowEqual,
		fdcCmdScanHighEqual:
		f.res[7] = f.rwTrack
		f.res[8] = f.head
		f.res[9] = f.sector
		f.res[10] = f.params[4]
	default:
		f.res[7], f.res[8], f.res[9], f.res[10] = 0, 0, 0, 0
	}
	f.paramsToGo = 7
}

// No ID address mark found within two index pulses.
func (f *FDC765) noIDAM() { f.fail(0x01, 0x00) }

// IDs present but none matches R/H/N.
func (f *FDC765) noSector() { f.fail(0x04, 0x00) }

func (f *FDC765) cannotFormat()   { f.fail(0x00, 0x00) }
func (f *FDC765) wrongCylinder()  { f.fail(0x04, 0x10) }
func (f *FDC765) badCylinder()    { f.fail(0x04, 0x02) }
func (f *FDC765) writeProtected() { f.fail(0x02, 0x00) }

func (f *FDC765) overrun() {
	if d := f.cur(); d != nil {
		d.stop()
	}
	f.fail(0x10, 0x00)
}

// -----------------------------------------------------------------------------
// Drive-facing transfer interface
// -----------------------------------------------------------------------------

func (f *FDC765) isDeleted() bool              { return f.deleted&1 != 0 }
func (f *FDC765) isSK() bool                   { return f.deleted&0x20 != 0 }
func (f *FDC765) isVerify() bool               { return f.deleted&2 != 0 }
func (f *FDC765) setWrongAM()                  { f.wrongAM = true }
func (f *FDC765) readTrackSector() fdcSectorID { return f.readTrackID }
func (f *FDC765) formatSectorCount() byte      { return f.formatSectors }
func (f *FDC765) formatN() byte                { return f.formatNVal }

func (f *FDC765) setFormatSectorID(c, h, r, n byte) {
	f.formatID = fdcSectorID{C: c, H: h, R: r, N: n}
}

// compareCondition is the SCAN relation: 0 equal, 1 low-or-equal,
// 2 high-or-equal.
func (f *FDC765) compareCondition() int {
	switch f.interrupt {
	case fdcCmdScanLowEqual:
		return 1
	case fdcCmdScanHighEqual:
		return 2
	}
	return 0
}

// data accepts one byte read from the media. It returns -1 when the
// transfer has ended (TC or overrun).
func (f *FDC765) data(b byte, last bool) int {
	if f.isVerify() {
		return 0
	}
	if !f.usesDMA() {
		if f.tc {
			return 0
		}
		if f.dataReady {
			f.overrun()
			return -1
		}
		if f.has(FDCFlagPCjr) || !f.fifo || f.tfifo < 1 {
			f.dat = b
			f.dataReady = true
			f.stat = 0xF0
			return 0
		}
		f.fifoBuf.write(b)
		if f.fifoBuf.full() {
			f.dataReady = true
			f.stat = 0xF0
		}
		return 0
	}

	if f.tc {
		return -1
	}
	if !f.fifo || f.tfifo < 1 {
		f.dataReady = true
		f.stat = 0x50
		f.dat = b
		f.setDRQ(true)
		res := f.dmac.ChannelWrite(f.cfg.DMAChannel, b)
		f.setDRQ(false)
		if res != DMANoData && res&DMAOver != 0 {
			f.tc = true
			return -1
		}
		return 0
	}
	f.fifoBuf.write(b)
	if last || f.fifoBuf.full() {
		f.dataReady = true
		f.stat = 0x50
		f.setDRQ(true)
		for !f.fifoBuf.empty() {
			res := f.dmac.ChannelWrite(f.cfg.DMAChannel, f.fifoBuf.read())
			if res != DMANoData && res&DMAOver != 0 {
				f.setDRQ(false)
				f.tc = true
				return -1
			}
		}
		f.setDRQ(false)
	}
	return 0
}

// getData supplies the next byte to write to the media.
func (f *FDC765) getData(last bool) int {
	if !f.usesDMA() {
		if f.has(FDCFlagPCjr) || !f.fifo || f.tfifo < 1 {
			if !last {
				f.stat = 0xB0
			}
			return int(f.dat)
		}
		v := f.fifoBuf.read()
		if !last && f.fifoBuf.empty() {
			f.stat = 0xB0
		}
		return int(v)
	}

	if !f.fifo || f.tfifo < 1 {
		v := f.dmac.ChannelRead(f.cfg.DMAChannel)
		f.setDRQ(false)
		if v != DMANoData && v&DMAOver != 0 {
			f.tc = true
		}
		if !last {
			f.setDRQ(true)
			f.stat = 0x10
		}
		return v & 0xFF
	}
	if f.fifoBuf.empty() {
		for !f.fifoBuf.full() {
			v := f.dmac.ChannelRead(f.cfg.DMAChannel)
			f.fifoBuf.write(byte(v))
			if v != DMANoData && v&DMAOver != 0 {
				f.tc = true
				break
			}
		}
		f.setDRQ(false)
	}
	v := f.fifoBuf.read()
	if !last && f.fifoBuf.empty() {
		f.setDRQ(true)
		f.stat = 0x10
	}
	return int(v)
}

func (f *FDC765) trackFinishRead(cond int) {
	f.stat = 0x10
	f.satisfying |= cond
	f.callback()
}

func (f *FDC765) sectorFinishCompare(satisfied bool) {
	f.stat = 0x10
	if satisfied {
		f.satisfying++
	}
	f.callback()
}

func (f *FDC765) sectorFinishRead() {
	f.stat = 0x10
	f.callback()
}

// sectorID completes READ ID with the header that passed under the head.
func (f *FDC765) sectorID(c, h, r, n byte) {
	f.irq(true)
	f.stat = 0xD0
	f.st0 = f.headBit() | byte(f.drive)
	f.res[4] = f.st0
	f.res[5], f.res[6] = 0, 0
	f.res[7], f.res[8], f.res[9], f.res[10] = c, h, r, n
	f.paramsToGo = 7
	f.setDRQ(false)
}
