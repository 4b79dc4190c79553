// floppy_drive.go - Floppy drive mechanics and raw sector image backend
//
// A drive holds a raw .img image laid out cylinder/head/sector with 512-byte
// sectors. Sector IDs are synthesised from the geometry (C = cylinder,
// H = head, R = 1..spt, N = 2). Sector positions follow the spindle: the
// rotational angle is derived from the scheduler clock so latency depends on
// when a command is issued.

package main

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrFloppyGeometry = errors.New("floppy: image size matches no known geometry")
	ErrFloppyNoMedia  = errors.New("floppy: no media")
)

// FloppyDriveType is the mechanism fitted in a drive bay.
type FloppyDriveType int

const (
	FloppyDrive525SS FloppyDriveType = iota // 160K/180K single-sided 5.25"
	FloppyDrive525DD                        // 360K 5.25"
	FloppyDrive525HD                        // 1.2M 5.25"
	FloppyDrive35DD                         // 720K 3.5"
	FloppyDrive35HD                         // 1.44M 3.5"
	FloppyDrive35ED                         // 2.88M 3.5"
)

type floppyDriveParam struct {
	name        string
	tracks      int
	doubleSided bool
	rpm         int
}

var floppyDriveParams = map[FloppyDriveType]floppyDriveParam{
	FloppyDrive525SS: {"525ss", 40, false, 300},
	FloppyDrive525DD: {"525dd", 40, true, 300},
	FloppyDrive525HD: {"525hd", 80, true, 360},
	FloppyDrive35DD:  {"35dd", 80, true, 300},
	FloppyDrive35HD:  {"35hd", 80, true, 300},
	FloppyDrive35ED:  {"35ed", 80, true, 300},
}

// ParseFloppyDriveType maps a drive type name to its FloppyDriveType.
func ParseFloppyDriveType(name string) (FloppyDriveType, error) {
	for t, s := range floppyDriveParams {
		if s.name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown floppy drive type %q", name)
}

// floppyGeometry describes a media format recognised by image size.
type floppyGeometry struct {
	size  int
	cyls  int
	heads int
	spt   int
	kbps  int
}

var floppyGeometries = []floppyGeometry{
	{163840, 40, 1, 8, 250},
	{184320, 40, 1, 9, 250},
	{327680, 40, 2, 8, 250},
	{368640, 40, 2, 9, 250},
	{737280, 80, 2, 9, 250},
	{1228800, 80, 2, 15, 500},
	{1474560, 80, 2, 18, 500},
	{2949120, 80, 2, 36, 1000},
}

const floppySectorSize = 512

func geometryForSize(size int) (floppyGeometry, error) {
	for _, g := range floppyGeometries {
		if g.size == size {
			return g, nil
		}
	}
	return floppyGeometry{}, fmt.Errorf("%w (%d bytes)", ErrFloppyGeometry, size)
}

// Sector selectors for READ TRACK.
const (
	fddSectorFirst = -2
	fddSectorNext  = -1
)

type fddOpKind int

const (
	fddOpNone fddOpKind = iota
	fddOpRead
	fddOpWrite
	fddOpCompare
	fddOpReadID
	fddOpFormat
	fddOpReadTrack
)

// FloppyDrive is one drive bay with optional inserted media.
type FloppyDrive struct {
	Type  FloppyDriveType
	param floppyDriveParam

	image        []byte
	geom         floppyGeometry
	path         string
	dirty        bool
	writeProtect bool

	motor   bool
	track   int
	head    int
	changed bool

	// Extra cylinders the mechanism can step past the nominal count
	extraTracks int

	fdc   *FDC765
	sched *Scheduler

	op       fddOpKind
	opTimer  TimerHandle
	buf      []byte
	pos      int
	lba      int
	satisfy  bool
	slot     int
	cond     int
	fmtCount int
}

// NewFloppyDrive creates an empty drive of the given type.
func NewFloppyDrive(t FloppyDriveType) *FloppyDrive {
	return &FloppyDrive{Type: t, param: floppyDriveParams[t], changed: true}
}

// Insert loads a raw image. The image is copied.
func (d *FloppyDrive) Insert(image []byte, writeProtect bool) error {
	g, err := geometryForSize(len(image))
	if err != nil {
		return err
	}
	d.stop()
	d.image = append([]byte(nil), image...)
	d.geom = g
	d.writeProtect = writeProtect
	d.dirty = false
	d.changed = true
	return nil
}

// Load reads an image file and inserts it.
func (d *FloppyDrive) Load(path string, writeProtect bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("floppy: %w", err)
	}
	if err := d.Insert(data, writeProtect); err != nil {
		return err
	}
	d.path = path
	return nil
}

// Flush writes modified sectors back to the file the image came from.
func (d *FloppyDrive) Flush() error {
	if !d.dirty || d.path == "" {
		return nil
	}
	if err := os.WriteFile(d.path, d.image, 0o644); err != nil {
		return fmt.Errorf("floppy: %w", err)
	}
	d.dirty = false
	return nil
}

// Eject removes the media.
func (d *FloppyDrive) Eject() {
	d.stop()
	d.image = nil
	d.path = ""
	d.changed = true
}

// Image returns the current media contents (nil when empty).
func (d *FloppyDrive) Image() []byte { return d.image }

func (d *FloppyDrive) HasMedia() bool     { return d.image != nil }
func (d *FloppyDrive) DoubleSided() bool  { return d.param.doubleSided }
func (d *FloppyDrive) Track0() bool       { return d.track == 0 }
func (d *FloppyDrive) Head() int          { return d.head }
func (d *FloppyDrive) Track() int         { return d.track }
func (d *FloppyDrive) WriteProtect() bool { return d.writeProtect || d.image == nil }
func (d *FloppyDrive) Changed() bool      { return d.changed || d.image == nil }
func (d *FloppyDrive) Is525() bool        { return d.Type <= FloppyDrive525HD }
func (d *FloppyDrive) IsED() bool         { return d.Type == FloppyDrive35ED }

func (d *FloppyDrive) setMotor(on bool) { d.motor = on }
func (d *FloppyDrive) setHead(h int)    { d.head = h & 1 }

// seek steps the head by delta cylinders, clamped to the mechanism. A step
// with media present clears the disk-change latch.
func (d *FloppyDrive) seek(delta int) {
	maxTrack := d.param.tracks - 1 + d.extraTracks
	d.track += delta
	if d.track < 0 {
		d.track = 0
	}
	if d.track > maxTrack {
		d.track = maxTrack
	}
	if d.image != nil && delta != 0 {
		d.changed = false
	}
}

// -----------------------------------------------------------------------------
// Rotation timing
// -----------------------------------------------------------------------------

func (d *FloppyDrive) rpm() int {
	return d.param.rpm
}

func (d *FloppyDrive) revolutionUsec() float64 { return 60e6 / float64(d.rpm()) }

// byteUsec is the time one MFM byte takes at the given bit rate.
func byteUsec(kbps int) float64 { return 8000 / float64(kbps) }

// mediaKbps is the bit rate this drive reads the inserted media at. Double
// density media in a 360 rpm drive runs at 300 kbps.
func (d *FloppyDrive) mediaKbps() int {
	if d.geom.kbps == 250 && d.rpm() == 360 {
		return 300
	}
	return d.geom.kbps
}

// angleUsec is the current position within a revolution.
func (d *FloppyDrive) angleUsec() float64 {
	now := d.sched.TicksToUsec(d.sched.Now())
	rev := d.revolutionUsec()
	return now - float64(int64(now/rev))*rev
}

// slotUsec is the time from the index hole to the ID field of slot s.
func (d *FloppyDrive) slotUsec(s int) float64 {
	return d.revolutionUsec() * float64(s) / float64(d.geom.spt)
}

// untilSlot is the rotational delay until slot s passes under the head.
func (d *FloppyDrive) untilSlot(s int) float64 {
	wait := d.slotUsec(s) - d.angleUsec()
	if wait < 0 {
		wait += d.revolutionUsec()
	}
	return wait
}

// nextSlot is the first slot whose ID field is still ahead of the head.
func (d *FloppyDrive) nextSlot() int {
	a := d.angleUsec()
	for s := range d.geom.spt {
		if d.slotUsec(s) >= a {
			return s
		}
	}
	return 0
}

// -----------------------------------------------------------------------------
// Controller-facing operations
// -----------------------------------------------------------------------------

func (d *FloppyDrive) stop() {
	if d.sched != nil && d.op != fddOpNone {
		d.sched.Cancel(d.opTimer)
	}
	d.op = fddOpNone
}

func (d *FloppyDrive) after(us float64, fn func()) {
	d.opTimer = d.sched.ScheduleUsec(us, fn)
}

// readable reports whether the media under the head can be decoded at the
// controller's current data rate.
func (d *FloppyDrive) readable(head int) bool {
	if d.image == nil || !d.motor {
		return false
	}
	if head >= d.geom.heads || d.track >= d.geom.cyls {
		return false
	}
	return d.fdc.bitRateKbps() == d.mediaKbps()
}

// fail reports an ID search failure after two index pulses.
func (d *FloppyDrive) fail(report func()) {
	d.after(2*d.revolutionUsec(), func() {
		d.op = fddOpNone
		report()
	})
}

// locate resolves a requested sector ID against the track under the head.
// It returns the slot or schedules the matching error.
func (d *FloppyDrive) locate(c, h, r, n byte) (int, bool) {
	f := d.fdc
	if !d.readable(d.head) {
		d.fail(f.noIDAM)
		return 0, false
	}
	if n != 2 || r < 1 || int(r) > d.geom.spt || h != byte(d.head) {
		d.fail(f.noSector)
		return 0, false
	}
	if int(c) != d.track {
		if c == 0xFF {
			d.fail(f.badCylinder)
		} else {
			d.fail(f.wrongCylinder)
		}
		return 0, false
	}
	return int(r) - 1, true
}

func (d *FloppyDrive) sectorOffset(slot int) int {
	return ((d.track*d.geom.heads+d.head)*d.geom.spt + slot) * floppySectorSize
}

// ReadSector starts a READ DATA/VERIFY transfer of sector r on cylinder c.
func (d *FloppyDrive) ReadSector(c, h, r, n byte) {
	d.stop()
	d.op = fddOpRead
	slot, ok := d.locate(c, h, r, n)
	if !ok {
		return
	}
	d.slot = slot
	d.lba = d.sectorOffset(slot)
	d.pos = 0
	d.after(d.untilSlot(slot), d.readStart)
}

func (d *FloppyDrive) readStart() {
	f := d.fdc
	// Raw images carry no deleted data marks
	if f.isDeleted() {
		f.setWrongAM()
		if f.isSK() {
			d.op = fddOpNone
			f.sectorFinishRead()
			return
		}
	}
	d.readByte()
}

func (d *FloppyDrive) readByte() {
	f := d.fdc
	last := d.pos == floppySectorSize-1
	f.data(d.image[d.lba+d.pos], last)
	if d.op == fddOpNone {
		return
	}
	d.pos++
	if d.pos == floppySectorSize {
		d.op = fddOpNone
		f.sectorFinishRead()
		return
	}
	d.after(byteUsec(d.mediaKbps()), d.readByte)
}

// WriteSector starts a WRITE DATA transfer.
func (d *FloppyDrive) WriteSector(c, h, r, n byte) {
	d.stop()
	d.op = fddOpWrite
	if d.image != nil && d.writeProtect {
		d.op = fddOpNone
		d.fdc.writeProtected()
		return
	}
	slot, ok := d.locate(c, h, r, n)
	if !ok {
		return
	}
	d.lba = d.sectorOffset(slot)
	d.pos = 0
	d.buf = make([]byte, floppySectorSize)
	d.after(d.untilSlot(slot), d.writeByte)
}

func (d *FloppyDrive) writeByte() {
	f := d.fdc
	last := d.pos == floppySectorSize-1
	d.buf[d.pos] = byte(f.getData(last))
	d.pos++
	if d.pos == floppySectorSize {
		copy(d.image[d.lba:], d.buf)
		d.dirty = true
		d.op = fddOpNone
		f.sectorFinishRead()
		return
	}
	d.after(byteUsec(d.mediaKbps()), d.writeByte)
}

// CompareSector starts a SCAN transfer: host bytes are compared against the
// sector using the controller's scan condition. 0xFF from the host matches
// anything.
func (d *FloppyDrive) CompareSector(c, h, r, n byte) {
	d.stop()
	d.op = fddOpCompare
	slot, ok := d.locate(c, h, r, n)
	if !ok {
		return
	}
	d.lba = d.sectorOffset(slot)
	d.pos = 0
	d.satisfy = true
	d.after(d.untilSlot(slot), d.compareByte)
}

func (d *FloppyDrive) compareByte() {
	f := d.fdc
	last := d.pos == floppySectorSize-1
	host := byte(f.getData(last))
	disk := d.image[d.lba+d.pos]
	if host != 0xFF {
		switch f.compareCondition() {
		case 0:
			d.satisfy = d.satisfy && disk == host
		case 1:
			d.satisfy = d.satisfy && disk <= host
		case 2:
			d.satisfy = d.satisfy && disk >= host
		}
	}
	d.pos++
	if d.pos == floppySectorSize {
		d.op = fddOpNone
		f.sectorFinishCompare(d.satisfy)
		return
	}
	d.after(byteUsec(d.mediaKbps()), d.compareByte)
}

// ReadAddress reports the next sector ID to pass under the head.
func (d *FloppyDrive) ReadAddress() {
	d.stop()
	d.op = fddOpReadID
	if !d.readable(d.head) {
		d.fail(d.fdc.noIDAM)
		return
	}
	s := d.nextSlot()
	d.after(d.untilSlot(s), func() {
		d.op = fddOpNone
		d.fdc.sectorID(byte(d.track), byte(d.head), byte(s+1), 2)
	})
}

// ReadTrack reads sectors in physical order from the index hole, ignoring
// their IDs except to report mismatches against the expected ID.
func (d *FloppyDrive) ReadTrack(sel int, n byte) {
	d.stop()
	d.op = fddOpReadTrack
	if !d.readable(d.head) {
		d.fail(d.fdc.noIDAM)
		return
	}
	if sel == fddSectorFirst {
		d.slot = 0
	} else {
		d.slot = (d.slot + 1) % d.geom.spt
	}
	d.lba = d.sectorOffset(d.slot)
	d.pos = 0
	want := d.fdc.readTrackSector()
	d.cond = 0
	if want.R != byte(d.slot+1) || want.C != byte(d.track) || want.H != byte(d.head) || n != 2 {
		d.cond = 4
	}
	d.after(d.untilSlot(d.slot), d.trackByte)
}

func (d *FloppyDrive) trackByte() {
	f := d.fdc
	last := d.pos == floppySectorSize-1
	f.data(d.image[d.lba+d.pos], last)
	if d.op == fddOpNone {
		return
	}
	d.pos++
	if d.pos == floppySectorSize {
		d.op = fddOpNone
		f.trackFinishRead(d.cond)
		return
	}
	d.after(byteUsec(d.mediaKbps()), d.trackByte)
}

// Format lays down the track under the head from host-supplied C/H/R/N
// tuples. Raw images can only hold the native layout, so any other sector
// count or size is refused.
func (d *FloppyDrive) Format(fill byte) {
	d.stop()
	d.op = fddOpFormat
	f := d.fdc
	switch {
	case d.image != nil && d.writeProtect:
		d.op = fddOpNone
		f.writeProtected()
		return
	case !d.readable(d.head):
		d.fail(f.noIDAM)
		return
	case int(f.formatSectorCount()) != d.geom.spt || f.formatN() != 2:
		d.op = fddOpNone
		f.cannotFormat()
		return
	}
	d.fmtCount = 0
	d.pos = 0
	d.buf = make([]byte, 4)
	d.after(d.untilSlot(0), func() { d.formatID(fill) })
}

func (d *FloppyDrive) formatID(fill byte) {
	f := d.fdc
	last := d.fmtCount == d.geom.spt-1 && d.pos == 3
	d.buf[d.pos] = byte(f.getData(last))
	d.pos++
	if d.pos < 4 {
		d.after(byteUsec(d.mediaKbps()), func() { d.formatID(fill) })
		return
	}
	f.setFormatSectorID(d.buf[0], d.buf[1], d.buf[2], d.buf[3])
	off := d.sectorOffset(d.fmtCount)
	for i := range floppySectorSize {
		d.image[off+i] = fill
	}
	d.dirty = true
	d.fmtCount++
	d.pos = 0
	if d.fmtCount == d.geom.spt {
		d.op = fddOpNone
		f.sectorFinishRead()
		return
	}
	d.after(d.untilSlot(d.fmtCount), func() { d.formatID(fill) })
}
