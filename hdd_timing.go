// hdd_timing.go - Zoned-geometry hard disk seek and cache timing model
//
// Estimates how long a drive takes to reach and transfer LBA ranges. The
// platter is split into zones with decreasing sectors per track towards the
// spindle. A segmented read-ahead cache keeps streaming while the host is
// busy, and a small write buffer defers writes until the next command.
//
// (c) 2024-2026 Zayn Otley - GPLv3 or later

package main

import (
	"errors"
	"fmt"
	"math"
)

// ErrHDDNoZones is raised when timing is requested on a drive whose preset
// produced no zone table.
var ErrHDDNoZones = errors.New("hdd: zone table is empty")

const (
	hddOverheadUsec = 50.0
	hddWriteBufSize = 64
	hddMaxCacheSegs = 16
	hddMaxZones     = 16
)

// HDDOp is the operation a seek is performed for.
type HDDOp int

const (
	HDDOpRead HDDOp = iota
	HDDOpWrite
	HDDOpSeek
)

// HDDClock is the time base for lazy cache updates. Scheduler satisfies it.
type HDDClock interface {
	Now() uint64
	Hz() uint64
}

type hddZone struct {
	cylinders       uint32
	sectorsPerTrack uint32
	startSector     uint32
	endSector       uint32
	startTrack      uint32
	sectorTimeUsec  float64
}

type hddCacheSeg struct {
	id       int
	valid    bool
	lru      uint32
	lbaAddr  uint32
	raAddr   uint32
	hostAddr uint32
}

type hddCache struct {
	segments    []hddCacheSeg
	segmentSize uint32

	raOngoing   bool
	raSegment   int
	raStartTime uint64

	writeAddr      uint32
	writePending   uint32
	writeSize      uint32
	writeStartTime uint64
}

// HDDTiming is the timing state of one hard disk.
type HDDTiming struct {
	Preset *HDDPreset

	// Logical geometry as seen by the host
	Tracks, HPC, SPT uint32

	phyHeads uint32
	phyCyl   uint32
	rpm      float64

	avgRotationLatUsec float64
	fullStrokeUsec     float64
	headSwitchUsec     float64
	cylSwitchUsec      float64

	zones []hddZone
	cache hddCache

	curAddr     uint32
	curTrack    uint32
	curCylinder uint32

	maxMultiple int

	clock HDDClock
}

// NewHDDTiming builds the timing model for a disk of the given logical
// geometry using preset. Preset index 0 (RAM disk) models no mechanics.
func NewHDDTiming(tracks, hpc, spt uint32, preset *HDDPreset, clock HDDClock) *HDDTiming {
	h := &HDDTiming{Tracks: tracks, HPC: hpc, SPT: spt, clock: clock}
	h.ApplyPreset(preset)
	return h
}

func (h *HDDTiming) mechanical() bool { return h.Preset != nil && !h.Preset.RAMDisk() }

// ApplyPreset lays out physical zones and the cache for preset.
func (h *HDDTiming) ApplyPreset(p *HDDPreset) {
	if p == nil {
		p = &hddSpeedPresets[0]
	}
	h.Preset = p
	h.cache.segments = make([]hddCacheSeg, max(min(p.CacheSegments, hddMaxCacheSegs), 1))
	h.cache.segmentSize = uint32(p.CacheSegmentSize)
	h.maxMultiple = p.MaxMultiple
	h.zones = nil
	h.curAddr, h.curTrack, h.curCylinder = 0, 0, 0
	if !h.mechanical() {
		h.initCache()
		return
	}

	h.phyHeads = uint32(p.Heads)
	h.rpm = p.RPM
	revUsec := 60.0 / h.rpm * 1e6
	h.avgRotationLatUsec = revUsec / 2
	h.fullStrokeUsec = p.FullStrokeMs * 1000
	h.headSwitchUsec = p.TrackSeekMs * 1000
	h.cylSwitchUsec = p.TrackSeekMs * 1000
	h.cache.writeSize = hddWriteBufSize

	diskSectors := h.Tracks * h.HPC * h.SPT
	perSurface := uint32(math.Ceil(float64(diskSectors) / float64(h.phyHeads)))
	cylinders := uint32(math.Ceil(float64(perSurface) / float64(p.AvgSPT)))
	h.phyCyl = cylinders
	numZones := uint32(min(p.Zones, hddMaxZones))
	if numZones == 0 {
		return
	}
	perZone := cylinders / numZones

	var total uint32
	h.zones = make([]hddZone, numZones)
	for i := range numZones {
		pct := float64(i) * 100 / float64(numZones)
		var spt uint32
		if i < numZones-1 {
			// Outer zones carry more sectors per track than inner ones
			sptPct := -0.00341684*pct*pct - 0.175811*pct + 118.48
			spt = uint32(math.Ceil(float64(p.AvgSPT) * sptPct / 100))
		} else {
			spt = uint32(math.Ceil(float64(diskSectors-total) / float64(perZone*h.phyHeads)))
		}
		total += spt * perZone * h.phyHeads
		h.zones[i].cylinders = perZone
		h.zones[i].sectorsPerTrack = spt
	}
	h.initZones(revUsec)
	h.initCache()
}

func (h *HDDTiming) initZones(revUsec float64) {
	var lba, track uint32
	for i := range h.zones {
		z := &h.zones[i]
		z.startSector = lba
		z.startTrack = track
		z.sectorTimeUsec = revUsec / float64(z.sectorsPerTrack)
		tracks := z.cylinders * h.phyHeads
		lba += tracks * z.sectorsPerTrack
		z.endSector = lba - 1
		track += tracks - 1
	}
}

func (h *HDDTiming) initCache() {
	c := &h.cache
	c.raSegment = 0
	c.raOngoing = false
	c.raStartTime = 0
	c.writePending = 0
	for i := range c.segments {
		c.segments[i] = hddCacheSeg{id: i}
	}
}

// MaxMultiple is the largest READ/WRITE MULTIPLE block the preset allows.
func (h *HDDTiming) MaxMultiple() int { return h.maxMultiple }

// Zones returns the number of recording zones.
func (h *HDDTiming) Zones() int { return len(h.zones) }

// PhysicalCylinders returns the cylinder count after zoning.
func (h *HDDTiming) PhysicalCylinders() uint32 { return h.phyCyl }

func (h *HDDTiming) now() uint64 {
	if h.clock == nil {
		return 0
	}
	return h.clock.Now()
}

func (h *HDDTiming) elapsedUsec(since uint64) float64 {
	now := h.now()
	if h.clock == nil || now <= since {
		return 0
	}
	return float64(now-since) / float64(h.clock.Hz()) * 1e6
}

func (h *HDDTiming) afterUsec(us float64) uint64 {
	if h.clock == nil {
		return 0
	}
	return h.now() + uint64(us*float64(h.clock.Hz())/1e6)
}

// SeekTime estimates the microseconds to position for dst. A continuous
// access to the next sector costs only its transfer or a head/cylinder
// switch. The head position is only committed when the estimate fits in
// budget (0 means unlimited).
func (h *HDDTiming) SeekTime(dst uint32, op HDDOp, continuous bool, budget float64) float64 {
	if !h.mechanical() {
		return hddOverheadUsec
	}
	if len(h.zones) == 0 {
		panic(fmt.Errorf("%w (preset %s)", ErrHDDNoZones, h.Preset.InternalName))
	}
	z := &h.zones[len(h.zones)-1]
	for i := range h.zones {
		if h.zones[i].endSector >= dst {
			z = &h.zones[i]
			break
		}
	}

	newTrack := z.startTrack + (dst-z.startSector)/z.sectorsPerTrack
	newCyl := newTrack / h.phyHeads
	cylDiff := newCyl - h.curCylinder
	if newCyl < h.curCylinder {
		cylDiff = h.curCylinder - newCyl
	}

	continuous = continuous && dst == h.curAddr+1

	var t float64
	switch {
	case continuous && newTrack == h.curTrack:
		t = z.sectorTimeUsec
	case continuous && cylDiff == 0:
		t = h.headSwitchUsec
	case continuous:
		t = h.cylSwitchUsec
	case cylDiff == 0 && op == HDDOpSeek:
		t = hddOverheadUsec
	case cylDiff == 0:
		t = h.avgRotationLatUsec
	default:
		t = h.cylSwitchUsec + h.fullStrokeUsec*float64(cylDiff)/float64(h.phyCyl)
		if op != HDDOpSeek {
			t += h.avgRotationLatUsec
		}
	}

	if budget == 0 || t <= budget {
		h.curAddr = dst
		h.curTrack = newTrack
		h.curCylinder = newCyl
	}
	return t
}

// readAheadUpdate advances the active read-ahead by the time elapsed since
// the last command, without overrunning data the host has not consumed.
func (h *HDDTiming) readAheadUpdate() {
	c := &h.cache
	if !c.raOngoing {
		return
	}
	seg := &c.segments[c.raSegment]
	elapsed := h.elapsedUsec(c.raStartTime)
	maxRA := int64(seg.hostAddr) + int64(c.segmentSize) - int64(seg.raAddr)

	t := 0.0
	for range max(maxRA, 0) {
		t += h.SeekTime(seg.raAddr, HDDOpRead, true, elapsed-t)
		if t > elapsed {
			break
		}
		seg.raAddr++
	}
	if seg.raAddr > seg.lbaAddr+c.segmentSize {
		seg.lbaAddr += seg.raAddr - (seg.lbaAddr + c.segmentSize)
	}
}

func (h *HDDTiming) writeCacheFlush() float64 {
	c := &h.cache
	t := 0.0
	for c.writePending > 0 {
		t += h.SeekTime(c.writeAddr, HDDOpWrite, true, 0)
		c.writeAddr++
		c.writePending--
	}
	return t
}

func (h *HDDTiming) writeCacheUpdate() {
	c := &h.cache
	if c.writePending == 0 {
		return
	}
	elapsed := h.elapsedUsec(c.writeStartTime)
	t := 0.0
	for c.writePending > 0 {
		t += h.SeekTime(c.writeAddr, HDDOpWrite, true, elapsed-t)
		if t > elapsed {
			break
		}
		c.writeAddr++
		c.writePending--
	}
}

// TimingWrite returns the microseconds the host waits for a write of n
// sectors at addr. Sequential writes are absorbed by the write buffer.
func (h *HDDTiming) TimingWrite(addr, n uint32) float64 {
	if !h.mechanical() {
		return hddOverheadUsec
	}
	h.readAheadUpdate()
	h.writeCacheUpdate()
	c := &h.cache
	c.raOngoing = false

	t := 0.0
	if c.writePending > 0 && addr != c.writeAddr+c.writePending {
		t += h.writeCacheFlush()
	}
	if c.writePending == 0 {
		c.writeAddr = addr
	}
	c.writePending += n
	if c.writePending > c.writeSize {
		for range c.writePending - c.writeSize {
			t += h.SeekTime(c.writeAddr, HDDOpWrite, true, 0)
			c.writeAddr++
		}
	}
	c.writeStartTime = h.afterUsec(t)
	return t
}

// TimingRead returns the microseconds the host waits for a read of n
// sectors at addr. Hits in a cache segment only pay for sectors the
// read-ahead has not reached yet.
func (h *HDDTiming) TimingRead(addr, n uint32) float64 {
	if !h.mechanical() {
		return hddOverheadUsec
	}
	h.readAheadUpdate()
	h.writeCacheUpdate()
	t := h.writeCacheFlush()

	c := &h.cache
	active := &c.segments[0]
	hit := false
	for i := range c.segments {
		seg := &c.segments[i]
		if !seg.valid {
			active = seg
			continue
		}
		if seg.lbaAddr <= addr && seg.lbaAddr+c.segmentSize >= addr {
			seg.hostAddr = addr
			active = seg
			if addr+n > seg.raAddr {
				for range addr + n - seg.raAddr {
					t += h.SeekTime(seg.raAddr, HDDOpRead, true, 0)
					seg.raAddr++
				}
			}
			if addr+n > seg.lbaAddr+c.segmentSize {
				seg.lbaAddr += addr + n - (seg.lbaAddr + c.segmentSize)
			}
			hit = true
			break
		}
		if seg.lru > active.lru {
			active = seg
		}
	}

	if !hit {
		active.lbaAddr = addr
		active.valid = true
		active.hostAddr = addr
		active.raAddr = addr
		for i := range n {
			t += h.SeekTime(active.raAddr, HDDOpRead, i != 0, 0)
			active.raAddr++
		}
	}

	for i := range c.segments {
		c.segments[i].lru++
	}
	active.lru = 0
	c.raOngoing = true
	c.raSegment = active.id
	c.raStartTime = h.afterUsec(t)
	return t
}
