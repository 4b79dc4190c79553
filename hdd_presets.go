// hdd_presets.go - Built-in hard disk speed presets

package main

import (
	"fmt"
	"slices"
	"strings"
)

// HDDPreset describes the mechanics and cache of a drive model.
type HDDPreset struct {
	Name             string
	InternalName     string
	Model            string
	Zones            int
	AvgSPT           int
	Heads            int
	RPM              float64
	FullStrokeMs     float64
	TrackSeekMs      float64
	CacheSegments    int
	CacheSegmentSize int
	MaxMultiple      int
}

// RAMDisk reports whether the preset models no mechanics at all.
func (p *HDDPreset) RAMDisk() bool { return p.InternalName == "ramdisk" }

// Validate checks a preset supplied from outside the built-in table.
func (p *HDDPreset) Validate() error {
	switch {
	case p.InternalName == "":
		return fmt.Errorf("hdd preset %q: missing internal name", p.Name)
	case p.CacheSegments < 1 || p.CacheSegmentSize < 1:
		return fmt.Errorf("hdd preset %s: cache needs at least one non-empty segment", p.InternalName)
	case p.RAMDisk():
		return nil
	case p.Heads < 1 || p.RPM <= 0 || p.AvgSPT < 1:
		return fmt.Errorf("hdd preset %s: heads, rpm and avg_spt must be positive", p.InternalName)
	}
	return nil
}

var hddSpeedPresets = []HDDPreset{
	{"RAM Disk (max. speed)", "ramdisk", "", 0, 0, 0, 0, 0, 0, 16, 128, 32},
	{"[1989] 3500 RPM", "1989_3500rpm", "", 1, 35, 2, 3500, 40, 8, 1, 16, 8},
	{"[1992] 3600 RPM", "1992_3600rpm", "", 1, 45, 2, 3600, 30, 6, 4, 16, 8},
	{"[1994] 4500 RPM", "1994_4500rpm", "", 8, 80, 4, 4500, 26, 5, 4, 32, 16},
	{"[1996] 5400 RPM", "1996_5400rpm", "", 16, 135, 4, 5400, 24, 3, 4, 64, 16},
	{"[1997] 5400 RPM", "1997_5400rpm", "", 16, 185, 6, 5400, 20, 2.5, 8, 64, 32},
	{"[1998] 5400 RPM", "1998_5400rpm", "", 16, 300, 8, 5400, 20, 2, 8, 128, 32},
	{"[2000] 7200 RPM", "2000_7200rpm", "", 16, 350, 6, 7200, 15, 2, 16, 128, 32},
	{"[ESDI] Fujitsu M2263E", "M2263E", "FUJITSU M2263E", 1, 160, 8, 3600, 30, 4, 4, 16, 1},
	{"[PIO IDE] IBM WDA-L42", "WDAL42", "IBM-WDA-L42", 1, 85, 2, 3600, 33, 2.5, 1, 32, 1},
	{"[ATA-1] Conner CP3024", "CP3024", "Conner Peripherals 20MB - CP3024", 1, 33, 2, 3500, 50, 8, 1, 8, 8},
	{"[ATA-1] Conner CP3044", "CP3044", "Conner Peripherals 40MB - CP3044", 1, 40, 2, 3500, 50, 8, 1, 8, 8},
	{"[ATA-1] Conner CP3104", "CP3104", "Conner Peripherals 104MB - CP3104", 1, 33, 8, 3500, 45, 8, 4, 8, 8},
	{"[ATA-1] IBM H3256-A3", "H3256A3", "IBM-H3256-A3", 1, 140, 2, 3600, 32, 4, 4, 96, 8},
	{"[ATA-1] Maxtor 7131AT", "7131AT", "Maxtor 7131AT", 2, 154, 2, 3551, 27, 4.5, 1, 64, 8},
	{"[ATA-1] Maxtor 7213AT", "7213AT", "Maxtor 7213AT", 4, 155, 4, 3551, 28, 6.5, 1, 64, 8},
	{"[ATA-1] Maxtor 7245AT", "7245AT", "Maxtor 7245AT", 4, 149, 4, 3551, 27, 4.4, 8, 64, 16},
	{"[ATA-2] IBM DBOA-2720", "DBOA2720", "IBM-DBOA-2720", 2, 135, 2, 4000, 30, 5, 4, 64, 16},
	{"[ATA-2] Maxtor 7850AV", "7850AV", "Maxtor 7850AV", 4, 120, 4, 3551, 31, 3.7, 4, 64, 8},
	{"[ATA-2] Maxtor 71336AP", "71336AP", "Maxtor 71336AP", 4, 105, 4, 4480, 12, 3.4, 8, 128, 16},
	{"[ATA-2] Quantum Bigfoot 1.2AT", "BF12A011", "QUANTUM BIGFOOT BF1.2A", 2, 155, 2, 3600, 30, 3.5, 4, 128, 16},
	{"[ATA-2] Quantum Bigfoot (CY4320A)", "CY4320A", "QUANTUM BIGFOOT_CY4320A", 2, 130, 2, 4000, 29, 2, 8, 128, 32},
	{"[ATA-2] Quantum Fireball CR4.3AT", "CR43A013", "QUANTUM FIREBALL CR4.3A", 2, 110, 2, 5400, 22, 2.5, 8, 512, 32},
	{"[ATA-2] Samsung PLS-31274A", "PLS31274A", "SAMSUNG PLS-31274A", 4, 110, 4, 4500, 45, 4.5, 4, 256, 8},
	{"[ATA-2] Samsung Winner-1", "WNR31601A", "SAMSUNG WNR-31601A", 8, 110, 4, 5400, 22, 3, 8, 128, 16},
	{"[ATA-2] Seagate Medalist (ST3780A)", "ST3780A", "ST3780A", 8, 120, 4, 4500, 25, 3.5, 4, 256, 16},
	{"[ATA-2] Seagate Medalist (ST31220A)", "ST31220A", "ST31220A", 8, 140, 6, 4500, 27, 3.5, 4, 256, 16},
	{"[ATA-2] Seagate Medalist 210xe", "ST3250A", "ST3250A", 4, 148, 2, 3811, 30, 4.1, 8, 120, 8},
	{"[ATA-2] Seagate Medalist 275xe", "ST3295A", "ST3295A", 4, 130, 2, 3811, 30, 3.4, 3, 120, 8},
	{"[ATA-2] Seagate Medalist 1270SL", "ST51270A", "ST51270A", 8, 105, 3, 5736, 25, 2, 8, 128, 16},
	{"[ATA-2] Western Digital Caviar 2850", "AC2850", "WDC WDAC2850-00F", 4, 115, 2, 4500, 12, 4, 8, 128, 8},
	{"[ATA-2] Western Digital Caviar 31200", "WDAC31200", "WDC WDAC31200-00F", 8, 110, 4, 4500, 12, 4, 8, 64, 16},
	{"[ATA-3] Samsung Winner 5X", "WU33205A", "SAMSUNG WU33205A", 16, 100, 4, 5400, 20, 3, 8, 128, 16},
	{"[ATA-4] Fujitsu MPD3043AT", "MPD3043AT", "FUJITSU MPD3043AT", 5, 95, 2, 5400, 29, 1.5, 8, 512, 16},
	{"[ATA-4] Fujitsu MPD3064AT", "MPD3064AT", "FUJITSU MPD3064AT", 7, 95, 3, 5400, 30, 1.5, 8, 512, 16},
	{"[ATA-4] Maxtor DiamondMax 2160", "86480D6", "Maxtor 86480D6", 8, 97, 4, 5200, 18, 1, 8, 512, 32},
	{"[ATA-4] Maxtor DiamondMax 2880", "90432D3", "Maxtor 90432D3", 16, 90, 3, 5400, 18, 1, 8, 256, 32},
	{"[ATA-4] Quantum Bigfoot TX4.3AT", "TX043A011", "QUANTUM BIGFOOT TX4.3A", 2, 120, 2, 4000, 30, 2.5, 8, 128, 32},
	{"[ATA-4] Toshiba MK4006MAV", "MK4006MAV", "TOSHIBA MK4006MAV", 8, 130, 6, 4200, 25, 3, 8, 512, 32},
	{"[ATA-4] Western Digital Caviar 33200", "AC33200", "WDC AC33200-00LA", 16, 110, 5, 5200, 40, 3, 8, 256, 32},
	{"[ATA-5] Samsung SpinPoint V6800", "SV0682D", "SAMSUNG SV0682D", 2, 95, 2, 5400, 18, 1.3, 16, 512, 32},
	{"[ATA-5] Western Digital Caviar 102AA", "WD102AA", "WDC WD102AA-00ANA0", 8, 95, 8, 5400, 12, 1.5, 16, 512, 32},
}

// HDDCatalog is the set of presets a machine can choose from: the built-in
// table plus any imported catalog entries.
type HDDCatalog struct {
	presets []HDDPreset
}

// NewHDDCatalog returns a catalog holding the built-in presets. Index 0 is
// the RAM disk.
func NewHDDCatalog() *HDDCatalog {
	return &HDDCatalog{presets: slices.Clone(hddSpeedPresets)}
}

// Presets returns the catalog entries in table order.
func (c *HDDCatalog) Presets() []HDDPreset { return c.presets }

// Lookup finds a preset by internal name, case-insensitively.
func (c *HDDCatalog) Lookup(name string) (*HDDPreset, error) {
	for i := range c.presets {
		if strings.EqualFold(c.presets[i].InternalName, name) {
			return &c.presets[i], nil
		}
	}
	return nil, fmt.Errorf("unknown hdd preset %q", name)
}

// Merge adds presets, replacing entries with the same internal name.
func (c *HDDCatalog) Merge(presets []HDDPreset) {
	for _, p := range presets {
		i := slices.IndexFunc(c.presets, func(q HDDPreset) bool {
			return strings.EqualFold(q.InternalName, p.InternalName)
		})
		if i >= 0 {
			c.presets[i] = p
		} else {
			c.presets = append(c.presets, p)
		}
	}
}
