package loader

import (
	"testing"

	cfgcpu "github.com/intuitionamiga/x86cfg"
)

func TestLoadCOM_PlacesDataAfterZeroedPSP(t *testing.T) {
	bus := cfgcpu.NewSystemBus(0x20000)
	// Poison the PSP region so a failure to zero it is visible.
	for i := uint32(0); i < PSPSize; i++ {
		bus.WriteU8(cfgcpu.LinearAddr(0x1000, uint16(i)), 0xFF)
	}

	data := []byte{0xB8, 0x34, 0x12, 0x90}
	res, err := LoadCOM(bus, 0x1000, data)
	if err != nil {
		t.Fatalf("LoadCOM: %v", err)
	}
	if res.CS != 0x1000 || res.IP != PSPSize {
		t.Errorf("CS:IP got %04x:%04x, want 1000:%04x", res.CS, res.IP, PSPSize)
	}
	if res.SS != 0x1000 || res.SP != 0xFFFE {
		t.Errorf("SS:SP got %04x:%04x, want 1000:FFFE", res.SS, res.SP)
	}

	psp := bus.ReadSpan(cfgcpu.LinearAddr(0x1000, 0), PSPSize)
	for i, b := range psp {
		if b != 0 {
			t.Fatalf("PSP byte %d got %#x, want 0", i, b)
		}
	}

	got := bus.ReadSpan(cfgcpu.LinearAddr(0x1000, PSPSize), len(data))
	for i := range data {
		if got[i] != data[i] {
			t.Errorf("program byte %d got %#x, want %#x", i, got[i], data[i])
		}
	}
}

func TestLoadCOM_RejectsOversizedImage(t *testing.T) {
	bus := cfgcpu.NewSystemBus(0x20000)
	data := make([]byte, ComMaxSize+1)
	if _, err := LoadCOM(bus, 0x1000, data); err == nil {
		t.Fatal("LoadCOM should reject an image too large for one segment")
	}
}
