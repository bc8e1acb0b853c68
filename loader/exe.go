// (c) 2024-2026 Zayn Otley - GPLv3 or later

package loader

import (
	"encoding/binary"
	"fmt"

	cfgcpu "github.com/intuitionamiga/x86cfg"
)

// mzHeaderSize is the fixed portion of the MZ header preceding the
// relocation table, per §6's field list.
const mzHeaderSize = 28

// MZHeader is the fixed-size prefix of a DOS EXE file, named after §6's
// field list verbatim (pages, bytes-in-last-page, header-size-in-
// paragraphs, min/max alloc, init SS/SP/IP/CS, relocation-table-offset,
// reloc_items).
type MZHeader struct {
	Signature      uint16
	BytesLastPage  uint16
	Pages          uint16
	RelocItems     uint16
	HeaderParas    uint16
	MinAlloc       uint16
	MaxAlloc       uint16
	InitSS         uint16
	InitSP         uint16
	Checksum       uint16
	InitIP         uint16
	InitCS         uint16
	RelocTableOff  uint16
	OverlayNumber  uint16
}

const mzSignature = 0x5A4D // "MZ"

// ParseMZHeader decodes the fixed 28-byte MZ header, per §6.
func ParseMZHeader(data []byte) (MZHeader, error) {
	if len(data) < mzHeaderSize {
		return MZHeader{}, fmt.Errorf("exe image too small for mz header: %d bytes", len(data))
	}
	h := MZHeader{
		Signature:     binary.LittleEndian.Uint16(data[0:2]),
		BytesLastPage: binary.LittleEndian.Uint16(data[2:4]),
		Pages:         binary.LittleEndian.Uint16(data[4:6]),
		RelocItems:    binary.LittleEndian.Uint16(data[6:8]),
		HeaderParas:   binary.LittleEndian.Uint16(data[8:10]),
		MinAlloc:      binary.LittleEndian.Uint16(data[10:12]),
		MaxAlloc:      binary.LittleEndian.Uint16(data[12:14]),
		InitSS:        binary.LittleEndian.Uint16(data[14:16]),
		InitSP:        binary.LittleEndian.Uint16(data[16:18]),
		Checksum:      binary.LittleEndian.Uint16(data[18:20]),
		InitIP:        binary.LittleEndian.Uint16(data[20:22]),
		InitCS:        binary.LittleEndian.Uint16(data[22:24]),
		RelocTableOff: binary.LittleEndian.Uint16(data[24:26]),
		OverlayNumber: binary.LittleEndian.Uint16(data[26:28]),
	}
	if h.Signature != mzSignature {
		return MZHeader{}, fmt.Errorf("not an mz executable: signature %#04x", h.Signature)
	}
	return h, nil
}

// imageSize computes the file length described by pages/bytes-in-last-page;
// that length includes the header.
func (h MZHeader) imageSize() int {
	size := int(h.Pages) * 512
	if h.BytesLastPage != 0 {
		size -= 512 - int(h.BytesLastPage)
	}
	return size
}

// headerBytes is the full header size including the relocation table, in bytes.
func (h MZHeader) headerBytes() int { return int(h.HeaderParas) * 16 }

// relocEntry is one (offset, segment) pair naming a location, relative to
// the load module, that must have the chosen start segment added to it.
type relocEntry struct {
	offset, segment uint16
}

func (h MZHeader) relocations(data []byte) ([]relocEntry, error) {
	out := make([]relocEntry, 0, h.RelocItems)
	pos := int(h.RelocTableOff)
	for i := 0; i < int(h.RelocItems); i++ {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("truncated relocation table at entry %d", i)
		}
		out = append(out, relocEntry{
			offset:  binary.LittleEndian.Uint16(data[pos : pos+2]),
			segment: binary.LittleEndian.Uint16(data[pos+2 : pos+4]),
		})
		pos += 4
	}
	return out, nil
}

// LoadEXE parses the MZ header, loads the image at loadSegment:0000, applies
// every relocation entry (adding loadSegment to the word at each named
// location, per §6), and returns the program's initial CS:IP/SS:SP with
// loadSegment folded into InitCS/InitSS (both are relative to the load
// module, same as relocation targets).
func LoadEXE(mem cfgcpu.MemoryPort, loadSegment uint16, data []byte) (Result, error) {
	hdr, err := ParseMZHeader(data)
	if err != nil {
		return Result{}, err
	}
	headerLen := hdr.headerBytes()
	if headerLen > len(data) {
		return Result{}, fmt.Errorf("mz header size exceeds file length")
	}
	imgLen := hdr.imageSize()
	if headerLen+imgLen > len(data) {
		imgLen = len(data) - headerLen
	}
	image := data[headerLen : headerLen+imgLen]

	relocs, err := hdr.relocations(data)
	if err != nil {
		return Result{}, err
	}
	patched := make([]byte, len(image))
	copy(patched, image)
	for _, r := range relocs {
		linear := cfgcpu.LinearAddr(r.segment, r.offset)
		if int(linear)+2 > len(patched) {
			continue
		}
		word := binary.LittleEndian.Uint16(patched[linear : linear+2])
		binary.LittleEndian.PutUint16(patched[linear:linear+2], word+loadSegment)
	}

	mem.LoadBytes(cfgcpu.LinearAddr(loadSegment, 0), patched)

	return Result{
		CS: hdr.InitCS + loadSegment,
		IP: hdr.InitIP,
		SS: hdr.InitSS + loadSegment,
		SP: hdr.InitSP,
	}, nil
}

// DetectType reports whether data looks like an MZ EXE (true) or should be
// treated as a flat COM image (false), mirroring the teacher's
// detectExecType extension/signature sniff.
func DetectType(data []byte) bool {
	return len(data) >= 2 && data[0] == 'M' && data[1] == 'Z'
}
