// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "sync/atomic"

// Flag bit positions within EFLAGS, matching the real x86 layout.
const (
	FlagCF = 1 << 0
	FlagPF = 1 << 2
	FlagAF = 1 << 4
	FlagZF = 1 << 6
	FlagSF = 1 << 7
	FlagTF = 1 << 8
	FlagIF = 1 << 9
	FlagDF = 1 << 10
	FlagOF = 1 << 11
)

// Segment register indices, in the order ModR/M segment-override prefixes
// and the default-segment-per-memory-offset-type rule (§4.6) refer to them.
const (
	SegES = iota
	SegCS
	SegSS
	SegDS
	SegFS
	SegGS
)

// State is the CPU State component (C1): register file, flags, instruction
// pointer and cycle counter. AX/AH/AL and their siblings are views into the
// corresponding 32-bit register and are never stored separately -- mutating
// EAX is visible through AX/AH/AL immediately and vice versa.
type State struct {
	EAX, EBX, ECX, EDX uint32
	ESI, EDI, EBP, ESP uint32
	EIP                uint32
	EFlags             uint32

	segs [6]uint16

	Cycles uint64

	running atomic.Bool
	paused  atomic.Bool
}

// NewState returns a CPU state reset to its post-boot real-mode values.
func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset restores real-mode boot defaults: flags with the reserved bit 1 set,
// interrupts masked, all registers and segment registers zeroed, running
// and paused cleared.
func (s *State) Reset() {
	s.EAX, s.EBX, s.ECX, s.EDX = 0, 0, 0, 0
	s.ESI, s.EDI, s.EBP, s.ESP = 0, 0, 0, 0
	s.EIP = 0
	s.EFlags = 0x0002
	s.segs = [6]uint16{}
	s.Cycles = 0
	s.running.Store(false)
	s.paused.Store(false)
}

func (s *State) Running() bool    { return s.running.Load() }
func (s *State) SetRunning(v bool) { s.running.Store(v) }
func (s *State) Paused() bool     { return s.paused.Load() }
func (s *State) SetPaused(v bool)  { s.paused.Store(v) }

// --- 16-bit register aliases over the 32-bit registers ---

func (s *State) AX() uint16     { return uint16(s.EAX) }
func (s *State) SetAX(v uint16) { s.EAX = s.EAX&0xFFFF0000 | uint32(v) }
func (s *State) AL() byte       { return byte(s.EAX) }
func (s *State) SetAL(v byte)   { s.EAX = s.EAX&0xFFFFFF00 | uint32(v) }
func (s *State) AH() byte       { return byte(s.EAX >> 8) }
func (s *State) SetAH(v byte)   { s.EAX = s.EAX&0xFFFF00FF | uint32(v)<<8 }

func (s *State) BX() uint16     { return uint16(s.EBX) }
func (s *State) SetBX(v uint16) { s.EBX = s.EBX&0xFFFF0000 | uint32(v) }
func (s *State) BL() byte       { return byte(s.EBX) }
func (s *State) SetBL(v byte)   { s.EBX = s.EBX&0xFFFFFF00 | uint32(v) }
func (s *State) BH() byte       { return byte(s.EBX >> 8) }
func (s *State) SetBH(v byte)   { s.EBX = s.EBX&0xFFFF00FF | uint32(v)<<8 }

func (s *State) CX() uint16     { return uint16(s.ECX) }
func (s *State) SetCX(v uint16) { s.ECX = s.ECX&0xFFFF0000 | uint32(v) }
func (s *State) CL() byte       { return byte(s.ECX) }
func (s *State) SetCL(v byte)   { s.ECX = s.ECX&0xFFFFFF00 | uint32(v) }
func (s *State) CH() byte       { return byte(s.ECX >> 8) }
func (s *State) SetCH(v byte)   { s.ECX = s.ECX&0xFFFF00FF | uint32(v)<<8 }

func (s *State) DX() uint16     { return uint16(s.EDX) }
func (s *State) SetDX(v uint16) { s.EDX = s.EDX&0xFFFF0000 | uint32(v) }
func (s *State) DL() byte       { return byte(s.EDX) }
func (s *State) SetDL(v byte)   { s.EDX = s.EDX&0xFFFFFF00 | uint32(v) }
func (s *State) DH() byte       { return byte(s.EDX >> 8) }
func (s *State) SetDH(v byte)   { s.EDX = s.EDX&0xFFFF00FF | uint32(v)<<8 }

func (s *State) SI() uint16     { return uint16(s.ESI) }
func (s *State) SetSI(v uint16) { s.ESI = s.ESI&0xFFFF0000 | uint32(v) }
func (s *State) DI() uint16     { return uint16(s.EDI) }
func (s *State) SetDI(v uint16) { s.EDI = s.EDI&0xFFFF0000 | uint32(v) }
func (s *State) BP() uint16     { return uint16(s.EBP) }
func (s *State) SetBP(v uint16) { s.EBP = s.EBP&0xFFFF0000 | uint32(v) }
func (s *State) SP() uint16     { return uint16(s.ESP) }
func (s *State) SetSP(v uint16) { s.ESP = s.ESP&0xFFFF0000 | uint32(v) }
func (s *State) IP() uint16     { return uint16(s.EIP) }
func (s *State) SetIP(v uint16) { s.EIP = s.EIP&0xFFFF0000 | uint32(v) }

// getReg8/setReg8 index the legacy 8-bit register encoding: AL,CL,DL,BL,AH,CH,DH,BH.
func (s *State) getReg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return s.AL()
	case 1:
		return s.CL()
	case 2:
		return s.DL()
	case 3:
		return s.BL()
	case 4:
		return s.AH()
	case 5:
		return s.CH()
	case 6:
		return s.DH()
	default:
		return s.BH()
	}
}

func (s *State) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		s.SetAL(v)
	case 1:
		s.SetCL(v)
	case 2:
		s.SetDL(v)
	case 3:
		s.SetBL(v)
	case 4:
		s.SetAH(v)
	case 5:
		s.SetCH(v)
	case 6:
		s.SetDH(v)
	default:
		s.SetBH(v)
	}
}

// getReg16/setReg16 index the legacy 16-bit register encoding: AX,CX,DX,BX,SP,BP,SI,DI.
func (s *State) getReg16(idx byte) uint16 {
	switch idx & 7 {
	case 0:
		return s.AX()
	case 1:
		return s.CX()
	case 2:
		return s.DX()
	case 3:
		return s.BX()
	case 4:
		return s.SP()
	case 5:
		return s.BP()
	case 6:
		return s.SI()
	default:
		return s.DI()
	}
}

func (s *State) setReg16(idx byte, v uint16) {
	switch idx & 7 {
	case 0:
		s.SetAX(v)
	case 1:
		s.SetCX(v)
	case 2:
		s.SetDX(v)
	case 3:
		s.SetBX(v)
	case 4:
		s.SetSP(v)
	case 5:
		s.SetBP(v)
	case 6:
		s.SetSI(v)
	default:
		s.SetDI(v)
	}
}

// getReg32/setReg32 index the legacy 32-bit register encoding: EAX,ECX,EDX,EBX,ESP,EBP,ESI,EDI.
func (s *State) getReg32(idx byte) uint32 {
	switch idx & 7 {
	case 0:
		return s.EAX
	case 1:
		return s.ECX
	case 2:
		return s.EDX
	case 3:
		return s.EBX
	case 4:
		return s.ESP
	case 5:
		return s.EBP
	case 6:
		return s.ESI
	default:
		return s.EDI
	}
}

func (s *State) setReg32(idx byte, v uint32) {
	switch idx & 7 {
	case 0:
		s.EAX = v
	case 1:
		s.ECX = v
	case 2:
		s.EDX = v
	case 3:
		s.EBX = v
	case 4:
		s.ESP = v
	case 5:
		s.EBP = v
	case 6:
		s.ESI = v
	default:
		s.EDI = v
	}
}

func (s *State) Reg(idx byte, width int) uint32 {
	switch width {
	case 8:
		return uint32(s.getReg8(idx))
	case 16:
		return uint32(s.getReg16(idx))
	default:
		return s.getReg32(idx)
	}
}

func (s *State) SetReg(idx byte, width int, v uint32) {
	switch width {
	case 8:
		s.setReg8(idx, byte(v))
	case 16:
		s.setReg16(idx, uint16(v))
	default:
		s.setReg32(idx, v)
	}
}

func (s *State) GetSeg(idx int) uint16     { return s.segs[idx] }
func (s *State) SetSeg(idx int, v uint16)  { s.segs[idx] = v }

// --- flags ---

func (s *State) getFlag(mask uint32) bool   { return s.EFlags&mask != 0 }
func (s *State) setFlag(mask uint32, v bool) {
	if v {
		s.EFlags |= mask
	} else {
		s.EFlags &^= mask
	}
}

func (s *State) CF() bool   { return s.getFlag(FlagCF) }
func (s *State) SetCF(v bool) { s.setFlag(FlagCF, v) }
func (s *State) ZF() bool   { return s.getFlag(FlagZF) }
func (s *State) SetZF(v bool) { s.setFlag(FlagZF, v) }
func (s *State) SF() bool   { return s.getFlag(FlagSF) }
func (s *State) SetSF(v bool) { s.setFlag(FlagSF, v) }
func (s *State) OF() bool   { return s.getFlag(FlagOF) }
func (s *State) SetOF(v bool) { s.setFlag(FlagOF, v) }
func (s *State) PF() bool   { return s.getFlag(FlagPF) }
func (s *State) SetPF(v bool) { s.setFlag(FlagPF, v) }
func (s *State) AF() bool   { return s.getFlag(FlagAF) }
func (s *State) SetAF(v bool) { s.setFlag(FlagAF, v) }
func (s *State) DF() bool   { return s.getFlag(FlagDF) }
func (s *State) SetDF(v bool) { s.setFlag(FlagDF, v) }
func (s *State) IF() bool   { return s.getFlag(FlagIF) }
func (s *State) SetIF(v bool) { s.setFlag(FlagIF, v) }
func (s *State) TF() bool   { return s.getFlag(FlagTF) }
func (s *State) SetTF(v bool) { s.setFlag(FlagTF, v) }

// CS and IP together name the node this CPU step is about to fetch.
func (s *State) CSIP() (cs, ip uint16) { return s.segs[SegCS], s.IP() }

// LinearAddr computes the 20-bit-wrapped real-mode linear address for a
// segmented address, per the Data Model's segmented-address invariant.
func LinearAddr(seg, off uint16) uint32 {
	return (uint32(seg)*16 + uint32(off)) & 0xFFFFF
}
