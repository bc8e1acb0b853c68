// (c) 2024-2026 Zayn Otley - GPLv3 or later

// Package loader implements the DOS-style program loaders named as external
// collaborators in §6/§10: COM files load flat at CS:0100 with a PSP at
// CS:0000; EXE files obey the MZ header layout and a relocation pass.
//
// These loaders sit outside the CFG CPU's own invariants (§1's "Out of
// scope, still present as supporting infrastructure") -- grounded in the
// teacher's program_executor.go prepareAndLaunch dispatch-by-type flow,
// generalized from its multi-ISA switch to a single x86 COM/EXE dispatch.
package loader

import (
	"fmt"

	cfgcpu "github.com/intuitionamiga/x86cfg"
)

// PSPSize is the fixed 256-byte DOS Program Segment Prefix preceding a
// loaded COM/EXE image.
const PSPSize = 0x100

// ComMaxSize is the largest program a single 64KB real-mode segment can
// hold after the PSP and a minimal stack reservation.
const ComMaxSize = 0x10000 - PSPSize - 2

// Result reports where a loaded image placed its entry point and initial
// stack, for the embedder to seed CPU state with.
type Result struct {
	CS, IP uint16
	SS, SP uint16
}

// LoadCOM places data flat at segment:0100 and a zeroed PSP at segment:0000,
// per §6's "COM files load flat at CS:0100 with PSP at CS:0000". The
// initial stack is set to the top of the segment, matching DOS convention.
func LoadCOM(mem cfgcpu.MemoryPort, segment uint16, data []byte) (Result, error) {
	if len(data) > ComMaxSize {
		return Result{}, fmt.Errorf("com image too large: %d bytes (max %d)", len(data), ComMaxSize)
	}
	base := cfgcpu.LinearAddr(segment, 0)
	psp := make([]byte, PSPSize)
	mem.LoadBytes(base, psp)
	mem.LoadBytes(cfgcpu.LinearAddr(segment, PSPSize), data)
	return Result{CS: segment, IP: PSPSize, SS: segment, SP: 0xFFFE}, nil
}
