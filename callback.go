// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import (
	"github.com/charmbracelet/log"
)

// Callback names the demo-level BIOS/DOS services this repository actually
// implements (§6, §10): enough to make the seed scenarios and a trivial
// "hello world" COM program observable without building a full BIOS.
type Callback byte

const (
	// CallbackWriteChar writes AL to stdout (simulating INT 21h/AH=02h
	// "write character" or INT 10h/AH=0Eh teletype output).
	CallbackWriteChar Callback = iota
	// CallbackExitProgram halts the CPU (simulating INT 21h/AH=4Ch).
	CallbackExitProgram
)

// HostCallbacks is the demo CLI's CallbackTable implementation (§10): a
// small index->func registry, grounded in the teacher's dispatch-table
// idiom (opcodeTable/baseOps) but indexed by callback byte instead of
// opcode byte.
type HostCallbacks struct {
	handlers map[byte]func(h *Helper) error
	out      func(b byte)
	log      *log.Logger
}

// NewHostCallbacks builds the demo callback table. write receives each
// character the guest program outputs via CallbackWriteChar; pass nil to
// discard it.
func NewHostCallbacks(write func(b byte), logger *log.Logger) *HostCallbacks {
	if logger == nil {
		logger = log.Default()
	}
	t := &HostCallbacks{handlers: make(map[byte]func(h *Helper) error), out: write, log: logger}
	t.Register(byte(CallbackWriteChar), t.writeChar)
	t.Register(byte(CallbackExitProgram), t.exitProgram)
	return t
}

// Register adds or replaces the handler for a callback index, letting an
// embedder extend the table with its own BIOS/DOS service simulations
// without forking this package.
func (t *HostCallbacks) Register(index byte, fn func(h *Helper) error) {
	t.handlers[index] = fn
}

// Dispatch implements CallbackTable: looks up index, invokes it, and
// reports (not aborts) an unregistered index as a GuestError per §7's
// "unsupported BIOS sub-function" policy.
func (t *HostCallbacks) Dispatch(index byte, h *Helper) error {
	fn, ok := t.handlers[index]
	if !ok {
		t.log.Warn("unregistered callback invoked", "index", index)
		return newGuestError("callback index not registered: " + addrHex(uint32(index)))
	}
	return fn(h)
}

func (t *HostCallbacks) writeChar(h *Helper) error {
	if t.out != nil {
		t.out(h.State.AL())
	}
	return nil
}

func (t *HostCallbacks) exitProgram(h *Helper) error {
	h.State.SetRunning(false)
	return nil
}

// EraseCallback rewrites the FE 38 NN opcode at addr back to CD NN 90
// (INT NN + NOP), per §6's disassembly-tooling erasure rule. The CFG store
// observes this as ordinary self-modifying-code divergence on next fetch.
func EraseCallback(mem MemoryPort, addr uint32) {
	index := mem.ReadU8(addr + 2)
	mem.WriteU8(addr, 0xCD)
	mem.WriteU8(addr+1, index)
	mem.WriteU8(addr+2, 0x90)
}

// PlantCallback writes the FE 38 NN opcode at addr, the inverse of
// EraseCallback, used by loaders/tests to install a host hook into guest
// memory.
func PlantCallback(mem MemoryPort, addr uint32, index byte) {
	mem.WriteU8(addr, 0xFE)
	mem.WriteU8(addr+1, callbackModRMByte)
	mem.WriteU8(addr+2, index)
}
