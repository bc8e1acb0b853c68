// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// IRQLine is the lock-protected interrupt-request register shared with
// peripheral goroutines (§5 shared resources (b)): SetIRQ is called from a
// device's own goroutine; the executor loop reads-and-clears it only at
// instruction boundaries.
type IRQLine struct {
	mu      sync.Mutex
	pending bool
	vector  byte
}

// SetIRQ asserts an interrupt request for the given vector. Matches the
// teacher's SetIRQ/atomic-guarded IRQ register in cpu_x86.go, generalized
// to carry an explicit vector instead of a fixed PIC line.
func (l *IRQLine) SetIRQ(vector byte) {
	l.mu.Lock()
	l.pending = true
	l.vector = vector
	l.mu.Unlock()
}

// takeAndClear reads-and-clears the pending request atomically, returning
// whether one was pending and, if so, its vector.
func (l *IRQLine) takeAndClear() (byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.pending {
		return 0, false
	}
	l.pending = false
	return l.vector, true
}

// CallbackTable dispatches the FE 38 NN host-callback opcode (§4.4, §6).
type CallbackTable interface {
	Dispatch(index byte, h *Helper) error
}

// Executor is the Executor Loop component (C12): it owns State, the CFG
// Node Store, the Memory Port and the IRQ line exclusively, and drives
// steps until Running() is cleared or the cycle budget is exhausted.
//
// Grounded in the teacher's CPUX86Runner.Run()/Execute() pair in
// cpu_x86_runner.go: the `for cpu.Running() && !cpu.Halted { cpu.Step() }`
// shape plus MIPS perf reporting, with CFG fetch-or-reuse and selector
// interposition spliced between fetch and execute where the teacher
// re-decodes unconditionally every step.
type Executor struct {
	State     *State
	Mem       MemoryPort
	Store     *Store
	Callbacks CallbackTable
	IRQ       *IRQLine

	helper *Helper

	// PerfEnabled mirrors the teacher's MIPS-reporting toggle.
	PerfEnabled      bool
	InstructionCount uint64
	perfStart        time.Time
	lastPerfReport   time.Time

	log *log.Logger
}

// NewExecutor wires a fresh executor loop over the given state/memory/store.
// parse is supplied to NewStore by the caller; Executor never parses
// directly, it only drives Store.Fetch.
func NewExecutor(st *State, mem MemoryPort, store *Store, cb CallbackTable, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{
		State:     st,
		Mem:       mem,
		Store:     store,
		Callbacks: cb,
		IRQ:       &IRQLine{},
		helper:    NewHelper(st, mem),
		log:       logger,
	}
}

// Run drives the loop to completion (Running()==false or Paused()==true) or
// until budget cycles have elapsed, matching the teacher's Run(). budget<=0
// means unlimited (the embedder controls the budget per §5).
func (e *Executor) Run(budget int64) error {
	if e.PerfEnabled {
		e.perfStart = time.Now()
		e.lastPerfReport = e.perfStart
		e.InstructionCount = 0
	}
	var spent int64
	for e.State.Running() && !e.State.Paused() {
		if budget > 0 && spent >= budget {
			return nil
		}
		if err := e.Step(); err != nil {
			return err
		}
		spent++
		e.reportPerf()
	}
	return nil
}

func (e *Executor) reportPerf() {
	if !e.PerfEnabled {
		return
	}
	e.InstructionCount++
	if e.InstructionCount&0xFFFFF != 0 {
		return
	}
	now := time.Now()
	if now.Sub(e.lastPerfReport) < time.Second {
		return
	}
	elapsed := now.Sub(e.perfStart).Seconds()
	mips := float64(e.InstructionCount) / elapsed / 1_000_000
	e.log.Debug("executor throughput", "mips", mips, "instructions", e.InstructionCount)
	e.lastPerfReport = now
}

// Step performs exactly one CPU step per §4.4's state machine: fetch,
// decode-or-reuse, execute, resolve successor, check interrupts.
func (e *Executor) Step() error {
	e.pollInterrupt()

	cs, ip := e.State.CSIP()
	addr := LinearAddr(cs, ip)

	node, err := e.Store.Fetch(addr)
	if err != nil {
		return e.handleParseFailure(addr, err)
	}

	var inst Instruction
	if node.IsSelector() {
		inst, err = e.Store.Select(addr)
		if err != nil {
			// No-Matching-Candidate is fatal per §4.3/§7: unwind past the loop.
			var vf *VmFault
			if errors.As(err, &vf) {
				st := e.State
				e.log.Error("graph consistency error", "addr", addrHex(addr), "err", err,
					"cs", cs, "ip", ip, "ss", st.GetSeg(SegSS), "ds", st.GetSeg(SegDS), "es", st.GetSeg(SegES),
					"eax", st.EAX, "ebx", st.EBX, "ecx", st.ECX, "edx", st.EDX,
					"esi", st.ESI, "edi", st.EDI, "ebp", st.EBP, "esp", st.ESP,
					"eflags", st.EFlags, "cycles", st.Cycles,
					"nodes", len(e.Store.Nodes()), "selectors", e.Store.SelectorCount())
				e.State.SetRunning(false)
				return vf
			}
			return err
		}
	} else {
		inst = node.Live
	}

	e.helper.reset()
	e.helper.Mem = e.Mem
	e.helper.Callbacks = e.Callbacks
	kind, execErr := inst.Execute(e.helper)
	if execErr != nil {
		var ex *CpuException
		if errors.As(execErr, &ex) {
			e.enterException(ex)
			return nil
		}
		var vf *VmFault
		if errors.As(execErr, &vf) {
			e.State.SetRunning(false)
			return vf
		}
		var ge *GuestError
		if !errors.As(execErr, &ge) {
			return execErr
		}
		// §7: GuestError is reported, not fatal -- log it and continue with
		// the benign successor the instruction already computed.
		e.log.Warn("guest error", "addr", addrHex(addr), "err", ge.Error())
	}

	if e.helper.HasNext {
		e.Store.AddEdge(addr, e.helper.NextKind, e.helper.NextAddr)
	} else {
		e.Store.AddEdge(addr, kind, LinearAddr(e.State.GetSeg(SegCS), e.State.IP()))
	}
	e.State.Cycles++
	return nil
}

// handleParseFailure converts a parser error at a brand new address into
// #UD, per §4.4's "Parser errors at a new address propagate as #UD".
func (e *Executor) handleParseFailure(addr uint32, err error) error {
	var ex *CpuException
	if errors.As(err, &ex) {
		e.enterException(ex)
		return nil
	}
	e.State.SetRunning(false)
	return newVmFault("parse failure at "+addrHex(addr), err)
}

// enterException performs the IVT vectoring an executor raised as a
// CpuException: push the interrupt frame, then fetch CS:IP from the
// table entry, exactly as a hardware/software interrupt would (§4.4,
// §8 seed scenario 4 and 6).
func (e *Executor) enterException(ex *CpuException) {
	off, seg := IVTEntry(e.Mem, ex.Vector)
	if off == 0 && seg == 0 {
		e.log.Error("unhandled cpu exception, no ivt entry", "vector", ex.Vector, "err", ex.Error())
		e.State.SetRunning(false)
		return
	}
	e.helper.PushInterruptFrame()
	e.State.SetSeg(SegCS, seg)
	e.State.SetIP(off)
	target := LinearAddr(seg, off)
	e.Store.AddEdge(LinearAddr(e.State.GetSeg(SegCS), e.State.IP()), SuccessorTaken, target)
}

// pollInterrupt is called between steps (§4.4, §5 suspension point (ii)):
// if IF=1 and a hardware IRQ is pending, push flags/CS/IP, clear IF/TF, and
// jump through the IVT.
func (e *Executor) pollInterrupt() {
	if !e.State.IF() {
		return
	}
	vector, ok := e.IRQ.takeAndClear()
	if !ok {
		return
	}
	e.helper.reset()
	e.helper.Mem = e.Mem
	e.helper.EnterInterrupt(vector)
}

