package cfgcpu

import "testing"

// newTestMachine builds a bus large enough to hold a real-mode IVT at
// linear 0 plus a program loaded at CS:IP = 0x1000:0x0000, the address used
// by every seed scenario in spec §8.
func newTestMachine() (*SystemBus, *State, *Store, *Executor) {
	bus := NewSystemBus(0x20000)
	st := NewState()
	st.SetSeg(SegCS, 0x1000)
	st.SetSeg(SegDS, 0x1000)
	st.SetSeg(SegES, 0x1000)
	st.SetSeg(SegSS, 0x1000)
	st.SetIP(0)
	st.SetSP(0xFFFE)
	st.SetRunning(true)
	store := NewStore(bus, ParseInstruction)
	exec := NewExecutor(st, bus, store, nil, nil)
	return bus, st, store, exec
}

func seedIVT(bus *SystemBus, vector byte, seg, off uint16) {
	base := uint32(vector) * 4
	bus.WriteU16(base, off)
	bus.WriteU16(base+2, seg)
}

// Seed scenario 1: B8 34 12 at CS:IP=1000:0000 executes once to AX=0x1234,
// IP=0x0003, with a single fall-through edge recorded.
func TestSeedScenario1_MovRegImmBasic(t *testing.T) {
	bus, st, store, exec := newTestMachine()
	bus.WriteU8(0x10000, 0xB8)
	bus.WriteU16(0x10001, 0x1234)

	if err := exec.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st.AX() != 0x1234 {
		t.Errorf("AX got %#04x, want 0x1234", st.AX())
	}
	if st.IP() != 0x0003 {
		t.Errorf("IP got %#04x, want 0x0003", st.IP())
	}
	edges := store.Edges()
	if len(edges) != 1 {
		t.Fatalf("edge count got %d, want 1", len(edges))
	}
	if edges[0].Kind != SuccessorFallThrough {
		t.Errorf("edge kind got %s, want fall-through", edges[0].Kind)
	}
}

// Seed scenario 2: overwriting the low immediate byte (0x34 -> 0x90) must
// not diverge the CFG (the immediate is wildcarded out of MovRegImm's
// signature) but must still be visible to execution: AX=0x1290.
func TestSeedScenario2_SelfModifyingImmediate(t *testing.T) {
	bus, st, store, exec := newTestMachine()
	bus.WriteU8(0x10000, 0xB8)
	bus.WriteU16(0x10001, 0x1234)

	if err := exec.Step(); err != nil {
		t.Fatalf("first Step: %v", err)
	}
	if st.AX() != 0x1234 {
		t.Fatalf("AX after first step got %#04x, want 0x1234", st.AX())
	}

	bus.WriteU8(0x10001, 0x90)
	st.SetSeg(SegCS, 0x1000)
	st.SetIP(0x0000)

	node, err := store.Fetch(0x10000)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if node.IsSelector() {
		t.Error("overwriting a wildcarded immediate byte must not interpose a selector")
	}

	if err := exec.Step(); err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if st.AX() != 0x1290 {
		t.Errorf("AX after SMC re-execution got %#04x, want 0x1290", st.AX())
	}
}

// Seed scenario 3: overwriting the opcode byte with EB FE (JMP $-2) must
// diverge into a two-candidate selector choosing the JMP variant; IP stays
// put since the jump target is its own address.
func TestSeedScenario3_OpcodeDivergenceToJump(t *testing.T) {
	bus, st, store, exec := newTestMachine()
	bus.WriteU8(0x10000, 0xB8)
	bus.WriteU16(0x10001, 0x1234)
	if err := exec.Step(); err != nil {
		t.Fatalf("first Step: %v", err)
	}

	bus.WriteU8(0x10000, 0xEB)
	bus.WriteU8(0x10001, 0xFE)
	st.SetSeg(SegCS, 0x1000)
	st.SetIP(0x0000)

	node, err := store.Fetch(0x10000)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !node.IsSelector() {
		t.Fatal("overwriting the opcode byte must interpose a selector")
	}
	if len(node.Candidates) != 2 {
		t.Fatalf("candidate count got %d, want 2", len(node.Candidates))
	}

	if err := exec.Step(); err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if st.IP() != 0x0000 {
		t.Errorf("IP after JMP $-2 got %#04x, want 0x0000", st.IP())
	}
}

// Seed scenario 4: F7 F1 (DIV CX) with CX=0, AX=1 raises Division-Error and
// vectors through IVT entry 0.
func TestSeedScenario4_DivisionErrorVectorsThroughIVT0(t *testing.T) {
	bus, st, _, exec := newTestMachine()
	seedIVT(bus, 0, 0x2000, 0x0050)

	bus.WriteU8(0x10000, 0xF7)
	bus.WriteU8(0x10001, 0xF1) // mod=11 reg=110(DIV) rm=001(CX)
	st.SetCX(0)
	st.SetAX(1)
	st.SetIF(true)
	st.SetTF(true)

	if err := exec.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st.GetSeg(SegCS) != 0x2000 || st.IP() != 0x0050 {
		t.Errorf("CS:IP after division error got %04x:%04x, want 2000:0050", st.GetSeg(SegCS), st.IP())
	}
	if st.IF() || st.TF() {
		t.Error("entering the exception handler must clear IF and TF")
	}

	poppedIP := bus.ReadU16(LinearAddr(0x1000, 0xFFFE-6))
	poppedCS := bus.ReadU16(LinearAddr(0x1000, 0xFFFE-4))
	if poppedIP != 0x0000 {
		t.Errorf("pushed return IP got %#04x, want 0x0000 (DIV never advances IP before raising)", poppedIP)
	}
	if poppedCS != 0x1000 {
		t.Errorf("pushed return CS got %#04x, want 0x1000", poppedCS)
	}
}

// Seed scenario 5: REP MOVSB with CX=4 copies four bytes and advances SI/DI.
func TestSeedScenario5_RepMovsb(t *testing.T) {
	bus, st, _, exec := newTestMachine()
	bus.WriteU8(0x10000, 0xF3) // REP prefix
	bus.WriteU8(0x10001, 0xA4) // MOVSB

	srcOff, dstOff := uint16(0x2000), uint16(0x3000)
	copy(bus.ReadSpan(0, 0), nil) // no-op, keeps bus referenced
	bus.LoadBytes(LinearAddr(0x1000, srcOff), []byte("ABCD"))
	st.SetSI(srcOff)
	st.SetDI(dstOff)
	st.SetCX(4)
	st.SetDF(false)

	if err := exec.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st.CX() != 0 {
		t.Errorf("CX after REP MOVSB got %d, want 0", st.CX())
	}
	if st.SI() != srcOff+4 || st.DI() != dstOff+4 {
		t.Errorf("SI/DI got %#04x/%#04x, want %#04x/%#04x", st.SI(), st.DI(), srcOff+4, dstOff+4)
	}
	got := bus.ReadSpan(LinearAddr(0x1000, dstOff), 4)
	if string(got) != "ABCD" {
		t.Errorf("copied bytes got %q, want %q", got, "ABCD")
	}
}

// Seed scenario 6: CD 03 (INT 3 via the imm8 form) pushes FLAGS/CS/IP,
// clears IF/TF, and loads CS:IP from IVT[3].
func TestSeedScenario6_IntImmVectorsThroughIVT3(t *testing.T) {
	bus, st, _, exec := newTestMachine()
	seedIVT(bus, 3, 0x4000, 0x0100)

	bus.WriteU8(0x10000, 0xCD)
	bus.WriteU8(0x10001, 0x03)
	st.SetIF(true)
	st.SetTF(true)
	st.EFlags |= FlagZF

	if err := exec.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if st.GetSeg(SegCS) != 0x4000 || st.IP() != 0x0100 {
		t.Errorf("CS:IP after INT 3 got %04x:%04x, want 4000:0100", st.GetSeg(SegCS), st.IP())
	}
	if st.IF() || st.TF() {
		t.Error("INT entry must clear IF and TF")
	}

	poppedIP := bus.ReadU16(LinearAddr(0x1000, 0xFFFE-6))
	poppedCS := bus.ReadU16(LinearAddr(0x1000, 0xFFFE-4))
	poppedFlags := bus.ReadU16(LinearAddr(0x1000, 0xFFFE-2))
	if poppedIP != 0x0002 {
		t.Errorf("pushed IP got %#04x, want 0x0002", poppedIP)
	}
	if poppedCS != 0x1000 {
		t.Errorf("pushed CS got %#04x, want 0x1000", poppedCS)
	}
	if poppedFlags&FlagZF == 0 {
		t.Error("pushed FLAGS should still carry the ZF that was set before the interrupt")
	}
}

// An unregistered host-callback index is a GuestError (§7): reported, not
// fatal. The executor must log it and keep running rather than letting it
// escape Run(), and the CALLBACK instruction must still fall through to the
// next instruction as its benign default.
func TestCallbackOpcode_UnregisteredIndexDoesNotAbortRun(t *testing.T) {
	bus, st, store, _ := newTestMachine()
	cb := NewHostCallbacks(nil, nil)
	exec := NewExecutor(st, bus, store, cb, nil)

	bus.WriteU8(0x10000, 0xFE)
	bus.WriteU8(0x10001, callbackModRMByte)
	bus.WriteU8(0x10002, 0x7F) // unregistered callback index
	bus.WriteU8(0x10003, 0x90) // NOP, reachable only if the loop kept going

	if err := exec.Step(); err != nil {
		t.Fatalf("Step on an unregistered callback index should not abort the run: %v", err)
	}
	if !st.Running() {
		t.Error("an unregistered callback index is a GuestError, not fatal -- Running should stay true")
	}
	if st.IP() != 0x0003 {
		t.Errorf("IP got %#04x, want 0x0003 (CALLBACK still falls through to the next instruction)", st.IP())
	}

	if err := exec.Step(); err != nil {
		t.Fatalf("Step on the following NOP: %v", err)
	}
	if st.IP() != 0x0004 {
		t.Errorf("IP after NOP got %#04x, want 0x0004", st.IP())
	}
}

// Property 3 (graph idempotence): executing the same sequence from an
// identical starting state twice produces the same final AX and the same
// number of CFG edges.
func TestProperty_GraphIdempotence(t *testing.T) {
	run := func() (uint16, []Edge) {
		bus, st, store, exec := newTestMachine()
		bus.WriteU8(0x10000, 0xB8)
		bus.WriteU16(0x10001, 0x1234)
		bus.WriteU8(0x10003, 0x40) // INC AX
		for i := 0; i < 2; i++ {
			if err := exec.Step(); err != nil {
				t.Fatalf("Step: %v", err)
			}
		}
		return st.AX(), store.Edges()
	}

	ax1, edges1 := run()
	ax2, edges2 := run()
	if ax1 != ax2 {
		t.Fatalf("AX diverged across identical runs: %#04x vs %#04x", ax1, ax2)
	}
	if len(edges1) != len(edges2) {
		t.Fatalf("edge count diverged: %d vs %d", len(edges1), len(edges2))
	}
}
