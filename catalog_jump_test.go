package cfgcpu

import "testing"

func TestJcc_TakenAndNotTaken(t *testing.T) {
	bus, st := newPushPopMachine()
	st.SetZF(true)
	// 74 05 -> JE +5 (taken, ZF set)
	stepOne(t, bus, st, []byte{0x74, 0x05})
	if st.IP() != 0x0007 { // next(2) + rel(5)
		t.Errorf("JE taken: IP got %#04x, want 0x0007", st.IP())
	}

	bus2, st2 := newPushPopMachine()
	st2.SetZF(false)
	stepOne(t, bus2, st2, []byte{0x74, 0x05})
	if st2.IP() != 0x0002 {
		t.Errorf("JE not-taken: IP got %#04x, want 0x0002", st2.IP())
	}
}

func TestCallRetNear_RoundTrips(t *testing.T) {
	bus, st := newPushPopMachine()
	sp0 := st.SP()

	// E8 02 00 -> CALL +2 (rel16); return address pushed is 3 (after CALL).
	stepOne(t, bus, st, []byte{0xE8, 0x02, 0x00})
	if st.IP() != 0x0005 { // next(3) + rel(2)
		t.Errorf("CALL: IP got %#04x, want 0x0005", st.IP())
	}
	if st.SP() != sp0-2 {
		t.Errorf("CALL: SP got %#04x, want %#04x", st.SP(), sp0-2)
	}

	bus.WriteU8(LinearAddr(0, 5), 0xC3) // RET
	if err := NewExecutor(st, bus, NewStore(bus, ParseInstruction), nil, nil).Step(); err != nil {
		t.Fatalf("Step RET: %v", err)
	}
	if st.IP() != 0x0003 {
		t.Errorf("RET: IP got %#04x, want 0x0003 (the pushed return address)", st.IP())
	}
	if st.SP() != sp0 {
		t.Errorf("RET: SP got %#04x, want %#04x", st.SP(), sp0)
	}
}

func TestRetNearImm_DeallocatesStackArgs(t *testing.T) {
	bus, st := newPushPopMachine()
	st.SetSP(0x2000 - 2)
	bus.WriteU16(LinearAddr(0, 0x2000-2), 0x1234) // fake return address on stack

	// C2 04 00 -> RET 0x0004
	stepOne(t, bus, st, []byte{0xC2, 0x04, 0x00})
	if st.IP() != 0x1234 {
		t.Errorf("RET imm16: IP got %#04x, want 0x1234", st.IP())
	}
	if st.SP() != 0x2000+4 {
		t.Errorf("RET imm16: SP got %#04x, want %#04x", st.SP(), 0x2000+4)
	}
}
