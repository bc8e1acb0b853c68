package cfgcpu

import "testing"

func TestHostCallbacks_DispatchWriteChar(t *testing.T) {
	var written []byte
	cb := NewHostCallbacks(func(b byte) { written = append(written, b) }, nil)
	st := NewState()
	st.SetAL('A')
	h := &Helper{State: st}

	if err := cb.Dispatch(byte(CallbackWriteChar), h); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(written) != 1 || written[0] != 'A' {
		t.Errorf("written got %v, want ['A']", written)
	}
}

func TestHostCallbacks_DispatchExitProgram(t *testing.T) {
	cb := NewHostCallbacks(nil, nil)
	st := NewState()
	st.SetRunning(true)
	h := &Helper{State: st}

	if err := cb.Dispatch(byte(CallbackExitProgram), h); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if st.Running() {
		t.Error("CallbackExitProgram should clear Running")
	}
}

func TestHostCallbacks_DispatchUnregisteredIndexIsGuestError(t *testing.T) {
	cb := NewHostCallbacks(nil, nil)
	h := &Helper{State: NewState()}

	err := cb.Dispatch(0x7F, h)
	if err == nil {
		t.Fatal("Dispatch of an unregistered index should fail")
	}
	if _, ok := err.(*GuestError); !ok {
		t.Fatalf("error type got %T, want *GuestError", err)
	}
}

func TestHostCallbacks_RegisterOverridesHandler(t *testing.T) {
	cb := NewHostCallbacks(nil, nil)
	called := false
	cb.Register(0x10, func(h *Helper) error { called = true; return nil })

	if err := cb.Dispatch(0x10, &Helper{State: NewState()}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if !called {
		t.Error("custom registered handler should have been invoked")
	}
}

func TestEraseCallback_RoundTripsWithPlantCallback(t *testing.T) {
	bus := NewSystemBus(16)
	PlantCallback(bus, 0, 0x05)

	if got := bus.ReadSpan(0, 3); got[0] != 0xFE || got[1] != callbackModRMByte || got[2] != 0x05 {
		t.Fatalf("PlantCallback wrote %v, want [FE 38 05]", got)
	}

	EraseCallback(bus, 0)
	got := bus.ReadSpan(0, 3)
	if got[0] != 0xCD || got[1] != 0x05 || got[2] != 0x90 {
		t.Errorf("EraseCallback wrote %v, want [CD 05 90]", got)
	}
}
