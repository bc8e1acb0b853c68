package cfgcpu

import "testing"

func TestState_RegisterAliasing(t *testing.T) {
	st := NewState()

	st.EAX = 0x12345678
	if st.AX() != 0x5678 {
		t.Errorf("AX: got %#04x, want 0x5678", st.AX())
	}
	if st.AL() != 0x78 {
		t.Errorf("AL: got %#02x, want 0x78", st.AL())
	}
	if st.AH() != 0x56 {
		t.Errorf("AH: got %#02x, want 0x56", st.AH())
	}

	st.SetAL(0xAB)
	if st.EAX != 0x123456AB {
		t.Errorf("SetAL: EAX got %#08x, want 0x123456AB", st.EAX)
	}
	st.SetAH(0xCD)
	if st.EAX != 0x1234CDAB {
		t.Errorf("SetAH: EAX got %#08x, want 0x1234CDAB", st.EAX)
	}
	st.SetAX(0x9999)
	if st.EAX != 0x12349999 {
		t.Errorf("SetAX: EAX got %#08x, want 0x12349999", st.EAX)
	}
}

func TestState_LegacyRegisterIndexing(t *testing.T) {
	st := NewState()
	st.EBX = 0xAABBCCDD

	if got := st.getReg32(3); got != 0xAABBCCDD {
		t.Errorf("getReg32(3): got %#08x, want 0xAABBCCDD", got)
	}
	if got := st.getReg16(3); got != 0xCCDD {
		t.Errorf("getReg16(3): got %#04x, want 0xCCDD", got)
	}
	if got := st.getReg8(3); got != 0xDD { // BL
		t.Errorf("getReg8(3): got %#02x, want 0xDD", got)
	}
	if got := st.getReg8(7); got != 0xCC { // BH
		t.Errorf("getReg8(7): got %#02x, want 0xCC", got)
	}

	st.setReg16(4, 0x1000) // SP
	if st.SP() != 0x1000 {
		t.Errorf("setReg16(4,...): SP got %#04x, want 0x1000", st.SP())
	}
}

func TestState_Flags(t *testing.T) {
	st := NewState()

	st.SetCF(true)
	if !st.CF() {
		t.Error("CF should be set")
	}
	st.SetCF(false)
	if st.CF() {
		t.Error("CF should be clear")
	}

	st.SetZF(true)
	st.SetSF(true)
	if st.EFlags&(FlagZF|FlagSF) != FlagZF|FlagSF {
		t.Errorf("EFlags got %#x, want ZF and SF set", st.EFlags)
	}
}

func TestState_LinearAddr(t *testing.T) {
	tests := []struct {
		seg, off uint16
		want     uint32
	}{
		{0x1000, 0x0000, 0x10000},
		{0xFFFF, 0xFFFF, 0x0FFEF},
		{0x0000, 0x0000, 0},
	}
	for _, tt := range tests {
		if got := LinearAddr(tt.seg, tt.off); got != tt.want {
			t.Errorf("LinearAddr(%#x,%#x) = %#x, want %#x", tt.seg, tt.off, got, tt.want)
		}
	}
}

func TestState_ResetDefaults(t *testing.T) {
	st := NewState()
	if st.Running() {
		t.Error("new state should not be running")
	}
	if st.Paused() {
		t.Error("new state should not be paused")
	}
	if st.EFlags != 0x0002 {
		t.Errorf("EFlags got %#x, want 0x0002", st.EFlags)
	}
}
