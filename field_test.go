package cfgcpu

import "testing"

func TestField_BuildSignatureTruncatesAtFirstNonFinal(t *testing.T) {
	fixed := NewFixedField(0, 0, []byte{0xB8})
	payload := NewPayloadField(1, 1, []byte{0x34, 0x12})

	sig := BuildSignature([]Field{fixed, payload})
	if len(sig) != 1+2 {
		t.Fatalf("signature length got %d, want 3 (fixed byte + wildcarded payload bytes)", len(sig))
	}
	if sig[0].Wild {
		t.Error("opcode byte must not be wildcarded")
	}
	if !sig[1].Wild || !sig[2].Wild {
		t.Error("immediate bytes must be wildcarded")
	}
}

func TestField_SignatureMatchesIgnoresWildcardBytes(t *testing.T) {
	fixed := NewFixedField(0, 0, []byte{0xB8})
	payload := NewPayloadField(1, 1, []byte{0x34, 0x12})
	sig := BuildSignature([]Field{fixed, payload})

	if !sig.Matches([]byte{0xB8, 0x34, 0x12}) {
		t.Error("signature should match the bytes it was built from")
	}
	if !sig.Matches([]byte{0xB8, 0x90, 0x00}) {
		t.Error("signature should still match after the wildcarded immediate bytes change")
	}
	if sig.Matches([]byte{0xB9, 0x34, 0x12}) {
		t.Error("signature must not match when the fixed opcode byte differs")
	}
}

func TestField_SignatureEqual(t *testing.T) {
	a := BuildSignature([]Field{NewFixedField(0, 0, []byte{0xEB}), NewFixedField(1, 1, []byte{0xFE})})
	b := BuildSignature([]Field{NewFixedField(0, 0, []byte{0xEB}), NewFixedField(1, 1, []byte{0xFE})})
	c := BuildSignature([]Field{NewFixedField(0, 0, []byte{0xB8}), NewPayloadField(1, 1, []byte{0x34, 0x12})})

	if !a.Equal(b) {
		t.Error("structurally identical signatures should be Equal")
	}
	if a.Equal(c) {
		t.Error("signatures with different shapes must not be Equal")
	}
}

func TestField_LiveValueReflectsCurrentMemory(t *testing.T) {
	bus := NewSystemBus(16)
	bus.WriteU16(1, 0x1234)
	f := NewPayloadField(1, 1, []byte{0x34, 0x12})

	if f.U16() != 0x1234 {
		t.Fatalf("parse-time cached value got %#x, want 0x1234", f.U16())
	}

	bus.WriteU8(1, 0x90) // self-modifying write to the low immediate byte
	if got := f.LiveU16(bus); got != 0x1290 {
		t.Errorf("LiveU16 after SMC: got %#x, want 0x1290", got)
	}
	if f.U16() != 0x1234 {
		t.Error("the parse-time cached field must stay unchanged; only LiveU16 observes the new byte")
	}
}

func TestField_TotalLength(t *testing.T) {
	fields := []Field{
		NewFixedField(0, 0, []byte{0xB8}),
		NewPayloadField(1, 1, []byte{0x34, 0x12}),
	}
	if got := TotalLength(fields); got != 3 {
		t.Errorf("TotalLength got %d, want 3", got)
	}
}
