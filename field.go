// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

// SigByte is one element of a Signature: either a wildcard (payload byte
// that does not affect semantics) or a byte that must match exactly.
type SigByte struct {
	Wild  bool
	Value byte
}

func wildByte() SigByte           { return SigByte{Wild: true} }
func fixedByte(b byte) SigByte    { return SigByte{Value: b} }

// Matches reports whether live byte b satisfies this signature position.
func (s SigByte) Matches(b byte) bool {
	return s.Wild || s.Value == b
}

// Signature is the ordered per-byte fingerprint of an instruction, per §3:
// the concatenation of its fields' signatures, truncated at the first
// non-final field. It matches memory when every non-wildcard position
// equals the corresponding live byte.
type Signature []SigByte

// Matches reports whether mem (a byte slice of at least len(s) bytes
// starting at the signature's address) satisfies every fixed position.
func (s Signature) Matches(mem []byte) bool {
	if len(mem) < len(s) {
		return false
	}
	for i, sb := range s {
		if !sb.Matches(mem[i]) {
			return false
		}
	}
	return true
}

// Equal reports structural equality, used to detect "N' signature already
// among candidates" in the CFG store's divergence handling (§4.3).
func (s Signature) Equal(o Signature) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i].Wild != o[i].Wild || (!s[i].Wild && s[i].Value != o[i].Value) {
			return false
		}
	}
	return true
}

// Field is one instruction field (C4): a typed raw value plus its byte
// footprint and per-byte signature. T is carried as a uint64 (prefixes,
// opcode bytes, ModR/M, SIB and displacement/immediate values all fit);
// callers interpret the width via Length/signedness from context.
type Field struct {
	Addr    uint32
	Length  byte
	Index   byte
	Value   uint64
	Sig     Signature
	IsFinal bool
}

// NewFixedField builds a field whose bytes are all part of the signature
// (prefixes, opcode bytes, ModR/M, SIB, displacement of a relative branch).
func NewFixedField(addr uint32, index byte, raw []byte) Field {
	sig := make(Signature, len(raw))
	var v uint64
	for i, b := range raw {
		sig[i] = fixedByte(b)
		v |= uint64(b) << (8 * uint(i))
	}
	return Field{Addr: addr, Length: byte(len(raw)), Index: index, Value: v, Sig: sig, IsFinal: true}
}

// NewPayloadField builds a field whose bytes are wildcarded in the
// signature (immediates): its value may change across re-parses without
// causing SMC divergence, per §3's "immediates begin non-final" note --
// this repository treats immediate fields as always non-signature rather
// than modeling final-on-stabilize (see DESIGN.md open-question
// resolution). Since a wildcarded byte can change without the CFG store
// ever reparsing the owning candidate, a catalog Execute method must read
// a payload field's value through LiveU8/LiveU16/LiveU32/LiveValue at
// execution time rather than trust f.Value, which is only a snapshot of
// what memory held when the field was first parsed.
func NewPayloadField(addr uint32, index byte, raw []byte) Field {
	sig := make(Signature, len(raw))
	var v uint64
	for i, b := range raw {
		sig[i] = wildByte()
		v |= uint64(b) << (8 * uint(i))
	}
	return Field{Addr: addr, Length: byte(len(raw)), Index: index, Value: v, Sig: sig, IsFinal: false}
}

func (f Field) U8() byte    { return byte(f.Value) }
func (f Field) U16() uint16 { return uint16(f.Value) }
func (f Field) U32() uint32 { return uint32(f.Value) }

// Int8/Int16/Int32 reinterpret the field's raw value as signed, for
// displacement/relative-branch fields.
func (f Field) Int8() int8   { return int8(f.Value) }
func (f Field) Int16() int16 { return int16(f.Value) }
func (f Field) Int32() int32 { return int32(f.Value) }

// LiveU8/LiveU16/LiveU32 re-read this field's bytes from mem instead of the
// value cached at parse time. A payload field is wildcarded out of its
// instruction's signature precisely so self-modifying writes to it never
// force a reparse (§3) -- which means the cached Value can go stale the
// moment a guest overwrites it. Real hardware has no such cache: it refetches
// every byte on every execution. Execute methods for HasValueField variants
// use these for that reason; a field that is part of the signature (built
// via NewFixedField) never needs them, since Store.Fetch already guarantees
// those bytes match live memory before any candidate is reused.
func (f Field) LiveU8(mem MemoryPort) byte    { return mem.ReadU8(f.Addr) }
func (f Field) LiveU16(mem MemoryPort) uint16 { return mem.ReadU16(f.Addr) }
func (f Field) LiveU32(mem MemoryPort) uint32 { return mem.ReadU32(f.Addr) }

// LiveInt8/LiveInt16/LiveInt32 are the signed counterparts of LiveU8/16/32.
func (f Field) LiveInt8(mem MemoryPort) int8   { return int8(f.LiveU8(mem)) }
func (f Field) LiveInt16(mem MemoryPort) int16 { return int16(f.LiveU16(mem)) }
func (f Field) LiveInt32(mem MemoryPort) int32 { return int32(f.LiveU32(mem)) }

// LiveValue re-reads the field's bytes from mem and returns them as a
// width-generic uint64, dispatching on Length the way the constructors do.
func (f Field) LiveValue(mem MemoryPort) uint64 {
	switch f.Length {
	case 1:
		return uint64(f.LiveU8(mem))
	case 2:
		return uint64(f.LiveU16(mem))
	case 4:
		return uint64(f.LiveU32(mem))
	default:
		return f.Value
	}
}

// Bytes reconstructs this field's little-endian raw bytes from its cached
// Value, for the field-coverage and round-trip testable properties: since
// every field's Value was built by OR-ing its raw bytes in at construction,
// concatenating Bytes() across Fields() in order always reproduces exactly
// the bytes the parser consumed.
func (f Field) Bytes() []byte {
	out := make([]byte, f.Length)
	for i := range out {
		out[i] = byte(f.Value >> (8 * uint(i)))
	}
	return out
}

// BuildSignature concatenates fields in order, truncating at the first
// non-final field (inclusive), per §3's Signature definition.
func BuildSignature(fields []Field) Signature {
	var sig Signature
	for _, f := range fields {
		sig = append(sig, f.Sig...)
		if !f.IsFinal {
			break
		}
	}
	return sig
}

// TotalLength sums field lengths -- used by TestableProperty 1 (field
// coverage) and by the parser to report bytes consumed.
func TotalLength(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += int(f.Length)
	}
	return n
}
