// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

// base is embedded by every catalog variant to supply the common
// Instruction methods (Address/Fields/Signature) so each variant's own
// file only needs to define Mnemonic/Execute/the two AST lowerings.
type base struct {
	addr   uint32
	fields []Field
	sig    Signature
}

func newBase(addr uint32, fields []Field) base {
	return base{addr: addr, fields: fields, sig: BuildSignature(fields)}
}

func (b base) Address() uint32    { return b.addr }
func (b base) Fields() []Field    { return b.fields }
func (b base) Signature() Signature { return b.sig }

// totalLen returns the byte footprint, used by executors to advance IP.
func (b base) totalLen() uint32 { return uint32(TotalLength(b.fields)) }

// fallThrough advances IP by the instruction's length and records the
// fall-through edge via the helper, the default successor every
// non-terminator instruction ends with (§4.2 MoveIpNext invariant).
func (b base) fallThrough(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + b.totalLen()
	h.State.EIP = next
	h.SetNext(SuccessorFallThrough, LinearAddr(h.State.GetSeg(SegCS), uint16(next)))
	return SuccessorFallThrough, nil
}
