// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

// Helper is the Execution Helper component (C11): the per-step context
// threaded through exactly one instruction's Execute call. It is never
// retained past that call (§9 design notes: "forbid aliasing").
type Helper struct {
	State     *State
	Mem       MemoryPort
	ALU       ALU
	Callbacks CallbackTable

	// NextAddr/NextKind are set by an executor that computes a non-trivial
	// successor (branch/call/ret); if unset, the loop falls through to
	// CS:IP as advanced by the executor itself.
	NextAddr   uint32
	NextKind   SuccessorKind
	HasNext    bool

	// pendingException carries a raised CpuException back to the loop
	// without relying on panic/recover (§9: "tagged result values").
	pendingException *CpuException
}

func NewHelper(st *State, mem MemoryPort) *Helper {
	return &Helper{State: st, Mem: mem}
}

func (h *Helper) reset() {
	h.HasNext = false
	h.pendingException = nil
}

// SetNext records a computed successor address/kind for edge creation.
func (h *Helper) SetNext(kind SuccessorKind, linearAddr uint32) {
	h.NextKind = kind
	h.NextAddr = linearAddr
	h.HasNext = true
}

// Raise records a CpuException to be converted into an interrupt push by
// the executor loop once Execute returns.
func (h *Helper) Raise(e *CpuException) error { h.pendingException = e; return e }

// Push16/Pop16 operate on SS:SP, grounded in the teacher's push16/pop16.
func (h *Helper) Push16(v uint16) {
	sp := h.State.SP() - 2
	h.State.SetSP(sp)
	h.Mem.WriteU16(LinearAddr(h.State.GetSeg(SegSS), sp), v)
}

func (h *Helper) Pop16() uint16 {
	sp := h.State.SP()
	v := h.Mem.ReadU16(LinearAddr(h.State.GetSeg(SegSS), sp))
	h.State.SetSP(sp + 2)
	return v
}

func (h *Helper) Push32(v uint32) {
	sp := h.State.SP() - 4
	h.State.SetSP(sp)
	h.Mem.WriteU32(LinearAddr(h.State.GetSeg(SegSS), sp), v)
}

func (h *Helper) Pop32() uint32 {
	sp := h.State.SP()
	v := h.Mem.ReadU32(LinearAddr(h.State.GetSeg(SegSS), sp))
	h.State.SetSP(sp + 4)
	return v
}

// IVTEntry reads the real-mode interrupt vector table entry N (offset,segment).
func IVTEntry(mem MemoryPort, vector byte) (offset, segment uint16) {
	base := uint32(vector) * 4
	return mem.ReadU16(base), mem.ReadU16(base + 2)
}

// PushInterruptFrame pushes FLAGS, CS, IP (in that push order, so IP is on
// top) and clears IF/TF, per the real-mode INT/IRQ entry sequence used by
// scenario 6 and by hardware-interrupt delivery (§4.4).
func (h *Helper) PushInterruptFrame() {
	h.Push16(uint16(h.State.EFlags))
	h.Push16(h.State.GetSeg(SegCS))
	h.Push16(h.State.IP())
	h.State.SetIF(false)
	h.State.SetTF(false)
}

// EnterInterrupt performs the full INT vector-N entry: push the frame, then
// load CS:IP from the IVT (§6 interrupt vector table, §8 seed scenario 6).
func (h *Helper) EnterInterrupt(vector byte) {
	h.PushInterruptFrame()
	off, seg := IVTEntry(h.Mem, vector)
	h.State.SetSeg(SegCS, seg)
	h.State.SetIP(off)
}

// ReturnFromInterrupt pops IP, CS, FLAGS in that order (IRET), per scenario's
// symmetric counterpart and §4.2's ReturnInterrupt AST node.
func (h *Helper) ReturnFromInterrupt() {
	ip := h.Pop16()
	cs := h.Pop16()
	flags := h.Pop16()
	h.State.SetIP(ip)
	h.State.SetSeg(SegCS, cs)
	h.State.EFlags = h.State.EFlags&0xFFFF0000 | uint32(flags)
}
