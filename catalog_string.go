// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "github.com/intuitionamiga/x86cfg/ast"

func registerStringOpcodes() {
	opcodeTable[0xA4] = func(p *parseState, _ byte) (Instruction, error) { return parseMovsb(p) }
}

// Movsb is REP MOVSB (0xA4): copies one byte from DS:SI to ES:DI, advancing
// both by +1 or -1 per DF, repeated CX times when a REP prefix preceded it.
// Grounded in the teacher's string-op family, which also loops the repeat
// count inside a single Execute call rather than re-fetching per iteration.
type Movsb struct {
	base
	rep RepKind
}

func parseMovsb(p *parseState) (Instruction, error) {
	return &Movsb{base: newBase(p.start, p.fields), rep: p.rep}, nil
}

func (m *Movsb) Mnemonic() string      { return "MOVSB" }
func (m *Movsb) RepPrefix() RepKind    { return m.rep }

func (m *Movsb) Execute(h *Helper) (SuccessorKind, error) {
	st := h.State
	step := int32(1)
	if st.DF() {
		step = -1
	}
	count := 1
	if m.rep != RepNone {
		count = int(st.CX())
	}
	for i := 0; i < count; i++ {
		src := LinearAddr(st.GetSeg(SegDS), st.SI())
		dst := LinearAddr(st.GetSeg(SegES), st.DI())
		h.Mem.WriteU8(dst, h.Mem.ReadU8(src))
		st.SetSI(uint16(int32(st.SI()) + step))
		st.SetDI(uint16(int32(st.DI()) + step))
	}
	if m.rep != RepNone {
		st.SetCX(0)
	}
	return m.fallThrough(h)
}

func (m *Movsb) ToInstructionAST(b *ast.Builder) ast.Node {
	name := "MOVSB"
	if m.rep != RepNone {
		name = "REP MOVSB"
	}
	return b.Insn(name, ast.OpKindGeneric)
}

func (m *Movsb) GenerateExecutionAST(b *ast.Builder) ast.Node {
	si := b.Reg(6, ast.U16)
	di := b.Reg(7, ast.U16)
	src := b.SegPtr(ast.U8, b.SegReg(SegDS), si)
	dst := b.SegPtr(ast.U8, b.SegReg(SegES), di)
	copyByte := b.Assign(ast.U8, dst, src)
	loop := b.MethodCall("REP", copyByte)
	return b.Block(loop, b.MoveIPNext(int(m.totalLen())))
}
