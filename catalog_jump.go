// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "github.com/intuitionamiga/x86cfg/ast"

// condition evaluates one Jcc predicate against the current flags, named
// the way the teacher's evaluateCondition switch names them.
type condition struct {
	name string
	eval func(st *State) bool
}

var conditions = [16]condition{
	{"JO", func(st *State) bool { return st.OF() }},
	{"JNO", func(st *State) bool { return !st.OF() }},
	{"JB", func(st *State) bool { return st.CF() }},
	{"JNB", func(st *State) bool { return !st.CF() }},
	{"JE", func(st *State) bool { return st.ZF() }},
	{"JNE", func(st *State) bool { return !st.ZF() }},
	{"JBE", func(st *State) bool { return st.CF() || st.ZF() }},
	{"JA", func(st *State) bool { return !st.CF() && !st.ZF() }},
	{"JS", func(st *State) bool { return st.SF() }},
	{"JNS", func(st *State) bool { return !st.SF() }},
	{"JP", func(st *State) bool { return st.PF() }},
	{"JNP", func(st *State) bool { return !st.PF() }},
	{"JL", func(st *State) bool { return st.SF() != st.OF() }},
	{"JGE", func(st *State) bool { return st.SF() == st.OF() }},
	{"JLE", func(st *State) bool { return st.ZF() || st.SF() != st.OF() }},
	{"JG", func(st *State) bool { return !st.ZF() && st.SF() == st.OF() }},
}

func registerJumpOpcodes() {
	for cc := byte(0); cc < 16; cc++ {
		c := conditions[cc]
		opcodeTable[0x70+cc] = func(p *parseState, _ byte) (Instruction, error) { return parseJcc(p, c) }
	}
	opcodeTable[0xEB] = func(p *parseState, _ byte) (Instruction, error) { return parseJmpShort(p) }
	opcodeTable[0xE9] = func(p *parseState, _ byte) (Instruction, error) { return parseJmpNear(p) }
	opcodeTable[0xE8] = func(p *parseState, _ byte) (Instruction, error) { return parseCallNear(p) }
	opcodeTable[0xC3] = func(p *parseState, _ byte) (Instruction, error) { return parseRetNear(p, 0) }
	opcodeTable[0xC2] = func(p *parseState, _ byte) (Instruction, error) { return parseRetNearImm(p) }
}

// Jcc is a short conditional branch (0x70-0x7F): a single rel8 field.
type Jcc struct {
	base
	cond condition
	rel  Field
}

func parseJcc(p *parseState, c condition) (Instruction, error) {
	p.takeFixed(1)
	relField := p.fields[len(p.fields)-1]
	return &Jcc{base: newBase(p.start, p.fields), cond: c, rel: relField}, nil
}

func (j *Jcc) Mnemonic() string  { return j.cond.name }
func (j *Jcc) ValueField() Field { return j.rel }

func (j *Jcc) Execute(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + j.totalLen()
	if !j.cond.eval(h.State) {
		h.State.EIP = next
		h.SetNext(SuccessorFallThrough, LinearAddr(h.State.GetSeg(SegCS), uint16(next)))
		return SuccessorFallThrough, nil
	}
	target := uint32(int32(next) + int32(j.rel.Int8()))
	h.State.EIP = target
	h.SetNext(SuccessorTaken, LinearAddr(h.State.GetSeg(SegCS), uint16(target)))
	return SuccessorTaken, nil
}

func (j *Jcc) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn(j.cond.name, ast.OpKindJump, b.Const(ast.I8, uint64(uint8(j.rel.Int8()))))
}

func (j *Jcc) GenerateExecutionAST(b *ast.Builder) ast.Node {
	target := b.Bin(ast.U32, b.Var("ip_after", ast.U32), ast.OpAdd, b.Const(ast.I8, uint64(uint8(j.rel.Int8()))))
	taken := b.JmpNearTo(target)
	fall := b.MoveIPNext(int(j.totalLen()))
	return b.If(b.Call(j.cond.name+"?"), taken, fall)
}

// JmpShort/JmpNear are unconditional near jumps, differing only in
// displacement width (rel8 vs rel16/32).
type JmpNear struct {
	base
	rel   Field
	width int
}

func parseJmpShort(p *parseState) (Instruction, error) {
	p.takeFixed(1)
	rel := p.fields[len(p.fields)-1]
	return &JmpNear{base: newBase(p.start, p.fields), rel: rel, width: 8}, nil
}

func parseJmpNear(p *parseState) (Instruction, error) {
	n := p.operandSize / 8
	p.takeFixed(n)
	rel := p.fields[len(p.fields)-1]
	return &JmpNear{base: newBase(p.start, p.fields), rel: rel, width: p.operandSize}, nil
}

func (j *JmpNear) Mnemonic() string  { return "JMP" }
func (j *JmpNear) ValueField() Field { return j.rel }

func (j *JmpNear) displacement() int32 {
	if j.width == 8 {
		return int32(j.rel.Int8())
	}
	if j.width == 16 {
		return int32(j.rel.Int16())
	}
	return j.rel.Int32()
}

func (j *JmpNear) Execute(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + j.totalLen()
	target := uint32(int32(next) + j.displacement())
	h.State.EIP = target
	h.SetNext(SuccessorTaken, LinearAddr(h.State.GetSeg(SegCS), uint16(target)))
	return SuccessorTaken, nil
}

func (j *JmpNear) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("JMP", ast.OpKindJump, b.Const(ast.I32, uint64(uint32(j.displacement()))))
}

func (j *JmpNear) GenerateExecutionAST(b *ast.Builder) ast.Node {
	target := b.Bin(ast.U32, b.Var("ip_after", ast.U32), ast.OpAdd, b.Const(ast.I32, uint64(uint32(j.displacement()))))
	return b.JmpNearTo(target)
}

// CallNear pushes the return address then transfers control, per §4.2's
// CallNear terminator node.
type CallNear struct {
	base
	rel Field
}

func parseCallNear(p *parseState) (Instruction, error) {
	n := p.operandSize / 8
	p.takeFixed(n)
	rel := p.fields[len(p.fields)-1]
	return &CallNear{base: newBase(p.start, p.fields), rel: rel}, nil
}

func (c *CallNear) Mnemonic() string  { return "CALL" }
func (c *CallNear) ValueField() Field { return c.rel }

func (c *CallNear) displacement() int32 {
	if len(c.rel.Sig) == 2 {
		return int32(c.rel.Int16())
	}
	return c.rel.Int32()
}

func (c *CallNear) Execute(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + c.totalLen()
	h.Push16(uint16(next))
	target := uint32(int32(next) + c.displacement())
	h.State.EIP = target
	h.SetNext(SuccessorTaken, LinearAddr(h.State.GetSeg(SegCS), uint16(target)))
	return SuccessorTaken, nil
}

func (c *CallNear) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("CALL", ast.OpKindCall, b.Const(ast.I32, uint64(uint32(c.displacement()))))
}

func (c *CallNear) GenerateExecutionAST(b *ast.Builder) ast.Node {
	target := b.Bin(ast.U32, b.Var("ip_after", ast.U32), ast.OpAdd, b.Const(ast.I32, uint64(uint32(c.displacement()))))
	return b.CallNearTo(target)
}

// RetNear pops the return address; imm16 (if present) additionally
// deallocates that many bytes of arguments from the stack (0xC2 form).
type RetNear struct {
	base
	popBytes uint16
	imm      Field
	hasImm   bool
}

func parseRetNear(p *parseState, pop uint16) (Instruction, error) {
	return &RetNear{base: newBase(p.start, p.fields), popBytes: pop}, nil
}

func parseRetNearImm(p *parseState) (Instruction, error) {
	imm := p.takePayload(2)
	return &RetNear{base: newBase(p.start, p.fields), popBytes: imm.U16(), imm: imm, hasImm: true}, nil
}

func (r *RetNear) Mnemonic() string    { return "RET" }
func (r *RetNear) IsReturn() bool      { return true }

func (r *RetNear) Execute(h *Helper) (SuccessorKind, error) {
	target := h.Pop16()
	pop := r.popBytes
	if r.hasImm {
		pop = r.imm.LiveU16(h.Mem)
	}
	h.State.SetSP(h.State.SP() + pop)
	h.State.SetIP(target)
	addr := LinearAddr(h.State.GetSeg(SegCS), target)
	h.SetNext(SuccessorReturn, addr)
	return SuccessorReturn, nil
}

func (r *RetNear) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("RET", ast.OpKindReturn)
}

func (r *RetNear) GenerateExecutionAST(b *ast.Builder) ast.Node {
	return b.RetNear()
}
