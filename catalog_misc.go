// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "github.com/intuitionamiga/x86cfg/ast"

func registerMiscOpcodes() {
	for r := byte(0); r < 8; r++ {
		reg := r
		opcodeTable[0x40+reg] = func(p *parseState, _ byte) (Instruction, error) { return parseIncDec(p, reg, true) }
		opcodeTable[0x48+reg] = func(p *parseState, _ byte) (Instruction, error) { return parseIncDec(p, reg, false) }
		opcodeTable[0x50+reg] = func(p *parseState, _ byte) (Instruction, error) { return parsePush(p, reg) }
		opcodeTable[0x58+reg] = func(p *parseState, _ byte) (Instruction, error) { return parsePop(p, reg) }
	}
	opcodeTable[0xCD] = func(p *parseState, _ byte) (Instruction, error) { return parseIntImm(p) }
	opcodeTable[0xCC] = func(p *parseState, _ byte) (Instruction, error) { return parseInt3(p) }
	opcodeTable[0xCF] = func(p *parseState, _ byte) (Instruction, error) { return parseIret(p) }
	opcodeTable[0xFA] = flagOp("CLI", func(st *State) { st.SetIF(false) })
	opcodeTable[0xFB] = flagOp("STI", func(st *State) { st.SetIF(true) })
	opcodeTable[0xFC] = flagOp("CLD", func(st *State) { st.SetDF(false) })
	opcodeTable[0xFD] = flagOp("STD", func(st *State) { st.SetDF(true) })
	opcodeTable[0xF4] = func(p *parseState, _ byte) (Instruction, error) { return parseHlt(p) }
	opcodeTable[0x90] = func(p *parseState, _ byte) (Instruction, error) { return parseNop(p) }
}

// IncDec is the INC/DEC reg16/32 family (0x40-0x4F): HasRegisterIndex. Unlike
// the Grp1 ADD/SUB forms, INC/DEC never touch CF, per §4.5's flag table.
type IncDec struct {
	base
	reg byte
	inc bool
}

func parseIncDec(p *parseState, reg byte, inc bool) (Instruction, error) {
	return &IncDec{base: newBase(p.start, p.fields), reg: reg, inc: inc}, nil
}

func (i *IncDec) Mnemonic() string {
	if i.inc {
		return "INC"
	}
	return "DEC"
}
func (i *IncDec) RegisterIndex() byte { return i.reg }

func (i *IncDec) Execute(h *Helper) (SuccessorKind, error) {
	width := 16 // real-mode default register width for this family
	v := h.State.Reg(i.reg, width)
	savedCF := h.State.CF()
	var result uint32
	if i.inc {
		result = h.ALU.Add(h.State, width, v, 1)
	} else {
		result = h.ALU.Sub(h.State, width, v, 1)
	}
	h.State.SetCF(savedCF) // INC/DEC never touch CF
	h.State.SetReg(i.reg, width, result)
	return i.fallThrough(h)
}

func (i *IncDec) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn(i.Mnemonic(), ast.OpKindGeneric, b.Reg(int(i.reg), ast.U16))
}

func (i *IncDec) GenerateExecutionAST(b *ast.Builder) ast.Node {
	op := ast.OpAdd
	if !i.inc {
		op = ast.OpSub
	}
	reg := b.Reg(int(i.reg), ast.U16)
	assign := b.Assign(ast.U16, reg, b.Bin(ast.U16, reg, op, b.Const(ast.U16, 1)))
	return b.Block(assign, b.MoveIPNext(int(i.totalLen())))
}

// Push/Pop are the PUSH/POP reg16 family (0x50-0x5F): HasRegisterIndex.
type PushReg struct {
	base
	reg byte
}

func parsePush(p *parseState, reg byte) (Instruction, error) {
	return &PushReg{base: newBase(p.start, p.fields), reg: reg}, nil
}

func (p *PushReg) Mnemonic() string     { return "PUSH" }
func (p *PushReg) RegisterIndex() byte  { return p.reg }

func (p *PushReg) Execute(h *Helper) (SuccessorKind, error) {
	h.Push16(uint16(h.State.Reg(p.reg, 16)))
	return p.fallThrough(h)
}

func (p *PushReg) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("PUSH", ast.OpKindGeneric, b.Reg(int(p.reg), ast.U16))
}

func (p *PushReg) GenerateExecutionAST(b *ast.Builder) ast.Node {
	push := b.MethodCall("PUSH16", b.Reg(int(p.reg), ast.U16))
	return b.Block(push, b.MoveIPNext(int(p.totalLen())))
}

type PopReg struct {
	base
	reg byte
}

func parsePop(p *parseState, reg byte) (Instruction, error) {
	return &PopReg{base: newBase(p.start, p.fields), reg: reg}, nil
}

func (p *PopReg) Mnemonic() string    { return "POP" }
func (p *PopReg) RegisterIndex() byte { return p.reg }

func (p *PopReg) Execute(h *Helper) (SuccessorKind, error) {
	h.State.SetReg(p.reg, 16, uint32(h.Pop16()))
	return p.fallThrough(h)
}

func (p *PopReg) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("POP", ast.OpKindGeneric, b.Reg(int(p.reg), ast.U16))
}

func (p *PopReg) GenerateExecutionAST(b *ast.Builder) ast.Node {
	assign := b.Assign(ast.U16, b.Reg(int(p.reg), ast.U16), b.Call("POP16"))
	return b.Block(assign, b.MoveIPNext(int(p.totalLen())))
}

// IntImm is INT imm8 (0xCD): a software interrupt to an arbitrary vector.
type IntImm struct {
	base
	vector Field
}

func parseIntImm(p *parseState) (Instruction, error) {
	vec := p.takePayload(1)
	return &IntImm{base: newBase(p.start, p.fields), vector: vec}, nil
}

func (ii *IntImm) Mnemonic() string  { return "INT" }
func (ii *IntImm) ValueField() Field { return ii.vector }

func (ii *IntImm) Execute(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + ii.totalLen()
	h.State.EIP = next
	h.EnterInterrupt(ii.vector.LiveU8(h.Mem))
	addr := LinearAddr(h.State.GetSeg(SegCS), h.State.IP())
	h.SetNext(SuccessorTaken, addr)
	return SuccessorTaken, nil
}

func (ii *IntImm) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Int(ii.vector.U8())
}

func (ii *IntImm) GenerateExecutionAST(b *ast.Builder) ast.Node {
	return b.Int(ii.vector.U8())
}

// Int3 is the one-byte breakpoint trap (0xCC), vector fixed at 3.
type Int3 struct{ base }

func parseInt3(p *parseState) (Instruction, error) {
	return &Int3{base: newBase(p.start, p.fields)}, nil
}

func (i *Int3) Mnemonic() string { return "INT3" }

func (i *Int3) Execute(h *Helper) (SuccessorKind, error) {
	next := h.State.EIP + i.totalLen()
	h.State.EIP = next
	return 0, h.Raise(breakpointTrap())
}

func (i *Int3) ToInstructionAST(b *ast.Builder) ast.Node { return b.Int(3) }
func (i *Int3) GenerateExecutionAST(b *ast.Builder) ast.Node { return b.Int(3) }

// Iret pops IP/CS/FLAGS, restoring a prior execution context (§4.2
// ReturnInterrupt, §3's "can-cause-context-restore" capability).
type Iret struct{ base }

func parseIret(p *parseState) (Instruction, error) {
	return &Iret{base: newBase(p.start, p.fields)}, nil
}

func (i *Iret) Mnemonic() string        { return "IRET" }
func (i *Iret) RestoresContext() bool   { return true }
func (i *Iret) IsReturn() bool          { return true }

func (i *Iret) Execute(h *Helper) (SuccessorKind, error) {
	h.ReturnFromInterrupt()
	addr := LinearAddr(h.State.GetSeg(SegCS), h.State.IP())
	h.SetNext(SuccessorReturn, addr)
	return SuccessorReturn, nil
}

func (i *Iret) ToInstructionAST(b *ast.Builder) ast.Node    { return b.IRet() }
func (i *Iret) GenerateExecutionAST(b *ast.Builder) ast.Node { return b.IRet() }

// flagOp builds a zero-operand flag-setting instruction (CLI/STI/CLD/STD).
func flagOp(name string, apply func(st *State)) opcodeParser {
	return func(p *parseState, _ byte) (Instruction, error) {
		return &FlagOp{base: newBase(p.start, p.fields), name: name, apply: apply}, nil
	}
}

type FlagOp struct {
	base
	name  string
	apply func(st *State)
}

func (f *FlagOp) Mnemonic() string { return f.name }

func (f *FlagOp) Execute(h *Helper) (SuccessorKind, error) {
	f.apply(h.State)
	return f.fallThrough(h)
}

func (f *FlagOp) ToInstructionAST(b *ast.Builder) ast.Node    { return b.Insn(f.name, ast.OpKindGeneric) }
func (f *FlagOp) GenerateExecutionAST(b *ast.Builder) ast.Node {
	return b.Block(b.MethodCall(f.name), b.MoveIPNext(int(f.totalLen())))
}

// Hlt sets the Paused bit of §6's running/paused model, which ends
// Executor.Run; an arriving interrupt does not clear Paused again.
type Hlt struct{ base }

func parseHlt(p *parseState) (Instruction, error) {
	return &Hlt{base: newBase(p.start, p.fields)}, nil
}

func (h *Hlt) Mnemonic() string { return "HLT" }

func (hl *Hlt) Execute(h *Helper) (SuccessorKind, error) {
	h.State.SetPaused(true)
	return hl.fallThrough(h)
}

func (hl *Hlt) ToInstructionAST(b *ast.Builder) ast.Node    { return b.Insn("HLT", ast.OpKindGeneric) }
func (hl *Hlt) GenerateExecutionAST(b *ast.Builder) ast.Node {
	return b.Block(b.MethodCall("HALT"), b.MoveIPNext(int(hl.totalLen())))
}

// Nop is the one-byte no-op (0x90, also XCHG AX,AX but treated as plain NOP).
type Nop struct{ base }

func parseNop(p *parseState) (Instruction, error) {
	return &Nop{base: newBase(p.start, p.fields)}, nil
}

func (n *Nop) Mnemonic() string { return "NOP" }

func (n *Nop) Execute(h *Helper) (SuccessorKind, error) { return n.fallThrough(h) }

func (n *Nop) ToInstructionAST(b *ast.Builder) ast.Node    { return b.Insn("NOP", ast.OpKindGeneric) }
func (n *Nop) GenerateExecutionAST(b *ast.Builder) ast.Node { return b.MoveIPNext(int(n.totalLen())) }
