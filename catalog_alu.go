// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "github.com/intuitionamiga/x86cfg/ast"

// aluOp describes one of the eight Grp1 arithmetic/logic operators, shared
// across the 0x00-0x3D direct forms and the 0x80/0x81/0x83 immediate forms
// (Grp3's TEST calls ALU.And directly). store is false for CMP: flags are set but the
// result is discarded, per the teacher's decodeAluOp "writeback" flag.
type aluOp struct {
	name  string
	apply func(st *State, width int, a, b uint32) uint32
	store bool
	binOp ast.BinOp
	hasBin bool
}

var aluOps = [8]aluOp{
	{"ADD", ALU{}.Add, true, ast.OpAdd, true},
	{"OR", ALU{}.Or, true, ast.OpOr, true},
	{"ADC", ALU{}.Adc, true, 0, false},
	{"SBB", ALU{}.Sbb, true, 0, false},
	{"AND", ALU{}.And, true, ast.OpAnd, true},
	{"SUB", ALU{}.Sub, true, ast.OpSub, true},
	{"XOR", ALU{}.Xor, true, ast.OpXor, true},
	{"CMP", ALU{}.Sub, false, ast.OpSub, true},
}

func registerAluOpcodes() {
	for op := byte(0); op < 8; op++ {
		spec := aluOps[op]
		base := op * 8
		opcodeTable[base+0] = func(p *parseState, _ byte) (Instruction, error) { return parseAluRM(p, spec, 8, false) }
		opcodeTable[base+1] = func(p *parseState, _ byte) (Instruction, error) { return parseAluRM(p, spec, p.operandSize, false) }
		opcodeTable[base+2] = func(p *parseState, _ byte) (Instruction, error) { return parseAluRM(p, spec, 8, true) }
		opcodeTable[base+3] = func(p *parseState, _ byte) (Instruction, error) { return parseAluRM(p, spec, p.operandSize, true) }
		opcodeTable[base+4] = func(p *parseState, _ byte) (Instruction, error) { return parseAluAccImm(p, spec, 8) }
		opcodeTable[base+5] = func(p *parseState, _ byte) (Instruction, error) { return parseAluAccImm(p, spec, p.operandSize) }
	}
	opcodeTable[0x80] = func(p *parseState, _ byte) (Instruction, error) { return parseAluImm(p, 8, false) }
	opcodeTable[0x81] = func(p *parseState, _ byte) (Instruction, error) { return parseAluImm(p, p.operandSize, false) }
	opcodeTable[0x83] = func(p *parseState, _ byte) (Instruction, error) { return parseAluImm(p, p.operandSize, true) }
	opcodeTable[0xF6] = func(p *parseState, _ byte) (Instruction, error) { return parseGrp3(p, 8) }
	opcodeTable[0xF7] = func(p *parseState, _ byte) (Instruction, error) { return parseGrp3(p, p.operandSize) }
}

// AluRM is the r/m,reg / reg,r/m Grp1 form (0x00-0x3B family): HasModRM.
type AluRM struct {
	base
	mm    *ModRMContext
	width int
	toReg bool
	op    aluOp
}

func parseAluRM(p *parseState, op aluOp, width int, toReg bool) (Instruction, error) {
	mm := p.parseModRM()
	return &AluRM{base: newBase(p.start, p.fields), mm: mm, width: width, toReg: toReg, op: op}, nil
}

func (a *AluRM) Mnemonic() string      { return a.op.name }
func (a *AluRM) ModRM() *ModRMContext  { return a.mm }

func (a *AluRM) Execute(h *Helper) (SuccessorKind, error) {
	r := h.Resolver(a.mm)
	var dst, src uint32
	if a.toReg {
		dst, src = h.State.Reg(a.mm.Reg, a.width), r.RM(a.width)
	} else {
		dst, src = r.RM(a.width), h.State.Reg(a.mm.Reg, a.width)
	}
	result := a.op.apply(h.State, a.width, dst, src)
	if a.op.store {
		if a.toReg {
			h.State.SetReg(a.mm.Reg, a.width, result)
		} else {
			r.SetRM(a.width, result)
		}
	}
	return a.fallThrough(h)
}

func (a *AluRM) dstSrcNodes(b *ast.Builder, dt ast.DataType) (ast.Node, ast.Node) {
	regNode := b.Reg(int(a.mm.Reg), dt)
	rmNode := rmOperandNode(b, a.mm, dt)
	if a.toReg {
		return regNode, rmNode
	}
	return rmNode, regNode
}

func (a *AluRM) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	dst, src := a.dstSrcNodes(b, dt)
	return b.Insn(a.op.name, aluOpKind(a.op.name), dst, src)
}

func (a *AluRM) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	dst, src := a.dstSrcNodes(b, dt)
	return b.Block(aluEffect(b, dt, a.op, dst, src), b.MoveIPNext(int(a.totalLen())))
}

// AluAccImm is the AL/eAX,imm Grp1 form (opcode bases +4/+5).
type AluAccImm struct {
	base
	width int
	op    aluOp
	imm   Field
}

func parseAluAccImm(p *parseState, op aluOp, width int) (Instruction, error) {
	imm := p.takePayload(width / 8)
	return &AluAccImm{base: newBase(p.start, p.fields), width: width, op: op, imm: imm}, nil
}

func (a *AluAccImm) Mnemonic() string  { return a.op.name }
func (a *AluAccImm) ValueField() Field { return a.imm }

func (a *AluAccImm) Execute(h *Helper) (SuccessorKind, error) {
	acc := h.State.Reg(0, a.width)
	result := a.op.apply(h.State, a.width, acc, uint32(a.imm.LiveValue(h.Mem)))
	if a.op.store {
		h.State.SetReg(0, a.width, result)
	}
	return a.fallThrough(h)
}

func (a *AluAccImm) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	return b.Insn(a.op.name, aluOpKind(a.op.name), b.Reg(0, dt), b.Const(dt, a.imm.Value))
}

func (a *AluAccImm) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	acc := b.Reg(0, dt)
	imm := b.Const(dt, a.imm.Value)
	return b.Block(aluEffect(b, dt, a.op, acc, imm), b.MoveIPNext(int(a.totalLen())))
}

// AluImm is the Grp1 r/m,imm form (0x80/0x81/0x83): reg field of ModR/M
// selects the operator, not a register.
type AluImm struct {
	base
	mm    *ModRMContext
	width int
	op    aluOp
	imm   Field
}

func parseAluImm(p *parseState, width int, signExtendByte bool) (Instruction, error) {
	mm := p.parseModRM()
	op := aluOps[mm.Reg&7]
	var imm Field
	if signExtendByte {
		imm = p.takePayload(1)
	} else {
		imm = p.takePayload(width / 8)
	}
	return &AluImm{base: newBase(p.start, p.fields), mm: mm, width: width, op: op, imm: imm}, nil
}

func (a *AluImm) Mnemonic() string     { return a.op.name }
func (a *AluImm) ModRM() *ModRMContext { return a.mm }
func (a *AluImm) ValueField() Field    { return a.imm }

func (a *AluImm) immValue() uint32 {
	if a.imm.Length == 1 && a.width != 8 {
		return uint32(int32(int8(a.imm.Value)))
	}
	return uint32(a.imm.Value)
}

// liveImmValue mirrors immValue's sign-extension rule but re-reads the
// immediate byte(s) from mem, since this field is a wildcarded payload.
func (a *AluImm) liveImmValue(mem MemoryPort) uint32 {
	if a.imm.Length == 1 && a.width != 8 {
		return uint32(int32(a.imm.LiveInt8(mem)))
	}
	return uint32(a.imm.LiveValue(mem))
}

func (a *AluImm) Execute(h *Helper) (SuccessorKind, error) {
	r := h.Resolver(a.mm)
	dst := r.RM(a.width)
	result := a.op.apply(h.State, a.width, dst, a.liveImmValue(h.Mem))
	if a.op.store {
		r.SetRM(a.width, result)
	}
	return a.fallThrough(h)
}

func (a *AluImm) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	return b.Insn(a.op.name, aluOpKind(a.op.name), rmOperandNode(b, a.mm, dt), b.Const(dt, uint64(a.immValue())))
}

func (a *AluImm) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(a.width)
	dst := rmOperandNode(b, a.mm, dt)
	imm := b.Const(dt, uint64(a.immValue()))
	return b.Block(aluEffect(b, dt, a.op, dst, imm), b.MoveIPNext(int(a.totalLen())))
}

// Grp3 covers TEST/NOT/NEG/MUL/IMUL/DIV/IDIV (0xF6/0xF7): reg field of
// ModR/M selects the variant, matching the teacher's decodeGroup3 switch.
type Grp3 struct {
	base
	mm     *ModRMContext
	width  int
	variant byte
	imm    Field // only populated for TEST (variant 0/1)
}

func parseGrp3(p *parseState, width int) (Instruction, error) {
	mm := p.parseModRM()
	variant := mm.Reg & 7
	var imm Field
	if variant <= 1 {
		imm = p.takePayload(width / 8)
	}
	return &Grp3{base: newBase(p.start, p.fields), mm: mm, width: width, variant: variant, imm: imm}, nil
}

var grp3Names = [8]string{"TEST", "TEST", "NOT", "NEG", "MUL", "IMUL", "DIV", "IDIV"}

func (g *Grp3) Mnemonic() string     { return grp3Names[g.variant] }
func (g *Grp3) ModRM() *ModRMContext { return g.mm }

func (g *Grp3) Execute(h *Helper) (SuccessorKind, error) {
	r := h.Resolver(g.mm)
	alu := ALU{}
	switch g.variant {
	case 0, 1:
		alu.And(h.State, g.width, r.RM(g.width), uint32(g.imm.LiveValue(h.Mem)))
	case 2:
		r.SetRM(g.width, alu.Not(g.width, r.RM(g.width)))
	case 3:
		r.SetRM(g.width, alu.Neg(h.State, g.width, r.RM(g.width)))
	case 4:
		lo, hi := alu.MulUnsigned(h.State, g.width, h.State.Reg(0, g.width), r.RM(g.width))
		g.storeWide(h, lo, hi)
	case 5:
		lo, hi := alu.MulSigned(h.State, g.width, h.State.Reg(0, g.width), r.RM(g.width))
		g.storeWide(h, lo, hi)
	case 6:
		lo, hi := g.dividend(h)
		q, rem, err := alu.DivUnsigned(g.width, lo, hi, r.RM(g.width))
		if err != nil {
			return 0, h.Raise(err.(*CpuException))
		}
		g.storeQuotient(h, q, rem)
	case 7:
		lo, hi := g.dividend(h)
		q, rem, err := alu.DivSigned(g.width, lo, hi, r.RM(g.width))
		if err != nil {
			return 0, h.Raise(err.(*CpuException))
		}
		g.storeQuotient(h, q, rem)
	}
	return g.fallThrough(h)
}

// dividend returns the (low,high) halves of the implicit AX / DX:AX /
// EDX:EAX dividend, per width, matching the teacher's divGroup helper.
func (g *Grp3) dividend(h *Helper) (lo, hi uint32) {
	switch g.width {
	case 8:
		return uint32(h.State.AX()), 0
	case 16:
		return uint32(h.State.AX()), uint32(h.State.DX())
	default:
		return h.State.EAX, h.State.EDX
	}
}

func (g *Grp3) storeWide(h *Helper, lo, hi uint32) {
	switch g.width {
	case 8:
		h.State.SetAX(uint16(hi)<<8 | uint16(lo))
	case 16:
		h.State.SetAX(uint16(lo))
		h.State.SetDX(uint16(hi))
	default:
		h.State.EAX = lo
		h.State.EDX = hi
	}
}

func (g *Grp3) storeQuotient(h *Helper, q, rem uint32) {
	switch g.width {
	case 8:
		h.State.SetAL(byte(q))
		h.State.SetAH(byte(rem))
	case 16:
		h.State.SetAX(uint16(q))
		h.State.SetDX(uint16(rem))
	default:
		h.State.EAX = q
		h.State.EDX = rem
	}
}

func (g *Grp3) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(g.width)
	rm := rmOperandNode(b, g.mm, dt)
	if g.variant <= 1 {
		return b.Insn(g.Mnemonic(), ast.OpKindGeneric, rm, b.Const(dt, g.imm.Value))
	}
	return b.Insn(g.Mnemonic(), ast.OpKindGeneric, rm)
}

func (g *Grp3) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(g.width)
	rm := rmOperandNode(b, g.mm, dt)
	var effect ast.Node
	switch g.variant {
	case 0, 1:
		effect = b.MethodCall("TEST", rm, b.Const(dt, g.imm.Value))
	case 2:
		effect = b.Assign(dt, rm, b.Un(dt, ast.OpBitNot, rm))
	case 3:
		effect = b.Assign(dt, rm, b.Un(dt, ast.OpNeg, rm))
	default:
		effect = b.MethodCall(g.Mnemonic(), rm)
	}
	return b.Block(effect, b.MoveIPNext(int(g.totalLen())))
}

// aluOpKind maps an ALU mnemonic to the closest OperationKind for the
// disassembly-form InstructionNode; operators without a dedicated kind fall
// back to OpKindGeneric, matching the AST's deliberately small enum.
func aluOpKind(name string) ast.OperationKind {
	switch name {
	case "ADD":
		return ast.OpKindAdd
	case "SUB":
		return ast.OpKindSub
	case "CMP":
		return ast.OpKindCmp
	default:
		return ast.OpKindGeneric
	}
}

// aluEffect renders the semantic effect of one Grp1 operator: a direct
// BinaryOp assignment when one exists (ADD/OR/AND/SUB/XOR), a MethodCall
// naming the ALU routine otherwise (ADC/SBB carry-chain), and a bare
// MethodCall with no assignment for CMP (flags only, result discarded).
func aluEffect(b *ast.Builder, dt ast.DataType, op aluOp, dst, src ast.Node) ast.Node {
	if !op.store {
		return b.MethodCall(op.name, dst, src)
	}
	if op.hasBin {
		return b.Assign(dt, dst, b.Bin(dt, dst, op.binOp, src))
	}
	return b.Assign(dt, dst, b.Call(op.name, dst, src))
}
