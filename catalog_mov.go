// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import (
	"fmt"

	"github.com/intuitionamiga/x86cfg/ast"
)

func registerMovOpcodes() {
	for r := byte(0); r < 8; r++ {
		reg := r
		opcodeTable[0xB0+reg] = func(p *parseState, _ byte) (Instruction, error) {
			return parseMovRegImm(p, reg, 8)
		}
		opcodeTable[0xB8+reg] = func(p *parseState, _ byte) (Instruction, error) {
			return parseMovRegImm(p, reg, p.operandSize)
		}
	}
	opcodeTable[0x88] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRM(p, 8, false) }
	opcodeTable[0x89] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRM(p, p.operandSize, false) }
	opcodeTable[0x8A] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRM(p, 8, true) }
	opcodeTable[0x8B] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRM(p, p.operandSize, true) }
	opcodeTable[0xC6] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRMImm(p, 8) }
	opcodeTable[0xC7] = func(p *parseState, _ byte) (Instruction, error) { return parseMovRMImm(p, p.operandSize) }
}

// MovRegImm is the MovRegImm8/16/32 family: opcode encodes the destination
// register directly (HasRegisterIndex), followed by an immediate of the
// declared width (HasValueField). Grounded in the teacher's 0xB8+r
// captured-index closure population of baseOps.
type MovRegImm struct {
	base
	reg   byte
	width int
	imm   Field
}

func parseMovRegImm(p *parseState, reg byte, width int) (Instruction, error) {
	imm := p.takePayload(width / 8)
	return &MovRegImm{base: newBase(p.start, p.fields), reg: reg, width: width, imm: imm}, nil
}

func (m *MovRegImm) Mnemonic() string     { return "MOV" }
func (m *MovRegImm) RegisterIndex() byte  { return m.reg }
func (m *MovRegImm) ValueField() Field    { return m.imm }

func (m *MovRegImm) Execute(h *Helper) (SuccessorKind, error) {
	h.State.SetReg(m.reg, m.width, uint32(m.imm.LiveValue(h.Mem)))
	return m.fallThrough(h)
}

func (m *MovRegImm) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	return b.Insn("MOV", ast.OpKindMov, b.Reg(int(m.reg), dt), b.Const(dt, m.imm.Value))
}

func (m *MovRegImm) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	assign := b.Assign(dt, b.Reg(int(m.reg), dt), b.Const(dt, m.imm.Value))
	return b.Block(assign, b.MoveIPNext(int(m.totalLen())))
}

// MovRM is the MOV r/m,reg / MOV reg,r/m family (0x88-0x8B): HasModRM.
// toReg selects direction: true means ModRM.reg is the destination.
type MovRM struct {
	base
	mm    *ModRMContext
	width int
	toReg bool
}

func parseMovRM(p *parseState, width int, toReg bool) (Instruction, error) {
	mm := p.parseModRM()
	return &MovRM{base: newBase(p.start, p.fields), mm: mm, width: width, toReg: toReg}, nil
}

func (m *MovRM) Mnemonic() string      { return "MOV" }
func (m *MovRM) ModRM() *ModRMContext  { return m.mm }

func (m *MovRM) Execute(h *Helper) (SuccessorKind, error) {
	r := h.Resolver(m.mm)
	if m.toReg {
		h.State.SetReg(m.mm.Reg, m.width, r.RM(m.width))
	} else {
		r.SetRM(m.width, h.State.Reg(m.mm.Reg, m.width))
	}
	return m.fallThrough(h)
}

func (m *MovRM) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	regNode := b.Reg(int(m.mm.Reg), dt)
	rmNode := rmOperandNode(b, m.mm, dt)
	if m.toReg {
		return b.Insn("MOV", ast.OpKindMov, regNode, rmNode)
	}
	return b.Insn("MOV", ast.OpKindMov, rmNode, regNode)
}

func (m *MovRM) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	regNode := b.Reg(int(m.mm.Reg), dt)
	rmNode := rmOperandNode(b, m.mm, dt)
	var assign ast.Node
	if m.toReg {
		assign = b.Assign(dt, regNode, rmNode)
	} else {
		assign = b.Assign(dt, rmNode, regNode)
	}
	return b.Block(assign, b.MoveIPNext(int(m.totalLen())))
}

// MovRMImm is the MOV r/m,imm family (0xC6/0xC7): HasModRM + HasValueField.
type MovRMImm struct {
	base
	mm    *ModRMContext
	width int
	imm   Field
}

func parseMovRMImm(p *parseState, width int) (Instruction, error) {
	mm := p.parseModRM()
	imm := p.takePayload(width / 8)
	return &MovRMImm{base: newBase(p.start, p.fields), mm: mm, width: width, imm: imm}, nil
}

func (m *MovRMImm) Mnemonic() string     { return "MOV" }
func (m *MovRMImm) ModRM() *ModRMContext { return m.mm }
func (m *MovRMImm) ValueField() Field    { return m.imm }

func (m *MovRMImm) Execute(h *Helper) (SuccessorKind, error) {
	h.Resolver(m.mm).SetRM(m.width, uint32(m.imm.LiveValue(h.Mem)))
	return m.fallThrough(h)
}

func (m *MovRMImm) ToInstructionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	return b.Insn("MOV", ast.OpKindMov, rmOperandNode(b, m.mm, dt), b.Const(dt, m.imm.Value))
}

func (m *MovRMImm) GenerateExecutionAST(b *ast.Builder) ast.Node {
	dt := widthType(m.width)
	assign := b.Assign(dt, rmOperandNode(b, m.mm, dt), b.Const(dt, m.imm.Value))
	return b.Block(assign, b.MoveIPNext(int(m.totalLen())))
}

// widthType maps a bit width to the AST's DataType, used across every
// catalog file.
func widthType(width int) ast.DataType {
	switch width {
	case 8:
		return ast.U8
	case 16:
		return ast.U16
	default:
		return ast.U32
	}
}

// rmOperandNode renders a ModR/M r/m operand as either a Register value
// node (mod==11) or an AbsolutePointer over the computed effective
// address -- used by every ModRM-bearing catalog variant's AST lowering.
func rmOperandNode(b *ast.Builder, mm *ModRMContext, dt ast.DataType) ast.Node {
	if mm.IsRegister {
		return b.Reg(int(mm.RM), dt)
	}
	return b.AbsPtr(dt, b.Var(fmt.Sprintf("ea_%#x", mm.Raw), ast.U32))
}
