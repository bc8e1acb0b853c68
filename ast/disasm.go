// (c) 2024-2026 Zayn Otley - GPLv3 or later

package ast

import "fmt"

// Disassembler renders a ToInstructionAST tree back to an Intel-syntax
// string, the way debug_disasm_x86.go's decodeModRM/register-name tables
// render operands (e.g. "[BX+SI]", "AX, 0x1234") -- but operating on the
// AST instead of re-walking raw bytes, since the AST is now the single
// source of truth for both execution and disassembly (§4.2).
type Disassembler struct {
	BaseVisitor
}

func NewDisassembler() *Disassembler { return &Disassembler{} }

// Render renders any Node to its disassembly-style string form.
func (d *Disassembler) Render(n Node) string {
	v, err := n.Accept(d)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	s, _ := v.(string)
	return s
}

func (d *Disassembler) VisitConstant(n Constant) (any, error) {
	return fmt.Sprintf("0x%X", n.Value), nil
}

func (d *Disassembler) VisitRegister(n Register) (any, error) {
	return RegName(n.Index, n.Type.BitWidth), nil
}

func (d *Disassembler) VisitSegmentRegister(n SegmentRegister) (any, error) {
	return SegNames[n.Index%len(SegNames)], nil
}

func (d *Disassembler) VisitCpuFlag(n CpuFlag) (any, error) {
	return fmt.Sprintf("FLAGS(%#x)", n.Mask), nil
}

func (d *Disassembler) VisitAbsolutePointer(n AbsolutePointer) (any, error) {
	return fmt.Sprintf("[%s]", d.Render(n.Addr)), nil
}

func (d *Disassembler) VisitSegmentedPointer(n SegmentedPointer) (any, error) {
	return fmt.Sprintf("%s:[%s]", d.Render(n.Seg), d.Render(n.Off)), nil
}

func (d *Disassembler) VisitVariableReference(n VariableReference) (any, error) {
	return n.Name, nil
}

var binOpSymbols = map[BinOp]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=",
	OpLAnd: "&&", OpLOr: "||", OpAnd: "&", OpOr: "|", OpXor: "^",
	OpShl: "<<", OpShr: ">>", OpAssign: ",",
}

func (d *Disassembler) VisitBinaryOp(n BinaryOp) (any, error) {
	if n.Op == OpAssign {
		return fmt.Sprintf("%s, %s", d.Render(n.Left), d.Render(n.Right)), nil
	}
	return fmt.Sprintf("%s %s %s", d.Render(n.Left), binOpSymbols[n.Op], d.Render(n.Right)), nil
}

func (d *Disassembler) VisitUnaryOp(n UnaryOp) (any, error) {
	sym := map[UnOp]string{OpNeg: "-", OpNot: "!", OpBitNot: "~"}[n.Op]
	return fmt.Sprintf("%s%s", sym, d.Render(n.Value)), nil
}

func (d *Disassembler) VisitTypeConversion(n TypeConversion) (any, error) {
	return d.Render(n.Value), nil
}

func (d *Disassembler) VisitMethodCallValue(n MethodCallValue) (any, error) {
	return d.renderCall(n.Name, n.Args), nil
}

func (d *Disassembler) renderCall(name string, args []Node) string {
	s := name + "("
	for i, a := range args {
		if i > 0 {
			s += ", "
		}
		s += d.Render(a)
	}
	return s + ")"
}

func (d *Disassembler) VisitInstructionNode(n InstructionNode) (any, error) {
	s := n.Name
	for i, a := range n.Args {
		if i == 0 {
			s += " "
		} else {
			s += ", "
		}
		s += d.Render(a)
	}
	return s, nil
}

func (d *Disassembler) VisitBlock(n Block) (any, error) {
	s := ""
	for i, st := range n.Statements {
		if i > 0 {
			s += "; "
		}
		s += d.Render(st)
	}
	return s, nil
}

func (d *Disassembler) VisitIfElse(n IfElse) (any, error) {
	return fmt.Sprintf("if (%s) { %s } else { %s }", d.Render(n.Condition), d.Render(n.Then), d.Render(n.Else)), nil
}

func (d *Disassembler) VisitVariableDeclaration(n VariableDeclaration) (any, error) {
	return fmt.Sprintf("%s := %s", n.Name, d.Render(n.Init)), nil
}

func (d *Disassembler) VisitMethodCall(n MethodCall) (any, error) {
	return d.renderCall(n.Name, n.Args), nil
}

func (d *Disassembler) VisitMoveIPNext(n MoveIPNext) (any, error) {
	return fmt.Sprintf("IP += %d", n.ByteCount), nil
}

func (d *Disassembler) VisitCallNear(n CallNear) (any, error) {
	return "CALL " + d.Render(n.Target), nil
}

func (d *Disassembler) VisitCallFar(n CallFar) (any, error) {
	return fmt.Sprintf("CALL FAR %s:%s", d.Render(n.Segment), d.Render(n.Offset)), nil
}

func (d *Disassembler) VisitReturnNear(ReturnNear) (any, error) { return "RET", nil }
func (d *Disassembler) VisitReturnFar(ReturnFar) (any, error)   { return "RETF", nil }

func (d *Disassembler) VisitJumpNear(n JumpNear) (any, error) {
	return "JMP " + d.Render(n.Target), nil
}

func (d *Disassembler) VisitJumpFar(n JumpFar) (any, error) {
	return fmt.Sprintf("JMP FAR %s:%s", d.Render(n.Segment), d.Render(n.Offset)), nil
}

func (d *Disassembler) VisitInterruptCall(n InterruptCall) (any, error) {
	return fmt.Sprintf("INT %#02x", n.Vector), nil
}

func (d *Disassembler) VisitReturnInterrupt(ReturnInterrupt) (any, error) { return "IRET", nil }
