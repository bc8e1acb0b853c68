// (c) 2024-2026 Zayn Otley - GPLv3 or later

package ast

// Builder provides fluent construction of AST nodes from the semantic
// intent expressed in each catalog instruction's ToInstructionAST and
// GenerateExecutionAST methods (C8). It holds no state of its own; its
// methods are thin constructors kept together so instruction variants read
// as a sequence of builder calls rather than bare struct literals.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

func (*Builder) Const(t DataType, v uint64) Node { return Constant{Type: t, Value: v} }
func (*Builder) Reg(index int, t DataType) Node   { return Register{Index: index, Type: t} }
func (*Builder) SegReg(index int) Node            { return SegmentRegister{Index: index} }
func (*Builder) Flag(mask uint32) Node            { return CpuFlag{Mask: mask} }

func (*Builder) AbsPtr(t DataType, addr Node) Node {
	return AbsolutePointer{Type: t, Addr: addr}
}

func (*Builder) SegPtr(t DataType, seg, off Node) Node {
	return SegmentedPointer{Type: t, Seg: seg, Off: off}
}

func (*Builder) Var(name string, t DataType) Node { return VariableReference{Name: name, Type: t} }

func (*Builder) Bin(t DataType, left Node, op BinOp, right Node) Node {
	return BinaryOp{Type: t, Left: left, Op: op, Right: right}
}

func (*Builder) Un(t DataType, op UnOp, v Node) Node {
	return UnaryOp{Type: t, Op: op, Value: v}
}

func (*Builder) Convert(target DataType, v Node) Node {
	return TypeConversion{Target: target, Value: v}
}

func (*Builder) Call(name string, args ...Node) Node {
	return MethodCallValue{Name: name, Args: args}
}

func (*Builder) Assign(t DataType, dst, src Node) Node {
	return BinaryOp{Type: t, Left: dst, Op: OpAssign, Right: src}
}

func (*Builder) Insn(name string, kind OperationKind, args ...Node) Node {
	return InstructionNode{Name: name, Operation: kind, Args: args}
}

func (*Builder) Block(stmts ...Node) Node { return Block{Statements: stmts} }

func (*Builder) If(cond, then, els Node) Node {
	return IfElse{Condition: cond, Then: then, Else: els}
}

func (*Builder) VarDecl(name string, t DataType, init Node) Node {
	return VariableDeclaration{Name: name, Type: t, Init: init}
}

func (*Builder) MethodCall(name string, args ...Node) Node {
	return MethodCall{Name: name, Args: args}
}

// MoveIPNext is the IP-advancement sub-tree every GenerateExecutionAST must
// end with unless the instruction is itself a control-flow terminator (§4.2).
func (*Builder) MoveIPNext(n int) Node { return MoveIPNext{ByteCount: n} }

func (*Builder) CallNearTo(target Node) Node       { return CallNear{Target: target} }
func (*Builder) CallFarTo(seg, off Node) Node      { return CallFar{Segment: seg, Offset: off} }
func (*Builder) RetNear() Node                      { return ReturnNear{} }
func (*Builder) RetFar() Node                       { return ReturnFar{} }
func (*Builder) JmpNearTo(target Node) Node         { return JumpNear{Target: target} }
func (*Builder) JmpFarTo(seg, off Node) Node        { return JumpFar{Segment: seg, Offset: off} }
func (*Builder) Int(vector byte) Node               { return InterruptCall{Vector: vector} }
func (*Builder) IRet() Node                          { return ReturnInterrupt{} }

// Registers exposes the legacy 8/16/32-bit register-encoding names used by
// the disassembly lowering; indices follow the ModR/M encoding order.
var (
	Reg8Names  = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}
	Reg16Names = [8]string{"AX", "CX", "DX", "BX", "SP", "BP", "SI", "DI"}
	Reg32Names = [8]string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI"}
	SegNames   = [6]string{"ES", "CS", "SS", "DS", "FS", "GS"}
)

// RegName returns the conventional x86 register name for (index, width),
// grounded in the teacher's debug_disasm_x86.go register-name tables.
func RegName(index int, width int) string {
	switch width {
	case 8:
		return Reg8Names[index&7]
	case 16:
		return Reg16Names[index&7]
	default:
		return Reg32Names[index&7]
	}
}
