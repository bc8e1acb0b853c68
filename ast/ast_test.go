package ast

import (
	"errors"
	"testing"
)

func TestBaseVisitor_UnhandledVariantsReturnErrUnsupportedNode(t *testing.T) {
	var v BaseVisitor
	nodes := []Node{
		Constant{Type: U16, Value: 1},
		Register{Index: 0, Type: U16},
		SegmentRegister{Index: 0},
		CpuFlag{Mask: 1},
		AbsolutePointer{Type: U8, Addr: Constant{Type: U16, Value: 0}},
		SegmentedPointer{Type: U8, Seg: SegmentRegister{Index: 0}, Off: Constant{Type: U16, Value: 0}},
		VariableReference{Name: "x", Type: U16},
		BinaryOp{Type: U16, Left: Constant{Type: U16, Value: 1}, Op: OpAdd, Right: Constant{Type: U16, Value: 2}},
		UnaryOp{Type: U16, Op: OpNeg, Value: Constant{Type: U16, Value: 1}},
		TypeConversion{Target: U32, Value: Constant{Type: U16, Value: 1}},
		MethodCallValue{Name: "f"},
		InstructionNode{Name: "NOP"},
		Block{},
		IfElse{Condition: Constant{Type: U16, Value: 1}, Then: Block{}, Else: Block{}},
		VariableDeclaration{Name: "x", Type: U16, Init: Constant{Type: U16, Value: 0}},
		MethodCall{Name: "f"},
		MoveIPNext{ByteCount: 1},
		CallNear{Target: Constant{Type: U16, Value: 0}},
		CallFar{Segment: Constant{Type: U16, Value: 0}, Offset: Constant{Type: U16, Value: 0}},
		ReturnNear{},
		ReturnFar{},
		JumpNear{Target: Constant{Type: U16, Value: 0}},
		JumpFar{Segment: Constant{Type: U16, Value: 0}, Offset: Constant{Type: U16, Value: 0}},
		InterruptCall{Vector: 3},
		ReturnInterrupt{},
	}
	for _, n := range nodes {
		_, err := n.Accept(v)
		if !errors.Is(err, ErrUnsupportedNode) {
			t.Errorf("%T: Accept(BaseVisitor{}) err got %v, want ErrUnsupportedNode", n, err)
		}
	}
}

func TestDisassembler_RendersMovRegImm(t *testing.T) {
	b := NewBuilder()
	insn := b.Insn("MOV", OpKindMov, b.Reg(0, U16), b.Const(U16, 0x1234))

	d := NewDisassembler()
	got := d.Render(insn)
	want := "MOV AX, 0x1234"
	if got != want {
		t.Errorf("Render got %q, want %q", got, want)
	}
}

func TestDisassembler_RendersSegmentedPointer(t *testing.T) {
	b := NewBuilder()
	ptr := b.SegPtr(U8, b.SegReg(3), b.Reg(6, U16))

	d := NewDisassembler()
	got := d.Render(ptr)
	want := "DS:[SI]"
	if got != want {
		t.Errorf("Render got %q, want %q", got, want)
	}
}

func TestDisassembler_RendersJumpAndInterrupt(t *testing.T) {
	d := NewDisassembler()
	b := NewBuilder()

	if got, want := d.Render(JumpNear{Target: b.Const(U16, 0x0100)}), "JMP 0x100"; got != want {
		t.Errorf("JumpNear: got %q, want %q", got, want)
	}
	if got, want := d.Render(InterruptCall{Vector: 0x21}), "INT 0x21"; got != want {
		t.Errorf("InterruptCall: got %q, want %q", got, want)
	}
	if got, want := d.Render(ReturnNear{}), "RET"; got != want {
		t.Errorf("ReturnNear: got %q, want %q", got, want)
	}
}
