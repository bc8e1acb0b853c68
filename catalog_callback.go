// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import (
	"errors"

	"github.com/intuitionamiga/x86cfg/ast"
)

// registerCallbackOpcode wires the reserved FE 38 NN host-callback sequence
// (§6) into the 0xFE Grp4 byte (normally INC/DEC r/m8): ModR/M byte 0x38
// (mod=00, reg=111, rm=000) is not a valid INC/DEC encoding on real
// hardware, so this repository reserves it the way the teacher reserves
// unused opcode-group slots for host integration points.
func registerCallbackOpcodes() {
	opcodeTable[0xFE] = func(p *parseState, _ byte) (Instruction, error) { return parseCallbackOrIncDec8(p) }
}

const callbackModRMByte = 0x38

// CallbackOpcode is the FE 38 NN variant (C6): a three-byte instruction
// invoking host callback NN. Erasing it (§6) rewrites the bytes as
// `CD nn 90` (INT nn + NOP), which the CFG store picks up as ordinary SMC
// divergence -- no special-casing needed beyond this variant's own
// signature.
type CallbackOpcode struct {
	base
	index Field
}

// IncDecMem8 is the ordinary Grp4 INC/DEC r/m8 (0xFE, reg in {0,1}),
// provided alongside CallbackOpcode so 0xFE still behaves like real x86
// outside the reserved 0x38 ModR/M encoding.
type IncDecMem8 struct {
	base
	mm  *ModRMContext
	inc bool
}

func parseCallbackOrIncDec8(p *parseState) (Instruction, error) {
	raw := p.peekByte()
	if raw == callbackModRMByte {
		p.takeFixed(1) // the ModRM-shaped byte itself is part of the signature
		idx := p.takePayload(1)
		return &CallbackOpcode{base: newBase(p.start, p.fields), index: idx}, nil
	}
	mm := p.parseModRM()
	return &IncDecMem8{base: newBase(p.start, p.fields), mm: mm, inc: mm.Reg&1 == 0}, nil
}

func (c *CallbackOpcode) Mnemonic() string  { return "CALLBACK" }
func (c *CallbackOpcode) ValueField() Field { return c.index }

func (c *CallbackOpcode) Execute(h *Helper) (SuccessorKind, error) {
	if h.Callbacks == nil {
		return 0, newVmFault("callback opcode with no table registered", ErrCallbackNotFound)
	}
	index := c.index.LiveU8(h.Mem)
	if err := h.Callbacks.Dispatch(index, h); err != nil {
		var ge *GuestError
		if errors.As(err, &ge) {
			// §7: a GuestError is reported, not fatal -- the callback still
			// completes and falls through to the next instruction; the
			// executor loop logs ge and continues.
			kind, _ := c.fallThrough(h)
			return kind, ge
		}
		return 0, newVmFault("callback index "+addrHex(uint32(index)), err)
	}
	if h.HasNext {
		return h.NextKind, nil
	}
	return c.fallThrough(h)
}

func (c *CallbackOpcode) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn("CALLBACK", ast.OpKindGeneric, b.Const(ast.U8, uint64(c.index.U8())))
}

func (c *CallbackOpcode) GenerateExecutionAST(b *ast.Builder) ast.Node {
	call := b.MethodCall("DISPATCH_CALLBACK", b.Const(ast.U8, uint64(c.index.U8())))
	return b.Block(call, b.MoveIPNext(int(c.totalLen())))
}

func (i *IncDecMem8) Mnemonic() string {
	if i.inc {
		return "INC"
	}
	return "DEC"
}
func (i *IncDecMem8) ModRM() *ModRMContext { return i.mm }

func (i *IncDecMem8) Execute(h *Helper) (SuccessorKind, error) {
	r := h.Resolver(i.mm)
	savedCF := h.State.CF()
	v := uint32(r.RM8())
	var result uint32
	if i.inc {
		result = h.ALU.Add(h.State, 8, v, 1)
	} else {
		result = h.ALU.Sub(h.State, 8, v, 1)
	}
	h.State.SetCF(savedCF)
	r.SetRM8(byte(result))
	return i.fallThrough(h)
}

func (i *IncDecMem8) ToInstructionAST(b *ast.Builder) ast.Node {
	return b.Insn(i.Mnemonic(), ast.OpKindGeneric)
}

func (i *IncDecMem8) GenerateExecutionAST(b *ast.Builder) ast.Node {
	op := ast.OpAdd
	if !i.inc {
		op = ast.OpSub
	}
	return b.Block(b.MethodCall("RMW8", b.Const(ast.U8, uint64(op))), b.MoveIPNext(int(i.totalLen())))
}
