// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "github.com/intuitionamiga/x86cfg/ast"

// Instruction is the Parsed Instruction Catalog contract (C6): every
// concrete variant (MovRegImm, AluImm, JmpNear, ...)
// carries an executor, both AST lowerings, and a signature.
//
// Capability traits named in §3 (has-value-field, has-register-index,
// has-modrm, string-op, return-instruction, can-cause-context-restore) are
// expressed as optional narrower interfaces below rather than boolean
// fields, so a visitor/analyzer can type-assert for the capability it
// needs instead of checking a flag.
type Instruction interface {
	// Address is the linear address of the first byte of this instruction.
	Address() uint32
	// Fields is the ordered list of fields covering the instruction's byte
	// footprint with no gaps (§3 field-coverage invariant).
	Fields() []Field
	// Signature is BuildSignature(Fields()), cached at construction.
	Signature() Signature
	// Mnemonic names the operation for disassembly and logging.
	Mnemonic() string
	// Execute mutates CPU state via the helper and returns the kind of
	// control-flow transition it performed (§4.3 edge creation).
	Execute(h *Helper) (SuccessorKind, error)
	// ToInstructionAST is the disassembly lowering (§4.2).
	ToInstructionAST(b *ast.Builder) ast.Node
	// GenerateExecutionAST is the full semantic-effect lowering (§4.2).
	GenerateExecutionAST(b *ast.Builder) ast.Node
}

// SuccessorKind labels a CFG edge's transition kind (§4.3 edge creation).
type SuccessorKind int

const (
	SuccessorFallThrough SuccessorKind = iota
	SuccessorTaken
	SuccessorReturn
)

func (k SuccessorKind) String() string {
	switch k {
	case SuccessorFallThrough:
		return "fall-through"
	case SuccessorTaken:
		return "taken"
	case SuccessorReturn:
		return "return"
	default:
		return "unknown"
	}
}

// HasValueField is the capability trait for instructions carrying an
// immediate/value operand (e.g. MovRegImm, AluImm).
type HasValueField interface {
	ValueField() Field
}

// HasRegisterIndex is the capability trait for instructions whose opcode
// encodes a register operand directly (e.g. the 0xB8+r MOV-reg-imm family,
// 0x40+r INC family).
type HasRegisterIndex interface {
	RegisterIndex() byte
}

// HasModRM is the capability trait for instructions that consumed a
// ModR/M (and possibly SIB/displacement) byte.
type HasModRM interface {
	ModRM() *ModRMContext
}

// StringOp is the capability trait for REP-prefixable string instructions
// (MOVSB/STOSB/...).
type StringOp interface {
	RepPrefix() RepKind
}

// RepKind distinguishes the three REP prefix polarities (§4.5).
type RepKind int

const (
	RepNone RepKind = iota
	Rep
	RepE
	RepNE
)

// ReturnInstruction is the capability trait for RET/IRET-family instructions.
type ReturnInstruction interface {
	IsReturn() bool
}

// CanCauseContextRestore is the capability trait for instructions that may
// pop flags/CS/IP off the stack (IRET) or otherwise restore a prior
// execution context.
type CanCauseContextRestore interface {
	RestoresContext() bool
}
