// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

import "fmt"

// parseState threads the in-progress parse of one instruction (C5): the
// memory port, the instruction's start address, the read cursor, the
// fields accumulated so far, and the prefix-derived widths/overrides that
// affect how the remaining bytes are interpreted.
type parseState struct {
	mem    MemoryPort
	start  uint32
	cursor uint32
	fields []Field

	operandSize int // 16 or 32, default 16 (real mode)
	addrSize    int // 16 or 32, default 16
	segOverride int // -1 if none
	rep         RepKind
	lock        bool
}

func newParseState(mem MemoryPort, start uint32) *parseState {
	return &parseState{mem: mem, start: start, cursor: start, operandSize: 16, addrSize: 16, segOverride: -1}
}

func (p *parseState) nextIndex() byte { return byte(len(p.fields)) }

// takeFixed consumes n raw bytes from the cursor as a signature-bearing
// field (prefixes, opcode bytes, ModR/M, SIB, branch displacement).
func (p *parseState) takeFixed(n int) (Field, []byte) {
	raw := p.mem.ReadSpan(p.cursor, n)
	f := NewFixedField(p.cursor, p.nextIndex(), raw)
	p.cursor += uint32(n)
	p.fields = append(p.fields, f)
	return f, raw
}

// takePayload consumes n raw bytes as a wildcarded (non-signature) field --
// used for immediates, per §3's "payload byte that does not affect semantics".
func (p *parseState) takePayload(n int) Field {
	raw := p.mem.ReadSpan(p.cursor, n)
	f := NewPayloadField(p.cursor, p.nextIndex(), raw)
	p.cursor += uint32(n)
	p.fields = append(p.fields, f)
	return f
}

func (p *parseState) peekByte() byte { return p.mem.ReadU8(p.cursor) }

func (p *parseState) totalLength() int { return int(p.cursor - p.start) }

// consumePrefixes greedily consumes prefix bytes per §4.1 step 1.
func (p *parseState) consumePrefixes() {
	for {
		b := p.peekByte()
		switch b {
		case 0x26:
			p.takeFixed(1)
			p.segOverride = SegES
		case 0x2E:
			p.takeFixed(1)
			p.segOverride = SegCS
		case 0x36:
			p.takeFixed(1)
			p.segOverride = SegSS
		case 0x3E:
			p.takeFixed(1)
			p.segOverride = SegDS
		case 0x64:
			p.takeFixed(1)
			p.segOverride = SegFS
		case 0x65:
			p.takeFixed(1)
			p.segOverride = SegGS
		case 0x66:
			p.takeFixed(1)
			p.operandSize = 32
		case 0x67:
			p.takeFixed(1)
			p.addrSize = 32
		case 0xF0:
			p.takeFixed(1)
			p.lock = true
		case 0xF2:
			p.takeFixed(1)
			p.rep = RepNE
		case 0xF3:
			p.takeFixed(1)
			p.rep = Rep
		default:
			return
		}
	}
}

// parseModRM consumes a ModR/M byte and, if required, a SIB byte and
// displacement, per §4.1/§4.6.
func (p *parseState) parseModRM() *ModRMContext {
	_, raw := p.takeFixed(1)
	b := raw[0]
	m := &ModRMContext{
		Raw:         b,
		Mod:         b >> 6,
		Reg:         (b >> 3) & 7,
		RM:          b & 7,
		AddrWidth:   AddrWidth(p.addrSize),
		SegOverride: p.segOverride,
		DefaultSeg:  SegDS,
		Base16:      -1,
		Index16:     -1,
		SIBIndex:    -1,
		SIBBase:     -1,
	}
	if m.Mod == 3 {
		m.IsRegister = true
		return m
	}
	if p.addrSize == 16 {
		p.parseModRM16(m)
	} else {
		p.parseModRM32(m)
	}
	return m
}

// modrm16Table maps r/m (0-7) to (base,index) register-16 indices (per
// regValue16: 0=BX,1=BP,2=SI,3=DI), following the classic 8086 table.
var modrm16Table = [8][2]int8{
	{0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, -1}, {3, -1}, {1, -1}, {0, -1},
}

func (p *parseState) parseModRM16(m *ModRMContext) {
	entry := modrm16Table[m.RM]
	m.Base16, m.Index16 = entry[0], entry[1]
	if m.Base16 == 1 { // BP-based -> SS default
		m.DefaultSeg = SegSS
	}
	switch m.Mod {
	case 0:
		if m.RM == 6 {
			// disp16-only addressing: no base/index.
			m.Base16, m.Index16 = -1, -1
			f := p.takeFixed(2)
			_ = f
			m.Disp16 = int16(p.fields[len(p.fields)-1].U16())
			m.HasDisp16 = true
			m.DefaultSeg = SegDS
		}
	case 1:
		p.takeFixed(1)
		m.Disp16 = int16(int8(p.fields[len(p.fields)-1].U8()))
		m.HasDisp16 = true
	case 2:
		p.takeFixed(2)
		m.Disp16 = int16(p.fields[len(p.fields)-1].U16())
		m.HasDisp16 = true
	}
}

func (p *parseState) parseModRM32(m *ModRMContext) {
	if m.RM == 4 {
		_, raw := p.takeFixed(1)
		sib := raw[0]
		m.HasSIB = true
		m.Scale = sib >> 6
		idx := (sib >> 3) & 7
		base := sib & 7
		if idx != 4 {
			m.SIBIndex = int8(idx)
		}
		m.SIBBase = int8(base)
		if m.Mod == 0 && base == 5 {
			m.SIBBase = -1
			p.takeFixed(4)
			m.Disp32 = int32(p.fields[len(p.fields)-1].U32())
			m.HasDisp = true
		}
	} else if m.Mod == 0 && m.RM == 5 {
		p.takeFixed(4)
		m.Disp32 = int32(p.fields[len(p.fields)-1].U32())
		m.HasDisp = true
		m.Base16 = -1
	} else {
		m.Base16 = int8(m.RM)
	}
	switch m.Mod {
	case 1:
		p.takeFixed(1)
		m.Disp32 = int32(int8(p.fields[len(p.fields)-1].U8()))
		m.HasDisp = true
	case 2:
		p.takeFixed(4)
		m.Disp32 = int32(p.fields[len(p.fields)-1].U32())
		m.HasDisp = true
	}
}

// opcodeParser parses the remainder of an instruction given the opcode byte
// already known; it is what the dispatch table maps opcodes to.
type opcodeParser func(p *parseState, opcode byte) (Instruction, error)

// opcodeTable is built once, the way the teacher's initBaseOps populates
// baseOps with captured-index closures for parameterized opcode ranges.
var opcodeTable [256]opcodeParser
var extendedTable [256]opcodeParser

func init() {
	registerMovOpcodes()
	registerAluOpcodes()
	registerJumpOpcodes()
	registerStringOpcodes()
	registerMiscOpcodes()
	registerCallbackOpcodes()
}

// ParseInstruction is the Parser component's entry point (C5), matching
// ParseFunc: byte stream -> ParsedInstruction variant + length consumed
// (length is recoverable from the returned Instruction's Fields()).
func ParseInstruction(mem MemoryPort, addr uint32) (Instruction, error) {
	p := newParseState(mem, addr)
	p.consumePrefixes()
	opByte := p.peekByte()
	p.takeFixed(1)
	table := opcodeTable
	if opByte == 0x0F {
		table = extendedTable
		opByte = p.peekByte()
		p.takeFixed(1)
	}
	fn := table[opByte]
	if fn == nil {
		return nil, invalidOpcode(fmt.Sprintf("unknown opcode %#02x at %s", opByte, addrHex(addr)))
	}
	return fn(p, opByte)
}
