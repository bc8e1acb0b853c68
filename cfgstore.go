// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

// ParseFunc parses one instruction out of mem starting at the given linear
// address. It is supplied by the Parser (C5) so the CFG Node Store (C9)
// never depends on parser internals directly.
type ParseFunc func(mem MemoryPort, addr uint32) (Instruction, error)

// Store is the CFG Node Store component (C9): a map from linear address to
// the set of candidate nodes observed there, plus exactly one live node,
// and the successor edges recorded per (source, kind).
//
// The store is CPU-only (§5): it is never touched by peripheral goroutines,
// so it carries no lock of its own.
type Store struct {
	mem    MemoryPort
	parse  ParseFunc
	slots  map[uint32]*addressSlot
	edges  map[edgeKey]uint32
}

type edgeKey struct {
	from uint32
	kind SuccessorKind
}

// NewStore constructs an empty node store backed by mem, using parse to
// decode bytes on first visit or on divergence.
func NewStore(mem MemoryPort, parse ParseFunc) *Store {
	return &Store{
		mem:   mem,
		parse: parse,
		slots: make(map[uint32]*addressSlot),
		edges: make(map[edgeKey]uint32),
	}
}

// Fetch implements the on-fetch algorithm of §4.3: create on first visit,
// reuse when the live candidate's signature still matches memory, else
// detect divergence and interpose/extend a selector.
func (s *Store) Fetch(addr uint32) (Node, error) {
	slot, ok := s.slots[addr]
	if !ok {
		inst, err := s.parse(s.mem, addr)
		if err != nil {
			return Node{}, err
		}
		slot = &addressSlot{addr: addr, candidates: []Instruction{inst}, liveIdx: 0}
		s.slots[addr] = slot
		return s.nodeView(slot), nil
	}

	live := slot.candidates[slot.liveIdx]
	mem := s.mem.ReadSpan(addr, len(live.Signature()))
	if live.Signature().Matches(mem) {
		return s.nodeView(slot), nil
	}

	// Divergence: parse the current bytes and find or add a candidate.
	fresh, err := s.parse(s.mem, addr)
	if err != nil {
		return Node{}, err
	}
	idx := -1
	for i, c := range slot.candidates {
		if c.Signature().Equal(fresh.Signature()) {
			idx = i
			break
		}
	}
	if idx < 0 {
		slot.candidates = append(slot.candidates, fresh)
		idx = len(slot.candidates) - 1
	}
	slot.liveIdx = idx
	return s.nodeView(slot), nil
}

func (s *Store) nodeView(slot *addressSlot) Node {
	return Node{Addr: slot.addr, Candidates: append([]Instruction(nil), slot.candidates...), Live: slot.candidates[slot.liveIdx]}
}

// Select implements selector execution (§4.3): iterate candidates in
// insertion order, return the first whose signature matches live memory.
// Returns a VmFault wrapping ErrNoMatchingCandidate if none match.
func (s *Store) Select(addr uint32) (Instruction, error) {
	slot, ok := s.slots[addr]
	if !ok {
		return nil, newVmFault("select at address with no node", ErrCorruptedCFG)
	}
	mem := s.mem.ReadSpan(addr, maxSigLen(slot.candidates))
	for _, c := range slot.candidates {
		if c.Signature().Matches(mem) {
			return c, nil
		}
	}
	return nil, newVmFault("selector at "+addrHex(addr), ErrNoMatchingCandidate)
}

func maxSigLen(cands []Instruction) int {
	n := 0
	for _, c := range cands {
		if l := len(c.Signature()); l > n {
			n = l
		}
	}
	return n
}

// AddEdge records current->successor labeled by kind, unique per
// (source, kind) -- a later call with the same (source, kind) simply
// overwrites the target, matching "edges are unique per (source, kind)".
func (s *Store) AddEdge(from uint32, kind SuccessorKind, to uint32) {
	s.edges[edgeKey{from, kind}] = to
}

// Edges returns every recorded edge, for CFG idempotence checks (§8.3) and
// the inspect CLI subcommand's dump.
func (s *Store) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for k, to := range s.edges {
		out = append(out, Edge{FromAddr: k.from, Kind: k.kind, ToAddr: to})
	}
	return out
}

// Nodes returns every address currently tracked, for the inspect CLI.
func (s *Store) Nodes() []uint32 {
	out := make([]uint32, 0, len(s.slots))
	for addr := range s.slots {
		out = append(out, addr)
	}
	return out
}

// SelectorCount returns how many addresses have diverged into a selector
// with more than one candidate.
func (s *Store) SelectorCount() int {
	n := 0
	for _, slot := range s.slots {
		if len(slot.candidates) > 1 {
			n++
		}
	}
	return n
}

func addrHex(a uint32) string {
	const hexDigits = "0123456789ABCDEF"
	b := [8]byte{}
	for i := 7; i >= 0; i-- {
		b[i] = hexDigits[a&0xF]
		a >>= 4
	}
	return "0x" + string(b[:])
}
