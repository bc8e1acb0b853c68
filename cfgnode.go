// (c) 2024-2026 Zayn Otley - GPLv3 or later

package cfgcpu

// Edge is a CFG edge from one address-slot candidate to another, labeled by
// its transition kind. Edges are unique per (source, kind) per §4.3.
type Edge struct {
	FromAddr uint32
	Kind     SuccessorKind
	ToAddr   uint32
}

// addressSlot holds every candidate instruction node observed at a linear
// address, plus the index of the currently-live one. When len(candidates)
// grows past one the slot is "behind a selector" (§3 CFG node variants):
// SelectorNode is not a separate Go type here, it is this slot once it has
// more than one candidate -- the Node returned by the store's Fetch exposes
// a Selector view in that case (see Node below), matching the spec's
// "SelectorNode ordered map signature -> instruction-node" without forcing
// a second struct hierarchy for what is structurally the same table.
type addressSlot struct {
	addr       uint32
	candidates []Instruction
	liveIdx    int
}

// Node is what Fetch returns: either a single live instruction (no
// divergence yet observed) or a selector over >1 candidates.
type Node struct {
	Addr       uint32
	Candidates []Instruction // len==1: plain InstructionNode; len>1: SelectorNode/DiscriminatedNode
	Live       Instruction
}

func (n Node) IsSelector() bool { return len(n.Candidates) > 1 }
