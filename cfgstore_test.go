package cfgcpu

import "testing"

func TestStore_FetchCreatesNodeOnFirstVisit(t *testing.T) {
	bus := NewSystemBus(16)
	bus.WriteU8(0, 0x90) // NOP
	store := NewStore(bus, ParseInstruction)

	node, err := store.Fetch(0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if node.IsSelector() {
		t.Error("a freshly-created node must not be a selector")
	}
	if node.Live.Mnemonic() != "NOP" {
		t.Errorf("Live.Mnemonic() got %s, want NOP", node.Live.Mnemonic())
	}
}

func TestStore_FetchReusesCandidateWhenSignatureStillMatches(t *testing.T) {
	// MOV AX, 0x1234 at linear 0, then overwrite the low immediate byte --
	// its signature wildcards both immediate bytes, so the store must keep
	// treating this address as the same single candidate (spec seed
	// scenario 2).
	bus := NewSystemBus(16)
	bus.WriteU8(0, 0xB8)
	bus.WriteU16(1, 0x1234)
	store := NewStore(bus, ParseInstruction)

	first, err := store.Fetch(0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	bus.WriteU8(1, 0x90) // 0x34 -> 0x90
	second, err := store.Fetch(0)
	if err != nil {
		t.Fatalf("Fetch after SMC: %v", err)
	}
	if second.IsSelector() {
		t.Error("overwriting a wildcarded immediate byte must not create a selector")
	}
	if first.Live != second.Live {
		t.Error("the same MovRegImm candidate should be reused across the SMC write")
	}
}

func TestStore_FetchInterposesSelectorOnOpcodeDivergence(t *testing.T) {
	// NOP at linear 0, then overwritten with EB FE (JMP $-2): the opcode
	// byte is signature-bearing, so this must diverge into a two-candidate
	// selector (spec seed scenario 3).
	bus := NewSystemBus(16)
	bus.WriteU8(0, 0x90)
	store := NewStore(bus, ParseInstruction)

	if _, err := store.Fetch(0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	bus.WriteU8(0, 0xEB)
	bus.WriteU8(1, 0xFE)
	node, err := store.Fetch(0)
	if err != nil {
		t.Fatalf("Fetch after divergence: %v", err)
	}
	if !node.IsSelector() {
		t.Fatal("overwriting the opcode byte must interpose a selector")
	}
	if len(node.Candidates) != 2 {
		t.Fatalf("candidate count got %d, want 2", len(node.Candidates))
	}
	if node.Live.Mnemonic() != "JMP" {
		t.Errorf("live candidate after divergence got %s, want JMP", node.Live.Mnemonic())
	}

	selected, err := store.Select(0)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if selected.Mnemonic() != "JMP" {
		t.Errorf("Select() got %s, want JMP", selected.Mnemonic())
	}
}

func TestStore_FetchReturnsToEarlierCandidateAfterRevert(t *testing.T) {
	bus := NewSystemBus(16)
	bus.WriteU8(0, 0x90) // NOP
	store := NewStore(bus, ParseInstruction)
	if _, err := store.Fetch(0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	bus.WriteU8(0, 0xEB)
	bus.WriteU8(1, 0xFE)
	if _, err := store.Fetch(0); err != nil {
		t.Fatalf("Fetch after divergence: %v", err)
	}

	bus.WriteU8(0, 0x90) // revert to NOP
	bus.WriteU8(1, 0xFE)
	node, err := store.Fetch(0)
	if err != nil {
		t.Fatalf("Fetch after revert: %v", err)
	}
	if len(node.Candidates) != 2 {
		t.Errorf("candidate count got %d, want the original 2 to still be tracked", len(node.Candidates))
	}
	if node.Live.Mnemonic() != "NOP" {
		t.Errorf("live candidate after revert got %s, want NOP (reused, not reparsed)", node.Live.Mnemonic())
	}
}

func TestStore_SelectNoMatchingCandidate(t *testing.T) {
	bus := NewSystemBus(16)
	bus.WriteU8(0, 0x90)
	store := NewStore(bus, ParseInstruction)
	if _, err := store.Fetch(0); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	bus.WriteU8(0, 0xEB)
	bus.WriteU8(1, 0xFE)
	if _, err := store.Fetch(0); err != nil {
		t.Fatalf("Fetch after divergence: %v", err)
	}

	// Corrupt memory to something neither candidate's signature matches.
	bus.WriteU8(0, 0xCC)
	_, err := store.Select(0)
	if err == nil {
		t.Fatal("Select should fail when no candidate signature matches live memory")
	}
	vf, ok := err.(*VmFault)
	if !ok {
		t.Fatalf("error type got %T, want *VmFault", err)
	}
	if vf.Unwrap() != ErrNoMatchingCandidate {
		t.Errorf("wrapped error got %v, want ErrNoMatchingCandidate", vf.Unwrap())
	}
}

func TestStore_EdgeSameKindLatestWriteWins(t *testing.T) {
	bus := NewSystemBus(16)
	store := NewStore(bus, ParseInstruction)
	store.AddEdge(0, SuccessorFallThrough, 2)
	store.AddEdge(0, SuccessorFallThrough, 4) // same (from,kind): overwrites

	edges := store.Edges()
	if len(edges) != 1 {
		t.Fatalf("edge count got %d, want 1", len(edges))
	}
	if edges[0].ToAddr != 4 {
		t.Errorf("edge target got %#x, want 4 (latest write wins)", edges[0].ToAddr)
	}
}
