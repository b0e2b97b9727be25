package cluster

import (
	"testing"
)

// TestKeyDigestStable verifies the digest is a pure function of set and
// user key.
func TestKeyDigestStable(t *testing.T) {
	a := NewKey("ns", "set", "user-1")
	b := NewKey("ns", "set", "user-1")
	if a.Digest() != b.Digest() {
		t.Errorf("Same key produced different digests: %d vs %d", a.Digest(), b.Digest())
	}

	c := NewKey("ns", "set", "user-2")
	if a.Digest() == c.Digest() {
		t.Errorf("Different keys produced the same digest")
	}

	// the set participates in the digest
	d := NewKey("ns", "other", "user-1")
	if a.Digest() == d.Digest() {
		t.Errorf("Different sets produced the same digest")
	}
}

// TestPartitionIDRange verifies every key maps into the fixed partition
// space.
func TestPartitionIDRange(t *testing.T) {
	for i := 0; i < 10000; i++ {
		key := NewKey("ns", "set", string(rune('a'+i%26))+string(rune('0'+i%10)))
		id := key.PartitionID()
		if id < 0 || id >= TotalPartitions {
			t.Fatalf("Partition %d out of range for key %s", id, key.UserKey)
		}
	}
}

// TestPartitionSpread verifies keys spread over many partitions instead of
// clustering.
func TestPartitionSpread(t *testing.T) {
	seen := make(map[int]bool)
	for i := 0; i < 4096; i++ {
		key := NewKey("ns", "set", "user-"+string(rune('a'+i%26))+"-"+string(rune('A'+i%26))+"-"+string(rune('0'+i%10)))
		seen[key.PartitionID()] = true
	}
	if len(seen) < 100 {
		t.Errorf("4096 keys landed on only %d partitions", len(seen))
	}
}

// TestKeyPartitionNamespace verifies the routing partition carries the
// key's namespace.
func TestKeyPartitionNamespace(t *testing.T) {
	key := NewKey("ns1", "set", "k")
	p := key.Partition()
	if p.Namespace != "ns1" {
		t.Errorf("Expected namespace ns1, got %s", p.Namespace)
	}
	if p.ID != key.PartitionID() {
		t.Errorf("Partition ID mismatch: %d vs %d", p.ID, key.PartitionID())
	}
}
