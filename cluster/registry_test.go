package cluster

import (
	"errors"
	"sync"
	"testing"

	"github.com/nimbuskv/nimbus/common"
)

func newTestRegistry(seeds ...string) *Registry {
	return NewRegistry(common.ClientConfig{Seeds: seeds}.Normalize())
}

// TestRegistrySeeds verifies seed nodes are registered at construction.
func TestRegistrySeeds(t *testing.T) {
	r := newTestRegistry("10.0.0.1:3000", "10.0.0.2:3000")
	defer r.Close()

	nodes := r.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("Expected 2 seed nodes, got %d", len(nodes))
	}
	if _, ok := r.GetNode("10.0.0.1:3000"); !ok {
		t.Errorf("Seed node not found by name")
	}
}

// TestRegistryEmptyCluster verifies routing fails fast with no nodes.
func TestRegistryEmptyCluster(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()

	_, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 1})
	if !errors.Is(err, ErrClusterEmpty) {
		t.Fatalf("Expected ErrClusterEmpty, got %v", err)
	}
}

// TestRegistryFallbackRouting verifies partitions without an explicit
// owner spread deterministically over the node list.
func TestRegistryFallbackRouting(t *testing.T) {
	r := newTestRegistry("a:1", "b:1")
	defer r.Close()

	n1, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 7})
	if err != nil {
		t.Fatalf("Routing failed: %v", err)
	}
	n2, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 7})
	if err != nil {
		t.Fatalf("Routing failed: %v", err)
	}
	if n1 != n2 {
		t.Errorf("Fallback routing is not deterministic")
	}

	// neighboring partitions alternate over the two nodes
	other, _ := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 8})
	if other == n1 {
		t.Errorf("Expected partitions 7 and 8 on different nodes with 2 nodes")
	}
}

// TestRegistryExplicitOwner verifies an explicit partition owner wins over
// the fallback.
func TestRegistryExplicitOwner(t *testing.T) {
	r := newTestRegistry("a:1", "b:1")
	defer r.Close()

	owner, _ := r.GetNode("b:1")
	r.SetPartitionOwner("ns", 7, owner)

	got, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 7})
	if err != nil {
		t.Fatalf("Routing failed: %v", err)
	}
	if got != owner {
		t.Errorf("Expected explicit owner %s, got %s", owner.Name(), got.Name())
	}

	// an inactive owner falls back to spreading
	owner.SetActive(false)
	got, err = r.GetNodeForPartition(Partition{Namespace: "ns", ID: 7})
	if err != nil {
		t.Fatalf("Routing failed after owner went inactive: %v", err)
	}
	if got == owner {
		t.Errorf("Inactive owner must not be routed to")
	}
}

// TestRegistryUpdatePartitionMap verifies a pushed map replaces the whole
// ownership table of the namespace.
func TestRegistryUpdatePartitionMap(t *testing.T) {
	r := newTestRegistry("a:1", "b:1")
	defer r.Close()

	a, _ := r.GetNode("a:1")
	b, _ := r.GetNode("b:1")

	r.UpdatePartitionMap("ns", map[int]string{0: "a:1", 1: "b:1", 2: "a:1"})

	cases := map[int]*Node{0: a, 1: b, 2: a}
	for id, want := range cases {
		got, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: id})
		if err != nil {
			t.Fatalf("Routing failed for partition %d: %v", id, err)
		}
		if got != want {
			t.Errorf("Partition %d: expected %s, got %s", id, want.Name(), got.Name())
		}
	}

	// a second update drops owners it does not name
	r.UpdatePartitionMap("ns", map[int]string{0: "b:1"})
	got, _ := r.GetNodeForPartition(Partition{Namespace: "ns", ID: 0})
	if got != b {
		t.Errorf("Expected updated owner b:1, got %s", got.Name())
	}
}

// TestRegistryAddRemove verifies membership changes.
func TestRegistryAddRemove(t *testing.T) {
	r := newTestRegistry("a:1")
	defer r.Close()

	added := r.AddNode("b:1", "b:1")
	if added == nil {
		t.Fatalf("AddNode returned nil")
	}
	if again := r.AddNode("b:1", "b:1"); again != added {
		t.Errorf("Re-adding the same name must return the existing node")
	}
	if len(r.Nodes()) != 2 {
		t.Fatalf("Expected 2 nodes, got %d", len(r.Nodes()))
	}

	r.RemoveNode("b:1")
	if len(r.Nodes()) != 1 {
		t.Errorf("Expected 1 node after removal, got %d", len(r.Nodes()))
	}
	if _, ok := r.GetNode("b:1"); ok {
		t.Errorf("Removed node still found by name")
	}
}

// TestRegistryConcurrentRouting hammers routing while the partition map is
// updated in parallel.
func TestRegistryConcurrentRouting(t *testing.T) {
	r := newTestRegistry("a:1", "b:1", "c:1")
	defer r.Close()

	stop := make(chan struct{})
	updaterDone := make(chan struct{})

	// updater
	go func() {
		defer close(updaterDone)
		names := []string{"a:1", "b:1", "c:1"}
		i := 0
		for {
			select {
			case <-stop:
				return
			default:
			}
			owners := make(map[int]string)
			for p := 0; p < 64; p++ {
				owners[p] = names[(i+p)%len(names)]
			}
			r.UpdatePartitionMap("ns", owners)
			i++
		}
	}()

	// readers
	var readers sync.WaitGroup
	for g := 0; g < 4; g++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for i := 0; i < 10000; i++ {
				node, err := r.GetNodeForPartition(Partition{Namespace: "ns", ID: i % 64})
				if err != nil {
					t.Errorf("Routing failed: %v", err)
					return
				}
				if node == nil {
					t.Errorf("Routing returned a nil node")
					return
				}
			}
		}()
	}

	// let the readers finish, then stop the updater
	readers.Wait()
	close(stop)
	<-updaterDone
}
