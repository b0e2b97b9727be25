package cluster

import (
	"fmt"
)

// TotalPartitions is the fixed number of partitions per namespace.
const TotalPartitions = 4096

// --------------------------------------------------------------------------
// Key
// --------------------------------------------------------------------------

// Key identifies one record: namespace, optional set and user key. The
// digest is computed once at construction and drives partition routing.
type Key struct {
	Namespace string
	Set       string
	UserKey   string

	digest uint64
}

// NewKey creates a key and computes its digest.
func NewKey(namespace, set, userKey string) *Key {
	return &Key{
		Namespace: namespace,
		Set:       set,
		UserKey:   userKey,
		digest:    computeDigest(set, userKey),
	}
}

// Digest returns the routing digest of the key.
func (k *Key) Digest() uint64 {
	return k.digest
}

// PartitionID returns the partition the key belongs to.
func (k *Key) PartitionID() int {
	return int(k.digest % TotalPartitions)
}

// Partition returns the routing partition of the key.
func (k *Key) Partition() Partition {
	return Partition{Namespace: k.Namespace, ID: k.PartitionID()}
}

func (k *Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Namespace, k.Set, k.UserKey)
}

// --------------------------------------------------------------------------
// Partition
// --------------------------------------------------------------------------

// Partition is one shard of a namespace's keyspace. Immutable, used only
// for routing.
type Partition struct {
	Namespace string
	ID        int
}

func (p Partition) String() string {
	return fmt.Sprintf("%s:%d", p.Namespace, p.ID)
}

// --------------------------------------------------------------------------
// Digest
// --------------------------------------------------------------------------

// computeDigest hashes set and user key with FNV-1a. The digest must be
// deterministic across processes, so no per-process seed is mixed in.
func computeDigest(set, userKey string) uint64 {
	const (
		offset64 = 14695981039346656037
		prime64  = 1099511628211
	)

	hash := uint64(offset64)
	for i := 0; i < len(set); i++ {
		hash ^= uint64(set[i])
		hash *= prime64
	}
	hash ^= 0xff // separator between set and key
	hash *= prime64
	for i := 0; i < len(userKey); i++ {
		hash ^= uint64(userKey[i])
		hash *= prime64
	}
	return hash
}
