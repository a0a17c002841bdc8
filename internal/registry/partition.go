package registry

import (
	"fmt"

	"github.com/google/uuid"
)

// Partition is a value record describing one participant in the cluster.
// Partitions are referenced by rank everywhere in this module; Partition
// itself never crosses a package boundary as a pointer — neighbor
// relations are index lists, never owning references.
type Partition struct {
	// Rank is this partition's position in [0, P). Ranks are reused
	// across process restarts, which is why ID exists separately.
	Rank int

	// Addr is where the partition can be reached by the HTTP/JSON
	// transport. Empty for partitions only ever driven in-process.
	Addr string

	// ID is a stable identity independent of rank, minted once at
	// registration and never reused, so the failure detector's
	// rank↔UUID map survives a partition rejoining
	// under the same rank after a restart.
	ID uuid.UUID
}

// NewPartition mints a Partition with a fresh identity.
func NewPartition(rank int, addr string) Partition {
	return Partition{Rank: rank, Addr: addr, ID: uuid.New()}
}

// Clone returns an independent copy; Partition has no reference fields so
// this is just a value copy, kept as a named method for callers that
// prefer an explicit copy to Go's implicit copy-on-assign. Nothing in
// this module calls it.
func (p Partition) Clone() Partition {
	return p
}

func (p Partition) String() string {
	return fmt.Sprintf("partition{rank=%d addr=%q id=%s}", p.Rank, p.Addr, p.ID)
}
