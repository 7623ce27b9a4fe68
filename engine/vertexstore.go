package engine

import "github.com/rs/zerolog/log"

// VertexStore owns the fixed, per-vertex in-memory state objects: one S per
// vertex, partitioned across workers by contiguous range (spec §4.2). The
// engine holds []S directly, never []*S or []any — no virtual dispatch on
// the hot path (spec §9 design note).
type VertexStore[S any] struct {
	states     []S
	numWorkers uint32
	perWorker  uint32 // ceil(numVertices / numWorkers); OwnerWorker(id) = id / perWorker.
}

// NewVertexStore allocates all per-vertex state to its zero value up front,
// so QueryOnAll never observes a nil partition even before any Start call
// (spec §9 Open Question resolution: query_on_all must succeed pre-start).
func NewVertexStore[S any](numVertices, numWorkers uint32) *VertexStore[S] {
	if numWorkers == 0 {
		numWorkers = 1
	}
	perWorker := (numVertices + numWorkers - 1) / numWorkers
	if perWorker == 0 {
		perWorker = 1
	}
	return &VertexStore[S]{
		states:     make([]S, numVertices),
		numWorkers: numWorkers,
		perWorker:  perWorker,
	}
}

// Get returns the canonical in-memory state for id. Callers must be the
// owning worker, or the Engine while idle (spec §4.2).
func (vs *VertexStore[S]) Get(id VertexId) *S {
	if uint32(id) >= uint32(len(vs.states)) {
		log.Panic().Msgf("engine: vertex store: id %d out of range (numVertices=%d)", id, len(vs.states))
	}
	return &vs.states[id]
}

// OwnerWorker is a pure function of id and worker count: contiguous range
// partitioning, not modulo striping, so PartitionRange stays a single
// interval per worker (spec §4.2).
func (vs *VertexStore[S]) OwnerWorker(id VertexId) WorkerId {
	return WorkerId(uint32(id) / vs.perWorker)
}

// PartitionRange returns the half-open [lo, hi) vertex-id range owned by w.
func (vs *VertexStore[S]) PartitionRange(w WorkerId) (lo, hi VertexId) {
	lo = VertexId(uint32(w) * vs.perWorker)
	hi = VertexId(minU32(uint32(w+1)*vs.perWorker, uint32(len(vs.states))))
	if uint32(lo) > uint32(len(vs.states)) {
		lo = VertexId(len(vs.states))
	}
	return lo, hi
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// NumVertices returns the total number of vertices in the store.
func (vs *VertexStore[S]) NumVertices() uint32 { return uint32(len(vs.states)) }

// NumWorkers returns the partition count this store was built for.
func (vs *VertexStore[S]) NumWorkers() uint32 { return vs.numWorkers }
