// Package gidx implements the Graph Index (C1): given a vertex id, the
// (offset, length) of its adjacency record(s) in the on-disk graph file,
// and per-vertex degree, without touching the disk.
package gidx

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

// VertexId is a dense 32-bit id, 0..NumVertices-1.
type VertexId uint32

// InvalidVertexId marks "no vertex".
const InvalidVertexId VertexId = 1<<32 - 1

// EdgeKind selects which adjacency extent(s) an operation is interested in.
type EdgeKind uint8

const (
	In EdgeKind = iota
	Out
	Both
)

func (k EdgeKind) String() string {
	switch k {
	case In:
		return "in"
	case Out:
		return "out"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// ErrOutOfRange is returned when a vertex id is not within [0, NumVertices).
var ErrOutOfRange = errors.New("gidx: vertex id out of range")

// ErrFormat is returned when the header and index files are inconsistent.
var ErrFormat = errors.New("gidx: index inconsistent with header")

const headerMagic uint32 = 0x53584d47 // "GMXS"

// Header describes the immutable shape of a graph file. Matches spec.md §3.
type Header struct {
	NumVertices  uint32
	NumEdges     uint64
	Directed     bool
	HasEdgeData  bool
	EdgeDataSize uint32
}

// Extent is a byte range within the graph file.
type Extent struct {
	Offset uint64
	Length uint32
}

// indexEntry is the on-disk, fixed-size record per vertex.
// Undirected: only OutOff/OutSize are meaningful (InOff/InSize unused).
// Directed: both pairs are populated, covering disjoint extents.
type indexEntry struct {
	InOff, OutOff   uint64
	InSize, OutSize uint32
}

// Index is the immutable, fully-loaded vertex index for a graph file. It is
// safe to share across worker goroutines without synchronization: nothing
// in it is ever mutated after Read returns.
type Index struct {
	Header  Header
	entries []indexEntry
}

// Read loads the index file for a graph (graphPath is validated to exist
// but is not itself parsed here; the index file carries the header per
// spec.md §6.2: "fixed-size header + array of entries"). Validates that
// all offsets are monotone non-decreasing per spec.md §3's invariant.
func Read(graphPath, indexPath string) (*Index, error) {
	if fi, err := os.Stat(graphPath); err != nil || fi.IsDir() {
		return nil, fmt.Errorf("gidx: graph file: %w", err)
	}

	xf, err := os.Open(indexPath)
	if err != nil {
		return nil, fmt.Errorf("gidx: open index file: %w", err)
	}
	defer xf.Close()

	hdr, err := readHeader(xf)
	if err != nil {
		return nil, err
	}

	entries, err := readEntries(xf, hdr)
	if err != nil {
		return nil, err
	}

	idx := &Index{Header: hdr, entries: entries}
	if err := idx.validateMonotone(); err != nil {
		return nil, err
	}
	log.Debug().Msgf("gidx: loaded index for %d vertices, %d edges, directed=%v", hdr.NumVertices, hdr.NumEdges, hdr.Directed)
	return idx, nil
}

func readHeader(f *os.File) (Header, error) {
	var raw [24]byte
	if _, err := f.ReadAt(raw[:], 0); err != nil {
		return Header{}, fmt.Errorf("gidx: read header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != headerMagic {
		return Header{}, fmt.Errorf("%w: bad magic", ErrFormat)
	}
	h := Header{
		NumVertices:  binary.LittleEndian.Uint32(raw[4:8]),
		NumEdges:     binary.LittleEndian.Uint64(raw[8:16]),
		Directed:     raw[16] != 0,
		HasEdgeData:  raw[17] != 0,
		EdgeDataSize: binary.LittleEndian.Uint32(raw[20:24]),
	}
	return h, nil
}

func readEntries(f *os.File, hdr Header) ([]indexEntry, error) {
	entries := make([]indexEntry, hdr.NumVertices)
	const recSize = 24
	const headerSize = 24
	buf := make([]byte, int(hdr.NumVertices)*recSize)
	if len(buf) > 0 {
		if _, err := f.ReadAt(buf, headerSize); err != nil {
			return nil, fmt.Errorf("gidx: read index entries: %w", err)
		}
	}
	for i := range entries {
		b := buf[i*recSize : (i+1)*recSize]
		entries[i] = indexEntry{
			InOff:   binary.LittleEndian.Uint64(b[0:8]),
			OutOff:  binary.LittleEndian.Uint64(b[8:16]),
			InSize:  binary.LittleEndian.Uint32(b[16:20]),
			OutSize: binary.LittleEndian.Uint32(b[20:24]),
		}
	}
	return entries, nil
}

func (idx *Index) validateMonotone() error {
	var lastIn, lastOut uint64
	for i, e := range idx.entries {
		if e.InOff < lastIn || e.OutOff < lastOut {
			return fmt.Errorf("%w: offsets not monotone at vertex %d", ErrFormat, i)
		}
		lastIn, lastOut = e.InOff, e.OutOff
	}
	return nil
}

func (idx *Index) checkRange(id VertexId) error {
	if uint32(id) >= idx.Header.NumVertices {
		return fmt.Errorf("%w: id=%d numVertices=%d", ErrOutOfRange, id, idx.Header.NumVertices)
	}
	return nil
}

// NumVertices returns the number of vertices covered by this index.
func (idx *Index) NumVertices() uint32 { return idx.Header.NumVertices }

// recordCount recovers the edge count from a record's on-disk byte size:
// every record is a 4-byte count prefix followed by count*(4+edgeDataSize).
func (idx *Index) recordCount(size uint32) uint32 {
	if size < 4 {
		return 0
	}
	recSize := uint32(4)
	if idx.Header.HasEdgeData {
		recSize += idx.Header.EdgeDataSize
	}
	return (size - 4) / recSize
}

// NumInEdges returns the in-degree of id, O(1), no I/O.
func (idx *Index) NumInEdges(id VertexId) (uint32, error) {
	if err := idx.checkRange(id); err != nil {
		return 0, err
	}
	return idx.recordCount(idx.entries[id].InSize), nil
}

// NumOutEdges returns the out-degree of id, O(1), no I/O.
func (idx *Index) NumOutEdges(id VertexId) (uint32, error) {
	if err := idx.checkRange(id); err != nil {
		return 0, err
	}
	return idx.recordCount(idx.entries[id].OutSize), nil
}

// VertexExtent returns the on-disk byte extent for a vertex's requested
// edge kind. For an undirected graph every kind returns the single
// adjacency record. For Both on a directed graph only the in-extent is
// returned; the out-extent needs its own Out lookup (the I/O Dispatcher's
// submitBoth reads both and joins them).
func (idx *Index) VertexExtent(id VertexId, kind EdgeKind) (Extent, error) {
	if err := idx.checkRange(id); err != nil {
		return Extent{}, err
	}
	e := idx.entries[id]
	if !idx.Header.Directed {
		return Extent{Offset: e.OutOff, Length: e.OutSize}, nil
	}
	switch kind {
	case In:
		return Extent{Offset: e.InOff, Length: e.InSize}, nil
	case Out:
		return Extent{Offset: e.OutOff, Length: e.OutSize}, nil
	case Both:
		// In and out records are disjoint but not guaranteed contiguous;
		// callers wanting both issue two reads. Return the in-extent and
		// let BlockRowOffsets/the dispatcher handle the out-extent
		// separately when both are requested.
		return Extent{Offset: e.InOff, Length: e.InSize}, nil
	}
	return Extent{}, fmt.Errorf("gidx: unknown edge kind %v", kind)
}

// BlockRowOffsets performs a batched extent lookup for a set of vertex ids,
// returning extents in the same order as ids. Used by the I/O Dispatcher to
// detect runs of consecutive extents worth coalescing into one read.
func (idx *Index) BlockRowOffsets(ids []VertexId, kind EdgeKind) ([]Extent, error) {
	out := make([]Extent, len(ids))
	for i, id := range ids {
		ext, err := idx.VertexExtent(id, kind)
		if err != nil {
			return nil, err
		}
		out[i] = ext
	}
	return out, nil
}
