package gidx

import "encoding/binary"

// PageVertex is a zero-copy, read-only view over one vertex's on-disk
// adjacency record, produced by the I/O Dispatcher from a raw page buffer
// after a read completes. It borrows the buffer: valid only for the
// duration of the callback that received it (spec.md §3).
type PageVertex struct {
	id          VertexId
	buf         []byte
	edgeDataLen uint32
	kind        EdgeKind
	// for EdgeKind Both on a directed graph, the in-edge portion is
	// [0:inLen) and the out-edge portion is [inLen:) of buf.
	inCount, outCount uint32
}

// NewPageVertex constructs a view over buf for the given vertex, decoding
// the length-prefix(es) written by the builder. buf must contain exactly
// the bytes for the requested extent(s), already stripped of any page
// padding by the I/O Dispatcher.
func NewPageVertex(id VertexId, kind EdgeKind, edgeDataLen uint32, buf []byte) *PageVertex {
	pv := &PageVertex{id: id, buf: buf, edgeDataLen: edgeDataLen, kind: kind}
	recSize := 4 + edgeDataLen
	switch kind {
	case Both:
		pv.inCount = binary.LittleEndian.Uint32(buf[0:4])
		inBytes := 4 + pv.inCount*recSize
		pv.outCount = binary.LittleEndian.Uint32(buf[inBytes : inBytes+4])
	default:
		if len(buf) >= 4 {
			n := binary.LittleEndian.Uint32(buf[0:4])
			if kind == In {
				pv.inCount = n
			} else {
				pv.outCount = n
			}
		}
	}
	return pv
}

// Id returns the vertex this view describes.
func (pv *PageVertex) Id() VertexId { return pv.id }

// NumEdges returns the edge count for the requested kind.
func (pv *PageVertex) NumEdges(kind EdgeKind) uint32 {
	switch kind {
	case In:
		return pv.inCount
	case Out:
		return pv.outCount
	default:
		return pv.inCount + pv.outCount
	}
}

// EdgeIterator walks the neighbor ids (and optional edge data) of one
// section of the record.
type EdgeIterator struct {
	buf     []byte
	recSize uint32
	pos     uint32
	count   uint32
	i       uint32
}

// Edges returns an iterator over the requested edge kind. For kind == Both
// on a directed record, callers should request In and Out separately;
// Edges(Both) iterates the in-edges followed by the out-edges.
func (pv *PageVertex) Edges(kind EdgeKind) *EdgeIterator {
	recSize := 4 + pv.edgeDataLen
	switch {
	case pv.kind == Both && kind == In:
		return &EdgeIterator{buf: pv.buf[4:], recSize: recSize, count: pv.inCount}
	case pv.kind == Both && kind == Out:
		inBytes := 4 + pv.inCount*recSize
		return &EdgeIterator{buf: pv.buf[inBytes+4:], recSize: recSize, count: pv.outCount}
	case pv.kind == Both:
		// The out section carries its own count prefix; join the two
		// sections without it so the iterator sees contiguous records.
		inBytes := 4 + pv.inCount*recSize
		joined := make([]byte, 0, uint32(len(pv.buf))-8)
		joined = append(joined, pv.buf[4:inBytes]...)
		joined = append(joined, pv.buf[inBytes+4:]...)
		return &EdgeIterator{buf: joined, recSize: recSize, count: pv.inCount + pv.outCount}
	default:
		return &EdgeIterator{buf: pv.buf[4:], recSize: recSize, count: pv.NumEdges(kind)}
	}
}

// Next advances the iterator, returning false once exhausted.
func (it *EdgeIterator) Next() bool {
	if it.i >= it.count {
		return false
	}
	it.i++
	it.pos += it.recSize
	return true
}

// Target returns the neighbor id at the current iterator position.
func (it *EdgeIterator) Target() VertexId {
	start := it.pos - it.recSize
	return VertexId(binary.LittleEndian.Uint32(it.buf[start : start+4]))
}

// EdgeData returns the raw edge payload at the current position, sized per
// the header's EdgeDataSize. Empty if the graph carries no edge data.
func (it *EdgeIterator) EdgeData() []byte {
	if it.recSize <= 4 {
		return nil
	}
	start := it.pos - it.recSize + 4
	return it.buf[start : start+(it.recSize-4)]
}

// Remaining returns how many edges are left to iterate.
func (it *EdgeIterator) Remaining() uint32 { return it.count - it.i }
