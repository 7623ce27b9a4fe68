package gidx

import (
	"encoding/binary"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/ioengine"
)

// RawEdge is one edge as fed to Builder, before it is grouped by source
// vertex and serialized into the graph file's adjacency records.
type RawEdge struct {
	Src, Dst VertexId
	Data     []byte
}

// Builder assembles a graph file and matching index file from a set of
// edges. It is reference tooling for the on-disk format named in spec.md
// §6.2 (construction is an external collaborator to the engine proper) —
// used by the gbuild CLI and by tests that need graph fixtures on disk.
// For undirected graphs, callers add both (src,dst) and (dst,src) — the
// builder does not infer mirrored edges on their behalf.
type Builder struct {
	NumVertices  uint32
	Directed     bool
	EdgeDataSize uint32
	edges        []RawEdge
}

// AddEdge appends one edge.
func (b *Builder) AddEdge(src, dst VertexId, data []byte) {
	b.edges = append(b.edges, RawEdge{Src: src, Dst: dst, Data: data})
}

// Build writes the graph and index files. Returns the resulting header.
func (b *Builder) Build(graphPath, indexPath string) (Header, error) {
	hdr := Header{
		NumVertices:  b.NumVertices,
		NumEdges:     uint64(len(b.edges)),
		Directed:     b.Directed,
		HasEdgeData:  b.EdgeDataSize > 0,
		EdgeDataSize: b.EdgeDataSize,
	}

	outByVertex := make([][]RawEdge, b.NumVertices)
	var inByVertex [][]RawEdge
	if b.Directed {
		inByVertex = make([][]RawEdge, b.NumVertices)
	}
	for _, e := range b.edges {
		outByVertex[e.Src] = append(outByVertex[e.Src], e)
		if b.Directed {
			inByVertex[e.Dst] = append(inByVertex[e.Dst], e)
		}
	}
	for v := range outByVertex {
		sort.Slice(outByVertex[v], func(i, j int) bool { return outByVertex[v][i].Dst < outByVertex[v][j].Dst })
		if b.Directed {
			sort.Slice(inByVertex[v], func(i, j int) bool { return inByVertex[v][i].Src < inByVertex[v][j].Src })
		}
	}

	gf, err := os.Create(graphPath)
	if err != nil {
		return Header{}, err
	}
	defer gf.Close()

	entries := make([]indexEntry, b.NumVertices)
	var offset uint64

	writeRecord := func(edges []RawEdge, idOf func(RawEdge) VertexId) (start uint64, size uint32, err error) {
		start = offset
		var body []byte
		body = binary.LittleEndian.AppendUint32(body, uint32(len(edges)))
		for _, e := range edges {
			body = binary.LittleEndian.AppendUint32(body, uint32(idOf(e)))
			body = append(body, e.Data...)
		}
		if _, err = gf.WriteAt(body, int64(offset)); err != nil {
			return 0, 0, err
		}
		offset += uint64(len(body))
		return start, uint32(len(body)), nil
	}

	for v := uint32(0); v < b.NumVertices; v++ {
		if b.Directed {
			inOff, inSz, err := writeRecord(inByVertex[v], func(e RawEdge) VertexId { return e.Src })
			if err != nil {
				return Header{}, err
			}
			outOff, outSz, err := writeRecord(outByVertex[v], func(e RawEdge) VertexId { return e.Dst })
			if err != nil {
				return Header{}, err
			}
			entries[v] = indexEntry{InOff: inOff, InSize: inSz, OutOff: outOff, OutSize: outSz}
		} else {
			outOff, outSz, err := writeRecord(outByVertex[v], func(e RawEdge) VertexId { return e.Dst })
			if err != nil {
				return Header{}, err
			}
			entries[v] = indexEntry{OutOff: outOff, OutSize: outSz}
		}
	}

	// Pad the graph file to a whole number of pages: the engine rounds every
	// read out to ioengine.PageSize, so the page holding the last record
	// must be present in full.
	const pageSize = uint64(ioengine.PageSize)
	if err := gf.Truncate(int64((offset + pageSize - 1) / pageSize * pageSize)); err != nil {
		return Header{}, err
	}

	xf, err := os.Create(indexPath)
	if err != nil {
		return Header{}, err
	}
	defer xf.Close()

	var raw [24]byte
	binary.LittleEndian.PutUint32(raw[0:4], headerMagic)
	binary.LittleEndian.PutUint32(raw[4:8], hdr.NumVertices)
	binary.LittleEndian.PutUint64(raw[8:16], hdr.NumEdges)
	if hdr.Directed {
		raw[16] = 1
	}
	if hdr.HasEdgeData {
		raw[17] = 1
	}
	binary.LittleEndian.PutUint32(raw[20:24], hdr.EdgeDataSize)
	if _, err := xf.WriteAt(raw[:], 0); err != nil {
		return Header{}, err
	}

	buf := make([]byte, len(entries)*24)
	for i, e := range entries {
		off := i * 24
		binary.LittleEndian.PutUint64(buf[off:off+8], e.InOff)
		binary.LittleEndian.PutUint64(buf[off+8:off+16], e.OutOff)
		binary.LittleEndian.PutUint32(buf[off+16:off+20], e.InSize)
		binary.LittleEndian.PutUint32(buf[off+20:off+24], e.OutSize)
	}
	if _, err := xf.WriteAt(buf, 24); err != nil {
		return Header{}, err
	}

	log.Info().Msgf("gidx: built graph with %d vertices, %d edges (directed=%v)", hdr.NumVertices, hdr.NumEdges, hdr.Directed)
	return hdr, nil
}
