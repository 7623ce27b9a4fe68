package engine

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/ioengine"
)

// ioCompletionCallback is invoked with the decoded PageVertex once a read
// finishes. Its buffer is only valid for the duration of the call.
type ioCompletionCallback func(pv *gidx.PageVertex)

// bothJoin stitches the two independent reads (in-extent, out-extent) that
// a directed-graph Both request requires, since the two extents are
// disjoint and not guaranteed contiguous in the file. The callback fires
// once both sub-reads land, over a buffer holding in-bytes followed by
// out-bytes — exactly the layout gidx.NewPageVertex(Both, ...) expects.
type bothJoin struct {
	vertex    VertexId
	final     []byte
	remaining int
	failed    error
	cb        ioCompletionCallback
}

// coalescedMember is one vertex's share of a batched, coalesced read:
// its sub-range within the single joined buffer and its own callback.
type coalescedMember struct {
	vertex VertexId
	kind   gidx.EdgeKind
	offset uint32
	length uint32
	cb     ioCompletionCallback
}

type pendingRequest struct {
	vertex     VertexId
	kind       gidx.EdgeKind
	buf        []byte
	cb         ioCompletionCallback // nil for a Both sub-read or a coalesced batch member.
	join       *bothJoin
	joinOffset uint32
	coalesced  []coalescedMember // set for a batched, coalesced read; cb/join unset.
}

type pendingSubmit struct {
	vertex VertexId
	kind   gidx.EdgeKind
	cb     ioCompletionCallback
}

// extentMember is one vertex's resolved extent within a SubmitBatch call,
// carried through sorting and grouping before a read is actually issued.
type extentMember struct {
	vertex VertexId
	ext    gidx.Extent
	cb     ioCompletionCallback
}

// pendingGroup is a run of extentMembers queued under back-pressure,
// waiting for room under the in-flight ceiling the same way pendingSubmit
// does for single requests.
type pendingGroup struct {
	members  []extentMember
	kind     gidx.EdgeKind
	groupEnd uint64
}

// IODispatcher is one worker's private instance of C3 (spec §4.3): a
// pending map keyed by cookie, a max in-flight ceiling, and a local
// back-pressure queue for submits issued while at the ceiling.
type IODispatcher struct {
	idx         *gidx.Index
	edgeDataLen uint32
	submitter   ioengine.Submitter
	fileID      int

	maxInFlight uint32
	inFlight    uint32
	nextCookie  ioengine.Cookie
	pending     map[ioengine.Cookie]pendingRequest

	queued      []pendingSubmit
	queuedGroup []pendingGroup
}

// NewIODispatcher binds a dispatcher to one worker's view of the graph file.
func NewIODispatcher(idx *gidx.Index, submitter ioengine.Submitter, fileID int, maxInFlight uint32) *IODispatcher {
	return &IODispatcher{
		idx:         idx,
		edgeDataLen: idx.Header.EdgeDataSize,
		submitter:   submitter,
		fileID:      fileID,
		maxInFlight: maxInFlight,
		pending:     make(map[ioengine.Cookie]pendingRequest),
	}
}

// Submit resolves the vertex's extent via the graph index, rounds it to
// page boundaries, and issues (or queues, under back-pressure) an async
// read. Never blocks (spec §4.3 step 4).
func (d *IODispatcher) Submit(vertex VertexId, kind gidx.EdgeKind, cb ioCompletionCallback) {
	if d.inFlight >= d.maxInFlight {
		d.queued = append(d.queued, pendingSubmit{vertex: vertex, kind: kind, cb: cb})
		return
	}
	d.submitNow(vertex, kind, cb)
}

func (d *IODispatcher) submitNow(vertex VertexId, kind gidx.EdgeKind, cb ioCompletionCallback) {
	if kind == gidx.Both && d.idx.Header.Directed {
		d.submitBoth(vertex, cb)
		return
	}
	ext, err := d.idx.VertexExtent(vertex, kind)
	if err != nil {
		log.Panic().Err(err).Msgf("engine: io dispatcher: bad extent for vertex %d", vertex)
	}
	d.issueRead(vertex, d.effectiveKind(kind), ext, cb, nil, 0)
}

// effectiveKind maps Both down to Out for an undirected graph, whose
// single adjacency record per vertex already holds every neighbor
// (only a directed Both needs the dual in/out sections submitBoth joins).
func (d *IODispatcher) effectiveKind(kind gidx.EdgeKind) gidx.EdgeKind {
	if kind == gidx.Both && !d.idx.Header.Directed {
		return gidx.Out
	}
	return kind
}

// SubmitBatch resolves extents for many same-kind requests in one
// gidx.BlockRowOffsets call and coalesces any whose extents are
// contiguous, or separated by no more than one page, into a single
// physical read (spec §4.3's required read-coalescing optimization);
// the builder lays vertex records out in id order, so a batch of
// nearby ids is the common case where this pays off. A directed
// graph's Both already needs two joined sub-reads per vertex
// (submitBoth); coalescing those across vertices too would require
// joining N two-part reads into one buffer for a request pattern rare
// enough not to be worth the bookkeeping, so it falls back to one
// submitBoth per vertex.
func (d *IODispatcher) SubmitBatch(vertices []VertexId, kind gidx.EdgeKind, cb func(VertexId, *gidx.PageVertex)) {
	if len(vertices) == 0 {
		return
	}
	if kind == gidx.Both && d.idx.Header.Directed {
		for _, v := range vertices {
			v := v
			d.Submit(v, kind, func(pv *gidx.PageVertex) { cb(v, pv) })
		}
		return
	}

	exts, err := d.idx.BlockRowOffsets(vertices, kind)
	if err != nil {
		log.Panic().Err(err).Msgf("engine: io dispatcher: bad batch extents for kind %v", kind)
	}
	effKind := d.effectiveKind(kind)

	members := make([]extentMember, len(vertices))
	for i, v := range vertices {
		v := v
		members[i] = extentMember{vertex: v, ext: exts[i], cb: func(pv *gidx.PageVertex) { cb(v, pv) }}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ext.Offset < members[j].ext.Offset })

	const coalesceGap = uint64(ioengine.PageSize)
	for i := 0; i < len(members); {
		j := i + 1
		groupEnd := members[i].ext.Offset + uint64(members[i].ext.Length)
		for j < len(members) && members[j].ext.Offset <= groupEnd+coalesceGap {
			if end := members[j].ext.Offset + uint64(members[j].ext.Length); end > groupEnd {
				groupEnd = end
			}
			j++
		}
		d.submitGroup(members[i:j], effKind, groupEnd)
		i = j
	}
}

// submitGroup issues (or, under back-pressure, queues) one run of
// coalesced extents the same way Submit does for a single vertex.
func (d *IODispatcher) submitGroup(members []extentMember, kind gidx.EdgeKind, groupEnd uint64) {
	if d.inFlight >= d.maxInFlight {
		d.queuedGroup = append(d.queuedGroup, pendingGroup{members: members, kind: kind, groupEnd: groupEnd})
		return
	}
	d.issueGroup(members, kind, groupEnd)
}

// issueGroup performs one page-aligned read spanning a run of adjacent
// extents and, once it lands, demuxes the buffer back to each member's
// own callback (see completeCoalesced). A singleton group degrades to
// a plain issueRead.
func (d *IODispatcher) issueGroup(members []extentMember, kind gidx.EdgeKind, groupEnd uint64) {
	if len(members) == 1 {
		d.issueRead(members[0].vertex, kind, members[0].ext, members[0].cb, nil, 0)
		return
	}

	groupStart := members[0].ext.Offset
	alignedOff, alignedLen := pageAlign(groupStart, uint32(groupEnd-groupStart))
	buf := make([]byte, alignedLen)
	trimmed := buf[groupStart-alignedOff : groupStart-alignedOff+(groupEnd-groupStart)]

	coalesced := make([]coalescedMember, len(members))
	for i, m := range members {
		coalesced[i] = coalescedMember{
			vertex: m.vertex,
			kind:   kind,
			offset: uint32(m.ext.Offset - groupStart),
			length: m.ext.Length,
			cb:     m.cb,
		}
	}

	cookie := d.nextCookie
	d.nextCookie++
	d.pending[cookie] = pendingRequest{
		vertex:    members[0].vertex,
		kind:      kind,
		buf:       trimmed,
		coalesced: coalesced,
	}
	d.inFlight++
	d.submitter.SubmitRead(d.fileID, alignedOff, buf, cookie)
}

// submitBoth issues the in-extent and out-extent reads that together make
// up a directed Both request, joining their results into one contiguous
// buffer before invoking cb.
func (d *IODispatcher) submitBoth(vertex VertexId, cb ioCompletionCallback) {
	inExt, err := d.idx.VertexExtent(vertex, gidx.In)
	if err != nil {
		log.Panic().Err(err).Msgf("engine: io dispatcher: bad in-extent for vertex %d", vertex)
	}
	outExt, err := d.idx.VertexExtent(vertex, gidx.Out)
	if err != nil {
		log.Panic().Err(err).Msgf("engine: io dispatcher: bad out-extent for vertex %d", vertex)
	}

	join := &bothJoin{
		vertex:    vertex,
		final:     make([]byte, inExt.Length+outExt.Length),
		remaining: 2,
		cb:        cb,
	}
	d.issueRead(vertex, gidx.In, inExt, nil, join, 0)
	d.issueRead(vertex, gidx.Out, outExt, nil, join, inExt.Length)
}

// issueRead performs one page-aligned async read for a single extent.
// Exactly one of cb / join is set: cb for a standalone request, join for
// one of the two sub-reads of a Both request.
func (d *IODispatcher) issueRead(vertex VertexId, kind gidx.EdgeKind, ext gidx.Extent, cb ioCompletionCallback, join *bothJoin, joinOffset uint32) {
	alignedOff, alignedLen := pageAlign(ext.Offset, ext.Length)
	buf := make([]byte, alignedLen)
	trimmed := buf[ext.Offset-alignedOff : ext.Offset-alignedOff+uint64(ext.Length)]

	cookie := d.nextCookie
	d.nextCookie++
	d.pending[cookie] = pendingRequest{
		vertex:     vertex,
		kind:       kind,
		buf:        trimmed,
		cb:         cb,
		join:       join,
		joinOffset: joinOffset,
	}
	d.inFlight++
	d.submitter.SubmitRead(d.fileID, alignedOff, buf, cookie)
}

// pageAlign rounds [offset, offset+length) out to ioengine.PageSize bounds.
func pageAlign(offset uint64, length uint32) (alignedOffset uint64, alignedLength uint32) {
	const pageSize = uint64(ioengine.PageSize)
	alignedOffset = (offset / pageSize) * pageSize
	end := offset + uint64(length)
	alignedEnd := ((end + pageSize - 1) / pageSize) * pageSize
	if alignedEnd == alignedOffset {
		alignedEnd += pageSize
	}
	return alignedOffset, uint32(alignedEnd - alignedOffset)
}

// DrainQueued issues queued submits, single and grouped, until the
// in-flight ceiling is hit or both queues empty (spec §4.3 back-pressure).
func (d *IODispatcher) DrainQueued() {
	i := 0
	for ; i < len(d.queued) && d.inFlight < d.maxInFlight; i++ {
		q := d.queued[i]
		d.submitNow(q.vertex, q.kind, q.cb)
	}
	d.queued = d.queued[i:]

	j := 0
	for ; j < len(d.queuedGroup) && d.inFlight < d.maxInFlight; j++ {
		g := d.queuedGroup[j]
		d.issueGroup(g.members, g.kind, g.groupEnd)
	}
	d.queuedGroup = d.queuedGroup[j:]
}

// Poll drains completions from the substrate and invokes each callback with
// a PageVertex view over the completed buffer. A failed read is fatal and
// surfaced via errFn (spec §4.3: "no per-request retry").
func (d *IODispatcher) Poll(max int, errFn func(*EngineError)) {
	completions := d.submitter.PollCompletions(max)
	for _, c := range completions {
		req, ok := d.pending[c.Cookie]
		if !ok {
			log.Panic().Msgf("engine: io dispatcher: unknown cookie %d", c.Cookie)
		}
		delete(d.pending, c.Cookie)
		d.inFlight--

		if req.join != nil {
			d.completeJoinPart(req, c.Err, errFn)
			continue
		}
		if req.coalesced != nil {
			d.completeCoalesced(req, c.Err, errFn)
			continue
		}
		if c.Err != nil {
			errFn(newIOErr(req.vertex, c.Err))
			continue
		}
		pv := gidx.NewPageVertex(req.vertex, req.kind, d.edgeDataLen, req.buf)
		req.cb(pv)
	}
}

// completeCoalesced demuxes one batched read back to each member vertex's
// own callback. A read failure is fatal for every member it covers, same
// as a standalone request (spec §4.3: "no per-request retry").
func (d *IODispatcher) completeCoalesced(req pendingRequest, err error, errFn func(*EngineError)) {
	if err != nil {
		errFn(newIOErr(req.vertex, err))
		return
	}
	for _, m := range req.coalesced {
		sub := req.buf[m.offset : m.offset+m.length]
		pv := gidx.NewPageVertex(m.vertex, m.kind, d.edgeDataLen, sub)
		m.cb(pv)
	}
}

func (d *IODispatcher) completeJoinPart(req pendingRequest, err error, errFn func(*EngineError)) {
	j := req.join
	if err != nil && j.failed == nil {
		j.failed = err
	}
	if err == nil {
		copy(j.final[req.joinOffset:req.joinOffset+uint32(len(req.buf))], req.buf)
	}
	j.remaining--
	if j.remaining > 0 {
		return
	}
	if j.failed != nil {
		errFn(newIOErr(j.vertex, j.failed))
		return
	}
	pv := gidx.NewPageVertex(j.vertex, gidx.Both, d.edgeDataLen, j.final)
	j.cb(pv)
}

// InFlight returns the current outstanding-read count, for the worker
// loop's termination check and for the "no I/O leak" invariant (spec §8).
func (d *IODispatcher) InFlight() uint32 { return d.inFlight }

// QueuedLen returns the number of locally back-pressured submits, single
// and grouped, used by the worker loop's quiescence check.
func (d *IODispatcher) QueuedLen() int { return len(d.queued) + len(d.queuedGroup) }
