package engine

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/ioengine"
)

type runState int32

const (
	stateIdle runState = iota
	stateStarting
	stateRunning
	stateComplete
)

// engineCore is the non-generic half of the coordinator's shared state:
// the cancellation flag and the first-writer-wins error slot that every
// worker, regardless of (State, Message) instantiation, reports through
// (spec §7 propagation).
type engineCore struct {
	cancelled atomic.Bool
	errOnce   sync.Once
	errSlot   atomic.Pointer[EngineError]
}

func (e *engineCore) reportError(err *EngineError) {
	e.errOnce.Do(func() {
		e.errSlot.Store(err)
		log.Error().Err(err).Msg("engine: run aborting")
	})
}

func (e *engineCore) errSlotSet() bool { return e.errSlot.Load() != nil }

// Engine is the Coordinator (C7): owns the workers, runs the outer
// iteration loop, and surfaces Start/WaitForComplete/QueryOnAll (spec §4.7).
type Engine[S any, Msg any] struct {
	core engineCore
	cfg  Config

	index   *gidx.Index
	substrs []ioengine.Submitter // one per worker

	store    *VertexStore[S]
	bus      *MessageBus[Msg]
	workers  []*worker[S, Msg]
	frontier []*Frontier

	kind Kind[S, Msg]

	state   atomic.Int32
	stateMu sync.Mutex
	done    chan struct{}
}

// Create opens the graph and index files, validates header/index
// consistency, and allocates all per-vertex state to its zero value
// (spec §6.7; §9 Open Question: QueryOnAll must succeed pre-Start).
func Create[S any, Msg any](graphPath, indexPath string, kind Kind[S, Msg], cfg Config) (*Engine[S, Msg], error) {
	if cfg.NumWorkers == 0 {
		return nil, newConfigErr("num_workers must be > 0", nil)
	}
	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		return nil, wrapCreateErr(err)
	}

	if cfg.PreloadGraph {
		preload(graphPath)
	}

	store := NewVertexStore[S](idx.NumVertices(), cfg.NumWorkers)
	bus := NewMessageBus[Msg](cfg.NumWorkers, cfg.MessageBufferBytes)

	eng := &Engine[S, Msg]{
		cfg:    cfg,
		index:  idx,
		store:  store,
		bus:    bus,
		kind:   kind,
		done:   make(chan struct{}),
	}
	eng.state.Store(int32(stateIdle))

	eng.workers = make([]*worker[S, Msg], cfg.NumWorkers)
	eng.frontier = make([]*Frontier, cfg.NumWorkers)
	for w := uint32(0); w < cfg.NumWorkers; w++ {
		// Each worker gets its own substrate: dispatchers number their
		// cookies independently, so a shared completion queue would hand
		// one worker's completions to another.
		substr := ioengine.NewPreadSubstrate(int(cfg.NumWorkers))
		fileID, err := substr.OpenFile(graphPath)
		if err != nil {
			substr.Close()
			eng.Close()
			return nil, newConfigErr("opening graph file", err)
		}
		eng.substrs = append(eng.substrs, substr)

		lo, hi := store.PartitionRange(WorkerId(w))
		fr := NewFrontier(uint32(hi) - uint32(lo))
		eng.frontier[w] = fr
		eng.workers[w] = &worker[S, Msg]{
			id:         WorkerId(w),
			lo:         lo,
			hi:         hi,
			store:      store,
			frontier:   fr,
			bus:        bus,
			dispatcher: NewIODispatcher(idx, substr, fileID, cfg.MaxInFlightIOPerWorker),
			kind:       kind,
			batchSize:  cfg.BatchSize,
			eng:        &eng.core,
		}
	}
	return eng, nil
}

func wrapCreateErr(err error) *EngineError {
	if os.IsNotExist(err) {
		return newConfigErr("graph/index file not found", err)
	}
	return newFormatErr("index inconsistent with graph header", err)
}

func preload(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	buf := make([]byte, 1<<20)
	for {
		if _, err := f.Read(buf); err != nil {
			break
		}
	}
}

// WithScheduler registers a VertexScheduler on every worker, e.g. for SCC
// pivot prioritization (spec §4.6).
func (e *Engine[S, Msg]) WithScheduler(s VertexScheduler) {
	for _, w := range e.workers {
		w.scheduler = s
	}
}

// StartFilter applies filter across all vertices in parallel; vertices
// where it returns true form the level-0 frontier (spec §4.7).
func (e *Engine[S, Msg]) StartFilter(filter func(VertexId, *S) bool, programCreator func(WorkerId) any) error {
	ids := make([]VertexId, 0)
	for v := VertexId(0); uint32(v) < e.store.NumVertices(); v++ {
		if filter(v, e.store.Get(v)) {
			ids = append(ids, v)
		}
	}
	return e.Start(ids, nil, programCreator)
}

// StartAll makes every vertex level-0 (spec §4.7).
func (e *Engine[S, Msg]) StartAll(programCreator func(WorkerId) any) error {
	ids := make([]VertexId, e.store.NumVertices())
	for v := range ids {
		ids[v] = VertexId(v)
	}
	return e.Start(ids, nil, programCreator)
}

// Start makes exactly ids level-0; init runs on each before level-0
// execution, and programCreator builds each worker's VertexProgram.
func (e *Engine[S, Msg]) Start(ids []VertexId, init func(VertexId, *S), programCreator func(WorkerId) any) error {
	// A completed run may be restarted: multi-phase algorithms (e.g. the
	// forward/backward SCC decomposition in vprog) drive several Start/
	// WaitForComplete cycles against one Engine, each over a shrinking
	// vertex subset.
	e.stateMu.Lock()
	cur := runState(e.state.Load())
	if cur != stateIdle && cur != stateComplete {
		e.stateMu.Unlock()
		return newProgrammerErr(InvalidVertexId, "start called while a run is already in progress")
	}
	e.state.Store(int32(stateStarting))
	e.stateMu.Unlock()

	e.done = make(chan struct{})

	for w, worker := range e.workers {
		if programCreator != nil {
			worker.program = programCreator(WorkerId(w))
		}
	}

	for _, v := range ids {
		state := e.store.Get(v)
		w := e.workerFor(v)
		if init != nil {
			init(v, state)
		}
		e.kind.Init(w.ctx(), v, state)
		w.frontier.ActivateCurrent(uint32(v) - uint32(w.lo))
	}

	e.state.Store(int32(stateRunning))
	go e.run()
	return nil
}

func (e *Engine[S, Msg]) workerFor(v VertexId) *worker[S, Msg] {
	return e.workers[e.store.OwnerWorker(v)]
}

// run drives the Level(k) -> Barrier -> {Level(k+1)|Complete} state machine
// (spec §4.7) until the frontier is exhausted, the run is cancelled, or a
// worker reports a fatal error.
func (e *Engine[S, Msg]) run() {
	var wgLevel sync.WaitGroup

	for {
		wgLevel.Add(len(e.workers))
		for _, w := range e.workers {
			w := w
			go func() {
				defer wgLevel.Done()
				pinIfRequested(e.cfg.PreferredNUMANode)
				w.runLevel()
			}()
		}
		wgLevel.Wait()

		if e.core.errSlotSet() {
			close(e.done)
			return
		}
		if e.core.cancelled.Load() {
			close(e.done)
			return
		}

		// Barrier phase 2: flush outboxes, then swap frontiers. A level can
		// end with nothing in either frontier yet still have work outstanding
		// purely in messages (e.g. BFS/WCC multicast with activate=false and
		// only re-SubmitRead once RunOnMessage sees the delivered payload),
		// so the flushed inboxes must be consulted too, not just the bitsets.
		anyNext := false
		for _, w := range e.workers {
			e.bus.FlushOutbox(w.id)
		}
		for _, fr := range e.frontier {
			if fr.HasNextActivation() {
				anyNext = true
			}
			fr.Swap()
		}
		for _, w := range e.workers {
			if e.bus.AnyInboxNonEmpty(w.id) {
				anyNext = true
			}
		}

		if !anyNext {
			e.state.Store(int32(stateComplete))
			close(e.done)
			return
		}
	}
}

// WaitForComplete blocks until the run reaches Complete, Cancelled, or an
// error (spec §4.7, §7).
func (e *Engine[S, Msg]) WaitForComplete() error {
	<-e.done
	if err := e.core.errSlot.Load(); err != nil {
		return err
	}
	if e.core.cancelled.Load() {
		return ErrCancelled
	}
	return nil
}

// Cancel requests cooperative shutdown; workers check between batches and
// drain to a consistent barrier point before exiting (spec §5).
func (e *Engine[S, Msg]) Cancel() {
	e.core.cancelled.Store(true)
}

// QueryOnAll runs while Idle: each worker folds its partition into a
// private accumulator, then accumulators are merged pairwise (spec §4.7).
// Succeeds on a freshly-created engine with no Start ever issued, per the
// resolved Open Question in spec §9 — VertexStore always holds zero-value
// state, so there is nothing special to special-case.
func (e *Engine[S, Msg]) QueryOnAll(q Query[S, any]) (any, error) {
	switch runState(e.state.Load()) {
	case stateIdle, stateComplete:
	default:
		return nil, newProgrammerErr(InvalidVertexId, "query_on_all called while a run is in progress")
	}
	accs := make([]any, len(e.workers))
	var wg sync.WaitGroup
	for wi, w := range e.workers {
		wg.Add(1)
		go func(wi int, w *worker[S, Msg]) {
			defer wg.Done()
			acc := q.Zero()
			for v := w.lo; v < w.hi; v++ {
				acc = q.Run(v, e.store.Get(v), acc)
			}
			accs[wi] = acc
		}(wi, w)
	}
	wg.Wait()

	result := accs[0]
	for i := 1; i < len(accs); i++ {
		result = q.Merge(result, accs[i])
	}
	return result, nil
}

// Close releases the workers' I/O substrates. Call after WaitForComplete.
func (e *Engine[S, Msg]) Close() error {
	var firstErr error
	for _, s := range e.substrs {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// VertexPrograms returns each worker's surviving per-run VertexProgram.
func (e *Engine[S, Msg]) VertexPrograms() []any {
	out := make([]any, len(e.workers))
	for i, w := range e.workers {
		out[i] = w.program
	}
	return out
}

// WriteVertexProps dumps every vertex's state to path, one line per
// vertex, via fmt.Sprintf("%+v", state) — grounded on the teacher's
// graph.WriteVertexProps / PrintVertexProps and supplemented from
// flash-graph's save_result.h vertex-property dump (spec §8 supplement).
func (e *Engine[S, Msg]) WriteVertexProps(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return newConfigErr("opening vertex-props output", err)
	}
	defer f.Close()
	for v := VertexId(0); uint32(v) < e.store.NumVertices(); v++ {
		state := e.store.Get(v)
		if _, err := f.WriteString(formatVertexProp(v, state)); err != nil {
			return newConfigErr("writing vertex-props", err)
		}
	}
	return nil
}

func formatVertexProp[S any](v VertexId, state *S) string {
	return fmt.Sprintf("%d %+v\n", uint32(v), *state)
}
