// Command ge-run loads a graph built by gbuild and runs one of the vprog
// algorithms against it, mirroring the teacher's per-algorithm cmd/lp-*
// binaries but dispatching on an -alg flag instead of one binary per
// algorithm, since the engine now hosts several Kind implementations
// behind one Create[S,Msg] entry point.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/engine"
	"github.com/semgraph/engine/gidx"
	"github.com/semgraph/engine/vprog"
)

func main() {
	algPtr := flag.String("alg", "bfs", "Algorithm: bfs, wcc, kcore, triangle, pagerank, scc.")
	sourcePtr := flag.Uint("source", 0, "Source vertex for bfs.")
	corePtr := flag.Uint("core", 2, "Core threshold for kcore.")
	dampingPtr := flag.Float64("damping", 0.85, "Damping factor for pagerank.")
	epsilonPtr := flag.Float64("epsilon", 0.001, "Convergence epsilon for pagerank.")
	propsPtr := flag.Bool("p", false, "Write vertex properties to disk.")

	cfg, graphPath, indexPath := engine.FlagsToConfig()

	if graphPath == "" || indexPath == "" {
		fmt.Fprintln(os.Stderr, "ge-run: -g and -i are required")
		os.Exit(1)
	}

	switch *algPtr {
	case "bfs":
		runBFS(graphPath, indexPath, cfg, engine.VertexId(*sourcePtr), *propsPtr)
	case "wcc":
		runWCC(graphPath, indexPath, cfg, *propsPtr)
	case "kcore":
		runKCore(graphPath, indexPath, cfg, uint32(*corePtr), *propsPtr)
	case "triangle":
		runTriangle(graphPath, indexPath, cfg)
	case "pagerank":
		runPageRank(graphPath, indexPath, cfg, *dampingPtr, *epsilonPtr, *propsPtr)
	case "scc":
		runSCC(graphPath, indexPath, cfg)
	default:
		fmt.Fprintf(os.Stderr, "ge-run: unknown algorithm %q\n", *algPtr)
		os.Exit(1)
	}
}

func runBFS(graphPath, indexPath string, cfg engine.Config, source engine.VertexId, writeProps bool) {
	eng, err := engine.Create[vprog.BFSState, vprog.BFSMsg](graphPath, indexPath, vprog.BFS{}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	if err := eng.Start([]engine.VertexId{source}, nil, nil); err != nil {
		log.Fatal().Err(err).Msg("ge-run: start")
	}
	if err := eng.WaitForComplete(); err != nil {
		log.Fatal().Err(err).Msg("ge-run: run")
	}
	if writeProps {
		writeOrFatal(eng.WriteVertexProps("bfs.props"))
	}
	log.Info().Msgf("ge-run: bfs from %d complete", source)
}

func runWCC(graphPath, indexPath string, cfg engine.Config, writeProps bool) {
	eng, err := engine.Create[vprog.WCCState, vprog.WCCMsg](graphPath, indexPath, vprog.WCC{}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	if err := eng.StartAll(nil); err != nil {
		log.Fatal().Err(err).Msg("ge-run: start")
	}
	if err := eng.WaitForComplete(); err != nil {
		log.Fatal().Err(err).Msg("ge-run: run")
	}
	if writeProps {
		writeOrFatal(eng.WriteVertexProps("wcc.props"))
	}
	log.Info().Msg("ge-run: wcc complete")
}

func runKCore(graphPath, indexPath string, cfg engine.Config, k uint32, writeProps bool) {
	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: read index")
	}

	kind := vprog.KCore{Idx: idx, K: k}
	eng, err := engine.Create[vprog.KCoreState, vprog.KCoreMsg](graphPath, indexPath, kind, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	if err := eng.StartAll(nil); err != nil {
		log.Fatal().Err(err).Msg("ge-run: start")
	}
	if err := eng.WaitForComplete(); err != nil {
		log.Fatal().Err(err).Msg("ge-run: run")
	}
	if writeProps {
		writeOrFatal(eng.WriteVertexProps("kcore.props"))
	}
	log.Info().Msgf("ge-run: %d-core complete", k)
}

func runTriangle(graphPath, indexPath string, cfg engine.Config) {
	eng, err := engine.Create[vprog.TriangleState, vprog.TriangleMsg](graphPath, indexPath, vprog.TriangleCount{}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	if err := eng.StartAll(nil); err != nil {
		log.Fatal().Err(err).Msg("ge-run: start")
	}
	if err := eng.WaitForComplete(); err != nil {
		log.Fatal().Err(err).Msg("ge-run: run")
	}

	result, err := eng.QueryOnAll(engine.SumQuery[vprog.TriangleState]{
		Project: func(s *vprog.TriangleState) float64 { return float64(s.Count) },
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: query")
	}
	log.Info().Msgf("ge-run: triangle count = %d", int64(result.(float64)))
}

func runPageRank(graphPath, indexPath string, cfg engine.Config, damping, epsilon float64, writeProps bool) {
	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: read index")
	}

	kind := vprog.PageRank{Idx: idx, Damping: damping, Epsilon: epsilon}
	eng, err := engine.Create[vprog.PageRankState, vprog.PageRankMsg](graphPath, indexPath, kind, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	if err := eng.StartAll(nil); err != nil {
		log.Fatal().Err(err).Msg("ge-run: start")
	}
	if err := eng.WaitForComplete(); err != nil {
		log.Fatal().Err(err).Msg("ge-run: run")
	}
	if writeProps {
		writeOrFatal(eng.WriteVertexProps("pagerank.props"))
	}
	log.Info().Msg("ge-run: pagerank complete")
}

func runSCC(graphPath, indexPath string, cfg engine.Config) {
	idx, err := gidx.Read(graphPath, indexPath)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: read index")
	}

	eng, err := engine.Create[vprog.SCCState, vprog.SCCMsg](graphPath, indexPath, vprog.SCC{}, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: create")
	}
	defer eng.Close()

	sccOf, err := vprog.ComputeSCC(eng, idx.Header.NumVertices)
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: compute scc")
	}

	components := make(map[engine.VertexId]int)
	for _, pivot := range sccOf {
		components[pivot]++
	}
	log.Info().Msgf("ge-run: scc complete, %d components", len(components))
}

func writeOrFatal(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("ge-run: write vertex props")
	}
}
