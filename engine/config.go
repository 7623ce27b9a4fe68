package engine

import (
	"flag"
	"runtime"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/utils"
)

// Config mirrors the teacher's GraphOptions convention: a plain struct,
// populated either directly or via FlagsToConfig.
type Config struct {
	NumWorkers         uint32
	NumNodes           uint32
	MaxInFlightIOPerWorker uint32
	MessageBufferBytes uint32
	PreloadGraph       bool
	TraceLogPath       string
	DebugLevel         uint8
	BatchSize          uint32 // B in the worker loop, spec §4.6.

	// PreferredNUMANode: supplemented from flash-graph's NUMA_node affinity
	// hint (original_source). Best-effort only; see worker.go.
	PreferredNUMANode []int
}

// DefaultConfig matches values the teacher chooses for unset flags.
func DefaultConfig() Config {
	return Config{
		NumWorkers:             uint32(runtime.NumCPU()),
		NumNodes:               1,
		MaxInFlightIOPerWorker: 512,
		MessageBufferBytes:     64 * 1024,
		BatchSize:              1024,
	}
}

// FlagsToConfig declares its own flags and parses them, exactly as
// graph.FlagsToOptions does in the teacher. Declare any flags your own
// binary needs before calling this. Returns the parsed config plus the
// graph/index file paths (Config itself carries no paths; Create takes
// them explicitly per spec §6.3).
func FlagsToConfig() (cfg Config, graphPath string, indexPath string) {
	graphPtr := flag.String("g", "", "Graph file.")
	indexPtr := flag.String("i", "", "Index file.")
	threadPtr := flag.Int("t", runtime.NumCPU(), "Worker count.")
	kPtr := flag.Int("k", 512, "Max in-flight I/O per worker.")
	mbPtr := flag.Int("mb", 64*1024, "Message buffer bytes per outbox segment.")
	preloadPtr := flag.Bool("preload", false, "Preload graph file into the OS page cache before running.")
	tracePtr := flag.String("trace", "", "Trace log path. Empty disables tracing.")
	debugPtr := flag.Int("debug", 0, "Debug level: 0 info, 1 debug, 2+ trace.")
	batchPtr := flag.Int("b", 1024, "Worker batch size B.")
	flag.Parse()

	utils.SetLevel(*debugPtr)

	cfg = DefaultConfig()
	cfg.NumWorkers = uint32(*threadPtr)
	cfg.MaxInFlightIOPerWorker = uint32(*kPtr)
	cfg.MessageBufferBytes = uint32(*mbPtr)
	cfg.PreloadGraph = *preloadPtr
	cfg.TraceLogPath = *tracePtr
	cfg.DebugLevel = uint8(*debugPtr)
	cfg.BatchSize = uint32(*batchPtr)

	log.Debug().Msgf("engine: config workers=%d k=%d graph=%q index=%q", cfg.NumWorkers, cfg.MaxInFlightIOPerWorker, *graphPtr, *indexPtr)
	return cfg, *graphPtr, *indexPtr
}
