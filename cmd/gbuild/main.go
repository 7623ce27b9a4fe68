// Command gbuild converts a plain edge-list text file (one "src dst" or
// "src dst weight" pair per line, "#"-prefixed comment lines skipped) into
// the on-disk graph/index file pair the engine reads, using gidx.Builder.
// The scanning idiom (bufio.Scanner, strings.Fields, enforce.ENFORCE on
// malformed lines) is carried over from the teacher's graph/io.go loader.
package main

import (
	"bufio"
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/semgraph/engine/enforce"
	"github.com/semgraph/engine/gidx"
)

func main() {
	inPtr := flag.String("in", "", "Edge-list text file.")
	graphPtr := flag.String("g", "", "Output graph file.")
	indexPtr := flag.String("i", "", "Output index file.")
	undirectedPtr := flag.Bool("u", false, "Treat input as undirected (mirror every edge).")
	flag.Parse()

	if *inPtr == "" || *graphPtr == "" || *indexPtr == "" {
		log.Fatal().Msg("gbuild: -in, -g and -i are all required")
	}

	b := &gidx.Builder{Directed: !*undirectedPtr}
	var maxId uint32

	file, err := os.Open(*inPtr)
	enforce.ENFORCE(err)
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() {
		text := scanner.Text()
		if strings.HasPrefix(text, "#") || strings.TrimSpace(text) == "" {
			continue
		}
		fields := strings.Fields(text)
		enforce.ENFORCE(len(fields) == 2 || len(fields) == 3)

		src, err := strconv.ParseUint(fields[0], 10, 32)
		enforce.ENFORCE(err)
		dst, err := strconv.ParseUint(fields[1], 10, 32)
		enforce.ENFORCE(err)

		if uint32(src) > maxId {
			maxId = uint32(src)
		}
		if uint32(dst) > maxId {
			maxId = uint32(dst)
		}

		b.AddEdge(gidx.VertexId(src), gidx.VertexId(dst), nil)
		if *undirectedPtr {
			b.AddEdge(gidx.VertexId(dst), gidx.VertexId(src), nil)
		}
		lines++
	}
	enforce.ENFORCE(scanner.Err())

	b.NumVertices = maxId + 1
	hdr, err := b.Build(*graphPtr, *indexPtr)
	if err != nil {
		log.Fatal().Err(err).Msg("gbuild: build")
	}

	log.Info().Msgf("gbuild: wrote %d vertices, %d edges (directed=%v) from %d input lines",
		hdr.NumVertices, hdr.NumEdges, hdr.Directed, lines)
}
