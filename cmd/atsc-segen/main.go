// atsc-segen generates trellis-encoded symbol streams for exercising
// the decoder: random or zero payload bytes are run through the
// segment encoder and written as little-endian float32 soft symbols.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"github.com/dbehnke/atsc-nexus/pkg/atsc"
	"github.com/dbehnke/atsc-nexus/pkg/logger"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	windows := flag.Int("windows", 1, "Number of interleave windows to generate")
	outPath := flag.String("out", "-", "Output path for the symbol stream (- for stdout)")
	payloadPath := flag.String("payload", "", "Optional path to write the payload bytes for later comparison")
	seed := flag.Int64("seed", 1, "Random seed for payload generation")
	zero := flag.Bool("zero", false, "Generate all-zero payload instead of random")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("atsc-segen %s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	log := logger.New(logger.Config{
		Level:  "info",
		Format: "text",
		Output: os.Stderr,
	})

	if *windows <= 0 {
		log.Error("windows must be positive", logger.Int("windows", *windows))
		os.Exit(1)
	}

	// Build the payload: one encoded-length byte slice per segment
	rng := rand.New(rand.NewSource(*seed))
	segments := *windows * atsc.NCoders
	payload := make([][]byte, segments)
	for i := range payload {
		payload[i] = make([]byte, atsc.EncodedLength)
		if !*zero {
			rng.Read(payload[i])
		}
	}

	enc := atsc.NewEncoder()
	symbols, err := enc.Encode(payload)
	if err != nil {
		log.Error("Failed to encode payload", logger.Error(err))
		os.Exit(1)
	}

	out, err := openOutput(*outPath)
	if err != nil {
		log.Error("Failed to open output", logger.Error(err))
		os.Exit(1)
	}

	w := bufio.NewWriter(out)
	scratch := make([]byte, 4)
	written := 0
	for _, seg := range symbols {
		for _, s := range seg {
			binary.LittleEndian.PutUint32(scratch, math.Float32bits(s))
			if _, err := w.Write(scratch); err != nil {
				log.Error("Failed to write symbols", logger.Error(err))
				os.Exit(1)
			}
			written += 4
		}
	}
	if err := w.Flush(); err != nil {
		log.Error("Failed to flush output", logger.Error(err))
		os.Exit(1)
	}
	if out != os.Stdout {
		if err := out.Close(); err != nil {
			log.Warn("Failed to close output", logger.Error(err))
		}
	}

	if *payloadPath != "" {
		if err := writePayload(*payloadPath, payload); err != nil {
			log.Error("Failed to write payload file", logger.Error(err))
			os.Exit(1)
		}
	}

	log.Info("Symbol stream generated",
		logger.Int("windows", *windows),
		logger.Int("segments", segments),
		logger.Int("bytes", written))
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return os.Stdout, nil
	}
	return os.Create(path)
}

func writePayload(path string, payload [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, seg := range payload {
		if _, err := f.Write(seg); err != nil {
			_ = f.Close()
			return err
		}
	}
	return f.Close()
}
