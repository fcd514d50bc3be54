// Command mcsat is the DIMACS CLI: a file in, Sat/Unsat plus search stats
// out, mirroring yass/main.go's cpuprof/memprof flags and report format.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/dkarv/mcsat"
)

var flagCPUProfile = flag.Bool("cpuprof", false, "save pprof CPU profile in cpuprof")
var flagMemProfile = flag.Bool("memprof", false, "save pprof memory profile in memprof")
var flagGzipped = flag.Bool("gzip", false, "instance file is gzip-compressed")

type config struct {
	instanceFile string
	gzipped      bool
	memProfile   bool
	cpuProfile   bool
}

func parseConfig() (*config, error) {
	flag.Parse()
	if flag.NArg() == 0 || flag.Arg(0) == "" {
		return nil, fmt.Errorf("missing instance file")
	}
	return &config{
		instanceFile: flag.Arg(0),
		gzipped:      *flagGzipped,
		memProfile:   *flagMemProfile,
		cpuProfile:   *flagCPUProfile,
	}, nil
}

func run(cfg *config) error {
	s := mcsat.New(mcsat.DefaultOptions)

	if err := s.LoadDIMACS(cfg.instanceFile, cfg.gzipped); err != nil {
		return fmt.Errorf("could not parse instance: %w", err)
	}

	t := time.Now()
	status := s.Check()
	elapsed := time.Since(t)

	fmt.Printf("c time (sec): %f\n", elapsed.Seconds())
	fmt.Printf("c conflicts:  %d (%.2f /sec)\n", s.NumConflicts(), float64(s.NumConflicts())/elapsed.Seconds())
	fmt.Printf("c learnts:    %d\n", s.NumLearnts())
	fmt.Printf("c status:     %s\n", status.String())

	return nil
}

func main() {
	cfg, err := parseConfig()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.cpuProfile {
		f, err := os.Create("cpuprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}

	if cfg.memProfile {
		f, err := os.Create("memprof")
		if err != nil {
			log.Fatal(err)
		}
		pprof.WriteHeapProfile(f)
		f.Close()
	}
}
