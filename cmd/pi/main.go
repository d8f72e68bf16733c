// Command pi estimates pi by Monte Carlo simulation.
//
// Build with version information:
//
//	go build -ldflags "-X github.com/MJE43/montecarlo-pi/internal/api.EngineVersion=v1.0.0 \
//	  -X github.com/MJE43/montecarlo-pi/internal/api.GitCommit=$(git rev-parse --short HEAD) \
//	  -X github.com/MJE43/montecarlo-pi/internal/api.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/pi
package main

import (
	"os"

	"github.com/MJE43/montecarlo-pi/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
