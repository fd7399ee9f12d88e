// Command cognitive-radar runs the closed-loop radar core against the
// synthetic scene and serves its status.
package main

import (
	"os"

	"github.com/banshee-data/cognitive.radar/internal/monitoring"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		monitoring.Logf("cognitive-radar: %v", err)
		os.Exit(1)
	}
}
