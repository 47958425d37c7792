package main

import (
	"github.com/Paintersrp/intthread/internal/cli"
	"github.com/Paintersrp/intthread/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
