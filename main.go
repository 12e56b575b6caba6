// Package main is the entry point for the lossforecast application
package main

import "github.com/ethpandaops/lossforecast/cmd"

func main() {
	cmd.Execute()
}
