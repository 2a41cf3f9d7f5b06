package main

import "github.com/workledger/workledger/pkg/sentinel"

// runSentinel starts the sentinel supervisor, which re-executes this binary
// with the serve subcommand and restarts it on crash or binary update.
func runSentinel() {
	sentinel.Run("serve")
}
