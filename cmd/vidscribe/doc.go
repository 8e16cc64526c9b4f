// Package main hosts the vidscribe CLI entrypoint and command graph.
//
// The Cobra command tree resolves layered configuration once per invocation,
// sets up structured logging, and hands off to the internal packages: `run`
// drives the batch orchestrator, `check` renders preflight results, `history`
// reads the run ledger, and `config` scaffolds and inspects configuration.
// Keep this package thin; behavior belongs in internal packages.
package main
