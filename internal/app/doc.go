// Package app contains the core application logic. It wires the tool
// configuration, the registration graph and the evaluation aggregator into
// the two runs exposed by the CLI, decoupled from flag parsing and process
// exit handling.
package app
