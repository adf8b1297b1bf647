// Package registration runs the registration stage graph for one subject
// pair. Each stage of the selected strategies becomes a node of a dag.Graph
// and runs exactly once; strategies sharing a prefix share its outputs.
package registration
