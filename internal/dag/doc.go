// Package dag is the execution layer of the pipeline. It holds a Directed
// Acyclic Graph of named nodes and runs them on a bounded worker pool: a node
// is dispatched once every node it depends on has finished successfully.
//
// A failing node never cancels the run. Its descendants are marked skipped
// with a SkippedError pointing at the originating failure, while branches
// that do not depend on it keep executing.
package dag
