// Package schedule turns resource-access declarations into an execution plan
// and runs it.
//
// Every system declares, in order, which resources it reads or writes.
// BuildTimelines splits each resource's accessors into groups: batches of
// readers separated by single writers, in declaration order. BuildGraph
// links each group to the next, which yields one acyclic dependency graph
// over all systems. Executor.Run dispatches every system whose
// predecessors are done onto a bounded worker pool.
//
// The guarantee: two systems that share a resource where at least one of
// them writes it never run at the same time, and the one declared first
// runs first. Readers of a resource may overlap freely.
package schedule
