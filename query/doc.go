// Package query implements the lazy bbox traversal stream: an explicit
// state machine over a tree's cursors and a forest-wide round-robin
// merge of several such streams, grounded on pkg/query/engine.go's
// QueryIterator but built as an explicit state machine rather than
// captured-closure continuations.
package query
