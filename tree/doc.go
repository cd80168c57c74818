// Package tree builds and walks the immutable multi-dimensional search
// trees Eyros stores on disk: a fractal partition over interleaved axes,
// with pivots, intersection buckets for straddling items, and partition
// children for the slabs in between.
//
// A Tree is built once, from a batch of points that Build sorts per axis
// itself, and never mutated
// again; merges always produce a brand new Tree rather than editing one
// in place.
package tree
