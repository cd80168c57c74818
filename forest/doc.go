// Package forest implements the database surface: a sparse vector of
// trees of geometrically growing rank, a staging buffer, and the
// occupied-prefix merge cascade that periodically rebuilds a single
// merged tree from the staging buffer and a prefix of existing trees.
// Grounded on freyjadb's pkg/store, whose KVStore plays the analogous
// "single-writer, multi-reader embedded store wrapping a log and an
// index" role that DB plays here for a spatial forest instead of a hash
// index.
package forest
