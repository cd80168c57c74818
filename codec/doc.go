// Package codec serializes Eyros trees to and from a single contiguous
// byte blob: a varint item count, the bounding envelope, a root
// descriptor, and a tangle of branch bodies and inline data bodies
// reached by following descriptor offsets.
//
// Branch bodies may be written anywhere in the blob and are referenced by
// absolute byte offset; data bodies are always inlined immediately after
// their own descriptor. Encode exploits the first freedom to linearize the
// tree with a work queue instead of recursion, so arbitrarily deep trees
// don't blow the Go call stack while encoding.
package codec
