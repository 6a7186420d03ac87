// Package descriptor renders the container build descriptor (Dockerfile) for
// an agent project and decides whether an existing descriptor on disk may be
// reused.
//
// The first line of every generated descriptor carries a content hash of the
// render inputs:
//
//	# agentkit-descriptor-hash: <blake3 hex>
//
// A descriptor without that header was written by hand and is never
// overwritten unless a rebuild is forced.
//
// This is part of the Functional Core - all functions are pure with no I/O.
package descriptor
