// Package index defines the vector index abstraction and its backends.
//
// A Store holds embedded document chunks and answers semantic (vector
// similarity) and keyword (lexical match) queries. Three backends are
// provided: Qdrant over gRPC for production, an embedded chromem database
// for single-node deployments, and an in-memory store for tests and
// ephemeral use. All backends normalize scores to [0, 1] and are safe for
// concurrent use.
package index
