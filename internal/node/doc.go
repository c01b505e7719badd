// Package node holds execution nodes and the arena that owns them.
//
// Nodes live in an index-addressed Arena; a node's position is its index.
// Inputs are explicit tagged references, either to an earlier node's output
// (NodeRef) or to a committed data unit (SourceRef), so the graph holds no
// pointers between nodes.
//
// Every node carries a Stage. Stages advance one step at a time:
//
//	Created -> Executed -> KeyGenerated -> Proved -> Verified
//
// Each record method (SetOutput, SetKeys, SetProof, MarkVerified) checks the
// current stage first and fails with ErrStageOrder otherwise.
package node
