// Package proof is the boundary to the proof backend.
//
// A backend offers three primitives, each parameterized by a Circuit:
//
//	KeyGen(circuit)                   -> (ProvingKey, VerifyingKey)
//	Prove(pk, public, witness)        -> Proof
//	Verify(vk, public, proof)         -> bool
//
// A Circuit is built from a data-independent shape (operation kind, expression
// structure, input and output schemas) and a Relation that decides whether a
// witness satisfies it. The public inputs are the commitments of the node's
// inputs and output; the witness is the data behind those commitments.
//
// Reference is a transparent backend: it proves nothing in zero knowledge and
// its verifying key is as secret as its proving key. It exists so the pipeline
// can be exercised end to end with real soundness behavior: an unsatisfied
// relation or any change to the public inputs makes Verify return false.
package proof
