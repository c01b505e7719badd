package engine

// Phase is one pass of the pipeline over every node.
type Phase string

const (
	PhaseExecute Phase = "execute"
	PhaseKeyGen  Phase = "keygen"
	PhaseProve   Phase = "prove"
	PhaseVerify  Phase = "verify"
)

// Phases lists the phases in run order.
var Phases = []Phase{PhaseExecute, PhaseKeyGen, PhaseProve, PhaseVerify}

// ordered reports whether nodes in this phase must wait for their inputs.
// Execute consumes upstream outputs and Prove consumes upstream proofs;
// KeyGen and Verify touch one node each.
func (p Phase) ordered() bool {
	return p == PhaseExecute || p == PhaseProve
}

func (p Phase) rank() int {
	for i, q := range Phases {
		if q == p {
			return i
		}
	}
	return len(Phases)
}
