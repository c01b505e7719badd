package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/vquery/internal/ir"
	"github.com/roach88/vquery/internal/proof"
	"github.com/roach88/vquery/internal/table"
)

// pageDigest addresses a page payload in the pages table.
func pageDigest(payload []byte) ir.Digest {
	return ir.HashWithDomain(ir.DomainPage, payload)
}

// marshalProof converts a proof to JSON TEXT for storage.
// The tag is base64 encoded by encoding/json.
func marshalProof(p *proof.Proof) (string, error) {
	if p == nil {
		return "", fmt.Errorf("marshal proof: nil proof")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal proof: %w", err)
	}
	return string(data), nil
}

// unmarshalProof parses stored proof TEXT.
func unmarshalProof(data string) (*proof.Proof, error) {
	var p proof.Proof
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("unmarshal proof: %w", err)
	}
	return &p, nil
}

// unitArtifacts returns the independently stored pieces of a unit.
func unitArtifacts(u *table.Unit) (payload, descriptor []byte, err error) {
	payload, err = u.Payload()
	if err != nil {
		return nil, nil, err
	}
	descriptor, err = table.MarshalSchema(u.Schema)
	if err != nil {
		return nil, nil, err
	}
	return payload, descriptor, nil
}
