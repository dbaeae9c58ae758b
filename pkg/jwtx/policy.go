package jwtx

import "fmt"

// Policy validates algorithm choices against the closed allow-list and the
// deployment environment. It holds no mutable state; decisions are pure.
type Policy struct {
	// Environment is the deployment environment tag ("dev", "staging",
	// "prod"). In prod, symmetric signing is accepted with a warning.
	Environment string
}

// Decision is the outcome of an approval. A non-empty Warning means the
// algorithm is accepted but sub-optimal for the environment; callers should
// log it.
type Decision struct {
	Warning string
}

// Approve checks a requested algorithm against the allow-list.
func (p Policy) Approve(alg string) (Decision, error) {
	switch alg {
	case AlgorithmRS256, AlgorithmEdDSA:
		return Decision{}, nil
	case AlgorithmHS256:
		if p.Environment == "prod" {
			return Decision{
				Warning: "HS256 shares the verification secret with signers; prefer RS256 or EdDSA in production",
			}, nil
		}
		return Decision{}, nil
	default:
		return Decision{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// CheckHeader enforces that the algorithm a token's header names is exactly
// the one its key generation was configured with. Any mismatch is a
// downgrade attempt and a hard rejection; an algorithm outside the
// allow-list is rejected before the comparison is even made.
func (p Policy) CheckHeader(headerAlg string, gen *Generation) error {
	if _, err := p.Approve(headerAlg); err != nil {
		return err
	}
	if headerAlg != gen.Algorithm {
		return fmt.Errorf("%w: header says %q, generation %d uses %q",
			ErrAlgorithmDowngrade, headerAlg, gen.ID, gen.Algorithm)
	}
	return nil
}
