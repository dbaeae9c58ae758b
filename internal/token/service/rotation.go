package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lockbridge/tokenvault/internal/token/domain"
	"github.com/lockbridge/tokenvault/internal/token/store"
	"github.com/lockbridge/tokenvault/pkg/cryptox"
	"github.com/lockbridge/tokenvault/pkg/jwtx"
	"github.com/lockbridge/tokenvault/pkg/slogx"
)

// RotationService derives and installs new key generations, and rebuilds
// the keyring from persisted generation records at startup.
//
// In ephemeral mode (Store == nil) generations live only in the keyring and
// do not survive a restart. In persistent mode every generation's salt is
// stored, plus the private key PEM encrypted under the generation's own
// cipher key for asymmetric algorithms; symmetric material is never stored
// at all since it re-derives from (master secret, salt).
type RotationService struct {
	Keyring *jwtx.Keyring
	Store   store.Store // nil for ephemeral mode
	Policy  jwtx.Policy

	MasterSecret []byte
	Algorithm    string
	RSABits      int // 0 means 2048

	// GracePeriod is how long a retired generation keeps verifying tokens.
	// Must cover the longest TTL issued, or live tokens go unverifiable
	// after a rotation.
	GracePeriod time.Duration

	// Now is the clock source, time.Now when nil.
	Now func() time.Time
}

// Rotate derives a fresh generation, installs it as current, and retires
// the previous one with a verification grace window. Returns the new
// generation id. Issuance is never blocked: the keyring swap is atomic.
func (s *RotationService) Rotate(ctx context.Context) (uint64, error) {
	log := slogx.FromContext(ctx)

	decision, err := s.Policy.Approve(s.Algorithm)
	if err != nil {
		return 0, err
	}
	if decision.Warning != "" {
		log.Warn("algorithm approved with warning", "algorithm", s.Algorithm, "warning", decision.Warning)
	}

	salt, err := cryptox.NewSalt()
	if err != nil {
		return 0, err
	}

	material, err := cryptox.Derive(s.MasterSecret, salt)
	if err != nil {
		return 0, err
	}

	id := s.Keyring.NextID()
	now := s.now()

	signer, encryptedKey, err := s.buildSigner(material, id)
	if err != nil {
		return 0, err
	}

	gen := &jwtx.Generation{
		ID:        id,
		Algorithm: s.Algorithm,
		Signer:    signer,
		CipherKey: material.CipherKey,
		Salt:      salt,
		DerivedAt: now,
	}

	// Persist before publishing so a crash between the two never leaves a
	// current generation that cannot be restored.
	if s.Store != nil {
		rec := domain.KeyGenerationRecord{
			ID:           id,
			Algorithm:    s.Algorithm,
			Salt:         salt,
			EncryptedKey: encryptedKey,
			DerivedAt:    now,
		}
		if err := s.Store.KeyGenerations().Create(ctx, rec); err != nil {
			return 0, fmt.Errorf("failed to persist key generation: %w", err)
		}
	}

	retired := s.Keyring.Install(gen, now.Add(s.GracePeriod))
	if retired != nil && s.Store != nil {
		if err := s.Store.KeyGenerations().Retire(ctx, retired.ID, retired.ValidUntil); err != nil {
			return 0, fmt.Errorf("failed to retire key generation %d: %w", retired.ID, err)
		}
	}

	if retired != nil {
		log.Info("key generation rotated",
			"new_generation", id,
			"retired_generation", retired.ID,
			"retired_valid_until", retired.ValidUntil,
			"algorithm", s.Algorithm,
		)
	} else {
		log.Info("initial key generation installed", "generation", id, "algorithm", s.Algorithm)
	}

	return id, nil
}

// buildSigner creates the signer for a new generation. For asymmetric
// algorithms it also returns the private key PEM sealed under the
// generation's cipher key, for persistence.
func (s *RotationService) buildSigner(material cryptox.KeyMaterial, id uint64) (jwtx.Signer, []byte, error) {
	if s.Algorithm == jwtx.AlgorithmHS256 {
		signer, err := jwtx.NewSignerHS256(material.SigningKey)
		if err != nil {
			return nil, nil, err
		}
		return signer, nil, nil
	}

	var pemKey []byte
	var err error
	switch s.Algorithm {
	case jwtx.AlgorithmRS256:
		bits := s.RSABits
		if bits == 0 {
			bits = 2048
		}
		pemKey, err = cryptox.GenerateRSAKey(bits)
	case jwtx.AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	default:
		return nil, nil, fmt.Errorf("%w: %q", jwtx.ErrUnsupportedAlgorithm, s.Algorithm)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate keypair: %w", err)
	}

	signer, err := newAsymmetricSigner(s.Algorithm, pemKey)
	if err != nil {
		return nil, nil, err
	}

	sealed, err := cryptox.EncryptPayload(material.CipherKey, id, pemKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to seal private key: %w", err)
	}
	encryptedKey, err := json.Marshal(sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode sealed private key: %w", err)
	}

	return signer, encryptedKey, nil
}

// Restore rebuilds the keyring from persisted generation records, skipping
// generations whose grace window already passed. Returns the number of
// generations restored; zero means the store was empty and a fresh Rotate
// is needed.
func (s *RotationService) Restore(ctx context.Context) (int, error) {
	if s.Store == nil {
		return 0, nil
	}

	records, err := s.Store.KeyGenerations().List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list key generations: %w", err)
	}

	now := s.now()
	var gens []*jwtx.Generation
	var currentID uint64
	for _, rec := range records {
		if rec.IsExpired(now) {
			continue
		}

		gen, err := s.rebuildGeneration(rec)
		if err != nil {
			return 0, fmt.Errorf("failed to restore key generation %d: %w", rec.ID, err)
		}
		gens = append(gens, gen)
		if rec.IsCurrent() {
			currentID = gen.ID
		}
	}

	if len(gens) == 0 {
		return 0, nil
	}
	if currentID == 0 {
		return 0, fmt.Errorf("stored key generations have no current generation")
	}

	if err := s.Keyring.Restore(gens, currentID); err != nil {
		return 0, err
	}

	slogx.FromContext(ctx).Info("keyring restored",
		"generations", len(gens),
		"current_generation", currentID,
	)
	return len(gens), nil
}

// rebuildGeneration re-derives one generation's material from the master
// secret and the record's salt, then reconstructs its signer: directly for
// HS256, or by opening the stored encrypted PEM for asymmetric algorithms.
func (s *RotationService) rebuildGeneration(rec domain.KeyGenerationRecord) (*jwtx.Generation, error) {
	material, err := cryptox.Derive(s.MasterSecret, rec.Salt)
	if err != nil {
		return nil, err
	}

	var signer jwtx.Signer
	if rec.Algorithm == jwtx.AlgorithmHS256 {
		signer, err = jwtx.NewSignerHS256(material.SigningKey)
		if err != nil {
			return nil, err
		}
	} else {
		var sealed cryptox.EncryptedPayload
		if err := json.Unmarshal(rec.EncryptedKey, &sealed); err != nil {
			return nil, fmt.Errorf("stored private key envelope is corrupt: %w", err)
		}
		pemKey, err := cryptox.DecryptPayload(material.CipherKey, sealed)
		if err != nil {
			return nil, fmt.Errorf("failed to open stored private key: %w", err)
		}
		signer, err = newAsymmetricSigner(rec.Algorithm, pemKey)
		if err != nil {
			return nil, err
		}
	}

	gen := &jwtx.Generation{
		ID:        rec.ID,
		Algorithm: rec.Algorithm,
		Signer:    signer,
		CipherKey: material.CipherKey,
		Salt:      rec.Salt,
		DerivedAt: rec.DerivedAt,
	}
	if rec.ValidUntil != nil {
		gen.ValidUntil = *rec.ValidUntil
	}
	return gen, nil
}

func newAsymmetricSigner(algorithm string, pemKey []byte) (jwtx.Signer, error) {
	switch algorithm {
	case jwtx.AlgorithmRS256:
		return jwtx.NewSignerRS256(pemKey)
	case jwtx.AlgorithmEdDSA:
		return jwtx.NewSignerEdDSA(pemKey)
	default:
		return nil, fmt.Errorf("%w: %q", jwtx.ErrUnsupportedAlgorithm, algorithm)
	}
}

func (s *RotationService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
