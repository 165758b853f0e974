package store

import (
	"fmt"

	"medverify/internal/verification/ledger"
	"medverify/pkg/platform/privacy"
)

// Option configures the persistent stores.
type Option func(*codec)

// WithSealer encrypts license numbers and names at rest.
func WithSealer(s *privacy.Sealer) Option {
	return func(c *codec) {
		c.sealer = s
	}
}

// codec seals PII fields before writes and opens them after reads. A nil
// sealer stores plaintext.
type codec struct {
	sealer *privacy.Sealer
}

func newCodec(opts []Option) codec {
	var c codec
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

type sealedFields struct {
	PMDCNumber string
	FullName   string
	FatherName string
}

func (c codec) seal(e *ledger.Entry) (sealedFields, error) {
	var (
		out sealedFields
		err error
	)
	if out.PMDCNumber, err = c.sealer.Seal(e.PMDCNumber); err != nil {
		return out, fmt.Errorf("seal pmdc number: %w", err)
	}
	if out.FullName, err = c.sealer.Seal(e.FullName); err != nil {
		return out, fmt.Errorf("seal full name: %w", err)
	}
	if out.FatherName, err = c.sealer.Seal(e.FatherName); err != nil {
		return out, fmt.Errorf("seal father name: %w", err)
	}
	return out, nil
}

func (c codec) open(e *ledger.Entry) error {
	var err error
	if e.PMDCNumber, err = c.sealer.Open(e.PMDCNumber); err != nil {
		return fmt.Errorf("open pmdc number: %w", err)
	}
	if e.FullName, err = c.sealer.Open(e.FullName); err != nil {
		return fmt.Errorf("open full name: %w", err)
	}
	if e.FatherName, err = c.sealer.Open(e.FatherName); err != nil {
		return fmt.Errorf("open father name: %w", err)
	}
	return nil
}
