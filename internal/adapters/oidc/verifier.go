// Package oidc verifies OIDC ID tokens presented to the web API in
// place of the static bearer token.
package oidc

import (
	"context"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
)

// Config holds the verifier configuration.
type Config struct {
	// Issuer is the OIDC issuer URL used for discovery.
	Issuer string

	// ClientID is the audience expected in accepted tokens. Empty
	// skips the audience check.
	ClientID string
}

// Verifier validates ID tokens against a discovered issuer. It
// implements the httpx.TokenVerifier interface.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier discovers the issuer and builds a token verifier. The
// context bounds the discovery request only.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("oidc: issuer is required")
	}
	provider, err := gooidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Issuer, err)
	}
	oc := &gooidc.Config{ClientID: cfg.ClientID}
	if cfg.ClientID == "" {
		oc.SkipClientIDCheck = true
	}
	return &Verifier{verifier: provider.Verifier(oc)}, nil
}

// Verify checks the signature, expiry and audience of a raw ID token.
func (v *Verifier) Verify(ctx context.Context, rawToken string) error {
	if rawToken == "" {
		return errors.New("oidc: empty token")
	}
	_, err := v.verifier.Verify(ctx, rawToken)
	return err
}
