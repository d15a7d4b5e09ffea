package webauthn

import (
	"encoding/json"
	"fmt"
)

// ClientData is the parsed form of the collectedClientData JSON blob sent
// by the browser alongside every attestation or assertion response.
//
// https://www.w3.org/TR/webauthn-3/#dictionary-client-data
type ClientData struct {
	Type        string
	Challenge   Bytes
	Origin      string
	TopOrigin   string
	CrossOrigin bool
}

type clientDataWire struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	TopOrigin   string `json:"topOrigin"`
	CrossOrigin bool   `json:"crossOrigin"`
}

// ParseClientData decodes raw clientDataJSON bytes.
func ParseClientData(raw []byte) (*ClientData, error) {
	const op = "ParseClientData"
	var wire clientDataWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fail(op, MalformedInput, fmt.Errorf("decoding client data JSON: %w", err))
	}
	if wire.Type == "" {
		return nil, fail(op, MalformedInput, fmt.Errorf("client data missing 'type'"))
	}
	if wire.Origin == "" {
		return nil, fail(op, MalformedInput, fmt.Errorf("client data missing 'origin'"))
	}
	challenge, err := DecodeBase64URL(wire.Challenge)
	if err != nil {
		return nil, fail(op, MalformedInput, fmt.Errorf("decoding client data challenge: %w", err))
	}
	return &ClientData{
		Type:        wire.Type,
		Challenge:   challenge,
		Origin:      wire.Origin,
		TopOrigin:   wire.TopOrigin,
		CrossOrigin: wire.CrossOrigin,
	}, nil
}

// Validate enforces spec §4.4: type, challenge, origin, and crossOrigin
// policy against the expected ceremony parameters.
func (c *ClientData) Validate(expectedType string, expectedChallenge []byte, allowedOrigins map[string]bool, allowCrossOrigin bool) error {
	const op = "ClientData.Validate"
	if c.Type != expectedType {
		return fail(op, InvalidClientDataType, fmt.Errorf("expected type %q, got %q", expectedType, c.Type))
	}
	if !c.Challenge.Equal(expectedChallenge) {
		return fail(op, ChallengeMismatch, fmt.Errorf("challenge does not match the options issued for this ceremony"))
	}
	if !allowedOrigins[c.Origin] {
		return fail(op, OriginMismatch, fmt.Errorf("origin %q is not in the configured allowed origins", c.Origin))
	}
	if c.CrossOrigin && !allowCrossOrigin {
		return fail(op, CrossOriginDisallowed, fmt.Errorf("cross-origin requests are not permitted by this relying party"))
	}
	return nil
}
