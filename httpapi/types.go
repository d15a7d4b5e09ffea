// Package httpapi exposes the webauthn ceremony verifier and its
// collaborators over HTTP, per spec §6. It is the only library package
// that serves HTTP requests: webauthn/ceremony.go stays framework-free and
// operates on parsed DTOs.
package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/passkeyrp/webauthn-rp/webauthn"
)

// credentialType is the only value a credential's or credential
// descriptor's "type" may take on the wire; anything else is rejected outright at decode time rather than
// passed through.
const credentialType = "public-key"

// publicKeyCredentialParametersJSON is the wire shape of a single
// PublicKeyCredentialParameters entry.
type publicKeyCredentialParametersJSON struct {
	Type string             `json:"type"`
	Alg  webauthn.Algorithm `json:"alg"`
}

// credentialDescriptorJSON is the wire shape of a CredentialDescriptor.
type credentialDescriptorJSON struct {
	Type       string         `json:"type"`
	ID         webauthn.Bytes `json:"id"`
	Transports []string       `json:"transports,omitempty"`
}

func (c credentialDescriptorJSON) toDomain() (webauthn.CredentialDescriptor, error) {
	if c.Type != credentialType {
		return webauthn.CredentialDescriptor{}, fmt.Errorf("httpapi: credential descriptor type must be %q, got %q", credentialType, c.Type)
	}
	return webauthn.CredentialDescriptor{Type: c.Type, ID: c.ID, Transports: c.Transports}, nil
}

func credentialDescriptorToJSON(c webauthn.CredentialDescriptor) credentialDescriptorJSON {
	return credentialDescriptorJSON{Type: credentialType, ID: c.ID, Transports: c.Transports}
}

// rpEntityJSON, userEntityJSON mirror webauthn.RpEntity/UserEntity.
type rpEntityJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type userEntityJSON struct {
	ID          webauthn.Bytes `json:"id"`
	Name        string         `json:"name"`
	DisplayName string         `json:"displayName"`
}

// authenticatorSelectionJSON mirrors webauthn.AuthenticatorSelectionCriteria.
type authenticatorSelectionJSON struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
	ResidentKey             string `json:"residentKey,omitempty"`
	RequireResidentKey      bool   `json:"requireResidentKey"`
	UserVerification        string `json:"userVerification,omitempty"`
}

// creationOptionsJSON is PublicKeyCredentialCreationOptionsJSON, §6.
type creationOptionsJSON struct {
	RP                     rpEntityJSON                        `json:"rp"`
	User                   userEntityJSON                      `json:"user"`
	Challenge              webauthn.Bytes                      `json:"challenge"`
	PubKeyCredParams       []publicKeyCredentialParametersJSON `json:"pubKeyCredParams"`
	Timeout                int64                               `json:"timeout,omitempty"`
	ExcludeCredentials     []credentialDescriptorJSON          `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection *authenticatorSelectionJSON         `json:"authenticatorSelection,omitempty"`
	Attestation            string                              `json:"attestation,omitempty"`
}

func creationOptionsToJSON(o *webauthn.PublicKeyCredentialCreationOptions) *creationOptionsJSON {
	out := &creationOptionsJSON{
		RP:          rpEntityJSON{ID: o.RP.ID, Name: o.RP.Name},
		User:        userEntityJSON{ID: o.User.ID, Name: o.User.Name, DisplayName: o.User.DisplayName},
		Challenge:   o.Challenge,
		Timeout:     o.Timeout.Milliseconds(),
		Attestation: string(o.Attestation),
	}
	for _, p := range o.PubKeyCredParams {
		out.PubKeyCredParams = append(out.PubKeyCredParams, publicKeyCredentialParametersJSON{Type: credentialType, Alg: p.Alg})
	}
	for _, c := range o.ExcludeCredentials {
		out.ExcludeCredentials = append(out.ExcludeCredentials, credentialDescriptorToJSON(c))
	}
	if o.AuthenticatorSelection != nil {
		out.AuthenticatorSelection = &authenticatorSelectionJSON{
			AuthenticatorAttachment: string(o.AuthenticatorSelection.AuthenticatorAttachment),
			ResidentKey:             string(o.AuthenticatorSelection.ResidentKey),
			RequireResidentKey:      o.AuthenticatorSelection.RequireResidentKey,
			UserVerification:        string(o.AuthenticatorSelection.UserVerification),
		}
	}
	return out
}

// requestOptionsJSON is PublicKeyCredentialRequestOptionsJSON, §6.
type requestOptionsJSON struct {
	Challenge        webauthn.Bytes             `json:"challenge"`
	Timeout          int64                      `json:"timeout,omitempty"`
	RPID             string                     `json:"rpId,omitempty"`
	AllowCredentials []credentialDescriptorJSON `json:"allowCredentials,omitempty"`
	UserVerification string                     `json:"userVerification,omitempty"`
}

func requestOptionsToJSON(o *webauthn.PublicKeyCredentialRequestOptions) *requestOptionsJSON {
	out := &requestOptionsJSON{
		Challenge:        o.Challenge,
		Timeout:          o.Timeout.Milliseconds(),
		RPID:             o.RPID,
		UserVerification: string(o.UserVerification),
	}
	for _, c := range o.AllowCredentials {
		out.AllowCredentials = append(out.AllowCredentials, credentialDescriptorToJSON(c))
	}
	return out
}

// registrationResponseJSON is the wire shape POSTed to /webauthn/register's
// "credential" field: { id, rawId, type, response: { clientDataJSON,
// attestationObject, transports? }, clientExtensionResults?,
// authenticatorAttachment? }.
type registrationResponseJSON struct {
	ID       webauthn.Bytes `json:"id"`
	RawID    webauthn.Bytes `json:"rawId"`
	Type     string         `json:"type"`
	Response struct {
		ClientDataJSON    webauthn.Bytes `json:"clientDataJSON"`
		AttestationObject webauthn.Bytes `json:"attestationObject"`
		Transports        []string       `json:"transports,omitempty"`
	} `json:"response"`
	ClientExtensionResults  json.RawMessage `json:"clientExtensionResults,omitempty"`
	AuthenticatorAttachment string          `json:"authenticatorAttachment,omitempty"`
}

func (r registrationResponseJSON) toDomain() (*webauthn.RegistrationResponse, error) {
	if r.Type != credentialType {
		return nil, fmt.Errorf("httpapi: credential type must be %q, got %q", credentialType, r.Type)
	}
	return &webauthn.RegistrationResponse{
		ID:                      r.ID,
		RawID:                   r.RawID,
		Type:                    r.Type,
		ClientDataJSON:          r.Response.ClientDataJSON,
		AttestationObject:       r.Response.AttestationObject,
		Transports:              r.Response.Transports,
		AuthenticatorAttachment: r.AuthenticatorAttachment,
	}, nil
}

// registerRequest is the /webauthn/register request body: { publicKey: { credential, label } }.
type registerRequest struct {
	PublicKey struct {
		Credential registrationResponseJSON `json:"credential"`
		Label      string                   `json:"label,omitempty"`
	} `json:"publicKey"`
}

// registerResponse is the /webauthn/register response body.
type registerResponse struct {
	Verified bool `json:"verified"`
}

// registerOptionsRequest is the /webauthn/register/options request body: {} or a label.
type registerOptionsRequest struct {
	Label    string `json:"label,omitempty"`
	Username string `json:"username,omitempty"`
}

// assertionResponseJSON is the wire shape of an authentication ceremony's
// client response: { id, rawId, type, response: {...} }.
type assertionResponseJSON struct {
	ID       webauthn.Bytes `json:"id"`
	RawID    webauthn.Bytes `json:"rawId"`
	Type     string         `json:"type"`
	Response struct {
		ClientDataJSON    webauthn.Bytes `json:"clientDataJSON"`
		AuthenticatorData webauthn.Bytes `json:"authenticatorData"`
		Signature         webauthn.Bytes `json:"signature"`
		UserHandle        webauthn.Bytes `json:"userHandle,omitempty"`
	} `json:"response"`
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
}

func (a assertionResponseJSON) toDomain() (*webauthn.AssertionResponse, error) {
	if a.Type != credentialType {
		return nil, fmt.Errorf("httpapi: credential type must be %q, got %q", credentialType, a.Type)
	}
	return &webauthn.AssertionResponse{
		ID:                      a.ID,
		RawID:                   a.RawID,
		Type:                    a.Type,
		ClientDataJSON:          a.Response.ClientDataJSON,
		AuthenticatorData:       a.Response.AuthenticatorData,
		Signature:               a.Response.Signature,
		UserHandle:              a.Response.UserHandle,
		AuthenticatorAttachment: a.AuthenticatorAttachment,
	}, nil
}

// loginResponse is the /login/webauthn success/failure body, §6.
type loginResponse struct {
	Authenticated bool   `json:"authenticated,omitempty"`
	RedirectURL   string `json:"redirectUrl,omitempty"`
	ErrorURL      string `json:"errorUrl,omitempty"`
}

// errorResponse is the generic failure body. Per §7's propagation policy it
// never carries the verification Kind.
type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse is GET /healthz's body.
type healthResponse struct {
	Status string `json:"status"`
}
