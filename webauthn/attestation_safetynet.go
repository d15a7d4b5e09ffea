package webauthn

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/passkeyrp/webauthn-rp/webauthn/internal/cbor"
)

type safetyNetClaims struct {
	jwt.RegisteredClaims
	Nonce           string `json:"nonce"`
	CtsProfileMatch bool   `json:"ctsProfileMatch"`
	ApkPackageName  string `json:"apkPackageName"`
}

// verifyAndroidSafetyNetAttestation handles the "android-safetynet" format.
// The attestation statement carries a compact JWS; its signature is
// verified against the leaf certificate embedded in its own "x5c" header,
// and the claimed nonce is checked against the expected
// SHA-256(authData||clientDataHash) digest. The certificate chain is not
// validated against Google's trust root (see Non-goals).
//
// https://www.w3.org/TR/webauthn-3/#sctn-android-safetynet-attestation
func verifyAndroidSafetyNetAttestation(att *AttestationObject, ad *AuthenticatorData, clientDataHash []byte) (AttestationType, error) {
	const op = "verifyAndroidSafetyNetAttestation"

	var response []byte
	d := cbor.NewDecoder(att.AttestationStatement)
	ok := d.Map(func(kv *cbor.Decoder) bool {
		var key string
		if !kv.String(&key) {
			return false
		}
		switch key {
		case "response":
			return kv.Bytes(&response)
		default:
			return kv.Skip()
		}
	}) && d.Done()
	if !ok || len(response) == 0 {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("android-safetynet attestation statement missing response"))
	}

	var leafCert *x509.Certificate
	claims := &safetyNetClaims{}
	_, err := jwt.ParseWithClaims(string(response), claims, func(tok *jwt.Token) (any, error) {
		chain, ok := tok.Header["x5c"].([]any)
		if !ok || len(chain) == 0 {
			return nil, fmt.Errorf("jws header missing x5c chain")
		}
		der, err := base64.StdEncoding.DecodeString(chain[0].(string))
		if err != nil {
			return nil, fmt.Errorf("decoding leaf certificate: %w", err)
		}
		leafCert, err = x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parsing leaf certificate: %w", err)
		}
		return leafCert.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256", "ES256"}))
	if err != nil {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("verifying safetynet JWS: %w", err))
	}

	want := sha256Sum(signedData(att.AuthData, clientDataHash))
	wantNonce := base64.StdEncoding.EncodeToString(want)
	if claims.Nonce != wantNonce {
		return "", fail(op, AttestationVerificationFailed, fmt.Errorf("safetynet nonce does not match authData||clientDataHash digest"))
	}
	return AttestationBasic, nil
}
