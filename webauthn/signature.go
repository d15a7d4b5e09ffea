package webauthn

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// VerifySignature dispatches signature verification by COSE algorithm
// identifier, per spec §4.7.
//
//   - ES256/ES384/ES512: ECDSA over the named curve, ASN.1 DER signature.
//   - EdDSA: Ed25519, 64-byte raw signature.
//   - RS256/RS384/RS512: RSA PKCS#1 v1.5.
//   - PS256: RSA-PSS, SHA-256, MGF1-SHA-256, salt length 32.
func VerifySignature(pub any, alg Algorithm, message, sig []byte) error {
	const op = "VerifySignature"
	switch alg {
	case ES256:
		return verifyECDSA(op, pub, sha256.New(), message, sig)
	case ES384:
		return verifyECDSA(op, pub, sha512.New384(), message, sig)
	case ES512:
		return verifyECDSA(op, pub, sha512.New(), message, sig)
	case EdDSA:
		return verifyEdDSA(op, pub, message, sig)
	case RS256:
		return verifyRSAPKCS1v15(op, pub, crypto.SHA256, sha256.New(), message, sig)
	case RS384:
		return verifyRSAPKCS1v15(op, pub, crypto.SHA384, sha512.New384(), message, sig)
	case RS512:
		return verifyRSAPKCS1v15(op, pub, crypto.SHA512, sha512.New(), message, sig)
	case PS256:
		return verifyRSAPSS(op, pub, message, sig)
	default:
		return fail(op, UnsupportedAlgorithm, fmt.Errorf("unsupported signing algorithm: %s", alg))
	}
}

func verifyECDSA(op string, pub any, h hash.Hash, message, sig []byte) error {
	ecdsaPub, ok := pub.(*ecdsa.PublicKey)
	if !ok {
		return fail(op, BadSignature, fmt.Errorf("invalid public key type for ECDSA algorithm: %T", pub))
	}
	h.Write(message)
	if !ecdsa.VerifyASN1(ecdsaPub, h.Sum(nil), sig) {
		return fail(op, BadSignature, fmt.Errorf("invalid ECDSA signature"))
	}
	return nil
}

func verifyEdDSA(op string, pub any, message, sig []byte) error {
	edPub, ok := pub.(ed25519.PublicKey)
	if !ok {
		if p, ok2 := pub.(*ed25519.PublicKey); ok2 {
			edPub = *p
		} else {
			return fail(op, BadSignature, fmt.Errorf("invalid public key type for EdDSA algorithm: %T", pub))
		}
	}
	if !ed25519.Verify(edPub, message, sig) {
		return fail(op, BadSignature, fmt.Errorf("invalid EdDSA signature"))
	}
	return nil
}

func verifyRSAPKCS1v15(op string, pub any, hashID crypto.Hash, h hash.Hash, message, sig []byte) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fail(op, BadSignature, fmt.Errorf("invalid public key type for RSA algorithm: %T", pub))
	}
	h.Write(message)
	if err := rsa.VerifyPKCS1v15(rsaPub, hashID, h.Sum(nil), sig); err != nil {
		return fail(op, BadSignature, fmt.Errorf("invalid RSA signature: %w", err))
	}
	return nil
}

func verifyRSAPSS(op string, pub any, message, sig []byte) error {
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fail(op, BadSignature, fmt.Errorf("invalid public key type for PS256 algorithm: %T", pub))
	}
	h := sha256.Sum256(message)
	opts := &rsa.PSSOptions{SaltLength: 32, Hash: crypto.SHA256}
	if err := rsa.VerifyPSS(rsaPub, crypto.SHA256, h[:], sig, opts); err != nil {
		return fail(op, BadSignature, fmt.Errorf("invalid PS256 signature: %w", err))
	}
	return nil
}
