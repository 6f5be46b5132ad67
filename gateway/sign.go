package gateway

import (
	"crypto/ed25519"
	"encoding/base64"
	"strconv"
	"strings"
)

// buildSignedPayload joins the handshake fields with "|" in the fixed
// order the gateway expects. Version is "v2" whenever a nonce is present
// (the server issued a connect.challenge) and "v1" otherwise.
func buildSignedPayload(deviceID, clientID, clientMode, role, scopesCSV string, signedAtMs int64, token, nonce string) (version, payload string) {
	version = "v1"
	parts := []string{version, deviceID, clientID, clientMode, role, scopesCSV, strconv.FormatInt(signedAtMs, 10), token}
	if nonce != "" {
		version = "v2"
		parts[0] = version
		parts = append(parts, nonce)
	}
	return version, strings.Join(parts, "|")
}

// signPayload signs payload with priv and base64url-encodes the signature
// without padding, matching the encoding used for the raw public key in
// the connect frame.
func signPayload(priv ed25519.PrivateKey, payload string) string {
	sig := ed25519.Sign(priv, []byte(payload))
	return base64.RawURLEncoding.EncodeToString(sig)
}

func encodePublicKey(pub ed25519.PublicKey) string {
	return base64.RawURLEncoding.EncodeToString(pub)
}
