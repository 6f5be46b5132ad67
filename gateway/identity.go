package gateway

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DeviceIdentity is the only persistent artifact the core owns: the JSON
// document backing the device's Ed25519 keypair and derived ID.
type DeviceIdentity struct {
	Version       int    `json:"version"`
	DeviceID      string `json:"deviceId"`
	PublicKeyPem  string `json:"publicKeyPem"`
	PrivateKeyPem string `json:"privateKeyPem"`
	CreatedAtMs   int64  `json:"createdAtMs"`
}

// Identity bundles the persisted document with the parsed keys, which is
// what the handshake actually signs with.
type Identity struct {
	Doc  DeviceIdentity
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
}

// deviceIDFromPublicKey is the lowercase hex SHA-256 of the 32 raw
// public-key bytes. Ed25519 public keys have no ASN.1 framing of their
// own, so once parsed out of a PEM/DER SubjectPublicKeyInfo envelope this
// is just sha256 over the 32 bytes.
func deviceIDFromPublicKey(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// LoadOrCreateIdentity loads the device identity from path, generating and
// persisting a fresh Ed25519 keypair if the file doesn't exist. If the
// stored deviceId disagrees with the hash of the stored public key, the
// file is rewritten with the corrected ID and the existing keys are kept
// (identity heal) — rotating keys instead would re-authenticate as a new
// device and lose any server-side grants.
func LoadOrCreateIdentity(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return generateIdentity(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read device identity: %w", err)
	}

	var doc DeviceIdentity
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse device identity: %w", err)
	}

	priv, pub, err := parseKeys(doc)
	if err != nil {
		return nil, err
	}

	expected := deviceIDFromPublicKey(pub)
	if doc.DeviceID != expected {
		doc.DeviceID = expected
		if err := writeIdentity(path, doc); err != nil {
			return nil, fmt.Errorf("heal device identity: %w", err)
		}
	}

	return &Identity{Doc: doc, Priv: priv, Pub: pub}, nil
}

func generateIdentity(path string) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate device keypair: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}

	privPem := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}))
	pubPem := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}))

	doc := DeviceIdentity{
		Version:       1,
		DeviceID:      deviceIDFromPublicKey(pub),
		PublicKeyPem:  pubPem,
		PrivateKeyPem: privPem,
		CreatedAtMs:   time.Now().UnixMilli(),
	}

	if err := writeIdentity(path, doc); err != nil {
		return nil, err
	}

	return &Identity{Doc: doc, Priv: priv, Pub: pub}, nil
}

func writeIdentity(path string, doc DeviceIdentity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create device identity dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func parseKeys(doc DeviceIdentity) (ed25519.PrivateKey, ed25519.PublicKey, error) {
	privBlock, _ := pem.Decode([]byte(doc.PrivateKeyPem))
	if privBlock == nil {
		return nil, nil, fmt.Errorf("device identity: no PEM block in private key")
	}
	privAny, err := x509.ParsePKCS8PrivateKey(privBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := privAny.(ed25519.PrivateKey)
	if !ok {
		return nil, nil, fmt.Errorf("device identity: private key is not Ed25519")
	}

	pubBlock, _ := pem.Decode([]byte(doc.PublicKeyPem))
	if pubBlock == nil {
		return nil, nil, fmt.Errorf("device identity: no PEM block in public key")
	}
	pubAny, err := x509.ParsePKIXPublicKey(pubBlock.Bytes)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := pubAny.(ed25519.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("device identity: public key is not Ed25519")
	}

	return priv, pub, nil
}
