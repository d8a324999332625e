package support

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SigningKeyEnv holds a base64 or hex ed25519 seed/private key and takes
// precedence over signing.keyPath.
const SigningKeyEnv = "FIXZIT_SIGNING_PRIVATE_KEY"

// Manifest records the sha256 of every artifact written by a run.
type Manifest struct {
	Version         string            `json:"version"`
	RunID           string            `json:"runId"`
	GeneratedAtUtc  string            `json:"generatedAtUtc"`
	Pass            bool              `json:"pass"`
	Artifacts       map[string]string `json:"artifacts"`
	Signature       string            `json:"signature,omitempty"`
	SignatureMethod string            `json:"signatureMethod,omitempty"`
}

// BuildManifest hashes the named files under dir. Missing files are an error.
func BuildManifest(dir string, names []string, runID, generatedAt string, pass bool) (*Manifest, error) {
	m := &Manifest{
		Version:        "1.0",
		RunID:          runID,
		GeneratedAtUtc: generatedAt,
		Pass:           pass,
		Artifacts:      make(map[string]string, len(names)),
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		sum, err := HashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		m.Artifacts[name] = sum
	}
	return m, nil
}

func SignManifest(m *Manifest, priv ed25519.PrivateKey) error {
	payload, err := manifestPayload(m)
	if err != nil {
		return err
	}
	m.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(priv, payload))
	m.SignatureMethod = "ed25519"
	return nil
}

func VerifyManifest(m *Manifest, pub ed25519.PublicKey) (bool, error) {
	if m.Signature == "" {
		return false, errors.New("missing signature")
	}
	sig, err := base64.StdEncoding.DecodeString(m.Signature)
	if err != nil {
		return false, err
	}
	payload, err := manifestPayload(m)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, payload, sig), nil
}

// LoadSigningKey returns nil, nil when no key is configured.
func LoadSigningKey(keyPath string) (ed25519.PrivateKey, error) {
	if env := os.Getenv(SigningKeyEnv); env != "" {
		return decodePrivateKey(env)
	}
	if keyPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}
	return decodePrivateKey(string(data))
}

func decodePrivateKey(raw string) (ed25519.PrivateKey, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty key")
	}
	if b, err := hex.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		return normalizePrivateKey(b)
	}
	return nil, errors.New("invalid private key format")
}

func normalizePrivateKey(b []byte) (ed25519.PrivateKey, error) {
	switch len(b) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(b), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(b), nil
	}
	return nil, fmt.Errorf("invalid key length: %d", len(b))
}

func manifestPayload(m *Manifest) ([]byte, error) {
	tmp := *m
	tmp.Signature = ""
	tmp.SignatureMethod = ""
	return json.Marshal(tmp)
}
