package download

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/jedisct1/go-minisign"

	"github.com/ZebulonRouseFrantzich/relfetch/internal/fault"
)

const minisignCommentPrefix = "untrusted comment:"

// Verifier checks detached signatures against trusted keys. The signature
// format is detected from its content: minisign signatures start with an
// untrusted comment line, anything else is treated as OpenPGP, armored or
// binary.
type Verifier struct {
	keyring  openpgp.EntityList
	minisign []minisign.PublicKey
}

// NewVerifier creates a Verifier over the given keys. Either may be empty.
func NewVerifier(keyring openpgp.EntityList, minisignKeys []minisign.PublicKey) *Verifier {
	return &Verifier{keyring: keyring, minisign: minisignKeys}
}

// HasKeys reports whether at least one trusted key is loaded.
func (v *Verifier) HasKeys() bool {
	return len(v.keyring) > 0 || len(v.minisign) > 0
}

// Verify checks the detached signature at sigPath for the artifact at
// artifactPath. Every failure is returned as VerificationFailed.
func (v *Verifier) Verify(artifactPath, sigPath string) (Method, error) {
	sig, err := os.ReadFile(sigPath)
	if err != nil {
		return MethodNone, fault.VerificationFailed.New("read signature %s: %v", sigPath, err)
	}

	if isMinisign(sig) {
		return MethodMinisign, v.verifyMinisign(artifactPath, sig)
	}
	return MethodOpenPGP, v.verifyOpenPGP(artifactPath, sig)
}

func (v *Verifier) verifyOpenPGP(artifactPath string, sig []byte) error {
	if len(v.keyring) == 0 {
		return fault.VerificationFailed.New("no OpenPGP keyring configured")
	}

	artifact, err := os.Open(artifactPath)
	if err != nil {
		return fault.VerificationFailed.New("open artifact: %v", err)
	}
	defer artifact.Close()

	// Verify signature (try armored first)
	_, err = openpgp.CheckArmoredDetachedSignature(v.keyring, artifact, bytes.NewReader(sig), nil)
	if err != nil {
		// Try non-armored signature
		if _, serr := artifact.Seek(0, io.SeekStart); serr != nil {
			return fault.VerificationFailed.New("rewind artifact: %v", serr)
		}
		_, err = openpgp.CheckDetachedSignature(v.keyring, artifact, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fault.VerificationFailed.New("%s: %v", artifactPath, err)
	}
	return nil
}

func (v *Verifier) verifyMinisign(artifactPath string, raw []byte) error {
	if len(v.minisign) == 0 {
		return fault.VerificationFailed.New("no minisign key configured")
	}

	sig, err := minisign.DecodeSignature(string(raw))
	if err != nil {
		return fault.VerificationFailed.New("decode minisign signature: %v", err)
	}
	content, err := os.ReadFile(artifactPath)
	if err != nil {
		return fault.VerificationFailed.New("read artifact: %v", err)
	}

	var lastErr error
	for i := range v.minisign {
		pk := v.minisign[i]
		if pk.KeyId != sig.KeyId {
			continue
		}
		ok, err := pk.Verify(content, sig)
		if ok {
			return nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no trusted key matches key id %x", sig.KeyId)
	}
	return fault.VerificationFailed.New("%s: %v", artifactPath, lastErr)
}

func isMinisign(sig []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(sig)), minisignCommentPrefix)
}

// ParseOpenPGPKeyring reads an armored or binary OpenPGP public keyring.
func ParseOpenPGPKeyring(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err == nil && len(keyring) > 0 {
		return keyring, nil
	}
	keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring contains no keys")
	}
	return keyring, nil
}

// LoadOpenPGPKeyring reads a keyring file.
func LoadOpenPGPKeyring(path string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring %s: %w", path, err)
	}
	return ParseOpenPGPKeyring(data)
}

// ParseMinisignKey accepts either a minisign public key file, with its
// untrusted comment line, or the bare base64 key.
func ParseMinisignKey(text string) (minisign.PublicKey, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, minisignCommentPrefix) {
		pk, err := minisign.DecodePublicKey(text)
		if err != nil {
			return minisign.PublicKey{}, fmt.Errorf("decode minisign key: %w", err)
		}
		return pk, nil
	}
	pk, err := minisign.NewPublicKey(text)
	if err != nil {
		return minisign.PublicKey{}, fmt.Errorf("decode minisign key: %w", err)
	}
	return pk, nil
}

// LoadMinisignKey reads a minisign public key file.
func LoadMinisignKey(path string) (minisign.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return minisign.PublicKey{}, fmt.Errorf("read minisign key %s: %w", path, err)
	}
	return ParseMinisignKey(string(data))
}
