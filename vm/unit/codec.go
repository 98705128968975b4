package unit

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the version of the compiled unit envelope.
const FormatVersion = 1

// Magic starts every compiled unit file.
const Magic = "GUNIT"

// envelope wraps the CBOR payload of a unit with its content hash.
type envelope struct {
	Magic   string   `cbor:"1,keyasint"`
	Version int      `cbor:"2,keyasint"`
	Hash    [32]byte `cbor:"3,keyasint"`
	Payload []byte   `cbor:"4,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("unit: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Hash returns the content hash of u: the SHA-256 of its canonical CBOR
// encoding. Equal units hash equally.
func Hash(u *Unit) ([32]byte, error) {
	payload, err := cborEncMode.Marshal(u)
	if err != nil {
		return [32]byte{}, fmt.Errorf("unit: marshal %s: %w", u.Path, err)
	}
	return sha256.Sum256(payload), nil
}

// Marshal encodes u as a compiled unit.
func Marshal(u *Unit) ([]byte, error) {
	payload, err := cborEncMode.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("unit: marshal %s: %w", u.Path, err)
	}
	return cborEncMode.Marshal(&envelope{
		Magic:   Magic,
		Version: FormatVersion,
		Hash:    sha256.Sum256(payload),
		Payload: payload,
	})
}

// Unmarshal decodes a compiled unit and verifies its hash.
func Unmarshal(data []byte) (*Unit, error) {
	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unit: unmarshal envelope: %w", err)
	}
	if env.Magic != Magic {
		return nil, fmt.Errorf("unit: not a compiled unit")
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("unit: unsupported format version %d", env.Version)
	}
	if got := sha256.Sum256(env.Payload); got != env.Hash {
		return nil, fmt.Errorf("unit: hash mismatch: declared %x, computed %x", env.Hash, got)
	}
	var u Unit
	if err := cbor.Unmarshal(env.Payload, &u); err != nil {
		return nil, fmt.Errorf("unit: unmarshal payload: %w", err)
	}
	return &u, nil
}

// WriteFile compiles u into path.
func WriteFile(path string, u *Unit) error {
	data, err := Marshal(u)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a compiled unit from path.
func ReadFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	u, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

// Open loads a unit from either form, choosing by extension: ".toml"
// sources are compiled, anything else is read as a compiled unit.
func Open(path string) (*Unit, error) {
	if filepath.Ext(path) == ".toml" {
		src, err := LoadSource(path)
		if err != nil {
			return nil, err
		}
		return Compile(src)
	}
	return ReadFile(path)
}
