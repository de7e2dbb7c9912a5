// Package artifacts binds a run to a specific codec's wire contract: the
// codec identity, its payload schema hash, and (for learned codecs) the
// hash of whatever normalization parameters it was trained with. A run
// refuses to start if its manifest doesn't match the configured codec.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Error is returned by manifest loading, saving, and verification failures.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

func newError(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

// Manifest records the codec identity and wire-contract fingerprint a run
// was produced under.
type Manifest struct {
	CodecID           string  `json:"codec_id"`
	CodecVersion      string  `json:"codec_version"`
	GitCommit         *string `json:"git_commit"`
	NormParamsHash    *string `json:"norm_params_hash"`
	PayloadSchemaHash string  `json:"payload_schema_hash"`
	CreatedAt         string  `json:"created_at"`
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns the SHA-256 hex digest of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", newError("artifacts: hash_file: %v", err)
	}
	return sha256Hex(data), nil
}

// Fingerprint returns a stable SHA-256 digest of the manifest's canonical
// JSON form, used to bind a logged run to the exact manifest it used.
func (m Manifest) Fingerprint() (string, error) {
	data, err := json.Marshal(canonicalManifest(m))
	if err != nil {
		return "", newError("artifacts: fingerprint: %v", err)
	}
	return sha256Hex(data), nil
}

// canonicalManifest produces a map with sorted keys at marshal time (Go's
// encoding/json already sorts map keys), mirroring the Python
// json.dumps(..., sort_keys=True) fingerprint input.
func canonicalManifest(m Manifest) map[string]any {
	return map[string]any{
		"codec_id":            m.CodecID,
		"codec_version":       m.CodecVersion,
		"git_commit":          m.GitCommit,
		"norm_params_hash":    m.NormParamsHash,
		"payload_schema_hash": m.PayloadSchemaHash,
		"created_at":          m.CreatedAt,
	}
}

// New builds a manifest for a freshly-selected codec. createdAt is passed
// in by the caller (experiment/run harness) rather than read from the wall
// clock here, so manifest construction stays deterministic and testable.
func New(codecID, codecVersion, payloadSchemaHash string, normParamsHash, gitCommit *string, createdAt time.Time) Manifest {
	return Manifest{
		CodecID:           codecID,
		CodecVersion:      codecVersion,
		GitCommit:         gitCommit,
		NormParamsHash:    normParamsHash,
		PayloadSchemaHash: payloadSchemaHash,
		CreatedAt:         createdAt.UTC().Format(time.RFC3339),
	}
}

// Load reads a manifest from a JSON file.
func Load(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, newError("artifacts: load manifest: %v", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, newError("artifacts: load manifest: %v", err)
	}
	return m, nil
}

// Save writes the manifest as indented JSON.
func (m Manifest) Save(path string) error {
	data, err := json.MarshalIndent(canonicalManifest(m), "", "  ")
	if err != nil {
		return newError("artifacts: save manifest: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return newError("artifacts: save manifest: %v", err)
	}
	return nil
}

// RunCodecView is the minimal slice of a run specification VerifyManifest
// needs, kept here rather than importing package config to avoid a cycle
// (config depends on nothing in artifacts, but codec construction does).
type RunCodecView struct {
	ID       string
	Version  string
	NormPath string
}

// CodecView is the minimal slice of a resolved codec VerifyManifest needs.
type CodecView struct {
	PayloadSchemaHash string
}

// Verify checks that a manifest matches the run's configured codec: same
// id, same version, same payload schema hash, and (if both sides carry one)
// a matching norm-file hash. It is meant to run once at startup and fail
// fatally on mismatch.
func Verify(run RunCodecView, manifest Manifest, codec CodecView) error {
	if manifest.CodecID != run.ID {
		return newError("artifacts: manifest codec_id does not match runspec codec.id")
	}
	if manifest.CodecVersion != run.Version {
		return newError("artifacts: manifest codec_version does not match runspec codec.version")
	}
	if manifest.PayloadSchemaHash != codec.PayloadSchemaHash {
		return newError("artifacts: manifest payload_schema_hash does not match codec schema")
	}
	if manifest.NormParamsHash != nil && run.NormPath != "" {
		actual, err := HashFile(run.NormPath)
		if err != nil {
			return err
		}
		if actual != *manifest.NormParamsHash {
			return newError("artifacts: norm_params_hash does not match norm file")
		}
	}
	return nil
}
