// Package transcript is the interchange form of a session. Saving and loading
// a session through it is lossless: every turn with its evaluations, the
// phase, the termination reason and the audit ledger round-trip unchanged.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spigell/interview-conductor/internal/interview"
)

const currentVersion = 1

// Artifact is the persisted envelope around a session.
type Artifact struct {
	Version int                `json:"version"`
	Session *interview.Session `json:"session"`
}

// Encode writes the session to w as an indented JSON artifact.
func Encode(w io.Writer, s *interview.Session) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(&Artifact{Version: currentVersion, Session: s})
}

// Decode reads an artifact and returns the reconstructed session.
func Decode(r io.Reader) (*interview.Session, error) {
	var artifact Artifact
	if err := json.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("decoding transcript: %w", err)
	}

	if artifact.Version != currentVersion {
		return nil, fmt.Errorf("unsupported transcript version: %d", artifact.Version)
	}

	if artifact.Session == nil {
		return nil, fmt.Errorf("transcript has no session")
	}

	return artifact.Session, nil
}

// Save writes the session artifact to a file.
func Save(path string, s *interview.Session) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	return Encode(file, s)
}

// Load reads a session artifact from a file.
func Load(path string) (*interview.Session, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Decode(file)
}
