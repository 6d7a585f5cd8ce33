// Cinescout - Hybrid Movie Retrieval and Recommendation Engine
// Copyright 2026 R. Rowan (rrowan)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rrowan/cinescout

// Package storage persists index and catalog snapshots to disk.
//
// A snapshot is a gob-encoded payload, gzip-compressed, wrapped in an
// envelope that records a SHA-256 checksum of the compressed bytes.
// Load verifies the checksum before decoding; a mismatch is reported as
// ErrCorrupt so callers can fall back to rebuilding from source data
// instead of serving from a damaged index.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrCorrupt indicates a snapshot failed checksum verification. Treated as
// fatal for the snapshot: the caller must rebuild rather than partially load.
var ErrCorrupt = errors.New("snapshot corrupt: checksum mismatch")

// Metadata describes a persisted snapshot.
type Metadata struct {
	// Name identifies the snapshot (e.g. "sparse", "dense", "catalog").
	Name string

	// SavedAt is the wall-clock time the snapshot was written.
	SavedAt time.Time

	// ItemCount is the number of items the snapshot contains.
	ItemCount int

	// Checksum is the hex SHA-256 of the compressed payload.
	Checksum string

	// SizeBytes is the compressed payload size.
	SizeBytes int64
}

// envelope is the on-disk representation.
type envelope struct {
	Metadata       Metadata
	CompressedData []byte
}

// Save writes payload to path atomically (write to temp file, then rename).
func Save(path, name string, itemCount int, payload any) error {
	var raw bytes.Buffer
	gz := gzip.NewWriter(&raw)
	if err := gob.NewEncoder(gz).Encode(payload); err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", name, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("compressing snapshot %s: %w", name, err)
	}

	sum := sha256.Sum256(raw.Bytes())
	env := envelope{
		Metadata: Metadata{
			Name:      name,
			SavedAt:   time.Now().UTC(),
			ItemCount: itemCount,
			Checksum:  hex.EncodeToString(sum[:]),
			SizeBytes: int64(raw.Len()),
		},
		CompressedData: raw.Bytes(),
	}

	var out bytes.Buffer
	if err := gob.NewEncoder(&out).Encode(&env); err != nil {
		return fmt.Errorf("encoding snapshot envelope %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing snapshot %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing snapshot %s: %w", name, err)
	}

	return nil
}

// Load reads the snapshot at path into target, verifying the checksum
// first. Returns the snapshot metadata on success. Returns an error
// wrapping ErrCorrupt when verification or decoding fails, and the
// underlying fs error (os.IsNotExist-compatible) when the file is absent.
func Load(path string, target any) (*Metadata, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-configured
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var env envelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding snapshot envelope: %w", errors.Join(ErrCorrupt, err))
	}

	sum := sha256.Sum256(env.CompressedData)
	if hex.EncodeToString(sum[:]) != env.Metadata.Checksum {
		return nil, fmt.Errorf("snapshot %s: %w", env.Metadata.Name, ErrCorrupt)
	}

	gz, err := gzip.NewReader(bytes.NewReader(env.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompressing snapshot %s: %w", env.Metadata.Name, errors.Join(ErrCorrupt, err))
	}
	defer gz.Close() //nolint:errcheck // read-side close

	if err := gob.NewDecoder(gz).Decode(target); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", env.Metadata.Name, errors.Join(ErrCorrupt, err))
	}

	return &env.Metadata, nil
}

// Exists reports whether a snapshot file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
