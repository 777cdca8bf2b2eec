package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// ChecksumFile is the manifest name, stored next to the config file.
const ChecksumFile = ".checksums"

// ErrChecksumMismatch means the config file changed since 'config lock'.
var ErrChecksumMismatch = errors.New("config checksum mismatch")

// ComputeBlake3Hash computes the BLAKE3 hash of a file.
func ComputeBlake3Hash(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

// Lock writes a checksum manifest for the config file at configPath and
// returns the manifest path.
func Lock(configPath string) (string, error) {
	absPath, err := resolveConfigFile(configPath)
	if err != nil {
		return "", err
	}

	hash, err := ComputeBlake3Hash(absPath)
	if err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", absPath, err)
	}

	manifest := ChecksumManifest{
		Version:     1,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Hashes:      map[string]string{filepath.Base(absPath): hash},
	}
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checksums: %w", err)
	}

	checksumPath := filepath.Join(filepath.Dir(absPath), ChecksumFile)
	if err := os.WriteFile(checksumPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write checksums: %w", err)
	}
	return checksumPath, nil
}

// LoadChecksums reads the manifest from a config directory. It returns
// (nil, nil) when no manifest exists.
func LoadChecksums(configDir string) (*ChecksumManifest, error) {
	data, err := os.ReadFile(filepath.Join(configDir, ChecksumFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checksums: %w", err)
	}

	var manifest ChecksumManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse checksums: %w", err)
	}
	if manifest.Version != 1 {
		return nil, fmt.Errorf("unsupported checksums version: %d", manifest.Version)
	}
	return &manifest, nil
}

// verifyChecksum checks absPath against the manifest beside it, if any.
func verifyChecksum(absPath string) error {
	manifest, err := LoadChecksums(filepath.Dir(absPath))
	if err != nil {
		return err
	}
	if manifest == nil {
		return nil
	}

	name := filepath.Base(absPath)
	expected, ok := manifest.Hashes[name]
	if !ok {
		return fmt.Errorf("%w: %s has no entry in %s (run 'rollbot config lock')", ErrChecksumMismatch, name, ChecksumFile)
	}

	actual, err := ComputeBlake3Hash(absPath)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w for %s: expected %s, got %s\n"+
			"If you edited this file intentionally, run: rollbot config lock", ErrChecksumMismatch, name, expected, actual)
	}
	return nil
}
