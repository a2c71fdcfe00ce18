package keys

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFromFile reads a key exported with SaveToFile.
func LoadFromFile(path string) (*KeyPair, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	kp, err := Load(strings.TrimSpace(string(b)))
	if err != nil {
		return nil, fmt.Errorf("key file %s: %w", path, err)
	}
	return kp, nil
}

// SaveToFile writes the exported seed to path with 0600 permissions,
// creating parent directories as needed.
func (k *KeyPair) SaveToFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(k.Export()+"\n"), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// LoadOrGenerate loads the key stored at path, generating and saving a
// fresh one when the file does not exist yet.
func LoadOrGenerate(path string) (*KeyPair, error) {
	kp, err := LoadFromFile(path)
	if err == nil {
		return kp, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	kp, err = Generate()
	if err != nil {
		return nil, err
	}
	if err := kp.SaveToFile(path); err != nil {
		return nil, err
	}
	return kp, nil
}
