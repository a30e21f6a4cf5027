package config

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// Initialize writes the default configuration, a host key and the
// recordings directory into dir. Existing files are kept.
func Initialize(dir string, logger *log.Logger) (*Configuration, error) {
	return InitializeFs(afero.NewOsFs(), dir, logger)
}

// InitializeFs is Initialize on the given filesystem.
func InitializeFs(fs afero.Fs, dir string, logger *log.Logger) (*Configuration, error) {
	logger.Printf("Initializing configuration in %q\n", dir)
	if err := fs.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, ConfigurationName)
	switch _, err := fs.Stat(configPath); {
	case err == nil:
		logger.Printf("- %s exists, skipping\n", ConfigurationName)
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("- Writing %s\n", ConfigurationName)
		if err := afero.WriteFile(fs, configPath, defaultConfigData, 0600); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	configuration, err := LoadFs(fs, dir)
	if err != nil {
		return nil, err
	}

	keyPath := configuration.Path(configuration.SSH.HostKey)
	switch _, err := fs.Stat(keyPath); {
	case err == nil:
		logger.Printf("- Host key %s exists, skipping\n", configuration.SSH.HostKey)
	case errors.Is(err, os.ErrNotExist):
		logger.Printf("- Generating host key %s\n", configuration.SSH.HostKey)
		keyPem, err := GenerateHostKey()
		if err != nil {
			return nil, err
		}
		if err := afero.WriteFile(fs, keyPath, keyPem, 0600); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if recordings := configuration.SSH.RecordingsDir; recordings != "" {
		logger.Printf("- Creating %s directory\n", recordings)
		if err := fs.MkdirAll(configuration.Path(recordings), 0700); err != nil {
			return nil, err
		}
	}

	logger.Println("Done, start the server with: tinysh serve --config", dir)
	return configuration, nil
}

// GenerateHostKey creates a PEM encoded ed25519 private key in the OpenSSH
// format.
func GenerateHostKey() ([]byte, error) {
	_, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	block, err := ssh.MarshalPrivateKey(private, "tinysh host key")
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}
