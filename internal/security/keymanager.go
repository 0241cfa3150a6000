package security

import (
	"crypto/sha256"
	"fmt"
)

// KeyManager turns configured secrets into fixed-size keys.
type KeyManager struct {
	appKey    []byte
	backupKey []byte
}

func NewKeyManager(appSecret, backupSecret string) (*KeyManager, error) {
	if appSecret == "" || backupSecret == "" {
		return nil, fmt.Errorf("encryption secrets must not be empty")
	}
	return &KeyManager{
		appKey:    DeriveKey(appSecret),
		backupKey: DeriveKey(backupSecret),
	}, nil
}

// AppKey encrypts diary content.
func (km *KeyManager) AppKey() []byte { return km.appKey }

// BackupKey encrypts backup archives.
func (km *KeyManager) BackupKey() []byte { return km.backupKey }

// DeriveKey derives a 32-byte key from a string using SHA-256
func DeriveKey(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
