//go:build windows

package bridge

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/sys/windows"
	"github.com/sunstory/openusage/internal/metrics"
)

// vaultDir returns <app_data>/vault, creating it on first use. Persists
// indefinitely (spec.md §3 Lifecycles).
func (b *Bridge) vaultDir() (string, error) {
	dir := filepath.Join(b.appDataDir, "vault")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create vault dir: %w", err)
	}
	return dir, nil
}

func vaultPath(dir, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("vault name must not be empty")
	}
	return filepath.Join(dir, base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(name))), nil
}

// dpapiMasterKey derives a stable 32-byte AEAD key by DPAPI-protecting a
// fixed label, unprotecting it back, and running it through HKDF. The
// DPAPI round trip binds the derived key to the current Windows user
// profile without this process ever storing DPAPI ciphertext itself.
func dpapiMasterKey() ([]byte, error) {
	label := []byte("openusage-vault-master-v1")
	var blobIn windows.DataBlob
	blobIn.Size = uint32(len(label))
	blobIn.Data = &label[0]

	var encrypted windows.DataBlob
	if err := windows.CryptProtectData(&blobIn, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &encrypted); err != nil {
		return nil, fmt.Errorf("CryptProtectData: %w", err)
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(encrypted.Data)))

	var decrypted windows.DataBlob
	if err := windows.CryptUnprotectData(&encrypted, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &decrypted); err != nil {
		return nil, fmt.Errorf("CryptUnprotectData: %w", err)
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(decrypted.Data)))

	raw := unsafe.Slice(decrypted.Data, decrypted.Size)
	secret := make([]byte, len(raw))
	copy(secret, raw)

	hk := hkdf.New(sha256New, secret, nil, []byte("openusage-vault-aead"))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hk, key); err != nil {
		return nil, fmt.Errorf("derive aead key: %w", err)
	}
	return key, nil
}

// VaultRead implements host.vault.read (Windows only).
func (b *Bridge) VaultRead(name string) (string, error) {
	metrics.BridgeCall(b.pluginID, "vault.read")
	dir, err := b.vaultDir()
	if err != nil {
		return "", err
	}
	path, err := vaultPath(dir, name)
	if err != nil {
		return "", err
	}

	encoded, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("vault read %s: %w", name, err)
	}
	sealed, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return "", fmt.Errorf("vault blob corrupt for %s: %w", name, err)
	}

	key, err := dpapiMasterKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("vault blob truncated for %s", name)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("vault blob failed to decrypt for %s: %w", name, err)
	}
	return string(plain), nil
}

// VaultWrite implements host.vault.write (Windows only).
func (b *Bridge) VaultWrite(name, value string) error {
	metrics.BridgeCall(b.pluginID, "vault.write")
	dir, err := b.vaultDir()
	if err != nil {
		return err
	}
	path, err := vaultPath(dir, name)
	if err != nil {
		return err
	}

	key, err := dpapiMasterKey()
	if err != nil {
		return err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(value), nil)
	encoded := base64.StdEncoding.EncodeToString(sealed)
	return os.WriteFile(path, []byte(encoded), 0o600)
}

// VaultDelete implements host.vault.delete (Windows only).
func (b *Bridge) VaultDelete(name string) error {
	metrics.BridgeCall(b.pluginID, "vault.delete")
	dir, err := b.vaultDir()
	if err != nil {
		return err
	}
	path, err := vaultPath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault delete %s: %w", name, err)
	}
	return nil
}
