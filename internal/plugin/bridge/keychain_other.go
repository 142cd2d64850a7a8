//go:build !darwin

package bridge

const keychainCapabilityName = "host.keychain"

// KeychainRead is unavailable outside macOS.
func (b *Bridge) KeychainRead(service string) (string, error) {
	return "", &CapabilityUnavailableError{Capability: keychainCapabilityName, Platform: currentPlatform()}
}

// KeychainWrite is unavailable outside macOS.
func (b *Bridge) KeychainWrite(service, value string) error {
	return &CapabilityUnavailableError{Capability: keychainCapabilityName, Platform: currentPlatform()}
}
