//go:build darwin

package bridge

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/sunstory/openusage/internal/metrics"
)

// KeychainRead implements host.keychain.readGenericPassword via the macOS
// `security` CLI tool, grounded on original_source's inject_keychain.
func (b *Bridge) KeychainRead(service string) (string, error) {
	metrics.BridgeCall(b.pluginID, "keychain.read")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "security", "find-generic-password",
		"-s", service, "-w").Output()
	if err != nil {
		return "", fmt.Errorf("keychain read %s: %w", service, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// KeychainWrite implements host.keychain.writeGenericPassword. Writes reuse
// an existing account if one is already stored for the service.
func (b *Bridge) KeychainWrite(service, value string) error {
	metrics.BridgeCall(b.pluginID, "keychain.write")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	account := existingAccount(ctx, service)
	if account == "" {
		account = service
	}

	cmd := exec.CommandContext(ctx, "security", "add-generic-password",
		"-U", "-s", service, "-a", account, "-w", value)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("keychain write %s: %w (%s)", service, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func existingAccount(ctx context.Context, service string) string {
	out, err := exec.CommandContext(ctx, "security", "find-generic-password",
		"-s", service, "-g").CombinedOutput()
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, `"acct"`) {
			if idx := strings.LastIndex(line, "="); idx >= 0 {
				return strings.Trim(strings.TrimSpace(line[idx+1:]), `"`)
			}
		}
	}
	return ""
}
