// Package firewall abstracts platform-specific packet-drop rule
// installation behind a single Controller capability, so the response
// scheduler carries no platform branches.
package firewall

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/danger-dream/apollo-ips/internal/ipserr"
)

// Controller installs and removes inbound-drop rules for a single source
// IP. Implementations must be safe for concurrent use by distinct IPs;
// the response scheduler never calls Block/Unblock concurrently for the
// same IP.
type Controller interface {
	Block(ctx context.Context, ip string) error
	Unblock(ctx context.Context, ip string) error
}

// ruleName matches spec.md §4.8's literal naming convention for the
// Windows path; kept as a shared constant since both the install and the
// removal commands need to agree on it.
func ruleName(ip string) string {
	return fmt.Sprintf("PROJECT-APOLLO-BLOCK-%s", ip)
}

// New picks the Controller appropriate for the running OS. Callers that
// want deterministic test behavior should construct Null
// directly instead of going through this.
func New() Controller {
	switch runtime.GOOS {
	case "windows":
		return &Windows{}
	case "linux":
		return &Iptables{}
	default:
		return &Null{}
	}
}

// Iptables drops inbound traffic from a source IP via `iptables -I INPUT`.
// Grounded on the teacher's general os/exec shelling-out style (the
// teacher itself shells out to nothing — this mirrors
// original_source/response_actions.py's iptables invocation instead,
// which is what spec.md §4.8 names directly).
type Iptables struct{}

func (c *Iptables) Block(ctx context.Context, ip string) error {
	cmd := exec.CommandContext(ctx, "iptables", "-I", "INPUT", "1", "-s", ip, "-j", "DROP")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: iptables install for %s: %v: %s", ipserr.ErrFirewallInstall, ip, err, out)
	}
	return nil
}

func (c *Iptables) Unblock(ctx context.Context, ip string) error {
	cmd := exec.CommandContext(ctx, "iptables", "-D", "INPUT", "-s", ip, "-j", "DROP")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: iptables removal for %s: %v: %s", ipserr.ErrFirewallRemoval, ip, err, out)
	}
	return nil
}

// Windows creates and removes a named inbound block rule via PowerShell,
// per spec.md §4.8.
type Windows struct{}

func (c *Windows) Block(ctx context.Context, ip string) error {
	script := fmt.Sprintf(
		"New-NetFirewallRule -DisplayName '%s' -Direction Inbound -RemoteAddress %s -Action Block",
		ruleName(ip), ip,
	)
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: firewall rule install for %s: %v: %s", ipserr.ErrFirewallInstall, ip, err, out)
	}
	return nil
}

func (c *Windows) Unblock(ctx context.Context, ip string) error {
	script := fmt.Sprintf("Remove-NetFirewallRule -DisplayName '%s'", ruleName(ip))
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command", script)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: firewall rule removal for %s: %v: %s", ipserr.ErrFirewallRemoval, ip, err, out)
	}
	return nil
}

// Null performs no platform action. Used in tests and on unsupported
// platforms so the rest of the engine still runs end to end.
type Null struct{}

func (c *Null) Block(ctx context.Context, ip string) error   { return nil }
func (c *Null) Unblock(ctx context.Context, ip string) error { return nil }
