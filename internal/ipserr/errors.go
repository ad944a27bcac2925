// Package ipserr defines the error kinds used across the engine so callers
// can distinguish fatal startup failures from recoverable per-packet ones
// with errors.Is instead of string matching.
package ipserr

import "errors"

var (
	// ErrConfigLoad is fatal at startup.
	ErrConfigLoad = errors.New("config load error")
	// ErrCapturePermission is fatal at startup.
	ErrCapturePermission = errors.New("capture permission error")
	// ErrFirewallInstall is recoverable: skip this source, don't record it
	// as blocked, allow retry on the next detection.
	ErrFirewallInstall = errors.New("firewall install error")
	// ErrFirewallRemoval is logged; in-memory state is cleared regardless.
	ErrFirewallRemoval = errors.New("firewall removal error")
	// ErrThreatFeedFetch is warned; the existing set is preserved.
	ErrThreatFeedFetch = errors.New("threat feed fetch error")
	// ErrEnrichmentLookup is substituted with types.NotAvailable.
	ErrEnrichmentLookup = errors.New("enrichment lookup error")
	// ErrAlertQueueOverflow is drop-and-log.
	ErrAlertQueueOverflow = errors.New("alert queue overflow")
)
