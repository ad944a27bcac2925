// Package pipeline implements C7: composes the threat-intel store,
// signature engine, and per-source scan tracker into a single
// classification verdict per packet. The pipeline never blocks and never
// calls the firewall, enrichment, or alert queue directly — it only
// returns a Verdict; callers decide what to do with it.
package pipeline

import (
	"github.com/danger-dream/apollo-ips/internal/scanner"
	"github.com/danger-dream/apollo-ips/internal/signature"
	"github.com/danger-dream/apollo-ips/internal/types"
)

const (
	ReasonBlocklist = "IP in Threat Blocklist"
	ReasonPortScan  = "Port Scan Detected"
)

// ThreatSet is the read-only view the pipeline needs from C4.
type ThreatSet interface {
	Contains(ip string) bool
}

// Pipeline holds read-only handles to C4/C5 and a mutable handle to C6,
// matching spec.md §3's ownership note.
type Pipeline struct {
	threats ThreatSet
	sigs    *signature.Engine
	scans   *scanner.Tracker
}

func New(threats ThreatSet, sigs *signature.Engine, scans *scanner.Tracker) *Pipeline {
	return &Pipeline{threats: threats, sigs: sigs, scans: scans}
}

// Classify implements spec.md §4.7's normative ordering: blocklist >
// port scan > signature.
func (p *Pipeline) Classify(pkt types.Packet) types.Verdict {
	if pkt.SrcIP == nil {
		return types.Verdict{Kind: types.VerdictClean}
	}

	srcIP := pkt.SrcIP.String()

	if p.threats != nil && p.threats.Contains(srcIP) {
		return types.Verdict{Kind: types.VerdictHostile, Reason: ReasonBlocklist, Severity: types.SeverityHigh}
	}

	if pkt.HasTCP && p.scans != nil {
		if p.scans.Observe(srcIP, pkt.DstPort) {
			return types.Verdict{Kind: types.VerdictHostile, Reason: ReasonPortScan, Severity: types.SeverityMedium}
		}
	}

	if len(pkt.Payload) > 0 && p.sigs != nil {
		if name, severity, ok := p.sigs.Scan(pkt.Payload); ok {
			return types.Verdict{Kind: types.VerdictHostile, Reason: name, Severity: severity}
		}
	}

	return types.Verdict{Kind: types.VerdictClean}
}
