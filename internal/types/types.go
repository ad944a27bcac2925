// Package types holds the data shapes shared across the detection and
// response pipeline.
package types

import "net"

// Severity is an operator-facing classification only; it does not change
// detection or response behavior.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Packet is the ephemeral, per-observation input to the detection pipeline.
// It is consumed once and never retained.
type Packet struct {
	SrcIP     net.IP
	DstPort   uint16
	HasTCP    bool
	Payload   []byte
	Size      int
	Timestamp int64 // unix seconds, wall clock
}

// VerdictKind distinguishes a clean packet from a hostile one.
type VerdictKind uint8

const (
	VerdictClean VerdictKind = iota
	VerdictHostile
)

// Verdict is the result of classifying a single packet. On VerdictHostile,
// Reason and Severity explain why; ordering among detectors is normative
// (blocklist > port scan > signature) and is enforced by the pipeline, not
// by this type.
type Verdict struct {
	Kind     VerdictKind
	Reason   string
	Severity Severity
}

func (v Verdict) Hostile() bool {
	return v.Kind == VerdictHostile
}

// GeoInfo is the result of enriching a source IP with location and reverse
// DNS data.
type GeoInfo struct {
	CountryCode string `json:"country_code"`
	Hostname    string `json:"hostname"`
}

// NotAvailable is the placeholder value for any enrichment sub-lookup that
// missed, failed, or timed out.
const NotAvailable = "N/A"
