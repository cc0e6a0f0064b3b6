// Package features manages protocol feature gates.
//
// The feature mechanism coordinates the activation of (breaking)
// changes to the voting protocol. Gates are identified by account
// address; an activation set is built explicitly and passed into
// execution rather than consulted as ambient global state.
package features

import (
	"go.alpenglow.io/votor/pkg/base58"
)

type FeatureGate struct {
	Name    string
	Address [32]byte
}

// AllowCommissionDecreaseAtAnyTime lifts the first-half-of-epoch rule
// for commission updates that lower the commission.
var AllowCommissionDecreaseAtAnyTime = FeatureGate{Name: "AllowCommissionDecreaseAtAnyTime", Address: base58.MustDecodeFromString("BcWknVcgvonN8sL4HE4XFuEVgfcee5MwxWPAgP6ZV89X")}

// CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch enforces the epoch
// midpoint cutoff for commission updates.
var CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch = FeatureGate{Name: "CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch", Address: base58.MustDecodeFromString("noRuG2kzacwgaY7TVmLRnUNPLKNVQE1fb7X55YWBehp")}

// DisableSkipRangeCredits turns off credit awards for skip votes while
// their accounting remains under protocol discussion. Skip votes are
// still validated and recorded when this gate is active.
var DisableSkipRangeCredits = FeatureGate{Name: "DisableSkipRangeCredits", Address: base58.MustDecodeFromString("8sKQrMQoUHtQSUP83SPG4ta2JDjSAiWs7t5aJ9uEd6To")}

var AllFeatureGates = []FeatureGate{
	AllowCommissionDecreaseAtAnyTime,
	CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch,
	DisableSkipRangeCredits,
}

// Features is an activation set of feature gates.
type Features struct {
	activated map[[32]byte]bool
}

func NewFeaturesDefault() Features {
	f := Features{activated: make(map[[32]byte]bool)}
	f.EnableFeature(CommissionUpdatesOnlyAllowedInFirstHalfOfEpoch)
	return f
}

func NewFeaturesAllEnabled() Features {
	f := Features{activated: make(map[[32]byte]bool)}
	for _, gate := range AllFeatureGates {
		f.EnableFeature(gate)
	}
	return f
}

func (f *Features) EnableFeature(gate FeatureGate) {
	if f.activated == nil {
		f.activated = make(map[[32]byte]bool)
	}
	f.activated[gate.Address] = true
}

func (f *Features) DisableFeature(gate FeatureGate) {
	if f.activated != nil {
		delete(f.activated, gate.Address)
	}
}

func (f Features) IsActive(gate FeatureGate) bool {
	return f.activated[gate.Address]
}

// GateByName resolves a gate from its registered name. Used by tooling
// that reads activation sets from config files.
func GateByName(name string) (FeatureGate, bool) {
	for _, gate := range AllFeatureGates {
		if gate.Name == name {
			return gate, true
		}
	}
	return FeatureGate{}, false
}
