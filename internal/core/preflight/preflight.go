// Package preflight decides whether an operation may proceed when remote
// services it depends on are not enabled for the account.
// This is part of the Functional Core - all functions are pure with no I/O.
package preflight

import (
	"fmt"
	"strings"
)

// Policy selects how missing services are handled.
type Policy string

const (
	PolicyPrompt Policy = "prompt" // ask, abort if declined
	PolicyFail   Policy = "fail"   // abort
	PolicyWarn   Policy = "warn"   // log and continue
	PolicySkip   Policy = "skip"   // do not query at all
)

// ParsePolicy parses a policy name, case-insensitively. Empty means prompt.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyPrompt, nil
	case PolicyPrompt, PolicyFail, PolicyWarn, PolicySkip:
		return p, nil
	default:
		return "", fmt.Errorf("unknown preflight policy %q (expected prompt, fail, warn or skip)", s)
	}
}

// Union merges service lists, dropping duplicates and empty names while
// keeping first-seen order.
func Union(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// Missing returns the required services that are not enabled, in required
// order.
func Missing(required []string, enabled map[string]bool) []string {
	var out []string
	for _, s := range required {
		if !enabled[s] {
			out = append(out, s)
		}
	}
	return out
}

// Outcome is the decision for a set of missing services.
type Outcome string

const (
	OutcomeProceed Outcome = "proceed" // nothing missing
	OutcomeWarn    Outcome = "warn"    // continue after a warning
	OutcomeAsk     Outcome = "ask"     // caller must confirm
	OutcomeAbort   Outcome = "abort"
)

// Evaluate maps a policy and the missing services to an outcome.
func Evaluate(policy Policy, missing []string) Outcome {
	if len(missing) == 0 || policy == PolicySkip {
		return OutcomeProceed
	}
	switch policy {
	case PolicyFail:
		return OutcomeAbort
	case PolicyWarn:
		return OutcomeWarn
	default:
		return OutcomeAsk
	}
}

// Message describes the missing services for reports and errors.
func Message(missing []string) string {
	return fmt.Sprintf("required services are not enabled: %s", strings.Join(missing, ", "))
}
