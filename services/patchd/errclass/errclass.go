// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package errclass classifies pipeline and LLM failures into retryable
// and deterministic kinds.
//
// # Description
//
// The classifier is stateless and consulted by the calling orchestrator
// whenever any pipeline stage, API call, or builder step fails. It never
// retries anything itself; it only answers "is this worth retrying, and
// after how long".
//
// Two input axes with deliberately opposite defaults:
//
//   - API errors fail OPEN toward retry (unmatched → transient_infra).
//     A misclassified transient costs one wasted retry.
//   - Builder failures fail CLOSED toward no-retry (unmatched →
//     deterministic_logic). Unrecognized builder failures are assumed to
//     reproduce deterministically, so retrying burns tokens for nothing.
//
// # Thread Safety
//
// Classifier is immutable after construction and safe for concurrent use.
package errclass

import "strings"

// =============================================================================
// Kinds
// =============================================================================

// Kind is the failure category driving retry policy.
type Kind string

const (
	// KindTransientInfra is a recoverable infrastructure fault (network,
	// service briefly unavailable). Retry with short linear backoff.
	KindTransientInfra Kind = "transient_infra"

	// KindTransientLLM is provider-side pressure (rate limit, capacity,
	// truncation). Retry with long exponential backoff.
	KindTransientLLM Kind = "transient_llm"

	// KindDeterministicSchema is a data/schema contract violation (enum
	// value, NOT NULL, serialization). Retrying reproduces it exactly.
	KindDeterministicSchema Kind = "deterministic_schema"

	// KindDeterministicLogic is a logic-level failure in generated output
	// (empty response, unparseable JSON). Never retried.
	KindDeterministicLogic Kind = "deterministic_logic"

	// KindDeterministicInput is a caller mistake (bad request, missing
	// resource, auth failure). Never retried.
	KindDeterministicInput Kind = "deterministic_input"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// =============================================================================
// Classification
// =============================================================================

// Classification is the classifier's verdict for one failure.
type Classification struct {
	// Kind is the failure category.
	Kind Kind `json:"kind"`

	// Remediation is a human-readable hint for the operator or the
	// orchestrator's report.
	Remediation string `json:"remediation"`

	// Retryable mirrors ShouldRetry(Kind) for callers consuming the
	// struct directly.
	Retryable bool `json:"retryable"`

	// AcceptableNoOp marks a deterministic_logic classification where the
	// builder explicitly declared it had nothing to change. The run is
	// not an error, just empty.
	AcceptableNoOp bool `json:"acceptable_no_op,omitempty"`
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds the phrase catalogs the classifier matches against. All
// matching is case-insensitive substring containment. The catalogs are
// explicit configuration rather than package globals so deployments can
// extend them without a rebuild.
type Config struct {
	// EnumTypeNames are schema enum type names whose appearance alongside
	// "invalid" or "not among" in a 500 body indicates an enum violation.
	EnumTypeNames []string

	// NoOpMarkers are explicit builder declarations that no change is
	// needed; empty output carrying one is acceptable, not a failure.
	NoOpMarkers []string

	// ConnectivityPhrases indicate network-level faults.
	ConnectivityPhrases []string

	// CapacityPhrases indicate provider rate-limiting or overload.
	CapacityPhrases []string

	// TruncationPhrases indicate the model ran out of output budget.
	TruncationPhrases []string

	// IntegrityPhrases indicate database constraint violations.
	IntegrityPhrases []string

	// SerializationPhrases indicate serialization/encoding contract
	// failures surfaced as 500s.
	SerializationPhrases []string

	// JSONParsePhrases indicate the builder's output was not valid JSON.
	JSONParsePhrases []string
}

// DefaultConfig returns the catalogs observed in production failures.
func DefaultConfig() Config {
	return Config{
		EnumTypeNames: []string{
			"runstate",
			"phasestate",
			"tierstate",
		},
		NoOpMarkers: []string{
			"no changes needed",
			"no_op",
			"noop",
			"nothing to change",
		},
		ConnectivityPhrases: []string{
			"connection refused",
			"connection reset",
			"no route to host",
			"timed out",
			"timeout",
			"broken pipe",
			"unexpected eof",
			"name resolution",
		},
		CapacityPhrases: []string{
			"rate limit",
			"too many requests",
			"overloaded",
			"capacity",
			"quota exceeded",
		},
		TruncationPhrases: []string{
			"max_tokens",
			"token limit",
			"truncated",
			"context length",
			"output limit",
		},
		IntegrityPhrases: []string{
			"not null",
			"not-null",
			"integrity",
			"constraint violation",
		},
		SerializationPhrases: []string{
			"serialization failure",
			"could not serialize",
		},
		JSONParsePhrases: []string{
			"json",
			"unexpected end of input",
			"invalid character",
		},
	}
}

// =============================================================================
// Classifier
// =============================================================================

// Classifier classifies failures against configured phrase catalogs.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier. Empty catalog slices fall back to
// the defaults, so Config{} behaves like DefaultConfig().
func NewClassifier(cfg Config) *Classifier {
	def := DefaultConfig()
	if len(cfg.EnumTypeNames) == 0 {
		cfg.EnumTypeNames = def.EnumTypeNames
	}
	if len(cfg.NoOpMarkers) == 0 {
		cfg.NoOpMarkers = def.NoOpMarkers
	}
	if len(cfg.ConnectivityPhrases) == 0 {
		cfg.ConnectivityPhrases = def.ConnectivityPhrases
	}
	if len(cfg.CapacityPhrases) == 0 {
		cfg.CapacityPhrases = def.CapacityPhrases
	}
	if len(cfg.TruncationPhrases) == 0 {
		cfg.TruncationPhrases = def.TruncationPhrases
	}
	if len(cfg.IntegrityPhrases) == 0 {
		cfg.IntegrityPhrases = def.IntegrityPhrases
	}
	if len(cfg.SerializationPhrases) == 0 {
		cfg.SerializationPhrases = def.SerializationPhrases
	}
	if len(cfg.JSONParsePhrases) == 0 {
		cfg.JSONParsePhrases = def.JSONParsePhrases
	}
	return &Classifier{cfg: cfg}
}

// enumViolationPhrase is the exact phrase the schema layer emits when a
// value is outside a defined enum.
const enumViolationPhrase = "is not among the defined enum values"

// ClassifyAPIError classifies an HTTP-level failure from a collaborator
// API.
//
// # Description
//
// Rules are checked in priority order; the first match wins. A status of
// 0 means no response was received at all. Anything unmatched is
// classified transient_infra: the API path fails open toward retry.
//
// # Inputs
//
//   - status: HTTP status code, 0 when the request never completed.
//   - body: Response body or transport error text.
//
// # Outputs
//
//   - Classification: Verdict with kind, remediation hint, retry flag.
func (c *Classifier) ClassifyAPIError(status int, body string) Classification {
	lower := strings.ToLower(body)

	switch {
	case status >= 500 && c.isEnumViolation(lower):
		return c.verdict(KindDeterministicSchema,
			"enum value rejected by schema; fix the emitted state value, retrying will not help")

	case status >= 500 && containsAny(lower, c.cfg.IntegrityPhrases):
		return c.verdict(KindDeterministicSchema,
			"database integrity violation; fix the payload, retrying will not help")

	case status >= 500 && containsAny(lower, c.cfg.SerializationPhrases):
		return c.verdict(KindDeterministicSchema,
			"payload failed serialization; fix the payload shape, retrying will not help")

	case status == 503:
		return c.verdict(KindTransientInfra,
			"service unavailable; retry with short backoff")

	case status >= 500:
		return c.verdict(KindTransientInfra,
			"server error with no deterministic signature; retry with short backoff")

	case status == 429:
		return c.verdict(KindTransientLLM,
			"provider rate limit; retry with long exponential backoff")

	case status == 400 || status == 401 || status == 403 || status == 404:
		return c.verdict(KindDeterministicInput,
			"request rejected by the API; fix the request, retrying will not help")

	case status == 0 && containsAny(lower, c.cfg.ConnectivityPhrases):
		return c.verdict(KindTransientInfra,
			"network-level failure; retry with short backoff")
	}

	// Fail open: an unrecognized API failure costs at most one wasted
	// retry if it turns out deterministic.
	return c.verdict(KindTransientInfra,
		"unrecognized API failure; retrying once is cheap")
}

// ClassifyBuilderFailure classifies a failure of the patch-building step
// itself.
//
// # Description
//
// The builder produced output (possibly empty) and the step failed with
// failure text (possibly empty, when the failure IS the empty output).
// Anything unmatched is classified deterministic_logic: the builder path
// fails closed, opposite of the API path.
//
// # Inputs
//
//   - output: The builder's raw output, "" when it produced nothing.
//   - failure: Error text describing why the step failed.
//
// # Outputs
//
//   - Classification: Verdict; AcceptableNoOp is set when the builder
//     explicitly declared it had nothing to change.
func (c *Classifier) ClassifyBuilderFailure(output, failure string) Classification {
	lowerOut := strings.ToLower(output)
	lowerFail := strings.ToLower(failure)

	if strings.TrimSpace(output) == "" || containsAny(lowerOut, c.cfg.NoOpMarkers) {
		if containsAny(lowerOut, c.cfg.NoOpMarkers) {
			v := c.verdict(KindDeterministicLogic,
				"builder explicitly declared no changes needed; accept as empty result")
			v.AcceptableNoOp = true
			return v
		}
		return c.verdict(KindDeterministicLogic,
			"builder produced empty output without declaring a no-op; do not retry")
	}

	switch {
	case containsAny(lowerFail, c.cfg.TruncationPhrases):
		return c.verdict(KindTransientLLM,
			"output truncated by token budget; retry with a larger budget or smaller scope")

	case containsAny(lowerFail, c.cfg.CapacityPhrases):
		return c.verdict(KindTransientLLM,
			"provider capacity pressure; retry with long backoff")

	case containsAny(lowerFail, c.cfg.ConnectivityPhrases):
		return c.verdict(KindTransientInfra,
			"network-level failure during build; retry with short backoff")

	case containsAny(lowerFail, c.cfg.JSONParsePhrases):
		return c.verdict(KindDeterministicLogic,
			"builder output is not valid JSON; the same prompt reproduces it, do not retry")
	}

	// Fail closed: an unrecognized builder failure is assumed to
	// reproduce deterministically.
	return c.verdict(KindDeterministicLogic,
		"unrecognized builder failure; assumed deterministic, do not retry")
}

// isEnumViolation detects the schema layer's enum rejection, either by
// its exact phrase or by a known enum type name co-occurring with
// rejection language.
func (c *Classifier) isEnumViolation(lowerBody string) bool {
	if strings.Contains(lowerBody, enumViolationPhrase) {
		return true
	}
	for _, name := range c.cfg.EnumTypeNames {
		if strings.Contains(lowerBody, strings.ToLower(name)) &&
			(strings.Contains(lowerBody, "invalid") || strings.Contains(lowerBody, "not among")) {
			return true
		}
	}
	return false
}

// verdict builds a Classification with the retry flag derived from kind.
func (c *Classifier) verdict(kind Kind, remediation string) Classification {
	return Classification{
		Kind:        kind,
		Remediation: remediation,
		Retryable:   ShouldRetry(kind),
	}
}

// containsAny reports whether s contains any of the phrases.
func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
