// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package errclass

import (
	"testing"
	"time"
)

// =============================================================================
// API Error Classification
// =============================================================================

func TestClassifyAPIError(t *testing.T) {
	c := NewClassifier(Config{})

	tests := []struct {
		name      string
		status    int
		body      string
		wantKind  Kind
		wantRetry bool
	}{
		{
			name:      "enum_violation_exact_phrase",
			status:    500,
			body:      "RunState 'READY' is not among the defined enum values",
			wantKind:  KindDeterministicSchema,
			wantRetry: false,
		},
		{
			name:      "enum_type_name_with_invalid",
			status:    500,
			body:      "invalid value for PhaseState column",
			wantKind:  KindDeterministicSchema,
			wantRetry: false,
		},
		{
			name:      "not_null_violation",
			status:    500,
			body:      `null value in column "phase_id" violates not-null constraint`,
			wantKind:  KindDeterministicSchema,
			wantRetry: false,
		},
		{
			name:      "serialization_failure",
			status:    500,
			body:      "could not serialize access due to concurrent update",
			wantKind:  KindDeterministicSchema,
			wantRetry: false,
		},
		{
			name:      "generic_500",
			status:    500,
			body:      "internal server error",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
		{
			name:      "service_unavailable",
			status:    503,
			body:      "upstream unavailable",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
		{
			name:      "rate_limit",
			status:    429,
			body:      "rate limit",
			wantKind:  KindTransientLLM,
			wantRetry: true,
		},
		{
			name:      "not_found",
			status:    404,
			body:      "run not found",
			wantKind:  KindDeterministicInput,
			wantRetry: false,
		},
		{
			name:      "bad_request",
			status:    400,
			body:      "missing required field",
			wantKind:  KindDeterministicInput,
			wantRetry: false,
		},
		{
			name:      "unauthorized",
			status:    401,
			body:      "invalid token",
			wantKind:  KindDeterministicInput,
			wantRetry: false,
		},
		{
			name:      "forbidden",
			status:    403,
			body:      "access denied",
			wantKind:  KindDeterministicInput,
			wantRetry: false,
		},
		{
			name:      "no_response_connection_refused",
			status:    0,
			body:      "dial tcp 10.0.0.5:8080: connection refused",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
		{
			name:      "no_response_timeout",
			status:    0,
			body:      "request timed out after 30s",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
		{
			name:      "unmatched_fails_open",
			status:    418,
			body:      "something entirely novel",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyAPIError(tt.status, tt.body)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Retryable != tt.wantRetry {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetry)
			}
			if got.Remediation == "" {
				t.Error("Remediation is empty")
			}
		})
	}
}

func TestClassifyAPIError_CustomEnumTypeNames(t *testing.T) {
	c := NewClassifier(Config{
		EnumTypeNames: []string{"WidgetMode"},
	})

	got := c.ClassifyAPIError(500, "WidgetMode 'SPIN' is invalid")
	if got.Kind != KindDeterministicSchema {
		t.Errorf("Kind = %v, want %v", got.Kind, KindDeterministicSchema)
	}

	// RunState is not in the custom catalog, so plain "invalid" does not
	// trigger the enum rule and the generic 500 rule applies.
	got = c.ClassifyAPIError(500, "RunState 'READY' is invalid")
	if got.Kind != KindTransientInfra {
		t.Errorf("Kind = %v, want %v", got.Kind, KindTransientInfra)
	}
}

// =============================================================================
// Builder Failure Classification
// =============================================================================

func TestClassifyBuilderFailure(t *testing.T) {
	c := NewClassifier(Config{})

	tests := []struct {
		name      string
		output    string
		failure   string
		wantKind  Kind
		wantRetry bool
		wantNoOp  bool
	}{
		{
			name:      "empty_output_no_marker",
			output:    "",
			failure:   "builder returned nothing",
			wantKind:  KindDeterministicLogic,
			wantRetry: false,
		},
		{
			name:      "whitespace_only_output",
			output:    "  \n\t",
			failure:   "",
			wantKind:  KindDeterministicLogic,
			wantRetry: false,
		},
		{
			name:      "explicit_no_op_marker",
			output:    "No changes needed for this phase.",
			failure:   "",
			wantKind:  KindDeterministicLogic,
			wantRetry: false,
			wantNoOp:  true,
		},
		{
			name:      "json_parse_failure",
			output:    "here is the patch you asked for: {...",
			failure:   "invalid character 'h' looking for beginning of value",
			wantKind:  KindDeterministicLogic,
			wantRetry: false,
		},
		{
			name:      "token_budget_truncation",
			output:    `{"partial": true`,
			failure:   "response truncated at max_tokens",
			wantKind:  KindTransientLLM,
			wantRetry: true,
		},
		{
			name:      "provider_capacity",
			output:    "partial",
			failure:   "provider overloaded, please retry",
			wantKind:  KindTransientLLM,
			wantRetry: true,
		},
		{
			name:      "connectivity",
			output:    "partial",
			failure:   "read tcp: connection reset by peer",
			wantKind:  KindTransientInfra,
			wantRetry: true,
		},
		{
			name:      "unmatched_fails_closed",
			output:    "some output",
			failure:   "a failure nobody has seen before",
			wantKind:  KindDeterministicLogic,
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.ClassifyBuilderFailure(tt.output, tt.failure)
			if got.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", got.Kind, tt.wantKind)
			}
			if got.Retryable != tt.wantRetry {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.wantRetry)
			}
			if got.AcceptableNoOp != tt.wantNoOp {
				t.Errorf("AcceptableNoOp = %v, want %v", got.AcceptableNoOp, tt.wantNoOp)
			}
		})
	}
}

// =============================================================================
// Retry Policy
// =============================================================================

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindTransientInfra, true},
		{KindTransientLLM, true},
		{KindDeterministicSchema, false},
		{KindDeterministicLogic, false},
		{KindDeterministicInput, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			if got := ShouldRetry(tt.kind); got != tt.want {
				t.Errorf("ShouldRetry(%v) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		attempt int
		want    time.Duration
	}{
		{"llm_first_attempt", KindTransientLLM, 0, 60 * time.Second},
		{"llm_second_attempt", KindTransientLLM, 1, 120 * time.Second},
		{"llm_third_attempt", KindTransientLLM, 2, 240 * time.Second},
		{"llm_capped_at_300", KindTransientLLM, 3, 300 * time.Second},
		{"llm_stays_capped", KindTransientLLM, 10, 300 * time.Second},
		{"infra_first_attempt", KindTransientInfra, 0, 5 * time.Second},
		{"infra_third_attempt", KindTransientInfra, 2, 15 * time.Second},
		{"infra_capped_at_30", KindTransientInfra, 6, 30 * time.Second},
		{"infra_stays_capped", KindTransientInfra, 100, 30 * time.Second},
		{"schema_no_backoff", KindDeterministicSchema, 0, 0},
		{"logic_no_backoff", KindDeterministicLogic, 5, 0},
		{"input_no_backoff", KindDeterministicInput, 1, 0},
		{"negative_attempt_clamped", KindTransientLLM, -3, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Backoff(tt.kind, tt.attempt); got != tt.want {
				t.Errorf("Backoff(%v, %d) = %v, want %v", tt.kind, tt.attempt, got, tt.want)
			}
		})
	}
}
