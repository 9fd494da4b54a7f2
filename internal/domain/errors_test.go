package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid status value", err: ErrInvalidStatusValue, want: true},
		{name: "wrapped not found", err: NewOrderNotFoundError(99), want: true},
		{name: "invalid transition", err: NewInvalidTransitionError(OrderStatusPaid, OrderStatusPending), want: true},
		{name: "lock timeout", err: ErrLockTimeout, want: false},
		{name: "storage", err: fmt.Errorf("%w: select order: %w", ErrStorage, errors.New("conn reset")), want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsClientError(tt.err); got != tt.want {
				t.Errorf("IsClientError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "lock timeout", err: ErrLockTimeout, want: true},
		{name: "wrapped lock timeout", err: fmt.Errorf("lock order #7: %w", ErrLockTimeout), want: true},
		{name: "storage", err: ErrStorage, want: false},
		{name: "invalid transition", err: ErrInvalidTransition, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	if got := NewInvalidTransitionError(OrderStatusPaid, OrderStatusPending).Error(); got != "invalid status transition from 'paid' to 'pending'" {
		t.Fatalf("unexpected message: %s", got)
	}
	if got := NewOrderNotFoundError(99).Error(); got != "order not found: #99" {
		t.Fatalf("unexpected message: %s", got)
	}
}
