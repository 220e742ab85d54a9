package domain

import "strings"

// TransitionOutcome describes what happened when a reported status met the stored one.
type TransitionOutcome string

const (
	// TransitionApplied means the stored status moved (or was refreshed) to the reported one.
	TransitionApplied TransitionOutcome = "APPLIED"
	// TransitionIgnored means the report could not move the order and was dropped.
	TransitionIgnored TransitionOutcome = "IGNORED"
	// TransitionConflict means a terminal order received a different terminal status.
	TransitionConflict TransitionOutcome = "CONFLICT"
)

// ResolveTransition decides the next stored status given the current one and a
// status reported by the gateway.
//
//	PENDING -> SUCCESS | FAILED | UNKNOWN
//	UNKNOWN -> SUCCESS | FAILED | UNKNOWN
//	SUCCESS, FAILED are terminal; the first terminal value wins.
//
// A PENDING report never reopens an UNKNOWN order.
func ResolveTransition(current, reported OrderStatus) (OrderStatus, TransitionOutcome) {
	if current.IsTerminal() {
		switch {
		case reported == current:
			return current, TransitionApplied
		case reported.IsTerminal():
			return current, TransitionConflict
		default:
			return current, TransitionIgnored
		}
	}

	switch reported {
	case OrderStatusSuccess, OrderStatusFailed, OrderStatusUnknown:
		return reported, TransitionApplied
	case OrderStatusPending:
		if current == OrderStatusPending {
			return current, TransitionApplied
		}
		return current, TransitionIgnored
	default:
		return current, TransitionIgnored
	}
}

// ParseGatewayStatus maps the gateway's status vocabulary onto OrderStatus.
// Anything unrecognised is UNKNOWN.
func ParseGatewayStatus(raw string) OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "COMPLETED", "SUCCESS", "PAYMENT_SUCCESS", "PAID":
		return OrderStatusSuccess
	case "FAILED", "FAILURE", "PAYMENT_ERROR", "PAYMENT_DECLINED", "EXPIRED", "CANCELLED", "TIMED_OUT":
		return OrderStatusFailed
	case "PENDING", "PAYMENT_PENDING", "INITIATED":
		return OrderStatusPending
	default:
		return OrderStatusUnknown
	}
}
