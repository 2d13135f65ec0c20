package simulator

import (
	"regexp"
	"strings"

	apperrors "swapdesk/pkg/errors"
)

// The simulation service reports an existing pool as free text. Two message
// shapes are known to occur in the wild; both are pinned by tests and no
// third shape is assumed. Matching is isolated here so a structured error
// code can replace it without touching callers.
var (
	poolExistsPrefixRe = regexp.MustCompile(`(?i)pool\s+already\s+exists:\s*([0-9A-Za-z_-]{48})`)
	poolExistsInfixRe  = regexp.MustCompile(`(?i)pool\s+([0-9A-Za-z_-]{48})\s+already\s+exists`)
)

// ParsePoolExists extracts the pool address from a pool-already-exists
// message, reporting whether the message matched either known shape.
func ParsePoolExists(msg string) (string, bool) {
	if m := poolExistsPrefixRe.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	if m := poolExistsInfixRe.FindStringSubmatch(msg); m != nil {
		return m[1], true
	}
	return "", false
}

// classifyMessage maps a remote error message onto the error taxonomy.
// No message leaves this package unclassified.
func classifyMessage(msg string) error {
	if addr, ok := ParsePoolExists(msg); ok {
		return &apperrors.PoolExistsError{PoolAddress: addr}
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "route not found"), strings.Contains(lower, "no route"):
		return apperrors.ErrRouteNotFound
	case strings.Contains(lower, "pool not found"):
		return apperrors.ErrPoolNotFound
	case strings.Contains(lower, "invalid"):
		return apperrors.ErrInvalidInput
	default:
		return apperrors.ErrSimulation
	}
}
