package txn

import (
	"github.com/google/uuid"

	"github.com/finbook/finbook/internal/errs"
	"github.com/finbook/finbook/internal/finance"
)

// Delta is a signed change, in minor units, to one account's stored balance.
type Delta struct {
	AccountID  uuid.UUID
	MinorUnits int64
}

// computeDeltas translates (kind, amount) into the signed balance changes a
// transaction applies. Income adds to the source account, expense subtracts
// from it, transfer subtracts from the source and adds to the destination.
// Pure: no I/O, so the posting rules stay independently testable.
func computeDeltas(kind finance.TransactionType, amountMinor int64, sourceID uuid.UUID, destID *uuid.UUID) ([]Delta, error) {
	if amountMinor <= 0 {
		return nil, errs.ErrInvalidAmount
	}
	switch kind {
	case finance.TypeIncome:
		return []Delta{{AccountID: sourceID, MinorUnits: amountMinor}}, nil
	case finance.TypeExpense:
		return []Delta{{AccountID: sourceID, MinorUnits: -amountMinor}}, nil
	case finance.TypeTransfer:
		if destID == nil || *destID == uuid.Nil {
			return nil, errs.ErrTransferRequiresDestination
		}
		if *destID == sourceID {
			return nil, errs.ErrSameAccountTransfer
		}
		return []Delta{
			{AccountID: sourceID, MinorUnits: -amountMinor},
			{AccountID: *destID, MinorUnits: amountMinor},
		}, nil
	default:
		return nil, errs.ErrTypeNotFound
	}
}

// invert negates every delta. Applying a set and then its inverse leaves all
// balances unchanged; the update and delete paths rely on this for reversal.
func invert(deltas []Delta) []Delta {
	out := make([]Delta, len(deltas))
	for i, d := range deltas {
		out[i] = Delta{AccountID: d.AccountID, MinorUnits: -d.MinorUnits}
	}
	return out
}

// classify returns the money-movement kind encoded by a category.
func classify(c finance.Category) (finance.TransactionType, error) {
	if !c.Type.Valid() {
		// Defensive: referential integrity should make this unreachable.
		return "", errs.ErrTypeNotFound
	}
	return c.Type, nil
}
