package auction

import "errors"

// Ledger failure taxonomy. Every failure is synchronous and all-or-nothing;
// callers distinguish causes with errors.Is.
var (
	// ErrTooSmallAmount is returned when a bid's base power is below the
	// one-unit minimum floor.
	ErrTooSmallAmount = errors.New("too small amount")

	// ErrAuctionStopped is returned when bidding is attempted outside the
	// Open phase, or the phase machine is asked to move backwards.
	ErrAuctionStopped = errors.New("auction stopped")

	// ErrNotOwner is returned when a bid is cancelled by a non-owner, or an
	// operator-only call is made by a non-operator.
	ErrNotOwner = errors.New("not owner")

	// ErrZeroAmount is returned when cancelling a bid whose amount has
	// already been consumed, either by a prior cancel or by finalization.
	ErrZeroAmount = errors.New("zero amount")

	// ErrDeadline is returned when a selection deadline is not strictly in
	// the future.
	ErrDeadline = errors.New("deadline not in the future")

	// ErrPositionTooLarge is returned when a finalization position exceeds
	// the candidate count.
	ErrPositionTooLarge = errors.New("position exceeds candidate count")

	// ErrTooEarly is returned when finalization is attempted before the
	// recorded deadline.
	ErrTooEarly = errors.New("before deadline")

	// ErrUnknownAsset is returned when an asset is not on the accepted list.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrInvalidTier is returned when a tier index is outside the multiplier
	// table.
	ErrInvalidTier = errors.New("invalid tier")

	// ErrUnknownBid is returned when a bid index was never issued.
	ErrUnknownBid = errors.New("unknown bid")
)
