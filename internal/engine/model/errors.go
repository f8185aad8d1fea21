package model

import "errors"

// Programming-invariant violations. These indicate an upstream contract
// breach rather than a market condition and abort the admitting call.
var (
	ErrUnknownOrderType = errors.New("unknown order type")
	ErrMissingOCOLeg    = errors.New("oco order missing a leg")
	ErrOrderNotFound    = errors.New("order not found")
)
