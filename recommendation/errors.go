package recommendation

import "errors"

var (
	ErrInvalidIdempotencyKey      = errors.New("idempotency key must be a version 4 UUID")
	ErrMissingOutfitItem          = errors.New("top, bottom and shoes are required")
	ErrInvalidFeedbackType        = errors.New("feedback type must be ACCEPT or REJECT")
	ErrOutfitItemNotFound         = errors.New("outfit references an item outside the wardrobe")
	ErrOutfitSlotMismatch         = errors.New("outfit item does not match its slot category")
	ErrIdempotencyPayloadMismatch = errors.New("idempotency key was already used for a different outfit")
)

// ErrorCode maps a ledger error to the code returned to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidIdempotencyKey):
		return "INVALID_IDEMPOTENCY_KEY"
	case errors.Is(err, ErrMissingOutfitItem):
		return "MISSING_OUTFIT_ITEM"
	case errors.Is(err, ErrInvalidFeedbackType):
		return "INVALID_FEEDBACK_TYPE"
	case errors.Is(err, ErrOutfitItemNotFound):
		return "OUTFIT_ITEM_NOT_FOUND"
	case errors.Is(err, ErrOutfitSlotMismatch):
		return "OUTFIT_SLOT_MISMATCH"
	case errors.Is(err, ErrIdempotencyPayloadMismatch):
		return "IDEMPOTENCY_PAYLOAD_MISMATCH"
	}
	return "INTERNAL_ERROR"
}

// IsOutfitRejection reports whether err is a validation outcome of
// CheckOutfitItems rather than a storage failure.
func IsOutfitRejection(err error) bool {
	return errors.Is(err, ErrMissingOutfitItem) ||
		errors.Is(err, ErrOutfitItemNotFound) ||
		errors.Is(err, ErrOutfitSlotMismatch)
}
