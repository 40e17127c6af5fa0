package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// Costing errors
	ErrInsufficientStock         = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available across open cost layers")
	ErrInsufficientLayerQuantity = NewDomainError("INSUFFICIENT_LAYER_QUANTITY", "Consumption exceeds remaining quantity in cost layer")
	ErrInvalidQuantity           = NewDomainError("INVALID_QUANTITY", "Quantity must be a non-negative number")
	ErrZeroWeightBasis           = NewDomainError("ZERO_WEIGHT_BASIS", "No open layers with positive weight to absorb the charge")

	// Posting errors
	ErrUnresolvedAccount = NewDomainError("UNRESOLVED_ACCOUNT", "No posting account could be resolved for the transaction")
	ErrUnbalancedVoucher = NewDomainError("UNBALANCED_VOUCHER", "Journal voucher debits and credits do not balance")
)
