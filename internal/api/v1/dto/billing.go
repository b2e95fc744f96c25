package dto

// CheckoutSessionRequest starts a subscription checkout for a plan.
type CheckoutSessionRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly quarterly sixMonths"`
}

// CheckoutSessionResponse carries the hosted checkout URL.
type CheckoutSessionResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}

// GrantCreditsRequest is an operator credit grant with an audit reason.
type GrantCreditsRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Credits int    `json:"credits" validate:"required,min=1,max=1000"`
	Reason  string `json:"reason" validate:"required"`
}
