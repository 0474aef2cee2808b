package circle

type CreateCircleRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=80"`
	Description string `json:"description" validate:"max=500"`
}

type CreateInvitationRequest struct {
	MaxUses        *int   `json:"max_uses" validate:"omitempty,min=1,max=1000"`
	ExpiresInHours *int   `json:"expires_in_hours" validate:"omitempty,min=1,max=720"`
	Email          string `json:"email" validate:"omitempty,email"`
}

type InvitationResponse struct {
	*Invitation
	ShareLink string `json:"share_link"`
	QRCode    string `json:"qr_code"`
}

type RedeemRequest struct {
	Code string `json:"code" validate:"required,min=4,max=32"`
}

type RedeemResponse struct {
	Circle *Circle `json:"circle"`
	Member *Member `json:"member"`
}
