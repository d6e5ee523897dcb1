package dto

type VerifyRequest struct {
	Assertion string `json:"assertion"`
	Audience  string `json:"audience"`
}

type VerifyResponse struct {
	Status            string `json:"status"`
	Audience          string `json:"audience"`
	Email             string `json:"email"`
	ValidUntil        int64  `json:"valid-until"`
	Issuer            string `json:"issuer"`
	HTTPAuthorization string `json:"http_authorization"`
}
