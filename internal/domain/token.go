package domain

// TokenPayload carries the identity claims embedded in access and refresh
// tokens. It is never persisted; it exists only inside signed tokens.
type TokenPayload struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// TokenPair is the credential set returned by signup and login.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
