package auth

import "time"

// Challenge is a one-time nonce a wallet must sign to prove control of its
// address. Challenges are held in memory and expire; a verified challenge is
// consumed.
type Challenge struct {
	Nonce     string
	Address   string
	ExpiresAt time.Time
}

// Session is what a successful signature verification yields: a bearer token
// bound to the wallet address.
type Session struct {
	Token     string
	Address   string
	ExpiresAt time.Time
}

// ChallengeRequest asks for a nonce to sign.
type ChallengeRequest struct {
	Address string `json:"address"`
}

// VerifyRequest submits the signed nonce. PublicKey and Signature are
// hex-encoded; the public key must derive to the challenged address.
type VerifyRequest struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}
