package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidSignature signals a signature that does not verify against
	// the challenge, or a public key that does not derive to the address.
	ErrInvalidSignature = errors.New("auth: invalid signature")
	// ErrChallengeExpired signals an unknown, expired, or already consumed
	// challenge.
	ErrChallengeExpired = errors.New("auth: challenge expired")
	// ErrInvalidAddress signals a malformed wallet address.
	ErrInvalidAddress = errors.New("auth: invalid address")
)

const (
	challengeTTL = 5 * time.Minute
	sessionTTL   = 24 * time.Hour
	addressLen   = 2 + 64 // 0x + 32 bytes hex
)

// Service implements challenge/response wallet authentication. A caller
// requests a nonce for its address, signs it with the wallet's ed25519 key,
// and exchanges the signature for a JWT session token.
type Service struct {
	jwtSecret []byte

	mu         sync.Mutex
	challenges map[string]Challenge // keyed by nonce
}

func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret:  []byte(jwtSecret),
		challenges: make(map[string]Challenge),
	}
}

// IssueChallenge creates a nonce the wallet must sign. Expired entries are
// swept opportunistically on each issue.
func (s *Service) IssueChallenge(req ChallengeRequest) (Challenge, error) {
	addr := strings.ToLower(strings.TrimSpace(req.Address))
	if !ValidAddress(addr) {
		return Challenge{}, ErrInvalidAddress
	}

	var raw [32]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return Challenge{}, fmt.Errorf("auth: generate nonce: %w", err)
	}
	ch := Challenge{
		Nonce:     hex.EncodeToString(raw[:]),
		Address:   addr,
		ExpiresAt: time.Now().Add(challengeTTL),
	}

	s.mu.Lock()
	now := time.Now()
	for nonce, stale := range s.challenges {
		if now.After(stale.ExpiresAt) {
			delete(s.challenges, nonce)
		}
	}
	s.challenges[ch.Nonce] = ch
	s.mu.Unlock()

	return ch, nil
}

// Verify checks the signed nonce and mints a session token. The challenge is
// consumed whether or not verification succeeds, so a signature can only be
// tried once per nonce.
func (s *Service) Verify(nonce string, req VerifyRequest) (Session, error) {
	s.mu.Lock()
	ch, ok := s.challenges[nonce]
	delete(s.challenges, nonce)
	s.mu.Unlock()

	if !ok || time.Now().After(ch.ExpiresAt) {
		return Session{}, ErrChallengeExpired
	}

	addr := strings.ToLower(strings.TrimSpace(req.Address))
	if addr != ch.Address {
		return Session{}, ErrInvalidSignature
	}

	pub, err := hex.DecodeString(strings.TrimPrefix(req.PublicKey, "0x"))
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return Session{}, ErrInvalidSignature
	}
	if DeriveAddress(pub) != addr {
		return Session{}, ErrInvalidSignature
	}

	sig, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Session{}, ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(ch.Nonce), sig) {
		return Session{}, ErrInvalidSignature
	}

	expiresAt := time.Now().Add(sessionTTL)
	token, err := s.generateToken(addr, expiresAt)
	if err != nil {
		return Session{}, fmt.Errorf("auth: generate token: %w", err)
	}
	return Session{Token: token, Address: addr, ExpiresAt: expiresAt}, nil
}

// VerifyToken validates a session token and returns the wallet address.
func (s *Service) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("auth: parse token: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		addr, ok := claims["address"].(string)
		if !ok || !ValidAddress(addr) {
			return "", fmt.Errorf("auth: invalid address in token")
		}
		return addr, nil
	}
	return "", fmt.Errorf("auth: invalid token")
}

func (s *Service) generateToken(address string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"address": address,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// DeriveAddress computes the wallet address for an ed25519 public key:
// 0x-prefixed blake2b-256 of the scheme byte (0x00 for ed25519) followed by
// the key bytes.
func DeriveAddress(pub ed25519.PublicKey) string {
	h, _ := blake2b.New256(nil)
	h.Write([]byte{0x00})
	h.Write(pub)
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// ValidAddress reports whether s looks like a wallet address.
func ValidAddress(s string) bool {
	if len(s) != addressLen || !strings.HasPrefix(s, "0x") {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}
