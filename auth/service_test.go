package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"
)

func newWallet(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey, string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	return pub, priv, DeriveAddress(pub)
}

func TestService_ChallengeAndVerify(t *testing.T) {
	svc := NewService("test-secret")
	pub, priv, addr := newWallet(t)

	ch, err := svc.IssueChallenge(ChallengeRequest{Address: addr})
	if err != nil {
		t.Fatalf("issue challenge: %v", err)
	}
	if ch.Address != addr || ch.Nonce == "" {
		t.Fatalf("unexpected challenge: %+v", ch)
	}

	sig := ed25519.Sign(priv, []byte(ch.Nonce))
	session, err := svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.Token == "" || session.Address != addr {
		t.Fatalf("unexpected session: %+v", session)
	}

	got, err := svc.VerifyToken(session.Token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if got != addr {
		t.Fatalf("token address: expected %q got %q", addr, got)
	}
}

func TestService_ChallengeConsumedOnFailure(t *testing.T) {
	svc := NewService("test-secret")
	pub, priv, addr := newWallet(t)

	ch, err := svc.IssueChallenge(ChallengeRequest{Address: addr})
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(make([]byte, ed25519.SignatureSize)),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// the nonce is spent even though verification failed
	sig := ed25519.Sign(priv, []byte(ch.Nonce))
	_, err = svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig),
	})
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
}

func TestService_RejectsForeignKey(t *testing.T) {
	svc := NewService("test-secret")
	_, _, addr := newWallet(t)
	otherPub, otherPriv, _ := newWallet(t)

	ch, err := svc.IssueChallenge(ChallengeRequest{Address: addr})
	if err != nil {
		t.Fatal(err)
	}

	// signature is valid for otherPub, but otherPub does not derive to addr
	sig := ed25519.Sign(otherPriv, []byte(ch.Nonce))
	_, err = svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(otherPub),
		Signature: hex.EncodeToString(sig),
	})
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestService_InvalidAddress(t *testing.T) {
	svc := NewService("test-secret")
	for _, addr := range []string{"", "0x123", "not-an-address", "0x" + "zz" + "00"} {
		if _, err := svc.IssueChallenge(ChallengeRequest{Address: addr}); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("address %q: expected ErrInvalidAddress, got %v", addr, err)
		}
	}
}

func TestService_ExpiredChallenge(t *testing.T) {
	svc := NewService("test-secret")
	pub, priv, addr := newWallet(t)

	ch, err := svc.IssueChallenge(ChallengeRequest{Address: addr})
	if err != nil {
		t.Fatal(err)
	}

	svc.mu.Lock()
	stale := svc.challenges[ch.Nonce]
	stale.ExpiresAt = time.Now().Add(-time.Second)
	svc.challenges[ch.Nonce] = stale
	svc.mu.Unlock()

	sig := ed25519.Sign(priv, []byte(ch.Nonce))
	_, err = svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig),
	})
	if !errors.Is(err, ErrChallengeExpired) {
		t.Fatalf("expected ErrChallengeExpired, got %v", err)
	}
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	svc := NewService("test-secret")
	other := NewService("other-secret")
	pub, priv, addr := newWallet(t)

	ch, _ := svc.IssueChallenge(ChallengeRequest{Address: addr})
	sig := ed25519.Sign(priv, []byte(ch.Nonce))
	session, err := svc.Verify(ch.Nonce, VerifyRequest{
		Address:   addr,
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := other.VerifyToken(session.Token); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestDeriveAddress_Format(t *testing.T) {
	pub, _, addr := newWallet(t)
	if !ValidAddress(addr) {
		t.Fatalf("derived address %q must be valid", addr)
	}
	if addr != DeriveAddress(pub) {
		t.Fatal("derivation must be deterministic")
	}
}
