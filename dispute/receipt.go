package dispute

import (
	"context"
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// ErrBadReceipt signals a stake receipt whose attestation does not verify.
var ErrBadReceipt = errors.New("dispute: stake receipt rejected")

// StakeReceipt is the opaque proof that a juror locked the required stake
// with the settlement layer. TxRef identifies the stake transfer; the
// attestation is an ed25519 signature by the settlement authority over the
// receipt digest. The receipt's internal format carries no meaning here.
type StakeReceipt struct {
	TxRef       string
	Attestation []byte
}

// ReceiptVerifier checks a stake receipt against the voter and amount it is
// supposed to cover.
type ReceiptVerifier interface {
	Verify(ctx context.Context, receipt StakeReceipt, voter string, amount int64) error
}

// AttestedVerifier verifies receipts signed by a known settlement authority.
type AttestedVerifier struct {
	authority ed25519.PublicKey
}

// NewAttestedVerifier parses the authority public key from hex (with or
// without a 0x prefix).
func NewAttestedVerifier(authorityHex string) (*AttestedVerifier, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(authorityHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("dispute: decode authority key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("dispute: authority key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &AttestedVerifier{authority: ed25519.PublicKey(raw)}, nil
}

func (v *AttestedVerifier) Verify(_ context.Context, receipt StakeReceipt, voter string, amount int64) error {
	if receipt.TxRef == "" || len(receipt.Attestation) != ed25519.SignatureSize {
		return ErrBadReceipt
	}
	digest := ReceiptDigest(receipt.TxRef, voter, amount)
	if !ed25519.Verify(v.authority, digest, receipt.Attestation) {
		return ErrBadReceipt
	}
	return nil
}

// ReceiptDigest binds the stake transfer to the voter and amount so a
// receipt cannot be replayed for a different vote.
func ReceiptDigest(txRef, voter string, amount int64) []byte {
	var amt [8]byte
	binary.BigEndian.PutUint64(amt[:], uint64(amount))

	h, _ := blake2b.New256(nil)
	h.Write([]byte(txRef))
	h.Write([]byte{0})
	h.Write([]byte(voter))
	h.Write([]byte{0})
	h.Write(amt[:])
	return h.Sum(nil)
}
