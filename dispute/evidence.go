package dispute

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"leaseflow/contract"
)

// SubmitEvidenceParams carries one evidence submission. The blob must
// already be stored; BlobID is its locator in the blob network.
type SubmitEvidenceParams struct {
	Uploader string
	BlobID   string
	MimeType string
	Caption  string
}

// SubmitEvidence appends an evidence record to the dispute. The ledger is
// append-only: there is no update or delete path, and the schema enforces
// the same. Only the contract parties may upload.
func (s *Service) SubmitEvidence(ctx context.Context, disputeID string, params SubmitEvidenceParams) (Evidence, error) {
	if err := ValidateEvidence(params.BlobID, params.Caption); err != nil {
		return Evidence{}, err
	}
	mime := params.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Evidence{}, fmt.Errorf("dispute: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, c, err := lockDispute(ctx, tx, disputeID)
	if err != nil {
		return Evidence{}, err
	}
	if !c.isParty(params.Uploader) {
		return Evidence{}, fmt.Errorf("%w: only contract parties may submit evidence", ErrNotEligible)
	}

	var ev Evidence
	err = tx.QueryRow(ctx, `
		INSERT INTO evidence (id, dispute_id, uploader, blob_id, mime_type, caption)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, dispute_id, uploader, blob_id, mime_type, caption, created_at
	`, uuid.NewString(), disputeID, params.Uploader, params.BlobID, mime, params.Caption).Scan(
		&ev.ID, &ev.DisputeID, &ev.Uploader, &ev.BlobID, &ev.MimeType, &ev.Caption, &ev.CreatedAt,
	)
	if err != nil {
		return Evidence{}, fmt.Errorf("dispute: insert evidence: %w", err)
	}

	if err := contract.AppendEvent(ctx, tx, rec.ContractID, contract.EventEvidenceSubmitted, params.Uploader, map[string]any{
		"evidence_id": ev.ID,
		"blob_id":     ev.BlobID,
	}); err != nil {
		return Evidence{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Evidence{}, fmt.Errorf("dispute: commit evidence: %w", err)
	}
	return ev, nil
}
