package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leaseflow/contract"
	"leaseflow/dispute"
	"leaseflow/outbox"
)

// okVerifier accepts any stake receipt; the stress harness exercises the
// voting invariants, not the attestation crypto.
type okVerifier struct{}

func (okVerifier) Verify(context.Context, dispute.StakeReceipt, string, int64) error { return nil }

// NewDisputeService builds a dispute service with receipt verification
// stubbed out.
func NewDisputeService(pool *pgxpool.Pool) *dispute.Service {
	return dispute.NewService(pool, okVerifier{})
}

// Appellant races to file the appeal for the contract. Exactly one filing
// may win; every other attempt must fail with ErrInvalidTransition.
func Appellant(ctx context.Context, svc *dispute.Service, contractID, tenant string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := svc.FileAppeal(ctx, contractID, tenant)
		switch {
		case err == nil:
		case errors.Is(err, contract.ErrInvalidTransition):
			// lost the race or already filed
		case errors.Is(err, dispute.ErrDeadlinePassed):
		case errors.Is(err, context.Canceled):
			return nil
		default:
			// transport errors from chaos kills; oracles judge the state
		}
		time.Sleep(time.Duration(20+rand.Intn(40)) * time.Millisecond)
	}
}

// RepeatVoter hammers the same voter address; at most one vote may land, all
// later attempts must come back ErrNotEligible.
func RepeatVoter(ctx context.Context, svc *dispute.Service, contractID, voter string, stop <-chan struct{}) error {
	return voteLoop(ctx, svc, contractID, stop, func() string { return voter })
}

// SwarmVoter casts votes from fresh random addresses to build up a tally.
func SwarmVoter(ctx context.Context, svc *dispute.Service, contractID string, stop <-chan struct{}) error {
	return voteLoop(ctx, svc, contractID, stop, func() string {
		return fmt.Sprintf("0xjuror%058d", rand.Int63())
	})
}

func voteLoop(ctx context.Context, svc *dispute.Service, contractID string, stop <-chan struct{}, nextVoter func() string) error {
	choices := []dispute.Choice{dispute.ChoiceTenant, dispute.ChoiceLandlord}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		d, err := svc.GetByContract(ctx, contractID)
		if err != nil {
			// appeal not filed yet
			time.Sleep(50 * time.Millisecond)
			continue
		}

		voter := nextVoter()
		_, err = svc.CastVote(ctx, d.ID, dispute.CastVoteParams{
			Voter:       voter,
			Choice:      choices[rand.Intn(len(choices))],
			StakeAmount: contract.RequiredStake,
			Receipt:     dispute.StakeReceipt{TxRef: fmt.Sprintf("stake-%d", rand.Int63())},
		})
		switch {
		case err == nil:
		case errors.Is(err, dispute.ErrNotEligible):
			// duplicate voter, expected under contention
		case errors.Is(err, dispute.ErrDeadlinePassed):
		case errors.Is(err, context.Canceled):
			return nil
		default:
			// transport errors from chaos kills; oracles judge the state
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// EvidenceUploader appends evidence as a contract party.
func EvidenceUploader(ctx context.Context, svc *dispute.Service, contractID, party string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		d, err := svc.GetByContract(ctx, contractID)
		if err == nil {
			_, err = svc.SubmitEvidence(ctx, d.ID, dispute.SubmitEvidenceParams{
				Uploader: party,
				BlobID:   fmt.Sprintf("blob-%d", rand.Int63()),
				MimeType: "image/png",
				Caption:  "stress evidence",
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Resolver races other resolvers to close the dispute. Ties and lost races
// are expected.
func Resolver(ctx context.Context, svc *dispute.Service, contractID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		d, err := svc.GetByContract(ctx, contractID)
		if err == nil {
			_, err = svc.Resolve(ctx, d.ID)
			switch {
			case err == nil:
			case errors.Is(err, dispute.ErrTieUnresolved):
			case errors.Is(err, dispute.ErrAlreadyResolved):
			case errors.Is(err, contract.ErrInvalidTransition):
			case errors.Is(err, context.Canceled):
				return nil
			default:
			}
		}
		time.Sleep(2 * time.Second)
	}
}

// OutboxDrainer runs repeated drain passes against the outbox table.
func OutboxDrainer(ctx context.Context, worker *outbox.Worker, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		if err := worker.Drain(ctx); errors.Is(err, context.Canceled) {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
}
