package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/fox-one/mixin-sdk-go"
	"github.com/holiman/uint256"
)

const (
	TransferStateInitial = 10
	TransferStateDone    = 11

	transferRetryBase = 2 * time.Second
	transferRetryMax  = 10 * time.Minute
)

// Transfer is an outbound native currency payment produced by a claim. It
// is written together with the allowance decrement and delivered later by
// Run, so a claim never waits on the payment network.
type Transfer struct {
	TraceId   string
	State     int
	AssetId   string
	Owner     string
	Receiver  string
	Amount    *uint256.Int
	Memo      string
	Attempts  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// the trace id is derived from the pair and the claim time so that a
// replayed delivery never pays twice
func (l *Ledger) buildTransfer(p pair, amount *uint256.Int, now time.Time) (*Transfer, error) {
	if !validActor(p.spender) {
		return nil, fmt.Errorf("invalid receiver %s", p.spender)
	}
	if amount.IsZero() || amount.BitLen() > NativeBits {
		return nil, fmt.Errorf("invalid amount %s", amount.Dec())
	}
	if l.sender == nil {
		return nil, fmt.Errorf("no native sender")
	}
	traceId := mixin.UniqueConversationID(p.String(), fmt.Sprint(now.UnixNano()))
	return &Transfer{
		TraceId:   traceId,
		State:     TransferStateInitial,
		AssetId:   l.nativeAssetId,
		Owner:     p.owner,
		Receiver:  p.spender,
		Amount:    amount.Clone(),
		Memo:      "CLAIM#" + p.owner,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Run delivers the pending transfers until ctx is done.
func (l *Ledger) Run(ctx context.Context) error {
	if l.sender == nil {
		return fmt.Errorf("no native sender")
	}
	for {
		err := l.publishTransfers(ctx, 16)
		if err != nil {
			logger.Printf("ledger.publishTransfers() => %v\n", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}

// publishTransfers walks the Initial queue, ordered by UpdatedAt. A failed
// delivery is pushed back behind the others with an exponential delay, so
// one rejected receiver never holds up the rest of the queue.
func (l *Ledger) publishTransfers(ctx context.Context, limit int) error {
	txs, err := l.store.ListTransfers(TransferStateInitial, limit)
	if err != nil || len(txs) == 0 {
		return err
	}
	now := l.clock.Now()
	for _, tx := range txs {
		if tx.UpdatedAt.After(now) {
			break
		}
		err = l.sender.Send(ctx, tx)
		if err != nil {
			tx.Attempts += 1
			tx.UpdatedAt = l.clock.Now().Add(transferRetryDelay(tx.Attempts))
			logger.Printf("ledger.publishTransfers(%s, %s, %d) => %v\n", tx.TraceId, tx.Receiver, tx.Attempts, err)
		} else {
			tx.State = TransferStateDone
			tx.UpdatedAt = l.clock.Now()
			logger.Verbosef("ledger.publishTransfers(%s, %s, %s)\n", tx.TraceId, tx.Receiver, tx.Amount.Dec())
		}
		err = l.store.WriteTransfer(tx)
		if err != nil {
			return err
		}
	}
	return nil
}

func transferRetryDelay(attempts int) time.Duration {
	delay := transferRetryBase
	for i := 1; i < attempts && delay < transferRetryMax; i++ {
		delay *= 2
	}
	return min(delay, transferRetryMax)
}
