package ledger

import (
	"context"
	"fmt"
)

type pair struct {
	owner   string
	spender string
}

// String is unambiguous for any owner and spender, it seeds trace ids.
func (p pair) String() string {
	return fmt.Sprintf("%d:%s:%s", len(p.owner), p.owner, p.spender)
}

// checkPending rejects an operation on a pair while another operation on
// the same pair is suspended on the gateway. The mutex must be held.
func (l *Ledger) checkPending(ctx context.Context, op string, call *Call, p pair) error {
	holder, ok := l.pending[p]
	if !ok {
		return nil
	}
	return l.fail(ctx, op, call, p, OperationPending, holder)
}

// markPending must be called with the mutex held, right before the mutex
// is released for a gateway call. A reply that never arrives keeps the
// marker forever.
func (l *Ledger) markPending(p pair, op string) {
	if _, ok := l.pending[p]; ok {
		panic(p.String())
	}
	l.pending[p] = op
}

func (l *Ledger) releasePending(p pair) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	delete(l.pending, p)
}
