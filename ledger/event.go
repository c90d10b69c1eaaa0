package ledger

import (
	"context"
	"time"

	"github.com/MixinNetwork/mixin/logger"
	"github.com/gofrs/uuid"
)

type Event struct {
	Id        string
	Reason    Reason
	Operation string
	Caller    string
	Owner     string
	Spender   string
	Detail    string
	CreatedAt time.Time
}

// JournalNotifier appends every event to the store journal. Write
// failures are logged and dropped, the notification is best-effort.
type JournalNotifier struct {
	store Store
}

func NewJournalNotifier(store Store) *JournalNotifier {
	return &JournalNotifier{store: store}
}

func (jn *JournalNotifier) Notify(ctx context.Context, ev *Event) {
	logger.Printf("ledger.%s(%s, %s, %s) => %s %s\n", ev.Operation, ev.Caller, ev.Owner, ev.Spender, ev.Reason, ev.Detail)
	err := jn.store.WriteEvent(ev)
	if err != nil {
		logger.Printf("JournalNotifier.WriteEvent(%s) => %v\n", ev.Id, err)
	}
}

// fail notifies and then builds the error that aborts the operation. The
// caller must not have committed anything yet.
func (l *Ledger) fail(ctx context.Context, op string, call *Call, p pair, reason Reason, detail string) error {
	ev := &Event{
		Id:        uuid.Must(uuid.NewV4()).String(),
		Reason:    reason,
		Operation: op,
		Caller:    call.Caller,
		Owner:     p.owner,
		Spender:   p.spender,
		Detail:    detail,
		CreatedAt: l.clock.Now(),
	}
	for _, n := range l.notifiers {
		n.Notify(ctx, ev)
	}
	return &Error{Reason: reason, Detail: detail}
}
