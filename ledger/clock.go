package ledger

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/MixinNetwork/mixin/logger"
)

const (
	clockLeaseKey = "LEDGER:CLOCK:LEASE"
	clockLease    = time.Minute
)

// Clock issues strictly increasing timestamps, they order the records in
// the store. Only a lease ceiling is persisted: every issued stamp is
// below it, and a restarted clock resumes from it.
type Clock struct {
	mutex   sync.Mutex
	store   Store
	last    time.Time
	ceiling time.Time
}

func NewClock(store Store) (*Clock, error) {
	val, err := store.ReadProperty([]byte(clockLeaseKey))
	if err != nil {
		return nil, err
	}
	c := &Clock{store: store}
	if len(val) == 8 {
		c.ceiling = time.Unix(0, int64(binary.BigEndian.Uint64(val)))
		c.last = c.ceiling
	}
	return c, nil
}

func (c *Clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	next := time.Now().Round(0)
	if !next.After(c.last) {
		next = c.last.Add(time.Nanosecond)
	}
	if !next.Before(c.ceiling) {
		c.extend(next.Add(clockLease))
	}
	c.last = next
	return next
}

// extend blocks until the new ceiling is stored, a stamp must never be
// issued past a ceiling that a restart could not see.
func (c *Clock) extend(ceiling time.Time) {
	val := binary.BigEndian.AppendUint64(nil, uint64(ceiling.UnixNano()))
	for {
		err := c.store.WriteProperty([]byte(clockLeaseKey), val)
		if err == nil {
			break
		}
		logger.Printf("Clock.extend(%s) => %v\n", ceiling, err)
		time.Sleep(100 * time.Millisecond)
	}
	c.ceiling = ceiling
}
