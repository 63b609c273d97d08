package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"fitsync/internal/domain"
)

const maxBackoff = time.Minute

// drain applies queued changes to the remote store in enqueue order. It
// returns false when another drain holds the in-process guard or the drain
// lock. The returned error joins the changes dropped during this pass.
func (m *SyncManager) drain(ctx context.Context, onStart func()) (bool, error) {
	if !m.processing.CompareAndSwap(false, true) {
		return false, nil
	}
	defer m.processing.Store(false)

	if m.opts.Lock != nil {
		ok, err := m.opts.Lock.TryLock()
		if err != nil {
			m.log.Warn("drain lock unavailable", "err", err)
			return false, fmt.Errorf("acquire drain lock: %w", err)
		}
		if !ok {
			m.log.Debug("drain lock held by another process")
			return false, nil
		}
		defer func() {
			if err := m.opts.Lock.Unlock(); err != nil {
				m.log.Warn("release drain lock", "err", err)
			}
		}()
	}
	if onStart != nil {
		onStart()
	}

	var dropped []error
	for _, queued := range m.queue.Snapshot() {
		if ctx.Err() != nil || !m.State().IsOnline {
			break
		}
		if err := m.deliver(ctx, queued.ID); err != nil {
			dropped = append(dropped, err)
		}
	}
	return true, errors.Join(dropped...)
}

// deliver retries one change until it succeeds or its attempts run out. Each
// attempt sends the change as currently queued, so a rebase made while it
// waits is honored. A change is left queued if the pass is cancelled or the
// network drops while it waits.
func (m *SyncManager) deliver(ctx context.Context, id string) error {
	change, ok := m.queue.Get(id)
	if !ok {
		return nil
	}
	log := m.log.With("change", id, "kind", change.Kind, "op", change.Op, "record", change.Record.ID)
	b := m.newBackoff(change.RetryCount)
	for {
		err := m.apply(ctx, change)
		if err == nil {
			if err := m.queue.RemoveByIDs(ctx, id); err != nil {
				log.Warn("remove delivered change", "err", err)
			}
			m.confirm(ctx, change)
			log.Debug("change delivered", "attempts", change.RetryCount+1)
			return nil
		}

		change.RetryCount++
		delay, _ := b.Next()
		log.Warn("change failed", "attempt", change.RetryCount, "retry_in", delay, "err", err)

		if change.RetryCount >= m.opts.MaxRetries {
			_ = m.opts.Sleep(ctx, delay)
			if rerr := m.queue.RemoveByIDs(ctx, id); rerr != nil {
				log.Warn("remove dropped change", "err", rerr)
			}
			log.Error("change dropped", "attempts", change.RetryCount, "err", err)
			return fmt.Errorf("dropped %s of %s %s after %d attempts: %w",
				change.Op, change.Kind, change.Record.ID, change.RetryCount, err)
		}
		if uerr := m.queue.SetRetryCount(ctx, id, change.RetryCount); uerr != nil {
			log.Warn("persist retry count", "err", uerr)
		}
		if m.opts.Sleep(ctx, delay) != nil || !m.State().IsOnline {
			return nil
		}

		attempts := change.RetryCount
		if change, ok = m.queue.Get(id); !ok {
			log.Debug("change left the queue while waiting")
			return nil
		}
		change.RetryCount = attempts
	}
}

// newBackoff returns the wait schedule for one change: BaseDelay, then
// doubling, capped at one minute. Attempts restored from the store are
// skipped so the schedule resumes where it stopped.
func (m *SyncManager) newBackoff(attempts int) retry.Backoff {
	b := retry.WithCappedDuration(maxBackoff, retry.NewExponential(m.opts.BaseDelay))
	for range attempts {
		b.Next()
	}
	return b
}

// apply performs one remote call under the per-call timeout.
func (m *SyncManager) apply(ctx context.Context, change domain.QueuedChange) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	rec := change.Record
	switch change.Op {
	case domain.OpInsert:
		err := m.remote.Insert(callCtx, rec)
		if errors.Is(err, domain.ErrConflict) {
			return m.remote.Upsert(callCtx, rec)
		}
		return err
	case domain.OpUpdate:
		err := m.remote.Update(callCtx, rec)
		if errors.Is(err, domain.ErrNotFound) {
			return m.remote.Upsert(callCtx, rec)
		}
		return err
	case domain.OpDelete:
		err := m.remote.Delete(callCtx, rec)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return fmt.Errorf("unknown operation %q", change.Op)
}

// confirm marks the cached record synced once no other queued change targets
// it. Confirmed deletes purge the tombstone.
func (m *SyncManager) confirm(ctx context.Context, change domain.QueuedChange) {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	key := change.Record.Key()
	if m.queue.Has(key) {
		return
	}
	if change.Op == domain.OpDelete {
		if err := m.cache.DeleteRecord(ctx, key.Kind, key.ID); err != nil {
			m.log.Warn("purge confirmed tombstone", "record", key.ID, "err", err)
		}
		return
	}
	cur, err := m.cache.GetRecord(ctx, key.Kind, key.ID)
	if err != nil {
		m.log.Warn("load confirmed record", "record", key.ID, "err", err)
		return
	}
	if cur == nil || !cur.Pending() {
		return
	}
	cur.SyncStatus = domain.StatusSynced
	if err := m.cache.SaveRecord(ctx, *cur); err != nil {
		m.log.Warn("mark record synced", "record", key.ID, "err", err)
	}
}
