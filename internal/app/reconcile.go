package app

import (
	"context"
	"errors"
	"fmt"

	"fitsync/internal/domain"
)

// pushUnsynced sends pending cache records that have no queued change, which
// covers changes dropped after their last attempt.
func (m *SyncManager) pushUnsynced(ctx context.Context) error {
	unsynced, err := m.cache.UnsyncedRecords(ctx)
	if err != nil {
		return err
	}
	keys := m.queue.Keys()
	for _, rec := range unsynced {
		if _, queued := keys[rec.Key()]; queued {
			continue
		}
		if err := m.push(ctx, rec); err != nil {
			return fmt.Errorf("%s %s: %w", rec.Kind(), rec.ID, err)
		}
	}
	return nil
}

func (m *SyncManager) push(ctx context.Context, rec domain.Record) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	defer cancel()

	rec.Origin = m.opts.Session
	if rec.IsDeleted {
		if err := m.remote.Delete(callCtx, rec); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		m.reconcileMu.Lock()
		defer m.reconcileMu.Unlock()
		return m.cache.DeleteRecord(ctx, rec.Kind(), rec.ID)
	}
	if err := m.remote.Upsert(callCtx, rec); err != nil {
		return err
	}
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()
	if m.queue.Has(rec.Key()) {
		return nil
	}
	rec.SyncStatus = domain.StatusSynced
	return m.cache.SaveRecord(ctx, rec)
}

// pull writes the owner's remote records into the cache and purges synced
// cache records the remote store no longer has.
func (m *SyncManager) pull(ctx context.Context) error {
	owner := m.Owner()
	if owner == "" {
		return nil
	}
	for _, kind := range domain.Kinds() {
		if err := m.pullKind(ctx, kind, owner); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
	}
	return nil
}

func (m *SyncManager) pullKind(ctx context.Context, kind domain.Kind, owner string) error {
	callCtx, cancel := context.WithTimeout(ctx, m.opts.CallTimeout)
	remote, err := m.remote.Select(callCtx, kind, owner)
	cancel()
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(remote))
	for _, rec := range remote {
		seen[rec.ID] = struct{}{}
		if err := m.applyRemote(ctx, rec); err != nil {
			return err
		}
	}

	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()
	local, err := m.cache.ListRecords(ctx, kind, owner)
	if err != nil {
		return err
	}
	for _, rec := range local {
		if _, ok := seen[rec.ID]; ok || rec.Pending() || m.queue.Has(rec.Key()) {
			continue
		}
		if err := m.cache.DeleteRecord(ctx, kind, rec.ID); err != nil {
			return err
		}
	}
	return nil
}

// applyRemote writes a confirmed remote record into the cache. A record with
// local changes in flight goes through the resolver once; the merged result
// is cached as synced and queued writes for it are rebased onto it.
func (m *SyncManager) applyRemote(ctx context.Context, rec domain.Record) error {
	m.reconcileMu.Lock()
	defer m.reconcileMu.Unlock()

	kind := rec.Kind()
	local, err := m.cache.GetRecord(ctx, kind, rec.ID)
	if err != nil {
		return err
	}
	if local != nil && (local.Pending() || m.queue.Has(local.Key())) {
		if rec.IsDeleted {
			m.log.Info("remote delete kept behind local edit", "kind", kind, "record", rec.ID)
			return nil
		}
		merged := m.resolve(*local, rec)
		merged.SyncStatus = domain.StatusSynced
		if merged.IsDeleted && !m.queue.Has(merged.Key()) {
			return m.cache.DeleteRecord(ctx, kind, rec.ID)
		}
		if err := m.cache.SaveRecord(ctx, merged); err != nil {
			return err
		}
		if n, err := m.queue.Rebase(ctx, merged); err != nil {
			m.log.Warn("rebase queued changes", "record", rec.ID, "err", err)
		} else if n > 0 {
			m.log.Debug("queued changes rebased", "record", rec.ID, "changes", n)
		}
		return nil
	}

	if rec.IsDeleted {
		return m.cache.DeleteRecord(ctx, kind, rec.ID)
	}
	rec.SyncStatus = domain.StatusSynced
	return m.cache.SaveRecord(ctx, rec)
}

// resolve calls the resolver and falls back to the remote record if it
// panics.
func (m *SyncManager) resolve(local, remote domain.Record) (merged domain.Record) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("conflict resolver failed, keeping remote", "record", remote.ID, "panic", r)
			merged = remote
		}
	}()
	merged = m.opts.Resolver.Resolve(local, remote)
	m.log.Info("conflict resolved", "kind", remote.Kind(), "record", remote.ID)
	return merged
}

// OnInsert handles a feed insert.
func (m *SyncManager) OnInsert(_ domain.Kind, rec domain.Record) {
	m.handleRemote(rec)
}

// OnUpdate handles a feed update. Rows flagged deleted are treated as deletes.
func (m *SyncManager) OnUpdate(_ domain.Kind, rec, _ domain.Record) {
	m.handleRemote(rec)
}

// OnDelete handles a feed delete.
func (m *SyncManager) OnDelete(_ domain.Kind, rec domain.Record) {
	rec.IsDeleted = true
	m.handleRemote(rec)
}

func (m *SyncManager) handleRemote(rec domain.Record) {
	if owner := m.Owner(); owner == "" || rec.Owner != owner {
		return
	}
	if err := m.applyRemote(m.ctx, rec); err != nil {
		m.log.Warn("apply feed change", "kind", rec.Kind(), "record", rec.ID, "err", err)
	}
	m.refreshPending(m.ctx)
}
