package feed

import (
	"log/slog"

	"fitsync/internal/domain"
)

// Handler receives normalized change events.
type Handler interface {
	OnInsert(kind domain.Kind, rec domain.Record)
	OnUpdate(kind domain.Kind, rec, old domain.Record)
	OnDelete(kind domain.Kind, rec domain.Record)
}

func (a *Adapter) dispatch(log *slog.Logger, n Notification) {
	kind, ok := domain.KindForTable(n.Table)
	if !ok {
		log.Debug("feed notification for unknown table", "table", n.Table)
		return
	}

	var rec, old domain.Record
	var err error
	if len(n.Record) > 0 {
		if rec, err = domain.UnmarshalRow(kind, n.Record); err != nil {
			log.Warn("feed notification dropped", "table", n.Table, "err", err)
			return
		}
	}
	if len(n.OldRecord) > 0 {
		if old, err = domain.UnmarshalRow(kind, n.OldRecord); err != nil {
			log.Warn("feed notification dropped", "table", n.Table, "err", err)
			return
		}
	}

	origin := n.Origin
	if origin == "" {
		origin = rec.Origin
	}
	if origin != "" && origin == a.session {
		log.Debug("feed echo skipped", "table", n.Table, "id", rec.ID)
		return
	}

	switch n.Event {
	case EventInsert:
		if rec.ID != "" {
			a.handler.OnInsert(kind, rec)
		}
	case EventUpdate:
		if rec.ID != "" {
			a.handler.OnUpdate(kind, rec, old)
		}
	case EventDelete:
		if rec.ID == "" {
			rec = old
		}
		if rec.ID != "" {
			a.handler.OnDelete(kind, rec)
		}
	default:
		log.Debug("feed notification with unknown event", "event", n.Event)
	}
}
