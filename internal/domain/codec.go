package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// rowHeader holds the columns every synchronized table carries next to the
// payload columns.
type rowHeader struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner_id"`
	Origin    string    `json:"origin"`
	IsDeleted bool      `json:"is_deleted"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalRow encodes a record as a flat row object: the payload columns plus
// id, owner_id, origin, is_deleted and updated_at. Sync status is local state
// and is not part of the row.
func MarshalRow(r Record) ([]byte, error) {
	row, err := RowValues(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(row)
}

// RowValues returns the row columns of r keyed by column name.
func RowValues(r Record) (map[string]any, error) {
	if r.Payload == nil {
		return nil, fmt.Errorf("record %s has no payload", r.ID)
	}
	body, err := json.Marshal(r.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", r.Kind(), err)
	}
	row := make(map[string]any)
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", r.Kind(), err)
	}
	row["id"] = r.ID
	row["owner_id"] = r.Owner
	row["origin"] = r.Origin
	row["is_deleted"] = r.IsDeleted
	row["updated_at"] = r.UpdatedAt.UTC()
	return row, nil
}

// UnmarshalRow decodes a row object of the given kind. The returned record is
// marked synced.
func UnmarshalRow(kind Kind, data []byte) (Record, error) {
	var h rowHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return Record{}, fmt.Errorf("decode %s row: %w", kind, err)
	}
	p, err := decodePayload(kind, data)
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:         h.ID,
		Owner:      h.Owner,
		Payload:    p,
		SyncStatus: StatusSynced,
		IsDeleted:  h.IsDeleted,
		Origin:     h.Origin,
		UpdatedAt:  h.UpdatedAt,
	}, nil
}

func decodePayload(kind Kind, data []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case KindBodyMetric:
		var v BodyMetric
		err = json.Unmarshal(data, &v)
		p = v
	case KindProfile:
		var v Profile
		err = json.Unmarshal(data, &v)
		p = v
	case KindDailyMetric:
		var v DailyMetric
		err = json.Unmarshal(data, &v)
		p = v
	case KindWeightLog:
		var v WeightLog
		err = json.Unmarshal(data, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}
