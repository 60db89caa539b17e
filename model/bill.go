package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Bill represents one uploaded bill image moving through the pipeline
type Bill struct {
	ID        string      `json:"id"`
	Filename  string      `json:"filename"`
	BillType  string      `json:"bill_type,omitempty"`
	PartyName string      `json:"party_name,omitempty"`
	Status    string      `json:"status"`
	DriveLink string      `json:"drive_link,omitempty"`
	Record    *BillRecord `json:"record,omitempty"`
	ErrorMsg  string      `json:"error_msg,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Pipeline stage statuses. A bill only ever moves forward through these,
// or jumps to failed.
const (
	StatusReceived   = "received"
	StatusClassified = "classified"
	StatusFiled      = "filed"
	StatusArchived   = "archived"
	StatusExtracted  = "extracted"
	StatusRecorded   = "recorded"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Bill categories the classifier recognizes
const (
	LoadingBill   = "Loading Bill"
	UnloadingBill = "Unloading Bill"
)

// Classification is the two-field result of the first model call.
type Classification struct {
	BillType  string `json:"bill_type"`
	PartyName string `json:"party_name"`
}

// BillRecord is an open mapping of bill field names to values that preserves
// insertion order. Ledger columns are positional, so the order keys arrive in
// is part of the data. Missing fields carry the literal "N/A", not absence.
type BillRecord struct {
	keys   []string
	values map[string]string
}

func NewBillRecord() *BillRecord {
	return &BillRecord{values: make(map[string]string)}
}

// Set stores a value under key, keeping first-seen key order.
func (r *BillRecord) Set(key, value string) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get returns the value for key, or fallback if the key is absent.
func (r *BillRecord) Get(key, fallback string) string {
	if v, ok := r.values[key]; ok {
		return v
	}
	return fallback
}

// Keys returns the field names in insertion order.
func (r *BillRecord) Keys() []string {
	return r.keys
}

func (r *BillRecord) Len() int {
	return len(r.keys)
}

// MarshalJSON writes the record as a JSON object in key order.
func (r *BillRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
