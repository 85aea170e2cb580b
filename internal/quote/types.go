// Package quote talks to the procurement server's external-quote endpoints:
// listing pending supplier responses and asking the server to synchronize one.
package quote

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an opaque server-assigned identifier. The server emits ids either as
// JSON strings or numbers; both decode to their textual form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// PendingResponse is a supplier's answer to an external quote that the local
// store has not absorbed yet. Fields other than the three the poller reads are
// kept verbatim so the sync request carries the complete item.
type PendingResponse struct {
	SupplierName string
	SupplierID   ID
	QuoteID      ID
	Token        string

	raw json.RawMessage
}

type pendingWire struct {
	SupplierName string `json:"fornecedor_nome"`
	SupplierID   ID     `json:"fornecedor_id"`
	QuoteID      ID     `json:"cotacao_id"`
	Token        string `json:"token,omitempty"`
}

func (p *PendingResponse) UnmarshalJSON(b []byte) error {
	var w pendingWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	p.SupplierName = w.SupplierName
	p.SupplierID = w.SupplierID
	p.QuoteID = w.QuoteID
	p.Token = w.Token
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON returns the item exactly as received, or the known fields for
// items built in code.
func (p PendingResponse) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	return json.Marshal(pendingWire{
		SupplierName: p.SupplierName,
		SupplierID:   p.SupplierID,
		QuoteID:      p.QuoteID,
		Token:        p.Token,
	})
}

// DisplayName is the supplier name shown to users.
func (p PendingResponse) DisplayName() string {
	if p.SupplierName != "" {
		return p.SupplierName
	}
	if p.SupplierID != "" {
		return "Supplier " + p.SupplierID.String()
	}
	return "Supplier"
}

// BatchResponse is the body of the pending-responses endpoint.
type BatchResponse struct {
	Success   bool              `json:"success"`
	Responses []PendingResponse `json:"respostas"`
	Count     int               `json:"count,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// SyncResult is the body of the sync endpoint.
type SyncResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
