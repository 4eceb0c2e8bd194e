package relay

import (
	"sort"
	"sync"
	"time"

	"github.com/openclaw/status-relay/internal/signals"
)

// AccountStatus is the runtime snapshot for one account, readable at
// any time by status reporting.
type AccountStatus struct {
	AccountID      string     `json:"account_id"`
	Running        bool       `json:"running"`
	Connected      bool       `json:"connected"`
	PublicKey      string     `json:"public_key,omitempty"`
	LastStartAt    *time.Time `json:"last_start_at,omitempty"`
	LastStopAt     *time.Time `json:"last_stop_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
	LastInboundAt  *time.Time `json:"last_inbound_at,omitempty"`
	LastOutboundAt *time.Time `json:"last_outbound_at,omitempty"`
}

// Registry tracks runtime state and active signal connections for all
// accounts in the process.
type Registry struct {
	mu       sync.Mutex
	accounts map[string]*AccountStatus
	conns    map[string]*signals.Conn
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		accounts: make(map[string]*AccountStatus),
		conns:    make(map[string]*signals.Conn),
	}
}

func (r *Registry) update(accountID string, fn func(*AccountStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.accounts[accountID]
	if !ok {
		status = &AccountStatus{AccountID: accountID}
		r.accounts[accountID] = status
	}
	fn(status)
}

func (r *Registry) setConn(accountID string, conn *signals.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[accountID] = conn
}

func (r *Registry) clearConn(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, accountID)
}

// MarkInbound records that an inbound message was accepted.
func (r *Registry) MarkInbound(accountID string, at time.Time) {
	r.update(accountID, func(s *AccountStatus) { s.LastInboundAt = &at })
}

// MarkOutbound records that an outbound message was sent.
func (r *Registry) MarkOutbound(accountID string, at time.Time) {
	r.update(accountID, func(s *AccountStatus) { s.LastOutboundAt = &at })
}

// Snapshot returns the current status for one account. Connected
// reflects the live signal connection, not a stored flag.
func (r *Registry) Snapshot(accountID string) (AccountStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	status, ok := r.accounts[accountID]
	if !ok {
		return AccountStatus{AccountID: accountID}, false
	}
	out := *status
	if conn, ok := r.conns[accountID]; ok && conn != nil {
		out.Connected = conn.Connected()
	} else {
		out.Connected = false
	}
	return out, true
}

// Snapshots returns status for all known accounts, ordered by id.
func (r *Registry) Snapshots() []AccountStatus {
	r.mu.Lock()
	ids := make([]string, 0, len(r.accounts))
	for id := range r.accounts {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)

	out := make([]AccountStatus, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.Snapshot(id); ok {
			out = append(out, s)
		}
	}
	return out
}
