package model

import "time"

// AgentHeartbeat is last-seen telemetry from a payment-terminal agent. It is
// read-only data for the admin surface and never gates the intent state
// machine; an agent that stops heartbeating can still claim and resolve
// intents if it comes back.
type AgentHeartbeat struct {
    RegisterID   string    `json:"register_id"`
    AgentName    string    `json:"agent_name"`
    Connectivity string    `json:"connectivity"`
    LastSeen     time.Time `json:"last_seen"`
}

// Online reports whether the heartbeat falls inside the freshness window.
func (h AgentHeartbeat) Online(now time.Time, fresh time.Duration) bool {
    return now.Sub(h.LastSeen) <= fresh
}
