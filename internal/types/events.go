package types

import "encoding/json"

// Property names a mutable piece of session identity.
type Property string

const (
	PropPath Property = "path"
	PropName Property = "name"
	PropType Property = "type"
)

// PropertyChange reports a rename of part of the session identity.
type PropertyChange struct {
	Property Property `json:"property"`
	Value    string   `json:"value"`
}

// KernelChange reports the kernel behind the connection being replaced.
// Old is nil when the previous connection was already fully detached.
type KernelChange struct {
	Old *KernelInfo `json:"old"`
	New *KernelInfo `json:"new"`
}

// Message is a kernel protocol message relayed from the gateway.
type Message struct {
	Channel string          `json:"channel"`
	Type    string          `json:"msg_type"`
	Content json.RawMessage `json:"content"`
}

// EventKind discriminates connection events.
type EventKind int

const (
	EventDisposed EventKind = iota
	EventProperty
	EventKernel
	EventStatus
	EventConnectionStatus
	EventIOPub
	EventUnhandled
)

// ConnectionEvent is a single notification from a live connection.
// Exactly one payload field is meaningful for a given Kind.
type ConnectionEvent struct {
	Kind             EventKind
	Property         PropertyChange
	Kernel           KernelChange
	Status           KernelStatus
	ConnectionStatus ConnectionStatus
	Message          Message
}

// SelectionEntry is one choice in a kernel selection list. A nil Identity
// is the explicit "no kernel" choice.
type SelectionEntry struct {
	Label    string          `json:"label"`
	Identity *KernelIdentity `json:"identity"`
	Disabled bool            `json:"disabled,omitempty"`
	Selected bool            `json:"selected,omitempty"`
}

// SelectionGroup is an ordered group of selection entries.
type SelectionGroup struct {
	Title   string           `json:"title,omitempty"`
	Entries []SelectionEntry `json:"entries"`
}

// SelectionList is the ranked, grouped set of kernel choices handed to an
// interactive collaborator for rendering.
type SelectionList struct {
	Groups []SelectionGroup `json:"groups"`
}

// Entries returns the list flattened in rank order.
func (l SelectionList) Entries() []SelectionEntry {
	var out []SelectionEntry
	for _, g := range l.Groups {
		out = append(out, g.Entries...)
	}
	return out
}

// SelectionResult is the outcome of an interactive kernel selection.
type SelectionResult struct {
	Accepted bool            `json:"accepted"`
	Identity *KernelIdentity `json:"identity"`
}
