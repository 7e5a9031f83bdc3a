package ir

// StateRecord is the persisted snapshot of one applied node. It is owned by
// the state store and written only after a provider operation succeeded.
type StateRecord struct {
	NodeID   string `json:"nodeId"`
	Type     string `json:"type"`
	Provider string `json:"provider"`

	// ProviderID is the identifier assigned by the provider on create.
	ProviderID string `json:"providerId"`

	// Inputs is the property bag that was applied, references resolved.
	Inputs map[string]any `json:"inputs"`

	// InputsHash is the content hash of Inputs at apply time.
	InputsHash string `json:"inputsHash"`

	// Outputs is the attribute bag returned by the provider.
	Outputs map[string]any `json:"outputs"`

	// Dependencies records the node ids this node referenced when applied,
	// so deletions can be ordered after the document no longer declares it.
	Dependencies []string `json:"dependencies,omitempty"`

	AppliedAt string `json:"appliedAt,omitempty"`
}

// Meta is the per-workspace state metadata.
type Meta struct {
	Version int            `json:"version"`
	Serial  int            `json:"serial"`
	Lineage string         `json:"lineage"`
	Outputs map[string]any `json:"outputs,omitempty"`
}
