package catalog

// AuthDialogRequest asks the privileged context to open the authorization
// dialog and await its outcome.
type AuthDialogRequest struct {
	Provider    string `json:"provider"`
	AccountHint string `json:"accountHint,omitempty"`
}

// AuthDialogResult is the discriminated outcome of the authorization dialog.
type AuthDialogResult struct {
	Granted       bool   `json:"granted"`
	Account       string `json:"account,omitempty"`
	IdentityToken string `json:"identityToken,omitempty"`
	// Reason is a human-readable denial/error reason when Granted is false.
	Reason string `json:"reason,omitempty"`
}

// CredentialGetRequest reads an in-memory credential value.
type CredentialGetRequest struct {
	AccountID string `json:"accountId"`
	Key       string `json:"key"`
}

// CredentialGetResult returns the value, if present and unexpired.
type CredentialGetResult struct {
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// CredentialSetRequest stores an in-memory credential value with an optional
// expiry in seconds (zero means no expiry).
type CredentialSetRequest struct {
	AccountID    string `json:"accountId"`
	Key          string `json:"key"`
	Value        string `json:"value"`
	ExpiresInSec int    `json:"expiresInSec,omitempty"`
}

// ChunkRequest streams one binary chunk of a large attachment through the
// privileged context's network access. The chunk bytes come back via the
// binary-indirection path.
type ChunkRequest struct {
	AccountID  string `json:"accountId"`
	ResourceID string `json:"resourceId"`
	ChunkID    string `json:"chunkId"`
}
