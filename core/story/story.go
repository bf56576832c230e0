// Package story defines the shared data types for a collaborative writing
// session: the turn record appended once per contribution and the
// contributor descriptor that identifies which backend produces it.
package story

// Turn is a single completed contribution to a story. Index is the
// zero-based turn number, ContributorID identifies who wrote it, and Text
// is the cleaned text that was appended to the document.
type Turn struct {
	Index         int    `json:"turnIndex"`
	ContributorID string `json:"contributorId"`
	Text          string `json:"cleanedText"`
}

// Contributor identifies one backend in the rotation. The list of
// contributors is request-scoped configuration: it arrives on every advance
// request and is never persisted server-side, so the pool can be
// reconfigured mid-story.
//
// AdapterKind selects the generator implementation (e.g. "openai",
// "gemini"); Model is the backend model name passed through to it.
// CredentialRef is the opaque credential the adapter needs for the call.
type Contributor struct {
	ID            string `json:"contributorId"`
	DisplayName   string `json:"displayName"`
	AdapterKind   string `json:"adapterKind"`
	Model         string `json:"modelName"`
	CredentialRef string `json:"credentialRef,omitempty"`
}
