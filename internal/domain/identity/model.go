package identity

import "time"

// Identity is the authenticated user's client-visible profile, including
// the generation-service secret key. An empty SecretKey means no key is
// provisioned; that empty-string sentinel is used uniformly in storage,
// on the wire, and in gating checks.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	SecretKey string `json:"secret_key,omitempty"`
}

// HasSecretKey reports whether a generation-service key is provisioned.
func (i Identity) HasSecretKey() bool {
	return i.SecretKey != ""
}

// Session is an authenticated backend session: the bearer token plus the
// identity it resolves to.
type Session struct {
	Token    string   `json:"token"`
	Identity Identity `json:"identity"`
}

// EventKind classifies a session store change.
type EventKind string

const (
	EventSignedIn   EventKind = "signed_in"
	EventSignedOut  EventKind = "signed_out"
	EventKeyChanged EventKind = "key_changed"
)

// Event describes a change to the current identity.
type Event struct {
	Kind     EventKind
	Identity Identity
	At       time.Time
}
