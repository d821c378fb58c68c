package xid

import "github.com/google/uuid"

// New returns a prefixed identifier, e.g. "ord-0f7c9d4e-...".
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
