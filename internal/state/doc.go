// Package state provides filesystem-backed storage implementations.
package state

import "github.com/user/blurt/internal/types"

// Compile-time interface compliance checks.
var _ types.DocStore = (*FileStore)(nil)
var _ types.SessionStore = (*SessionStore)(nil)
var _ types.Journal = (*Journal)(nil)
