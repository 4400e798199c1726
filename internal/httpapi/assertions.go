package httpapi

import "github.com/finbook/finbook/internal/storage/memory"

// Compile-time interface assertion for the in-memory Store.
var _ Storage = (*memory.Store)(nil)
