// Package domain defines the core types and the interfaces the application layer depends on.
//
// Files are organised by concept (item.go, reaction.go, sync.go, auth.go, events.go).
// No implementation code beyond small pure helpers on the types themselves.
package domain
