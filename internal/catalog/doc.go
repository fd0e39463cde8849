// Package catalog implements the content hierarchy and artifact retrieval.
//
// # Menu tree
//
// Menus form a forest: every menu has a nullable parent reference, with the
// root marker standing in for "top level". Tree validates structural
// mutations (non-empty names, existing parents) and delegates atomicity to
// the store: deleting a menu removes its direct artifacts in the same
// transaction and reparents orphaned child menus to the root level.
//
// # Access tokens
//
// Every stored artifact is assigned a random 128-bit access token. Tokens
// are the only artifact lookup path exposed to end users, so reorganizing
// menus never invalidates previously distributed retrieval links and the
// catalog cannot be enumerated by incrementing ids.
//
// # Error taxonomy
//
//   - ValidationError: malformed input, recoverable, caller re-prompts
//   - store.ErrNotFound: referenced entity is gone, caller aborts the workflow
package catalog
