// Package bot holds the platform-neutral core of the archive bot: inbound
// events, the typed action union carried on buttons, and the dispatcher
// that routes browsing, gated retrieval, and admin workflows.
//
// The transport layer (cmd/archivist) translates platform messages into
// Events and renders Replies back out. Selection tokens cross the wire as
// <operation>_<suffix> strings and are decoded exactly once, at ParseAction;
// everything past the boundary works with typed Actions.
package bot
