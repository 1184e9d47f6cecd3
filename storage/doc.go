// Package storage provides the session tier: a small key-value store holding
// the last search term of a tab session.
//
// Three backends implement [Store]:
//
//   - [Memory]: process-local map, the default.
//   - [Badger]: embedded badger database, in memory or on disk.
//   - [Redis]: shared redis instance with optional expiry, for server side
//     sessions.
//
// [Scoped] prefixes keys with a session id so one backend can serve many tab
// sessions without them observing each other's terms.
//
// Keys are scoped to a deployment by [SearchValueKey].
package storage
