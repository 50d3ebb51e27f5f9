// Package dossier provides a headless content repository engine with schema
// driven validation, entity version history, publishing workflow and lazy
// payload migration.
//
// It exposes a single Service interface that orchestrates entity mutations
// (create, update draft, publish, unpublish, archive), version resolution for
// reads, cursor-based listing, and schema specification evolution. Database
// backends (Postgres, SQLite) are provided under the adapter subpackages.
//
// Versioning Model
//
// Every field-changing mutation appends an immutable entity version; rows in
// the entities table only carry pointers (draft version, published version)
// into that history. Stored payloads are tagged with the schema version they
// were written under and are upgraded in memory at read time, never rewritten
// in place.
//
// Authorization Partitions
//
// Each entity carries an authKey naming its access partition. Callers present
// authorization keys which an AuthResolver maps to stored values; the empty
// key is the public default partition and always accessible.
package dossier
