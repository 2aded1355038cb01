/*
Package schema is the reflective type system. Type definitions are encoded
as CBOR payloads and stored as ordinary objects whose TypeID is the reserved
meta-type, so tools can iterate types exactly the way they iterate data.

A later definition version can name the definition it supersedes; the
registry then records the relationship as edges between the two definition
objects: a "supersedes" edge, plus a "migration_hook" edge carrying the
hook string when one is given. ListSupersedesChain walks those edges
backward to reconstruct the version history.

The package also carries the operation model: OperationRegistry lists
class- and object-scoped operations across an externally supplied
inheritance relation, and DispatchEngine resolves overloaded calls by
ranking candidates on (type penalty, optional penalty, depth).

Bootstrap registers the built-in definitions under ObjectIDs derived
deterministically from their TypeIDs, which keeps replayed bootstraps
idempotent across stores and implementations.
*/
package schema
