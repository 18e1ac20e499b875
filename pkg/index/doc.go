/*
Package index implements FileDB's metadata store: the mapping from a
user's structured key to the storage-path a Storage adapter resolves
into bytes.

Every implementation keeps two logical tables:

  - a key-id table: canonical key bytes -> a permanent, opaque key-id,
    unique on the canonical bytes;
  - one data table per storage name: key-id -> (user key fields,
    storage-path).

BoltIndex embeds both tables in a single BoltDB file via
go.etcd.io/bbolt, suitable for a single-host deployment with no
document-store server of its own; its Find evaluates the query
package's Node.Match against each candidate record, since BoltDB has no
query language of its own. MongoIndex instead stores each table as a
MongoDB collection via go.mongodb.org/mongo-driver, relies on a unique
index on canonical_key to arbitrate the key-id minting race between two
concurrent writers, and renders queries with Node.Render directly into
Mongo's native filter language.

Deleting a record only ever removes it from the per-storage data
table; the key-id binding is permanent once minted.
*/
package index
