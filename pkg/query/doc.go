/*
Package query is a pure-data query DSL, kept deliberately separate
from rendering.

A Query is a tree of Field leaves and And/Or/Not/Nor combinators. It
knows nothing about any particular Index backend:

  - Render() produces the Mongo-style filter document a native
    document store's query engine understands ($eq, $gt, $in,
    $exists, $type, $and, $or, $not, $nor).
  - Match() evaluates the same tree against an in-memory document,
    which is how an Index backend with no query engine of its own
    (BoltDB) answers Find without reimplementing the DSL twice.

# Design Patterns

And() flattens non-overlapping single-field children into one filter
document; it only falls back to an explicit $and node when two
children share a field name or a child isn't a plain field leaf. This
mirrors the overloaded-& combinator behavior in the system this DSL
was distilled from: "(k1 & k2)" merges keys when possible and only
nests when it must.
*/
package query
