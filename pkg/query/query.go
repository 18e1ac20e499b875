// Package query implements FileDB's query DSL: a pure data tree built
// by combinators (equality, ordering, membership, existence, type
// test, and logical AND/OR/NOT/NOR) that the Index adapter renders
// into its native filter language.
//
// The DSL mirrors the predicate set a document store like MongoDB
// exposes natively ($eq, $gt, $in, $exists, $type, $and, $or, $not,
// $nor), so the Mongo-backed Index can render a Query almost verbatim,
// while an embedded Index without a query engine (BoltDB) evaluates
// the same tree in-process against each candidate document.
package query

import "go.mongodb.org/mongo-driver/bson"

// Predicate is a single field-level comparison, rendered to its
// Mongo-style operator document by Render.
type Predicate struct {
	op    string
	value any
}

func (p Predicate) Render() bson.M {
	return bson.M{p.op: p.value}
}

func Equal(v any) Predicate          { return Predicate{"$eq", v} }
func NotEqual(v any) Predicate       { return Predicate{"$ne", v} }
func GreaterThan(v any) Predicate    { return Predicate{"$gt", v} }
func GreaterOrEqual(v any) Predicate { return Predicate{"$gte", v} }
func LessThan(v any) Predicate       { return Predicate{"$lt", v} }
func LessOrEqual(v any) Predicate    { return Predicate{"$lte", v} }
func In(values ...any) Predicate     { return Predicate{"$in", values} }
func NotIn(values ...any) Predicate  { return Predicate{"$nin", values} }
func Exists(yes bool) Predicate      { return Predicate{"$exists", yes} }
func HasType(bsonType string) Predicate {
	return Predicate{"$type", bsonType}
}

// Node is a node of the pure-data query tree: either a leaf field
// filter or a logical combinator over child nodes.
type Node interface {
	// Render produces the Mongo-native filter document for this node.
	Render() bson.M
	// Match evaluates the predicate tree against an in-memory document,
	// used by Index adapters (e.g. BoltDB) with no native query engine.
	Match(doc map[string]any) bool
}

// Field builds a single-field leaf node: field matches predicate.
type Field struct {
	Name      string
	Predicate Predicate
}

func (f Field) Render() bson.M {
	return bson.M{f.Name: f.Predicate.Render()}
}

func (f Field) Match(doc map[string]any) bool {
	v, present := doc[f.Name]
	switch f.Predicate.op {
	case "$eq":
		return present && looseEqual(v, f.Predicate.value)
	case "$ne":
		return !present || !looseEqual(v, f.Predicate.value)
	case "$exists":
		want, _ := f.Predicate.value.(bool)
		return present == want
	case "$in":
		if !present {
			return false
		}
		for _, cand := range f.Predicate.value.([]any) {
			if looseEqual(v, cand) {
				return true
			}
		}
		return false
	case "$nin":
		if !present {
			return true
		}
		for _, cand := range f.Predicate.value.([]any) {
			if looseEqual(v, cand) {
				return false
			}
		}
		return true
	case "$gt", "$gte", "$lt", "$lte":
		if !present {
			return false
		}
		return compare(v, f.Predicate.value, f.Predicate.op)
	case "$type":
		return present && bsonTypeOf(v) == f.Predicate.value
	default:
		return false
	}
}

// And conjoins nodes. Two leaf nodes on distinct fields merge into a
// single flat filter document for rendering purposes; overlapping
// fields (or non-leaf children) produce an explicit $and node, mirroring
// the original DSL's rule that "duplicate keys produce an explicit
// conjunction node".
func And(nodes ...Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return andNode{children: nodes}
}

type andNode struct{ children []Node }

func (a andNode) Render() bson.M {
	fields := bson.M{}
	explicit := make([]bson.M, 0)
	flat := true

	for _, child := range a.children {
		leaf, ok := child.(Field)
		if !ok {
			flat = false
			break
		}
		if _, dup := fields[leaf.Name]; dup {
			flat = false
			break
		}
		fields[leaf.Name] = leaf.Predicate.Render()
	}

	if flat {
		return fields
	}

	for _, child := range a.children {
		explicit = append(explicit, child.Render())
	}
	return bson.M{"$and": explicit}
}

func (a andNode) Match(doc map[string]any) bool {
	for _, child := range a.children {
		if !child.Match(doc) {
			return false
		}
	}
	return true
}

// Or disjoins nodes, rendered as $or.
func Or(nodes ...Node) Node { return orNode{children: nodes} }

type orNode struct{ children []Node }

func (o orNode) Render() bson.M {
	clauses := make([]bson.M, 0, len(o.children))
	for _, child := range o.children {
		clauses = append(clauses, child.Render())
	}
	return bson.M{"$or": clauses}
}

func (o orNode) Match(doc map[string]any) bool {
	for _, child := range o.children {
		if child.Match(doc) {
			return true
		}
	}
	return false
}

// Not negates a node, rendered as $not wrapping the field's predicate.
// Not only accepts a Field node, matching the Mongo operator's shape.
func Not(node Field) Node { return notNode{field: node} }

type notNode struct{ field Field }

func (n notNode) Render() bson.M {
	return bson.M{n.field.Name: bson.M{"$not": n.field.Predicate.Render()}}
}

func (n notNode) Match(doc map[string]any) bool {
	return !n.field.Match(doc)
}

// Nor rejects documents matching any of the given nodes.
func Nor(nodes ...Node) Node { return norNode{children: nodes} }

type norNode struct{ children []Node }

func (n norNode) Render() bson.M {
	clauses := make([]bson.M, 0, len(n.children))
	for _, child := range n.children {
		clauses = append(clauses, child.Render())
	}
	return bson.M{"$nor": clauses}
}

func (n norNode) Match(doc map[string]any) bool {
	for _, child := range n.children {
		if child.Match(doc) {
			return false
		}
	}
	return true
}

// Query is the root of a predicate tree. An empty Query matches every
// document, mirroring find({}) in the end-to-end scenarios.
type Query struct {
	root Node
}

// New builds a Query from field filters, conjoined with And.
func New(fields ...Field) Query {
	nodes := make([]Node, len(fields))
	for i, f := range fields {
		nodes[i] = f
	}
	if len(nodes) == 0 {
		return Query{root: emptyNode{}}
	}
	return Query{root: And(nodes...)}
}

// Wrap builds a Query from an arbitrary combinator tree.
func Wrap(n Node) Query { return Query{root: n} }

func (q Query) Render() bson.M {
	if q.root == nil {
		return bson.M{}
	}
	return q.root.Render()
}

func (q Query) Match(doc map[string]any) bool {
	if q.root == nil {
		return true
	}
	return q.root.Match(doc)
}

type emptyNode struct{}

func (emptyNode) Render() bson.M               { return bson.M{} }
func (emptyNode) Match(doc map[string]any) bool { return true }
