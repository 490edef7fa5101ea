// Package dag is the "Graph Layer" of the application. It is responsible
// for taking the entities and references a loader produced, building a
// Directed Acyclic Graph (DAG) with labeled dependency edges, and ordering
// the nodes so that every entity comes after the entities it references.
//
// Nodes remember their declaration order and every traversal follows it, so
// sorting is deterministic: entities with no dependency relationship keep
// the relative order they were declared in.
package dag
