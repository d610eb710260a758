// Package schema provides the feature model that instance generation works on.
//
// A feature model is a tree of named nodes hanging off a synthetic root.
// Top-level nodes are either abstract types or concrete features; concrete
// nodes may extend an abstract type and inherit its children, and any node may
// hold a reference to a primitive (int, string, bool) or to another node type.
// Constraints attach to the node that owns them and are evaluated once per
// instance of that node (or of any of its subtypes).
//
// # Building a model
//
//	m := schema.NewModel()
//	alg := m.Abstract("c0_Algorithm")
//	alg.AddChild("c0_name").RefPrimitive(schema.String)
//
//	digest := m.Abstract("c0_Digest").Extends(alg)
//	digest.AddChild("c0_outputSize").RefPrimitive(schema.Int)
//
//	algs := m.Concrete("c0_DigestAlgorithms")
//	algs.AddChild("c0_sha_256").Extends(digest)
//
//	task := m.Concrete("c0_PasswordBasedEncryption")
//	task.AddChild("c0_digest").RefTo(digest)
//
// # Lookup
//
// [FindByName] resolves a name relative to a starting node. The search
// follows children, super types, subtypes and reference targets, so
// attributes inherited through an abstract type, and the concrete
// implementations of a referenced type, are found from the node that uses
// them. A name matching two distinct nodes is
// ambiguous and reported as such.
package schema
