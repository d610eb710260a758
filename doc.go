// Package featgen generates the valid configurations of a feature model.
//
// A feature model is a tree of features with cardinalities, typed
// attributes and constraints between them. Given a task feature and a set
// of answers to its questionnaire, featgen turns the answers into extra
// constraints, asks a solver for every satisfying instance and names the
// distinct ones for presentation.
//
// The packages are layered:
//
//   - schema holds the in-memory feature model; compiler/load reads it from
//     YAML or JSON.
//   - querylanguage and compiler/directive build constraint expressions;
//     compiler applies answers to a model.
//   - solver defines the instance tree and the engine interface;
//     solver/enum is the built-in enumerating engine.
//   - instance drives generation and ranking; question reads
//     questionnaires and property constraints.
//   - catalog, storage, compiler/gen, httpserver and cmd/featgen are the
//     outer surface: model directories, run persistence, Go code emission,
//     the HTTP API and the command line.
//
// This package holds the shared error types and the response Cache.
package featgen
