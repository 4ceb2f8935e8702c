// Package document holds the ordered value model used for runner options and
// renders it as the TOML document consumed by gitlab-runner.
//
// Values form a recursive tagged union (string, integer, boolean, float,
// mapping, sequence). Mappings remember insertion order, and the encoder never
// sorts keys, so regenerating a document from the same input yields a
// byte-identical result.
//
// # Grammar
//
// Within a table, plain key/value pairs are written first and nested tables
// after them, because TOML cannot return to a parent table once a sub-table
// header has been written. Both groups keep the caller's order:
//
//	[[runners]]
//	name = "testrunner"
//	executor = "docker"
//	[runners.docker]
//	image = "ruby:2.6"
//
// Sequences of mappings become repeated array-of-tables headers. Scalar
// sequences are written inline as ["a", "b"].
package document
