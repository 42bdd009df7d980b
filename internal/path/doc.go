// Package path provides addressing for nodes in an arbor document tree.
//
// A Path is an ordered list of segments. Concrete paths name exactly one
// node; query paths may contain wildcards and resolve to many.
//
// # String Form
//
// Paths have a slash-delimited string form:
//
//	/              - the document root
//	/users/0/name  - key "users", index 0, key "name"
//	/users/*/name  - any single key at the second level
//	//             - every node at any depth, including the root
//
// Numeric keys are plain strings; a sequence accepts the canonical decimal
// form of an index ("0", "12") and nothing else.
//
// # Matching
//
// Suits compares two paths where either side may carry wildcards. It is
// used for both listener subscriptions and middleware path filters.
package path
