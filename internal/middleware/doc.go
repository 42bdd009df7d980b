// Package middleware implements the interceptor chain that every store
// operation passes through.
//
// A Chain holds one ordered list of entries shared by all operation kinds.
// Each entry names the kinds it applies to and, optionally, a path filter
// compared against the operation path with path.Suits. Dispatch walks the
// list as a continuation chain: a matching handler receives the operation
// parameters and a Next function, and the walk continues only when the
// handler calls Next.
//
// # Order
//
// The default policy is OrderLIFO: the most recently registered entry runs
// first. The store registers its terminal handlers (the ones that actually
// mutate the tree) when the chain is built, so under LIFO they run last,
// after every user entry has called Next.
//
//	chain := middleware.NewChain()
//	chain.Use(middleware.AllKinds(), nil, terminal)     // runs last
//	chain.Use([]middleware.Kind{middleware.Update}, path.Parse("/users/*"), audit)
//
// # Failure
//
// A handler that panics is recovered and logged; the walk stops there and
// the operation is left unsettled. A handler that returns an error stops the
// walk and settles the operation with that error, unless the handler already
// settled it.
package middleware
