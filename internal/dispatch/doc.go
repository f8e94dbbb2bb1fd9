// Package dispatch fans a single query out to every configured passive DNS
// provider concurrently and merges their answers.
//
// The fan-out is a join barrier: Query returns once every provider has
// answered, failed or hit its own timeout. Provider failures are isolated.
// They are logged at debug level and the provider contributes no records,
// while the others are neither cancelled nor delayed.
//
// Only records of type A, AAAA, NS, CNAME and PTR are kept, and each
// provider's contribution is capped at the requested limit.
package dispatch
