// Package transport builds the HTTP clients that provider adapters use.
//
// Provider traffic goes out directly, through an HTTP or SOCKS5 proxy
// (--proxy), or through an embedded Tor daemon started with tornago (--tor).
// Some passive DNS providers log the source address of every query, so
// routing through Tor keeps the investigator's address out of their logs.
//
// Every client carries a default User-Agent so providers can identify the
// tool even when an adapter sets no header of its own.
package transport
