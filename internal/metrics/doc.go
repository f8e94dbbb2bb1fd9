// Package metrics exports crawl progress and provider health as
// Prometheus metrics, served on --metrics-addr.
package metrics
