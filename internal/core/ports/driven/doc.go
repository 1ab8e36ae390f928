// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports): persistence, inference backends, the remote
// repository source and the answer-generation client.
package driven
