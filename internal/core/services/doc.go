// Package services implements the application's use cases: sync planning
// and orchestration, similarity search and grounded chat. Services depend
// only on domain types and ports.
package services
