// Package testutil provides test utilities for dwhetl, including:
//   - an in-memory warehouse store and source reader (warehouse.go, source.go)
//   - miniredis helpers for unit tests (miniredis.go)
//   - PostgreSQL and Redis container helpers for integration tests (postgres.go, redis.go)
//
// Integration test utilities require Docker and are gated behind the "integration"
// build tag. To run integration tests:
//
//	go test -tags=integration ./...
//
// The in-memory doubles and miniredis helpers work with regular tests.
package testutil
