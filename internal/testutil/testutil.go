// Package testutil provides test helpers shared across packages. The Redis
// helpers run miniredis in-process and need no external services.
package testutil
