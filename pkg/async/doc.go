// Package async provides a panic-safe helper for fire-and-forget
// background work spawned from request handlers.
package async
