// Package source provides the catalog sources wired behind the repositories:
// the remote HTTP API as primary, a bundle of JSON files as fallback, and
// Func for tests.
package source
