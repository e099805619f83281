// Package memory provides in-process implementations of the repositories and
// the risk cache. The server uses them when DATABASE_URL or REDIS_HOST is
// unset, and tests use them everywhere.
//
// Every store is safe for concurrent use and hands out copies, so callers
// can never mutate stored state in place.
package memory
