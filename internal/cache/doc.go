// Package cache turns remote object identifiers into local file paths.
// The Fetcher materializes a remote object as a uniquely named file in the
// staging directory; the Resolver consults the metadata table first and only
// fetches on a miss, recording the new mapping afterwards. The lookup and the
// record happen in two separate metadata scopes so a slow download never holds
// the metadata lock. Two concurrent misses on the same identifier may
// therefore both download; CoalesceMisses collapses them inside one process.
package cache
