// Package remote defines the "fetch by identifier" capability that the cache
// builds on. A Backend opens a remote object given its container (bucket,
// host) and key; a Registry maps identifier schemes such as "s3" or "https"
// to the Backend that serves them. Concrete stores live in sub-packages and
// are registered explicitly by the binary at startup:
//
//   - s3store: Amazon S3 and S3-compatible endpoints (MinIO, localstack).
//   - httpstore: plain HTTP/HTTPS origins.
package remote
