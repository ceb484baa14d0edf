// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a small interface so snapshot archives
// can be written to either AWS S3 or a self-hosted MinIO instance, and so the
// storage interactions are easy to mock in unit tests (see core/storage/mocks).
//
// # Operations
//
//   - BucketExists: Verifies access to the archive bucket.
//   - MakeBucket: Creates the archive bucket if needed.
//   - PutObject: Uploads a snapshot dump.
//   - GetObject: Retrieves a snapshot dump as a stream.
//   - ListObjects: Lists archived snapshots (supports prefix/recursive).
//   - RemoveObjects: Bulk-deletes snapshots that fell out of retention.
//
// # Usage
//
//	client, err := storage.NewClient(config)
//	exists, err := client.BucketExists(ctx, "snapshots")
package storage
