package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/simrailtools/backend-sub003/core/storage"
	"github.com/simrailtools/backend-sub003/feature/livecache"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

const latestObjectName = "latest.json"

// dump is the serialized form of one cache snapshot.
type dump struct {
	TakenAt       time.Time                 `json:"taken_at"`
	Servers       []models.ServerView       `json:"servers"`
	Journeys      []models.JourneyView      `json:"journeys"`
	DispatchPosts []models.DispatchPostView `json:"dispatch_posts"`
}

// Exporter writes cache dumps to object storage.
type Exporter struct {
	client storage.Client
	cache  *livecache.Cache
	cfg    Config
	bucket string
	log    *zap.Logger
	now    func() time.Time
}

// NewExporter creates the exporter and hooks it into the cache resync cycle,
// so a fresh dump follows every completed resync.
func NewExporter(client storage.Client, cache *livecache.Cache, cfg Config, bucket string, log *zap.Logger) *Exporter {
	e := &Exporter{
		client: client,
		cache:  cache,
		cfg:    cfg,
		bucket: bucket,
		log:    log,
		now:    time.Now,
	}
	cache.AddResyncListener(func(ctx context.Context) {
		if err := e.Export(ctx); err != nil {
			e.log.Warn("Post-resync snapshot dump failed", zap.Error(err))
		}
	})
	return e
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (e *Exporter) EnsureBucket(ctx context.Context) error {
	exists, err := e.client.BucketExists(ctx, e.bucket)
	if err != nil {
		return fmt.Errorf("failed to check archive bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := e.client.MakeBucket(ctx, e.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create archive bucket: %w", err)
	}
	e.log.Info("Created archive bucket", zap.String("bucket", e.bucket))
	return nil
}

// Run writes dumps on the configured interval until the context ends.
func (e *Exporter) Run(ctx context.Context) {
	interval := time.Duration(e.cfg.IntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Export(ctx); err != nil {
				e.log.Warn("Periodic snapshot dump failed", zap.Error(err))
			}
		}
	}
}

// Export serializes the current cache contents, uploads the dump under a
// timestamped key and the stable latest key, and prunes expired dumps.
func (e *Exporter) Export(ctx context.Context) error {
	taken := e.now().UTC()
	payload, err := json.Marshal(dump{
		TakenAt:       taken,
		Servers:       e.cache.Servers(),
		Journeys:      e.cache.Journeys(""),
		DispatchPosts: e.cache.DispatchPosts(""),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot dump: %w", err)
	}

	name := fmt.Sprintf("%s/%s.json", e.cfg.Prefix, taken.Format("20060102T150405Z"))
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	if _, err := e.client.PutObject(ctx, e.bucket, name, bytes.NewReader(payload), int64(len(payload)), opts); err != nil {
		return fmt.Errorf("failed to upload snapshot dump %s: %w", name, err)
	}
	if _, err := e.client.PutObject(ctx, e.bucket, latestObjectName, bytes.NewReader(payload), int64(len(payload)), opts); err != nil {
		return fmt.Errorf("failed to upload latest snapshot dump: %w", err)
	}
	e.log.Info("Snapshot dump archived",
		zap.String("object", name),
		zap.Int("bytes", len(payload)))

	return e.prune(ctx)
}

// Latest streams the most recent dump from storage.
func (e *Exporter) Latest(ctx context.Context) (io.ReadCloser, error) {
	return e.client.GetObject(ctx, e.bucket, latestObjectName, minio.GetObjectOptions{})
}

// prune bulk-deletes timestamped dumps beyond the retention count. The
// timestamp key format sorts lexicographically, newest last.
func (e *Exporter) prune(ctx context.Context) error {
	if e.cfg.RetentionCount <= 0 {
		return nil
	}

	var names []string
	for info := range e.client.ListObjects(ctx, e.bucket, minio.ListObjectsOptions{
		Prefix:    e.cfg.Prefix + "/",
		Recursive: true,
	}) {
		if info.Err != nil {
			return fmt.Errorf("failed to list archived dumps: %w", info.Err)
		}
		names = append(names, info.Key)
	}
	if len(names) <= e.cfg.RetentionCount {
		return nil
	}
	sort.Strings(names)
	expired := names[:len(names)-e.cfg.RetentionCount]

	objectsCh := make(chan minio.ObjectInfo, len(expired))
	for _, name := range expired {
		objectsCh <- minio.ObjectInfo{Key: name}
	}
	close(objectsCh)

	for removeErr := range e.client.RemoveObjects(ctx, e.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if removeErr.Err != nil {
			return fmt.Errorf("failed to remove expired dump %s: %w", removeErr.ObjectName, removeErr.Err)
		}
	}
	e.log.Debug("Pruned expired snapshot dumps", zap.Int("count", len(expired)))
	return nil
}
