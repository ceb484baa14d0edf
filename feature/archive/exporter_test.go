package archive_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/simrailtools/backend-sub003/core/storage/mocks"
	"github.com/simrailtools/backend-sub003/feature/archive"
	"github.com/simrailtools/backend-sub003/feature/livecache"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	servers []models.ServerView
}

func (f *fakeStore) ActiveServerViews(_ context.Context) ([]models.ServerView, error) {
	return f.servers, nil
}

func (f *fakeStore) ActiveJourneyViews(_ context.Context) ([]models.JourneyView, error) {
	return nil, nil
}

func (f *fakeStore) ActiveDispatchPostViews(_ context.Context) ([]models.DispatchPostView, error) {
	return nil, nil
}

func (f *fakeStore) ServerViewByID(_ context.Context, _ string) (*models.ServerView, error) {
	return nil, nil
}

func (f *fakeStore) JourneyViewByID(_ context.Context, _ string) (*models.JourneyView, error) {
	return nil, nil
}

func (f *fakeStore) DispatchPostViewByID(_ context.Context, _ string) (*models.DispatchPostView, error) {
	return nil, nil
}

func seededCache(t *testing.T) *livecache.Cache {
	t.Helper()
	store := &fakeStore{servers: []models.ServerView{
		{ID: "srv-1", Code: "en1", Name: "EN1", Region: "Europe", Online: true},
	}}
	cache := livecache.New(store, zap.NewNop())
	require.NoError(t, cache.Seed(context.Background()))
	return cache
}

func TestExporterExport(t *testing.T) {
	t.Run("UploadsTimestampedAndLatestDump", func(t *testing.T) {
		client := new(mocks.Client)
		cache := seededCache(t)
		exp := archive.NewExporter(client, cache, archive.Config{Prefix: "dumps"}, "snapshots", zap.NewNop())

		var uploaded []byte
		client.On("PutObject", mock.Anything, "snapshots", mock.MatchedBy(func(name string) bool {
			return name != "latest.json"
		}), mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				var err error
				uploaded, err = io.ReadAll(args.Get(3).(io.Reader))
				require.NoError(t, err)
			}).
			Return(minio.UploadInfo{}, nil).Once()
		client.On("PutObject", mock.Anything, "snapshots", "latest.json", mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, nil).Once()

		require.NoError(t, exp.Export(context.Background()))
		client.AssertExpectations(t)

		var dump struct {
			TakenAt time.Time           `json:"taken_at"`
			Servers []models.ServerView `json:"servers"`
		}
		require.NoError(t, json.Unmarshal(uploaded, &dump))
		assert.False(t, dump.TakenAt.IsZero())
		require.Len(t, dump.Servers, 1)
		assert.Equal(t, "srv-1", dump.Servers[0].ID)
	})

	t.Run("PrunesDumpsBeyondRetention", func(t *testing.T) {
		client := new(mocks.Client)
		cache := seededCache(t)
		exp := archive.NewExporter(client, cache, archive.Config{Prefix: "dumps", RetentionCount: 2}, "snapshots", zap.NewNop())

		client.On("PutObject", mock.Anything, "snapshots", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(minio.UploadInfo{}, nil).Twice()

		listed := make(chan minio.ObjectInfo, 3)
		listed <- minio.ObjectInfo{Key: "dumps/20260101T000000Z.json"}
		listed <- minio.ObjectInfo{Key: "dumps/20260301T000000Z.json"}
		listed <- minio.ObjectInfo{Key: "dumps/20260201T000000Z.json"}
		close(listed)
		client.On("ListObjects", mock.Anything, "snapshots", mock.Anything).
			Return((<-chan minio.ObjectInfo)(listed))

		var removed []string
		client.On("RemoveObjects", mock.Anything, "snapshots", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				for info := range args.Get(2).(<-chan minio.ObjectInfo) {
					removed = append(removed, info.Key)
				}
			}).
			Return(nil)

		require.NoError(t, exp.Export(context.Background()))
		// Only the oldest dump falls out of the retention window.
		assert.Equal(t, []string{"dumps/20260101T000000Z.json"}, removed)
	})
}

func TestExporterEnsureBucket(t *testing.T) {
	t.Run("CreatesMissingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		exp := archive.NewExporter(client, seededCache(t), archive.Config{}, "snapshots", zap.NewNop())

		client.On("BucketExists", mock.Anything, "snapshots").Return(false, nil)
		client.On("MakeBucket", mock.Anything, "snapshots", mock.Anything).Return(nil)

		require.NoError(t, exp.EnsureBucket(context.Background()))
		client.AssertExpectations(t)
	})

	t.Run("SkipsExistingBucket", func(t *testing.T) {
		client := new(mocks.Client)
		exp := archive.NewExporter(client, seededCache(t), archive.Config{}, "snapshots", zap.NewNop())

		client.On("BucketExists", mock.Anything, "snapshots").Return(true, nil)

		require.NoError(t, exp.EnsureBucket(context.Background()))
		client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
	})
}
