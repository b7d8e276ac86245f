package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"lossreview/internal/pipeline"
	"lossreview/internal/review"
)

// SnapshotConfig holds the object-storage connection settings.
type SnapshotConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// SnapshotConfigFromEnv reads SNAPSHOT_S3_* settings; an empty endpoint
// means snapshots are disabled.
func SnapshotConfigFromEnv() SnapshotConfig {
	return SnapshotConfig{
		Endpoint:  os.Getenv("SNAPSHOT_S3_ENDPOINT"),
		Region:    os.Getenv("SNAPSHOT_S3_REGION"),
		AccessKey: os.Getenv("SNAPSHOT_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("SNAPSHOT_S3_SECRET_KEY"),
		Bucket:    os.Getenv("SNAPSHOT_S3_BUCKET"),
		UseSSL:    os.Getenv("SNAPSHOT_S3_USE_SSL") == "true",
	}
}

// SnapshotStore archives the full final state of each run as one JSON object
// per request.
type SnapshotStore struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

func NewSnapshotStore(cfg SnapshotConfig) (*SnapshotStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("snapshot endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("snapshot access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("snapshot bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init snapshot client: %w", err)
	}
	return &SnapshotStore{client: client, bucket: bucket, region: region}, nil
}

func (s *SnapshotStore) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("snapshot store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func snapshotKey(requestID string) string {
	return "runs/" + requestID + "/state.json"
}

func reportKey(requestID, stage string) string {
	return "runs/" + requestID + "/quality/" + stage + ".json"
}

// PutRun archives one run.
func (s *SnapshotStore) PutRun(ctx context.Context, st *pipeline.State) error {
	if st == nil || strings.TrimSpace(st.RequestID) == "" {
		return fmt.Errorf("snapshot: state without request id")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, snapshotKey(st.RequestID),
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// PutReport archives a per-stage quality report next to the run it scored.
func (s *SnapshotStore) PutReport(ctx context.Context, requestID, stage string, report review.QualityReport) error {
	if strings.TrimSpace(requestID) == "" || strings.TrimSpace(stage) == "" {
		return fmt.Errorf("snapshot: report without request id or stage")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, reportKey(requestID, stage),
		bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

// GetRun restores an archived run.
func (s *SnapshotStore) GetRun(ctx context.Context, requestID string) (pipeline.State, error) {
	var st pipeline.State
	obj, err := s.client.GetObject(ctx, s.bucket, snapshotKey(requestID), minio.GetObjectOptions{})
	if err != nil {
		return st, err
	}
	defer obj.Close()
	if err := json.NewDecoder(obj).Decode(&st); err != nil {
		return st, err
	}
	return st, nil
}
