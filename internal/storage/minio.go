package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const outboxPrefix = "outbox"

// MinioStore holds uploaded leader mapping sheets and the archive of mail
// that could not be delivered.
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket}, nil
}

func (m *MinioStore) Client() *minio.Client {
	return m.client
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

func (m *MinioStore) PutObject(ctx context.Context, objectKey, contentType string, content []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}

func (m *MinioStore) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data.Bytes(), nil
}

// ArchiveUndelivered stores a rendered message that failed to send so staff
// can resend it by hand. It returns the object key.
func (m *MinioStore) ArchiveUndelivered(ctx context.Context, submissionID, template string, at time.Time, message []byte) (string, error) {
	if submissionID == "" {
		submissionID = "unassigned"
	}
	objectKey := path.Join(outboxPrefix, submissionID, fmt.Sprintf("%s-%s.eml", at.UTC().Format("20060102T150405Z"), template))
	if err := m.PutObject(ctx, objectKey, "message/rfc822", message); err != nil {
		return "", err
	}
	return objectKey, nil
}
