package events

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
)

const (
	objectCreatedEvent = "s3:ObjectCreated:*"
	mappingSuffix      = ".csv"
)

// MappingEvent announces a new leader mapping sheet in the bucket.
type MappingEvent struct {
	ObjectKey string
	Filename  string
	EventName string
}

type MappingEventSource interface {
	Run(ctx context.Context, handler func(context.Context, MappingEvent) error) error
}

type MinioMappingEventSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioMappingEventSource(client *minio.Client, bucket string, prefix string) *MinioMappingEventSource {
	return &MinioMappingEventSource{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

func (s *MinioMappingEventSource) Run(ctx context.Context, handler func(context.Context, MappingEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix, mappingSuffix, []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			for _, record := range info.Records {
				objectKey, err := decodeObjectKey(record.S3.Object.Key)
				if err != nil {
					continue
				}
				filename, err := parseMappingKey(s.prefix, objectKey)
				if err != nil {
					continue
				}
				event := MappingEvent{
					ObjectKey: objectKey,
					Filename:  filename,
					EventName: record.EventName,
				}
				if err := handler(ctx, event); err != nil {
					return err
				}
			}
		}
	}
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

// parseMappingKey accepts only CSV objects sitting directly under prefix and
// returns their file name.
func parseMappingKey(prefix, objectKey string) (string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	base := strings.Trim(prefix, "/")
	rest := cleaned
	if base != "" {
		if !strings.HasPrefix(cleaned, base+"/") {
			return "", fmt.Errorf("object key %q is outside %q", objectKey, prefix)
		}
		rest = strings.TrimPrefix(cleaned, base+"/")
	}
	if rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("object key %q is not a mapping sheet", objectKey)
	}
	if !strings.EqualFold(path.Ext(rest), mappingSuffix) {
		return "", fmt.Errorf("object key %q is not a csv file", objectKey)
	}
	return rest, nil
}
