package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

type ObjectGetter interface {
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
}

type MappingImporter interface {
	Import(ctx context.Context, r io.Reader) (int, error)
}

// Logger represents the methods used by the import handler to log information.
type Logger interface {
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
}

// ImportHandler returns an event handler that downloads each announced sheet
// and replaces the leader directory with it. A sheet that fails to parse is
// logged and skipped so one bad upload does not stop the listener.
func ImportHandler(objects ObjectGetter, importer MappingImporter, logger Logger) func(context.Context, MappingEvent) error {
	return func(ctx context.Context, event MappingEvent) error {
		body, err := objects.GetObject(ctx, event.ObjectKey)
		if err != nil {
			return fmt.Errorf("fetch mapping %s: %w", event.ObjectKey, err)
		}
		count, err := importer.Import(ctx, bytes.NewReader(body))
		if err != nil {
			logger.Warningf("skipping mapping %s: %v", event.ObjectKey, err)
			return nil
		}
		logger.Infof("imported %d leader mappings from %s", count, event.ObjectKey)
		return nil
	}
}
