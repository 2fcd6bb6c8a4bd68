package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"file-manager-api/internal/domain/file_info"
)

type thumbPurger interface {
	PurgeThumbs(id file_info.ID) error
}

// PurgeThumbsOnDelete drops cached derivatives of the file named by a
// file.deleted event. Every instance consumes every event; on the instance
// that served the delete the derivatives are already gone and this is a no-op.
func PurgeThumbsOnDelete(storage thumbPurger) func(ctx context.Context, body []byte) error {
	return func(_ context.Context, body []byte) error {
		var e Event
		if err := json.Unmarshal(body, &e); err != nil {
			return fmt.Errorf("decode %s event: %w", ActionDeleted, err)
		}
		if e.FileID <= 0 {
			return fmt.Errorf("%s event without file id", ActionDeleted)
		}

		return storage.PurgeThumbs(file_info.ID(e.FileID))
	}
}
