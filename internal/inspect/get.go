package inspect

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dyluth/vibelayer/pkg/blackboard"
	"github.com/google/uuid"
)

// GetInstance writes a single instance snapshot as pretty-printed JSON.
func GetInstance(ctx context.Context, store Store, instanceID string, w io.Writer) error {
	if _, err := uuid.Parse(instanceID); err != nil {
		return fmt.Errorf("invalid instance ID format: must be a valid UUID")
	}

	record, err := store.GetInstanceRecord(ctx, instanceID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return &InstanceNotFoundError{InstanceID: instanceID}
		}
		return fmt.Errorf("failed to fetch instance: %w", err)
	}

	return FormatSingleJSON(w, record)
}

// InstanceNotFoundError reports a snapshot that does not exist or has expired.
type InstanceNotFoundError struct {
	InstanceID string
}

func (e *InstanceNotFoundError) Error() string {
	return fmt.Sprintf("instance with ID '%s' not found", e.InstanceID)
}

// IsNotFound returns true if the error is an InstanceNotFoundError.
func IsNotFound(err error) bool {
	var target *InstanceNotFoundError
	return errors.As(err, &target)
}
