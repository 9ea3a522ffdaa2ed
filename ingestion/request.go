package ingestion

import (
	"fmt"

	"github.com/poiesic/textidx/core"
)

// Request is an index update that can be submitted for async processing.
// It is implemented by AddToIndexRequest and RemoveFromIndexRequest only.
type Request interface {
	validate() error
}

// AddToIndexRequest asks for one field of one entity to be (re)indexed.
type AddToIndexRequest struct {
	OwnerID         string          `json:"owner_id"`
	UltimateOwnerID string          `json:"ultimate_owner_id,omitempty"`
	Content         string          `json:"content"`
	EntityType      core.EntityType `json:"entity_type"`
	Field           core.Field      `json:"field"`
}

func (r AddToIndexRequest) validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrEmptyOwner)
	}
	if err := core.ValidateEntityType(r.EntityType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := core.ValidateField(r.Field); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// RemoveFromIndexRequest asks for index records of an owner to be removed.
// With only OwnerID set every record of the owner goes; EntityType narrows
// to one type and Field to a single record. Field requires EntityType.
type RemoveFromIndexRequest struct {
	OwnerID    string          `json:"owner_id"`
	EntityType core.EntityType `json:"entity_type,omitempty"`
	Field      core.Field      `json:"field,omitempty"`
}

func (r RemoveFromIndexRequest) validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, core.ErrEmptyOwner)
	}
	if r.Field != "" && r.EntityType == "" {
		return fmt.Errorf("%w: field %q given without entity type", ErrInvalidRequest, r.Field)
	}
	if r.EntityType != "" {
		if err := core.ValidateEntityType(r.EntityType); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	if r.Field != "" {
		if err := core.ValidateField(r.Field); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

var (
	_ Request = AddToIndexRequest{}
	_ Request = RemoveFromIndexRequest{}
)
