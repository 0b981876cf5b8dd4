package repository

import (
	"context"

	"crosspost/domain/model"
)

// IContent reads media locations. The orchestrator never writes content.
type IContent interface {
	GetContent(ctx context.Context, id string) (*model.Content, error)
}
