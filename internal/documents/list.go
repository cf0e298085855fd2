package documents

import (
	"context"
	"strings"

	"github.com/angelmondragon/constructai-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/constructai-backend/pkg/errors"
	"github.com/angelmondragon/constructai-backend/pkg/pagination"
	"github.com/angelmondragon/constructai-backend/pkg/types"
)

// ListParams configures document listing filters and pagination.
type ListParams struct {
	ProjectID string
	HasStatus bool
	Status    enums.DocumentStatus
	Limit     int
	Cursor    string
}

// ListResult returns a page of documents.
type ListResult = types.Page[DocumentDTO]

type listQuery struct {
	projectID string
	status    *enums.DocumentStatus
	limit     int
	cursor    *pagination.Cursor
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listQuery{
		projectID: strings.TrimSpace(params.ProjectID),
		limit:     pagination.LimitWithBuffer(params.Limit),
	}
	if params.HasStatus {
		if !params.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
		}
		query.status = &params.Status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list documents")
	}

	rows, last := pagination.Split(rows, params.Limit)
	nextCursor := ""
	if last != nil {
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	items := make([]DocumentDTO, len(rows))
	for i := range rows {
		items[i] = ToDTO(&rows[i])
	}
	return &ListResult{Items: items, NextCursor: nextCursor}, nil
}
