package membership

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/tunehaus/backstage/internal/models"
	"github.com/tunehaus/backstage/pkg/types"
)

type ScanTransactionsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanTransactionsResponse struct {
	Total int64                 `json:"total"`
	Items []*models.Transaction `json:"items"`
}

var scanSortFields = []string{"created_at", "amount", "type", "status"}

// filtersWhere wraps a list of filters to a single clause.Expression
type filtersWhere struct{ filters []*types.CommonFilter }

func (w filtersWhere) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range w.filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

// ScanTransactions is the admin view over the whole transaction log with
// field-level filters and paging. Sort fields are allowlisted.
func (s *Service) ScanTransactions(ctx context.Context, req *ScanTransactionsRequest) (*ScanTransactionsResponse, error) {
	if req == nil {
		req = &ScanTransactionsRequest{}
	}
	if req.Size <= 0 || req.Size > 200 {
		req.Size = 50
	}
	if req.From < 0 {
		req.From = 0
	}

	sortBy := req.SortBy
	if !lo.Contains(scanSortFields, sortBy) {
		sortBy = "created_at"
	}
	order := clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where(clause.Where{Exprs: []clause.Expression{filtersWhere{filters: req.Filters}}})

	resp := &ScanTransactionsResponse{}
	if err := q.Count(&resp.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	if err := q.Order(order).Limit(req.Size).Offset(req.From).Find(&resp.Items).Error; err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}
	return resp, nil
}
