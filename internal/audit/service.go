package audit

import (
	"context"
	"fmt"
)

// Repository is the slice of Store the service needs.
type Repository interface {
	Query(ctx context.Context, f Filters, limit, offset int) ([]Entry, error)
}

// PagingInfo describes the page window of a Result.
type PagingInfo struct {
	Page     int
	PageSize int
	HasNext  bool
	PrevPage int
	NextPage int
}

// Result wraps a page of entries with paging information.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}

// Service coordinates audit trail queries for compliance review.
type Service struct {
	repo Repository
}

// NewService builds the audit query service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Trail returns a page of audit entries matching the filters, newest first.
func (s *Service) Trail(ctx context.Context, filters Filters) (Result, error) {
	if s == nil || s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	entries, err := s.repo.Query(ctx, filters, pageSize+1, offset)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export returns every entry matching the filters without paging.
func (s *Service) Export(ctx context.Context, filters Filters) ([]Entry, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	const exportBatch = 1000
	var all []Entry
	offset := 0
	for {
		entries, err := s.repo.Query(ctx, filters, exportBatch, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if len(entries) < exportBatch {
			return all, nil
		}
		offset += exportBatch
	}
}
