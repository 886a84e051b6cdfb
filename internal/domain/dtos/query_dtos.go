package dtos

import "time"

// RecordListQuery pages a patient's records.
type RecordListQuery struct {
	ParseState

	Page           int    `query:"page" validate:"gte=0"`
	Limit          int    `query:"limit" validate:"gte=0"`
	IncludeDeleted bool   `query:"includeDeleted"`
	Tag            string `query:"tag"`
}

type HistoryQuery struct {
	ParseState

	Limit int `query:"limit" validate:"gte=0"`
}

// AuditTrailQuery filters an audit trail. Actions holds AuditAction names.
type AuditTrailQuery struct {
	Page      int        `query:"page" validate:"gte=0"`
	Limit     int        `query:"limit" validate:"gte=0"`
	Actions   []string   `query:"actions"`
	StartDate *time.Time `query:"-"`
	EndDate   *time.Time `query:"-"`
}

type ActivityQuery struct {
	StartDate *time.Time
	EndDate   *time.Time
}

// Pagination mirrors the paging envelope returned by list endpoints.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewPagination builds the envelope for a 1-based page.
func NewPagination(total int64, page, limit int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
