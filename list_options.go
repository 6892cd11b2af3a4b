package main

import (
	"strings"

	"gorm.io/gorm"
)

type SortType string

const (
	SortTypeAscending  SortType = "asc"
	SortTypeDescending SortType = "desc"
)

func (s SortType) ToString() string {
	return strings.ToUpper(string(s))
}

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListOptions selects a page of a listing. A zero Limit means DefaultLimit;
// anything above MaxLimit is clamped.
type ListOptions struct {
	Offset uint32    `json:"offset,omitempty"`
	Limit  uint32    `json:"limit,omitempty"`
	Sort   *SortType `json:"sort,omitempty" validate:"omitempty,oneof=asc desc"`
}

func applySort(db *gorm.DB, sortBy string, defaultSort SortType, sortType *SortType) *gorm.DB {
	if sortType == nil {
		return db.Order(sortBy + " " + defaultSort.ToString())
	}
	return db.Order(sortBy + " " + sortType.ToString())
}

func paginate(offset, rawLimit uint32) func(db *gorm.DB) *gorm.DB {
	limit := int(rawLimit)
	if limit == 0 {
		limit = DefaultLimit
	} else if limit > MaxLimit {
		limit = MaxLimit
	}

	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(int(offset)).Limit(limit)
	}
}

func applyListOptions(db *gorm.DB, sortBy string, defaultSort SortType, options *ListOptions) *gorm.DB {
	if options == nil {
		return paginate(0, 0)(applySort(db, sortBy, defaultSort, nil))
	}

	db = applySort(db, sortBy, defaultSort, options.Sort)
	return paginate(options.Offset, options.Limit)(db)
}
