// Package paging 实现控制台表格底栏的分页：页码越界时夹到合法范围。
package paging

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 1000
)

type Page[T any] struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
	Total      int    `json:"total"`
	RowRange   string `json:"row_range"`
	Items      []T    `json:"items"`
}

// ParseParams 解析 page/page_size 查询参数；非法值回落到默认。
func ParseParams(rawPage, rawSize string) (page, size int) {
	page, size = 1, DefaultPageSize
	if n, err := strconv.Atoi(strings.TrimSpace(rawPage)); err == nil && n > 0 {
		page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(rawSize)); err == nil && n > 0 {
		size = n
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// Paginate 切出第 page 页；page 大于总页数时取最后一页。
func Paginate[T any](all []T, page, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(all)
	totalPages := (total + size - 1) / size
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * size
	end := min(start+size, total)
	items := make([]T, 0, end-start)
	items = append(items, all[start:end]...)

	return Page[T]{
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
		Total:      total,
		RowRange:   RowRange(start, end, total),
		Items:      items,
	}
}

// RowRange 生成底栏文字，例如 "11–20 of 42"；空表为 "0–0 of 0"。
func RowRange(start, end, total int) string {
	if total == 0 {
		return "0–0 of 0"
	}
	return fmt.Sprintf("%d–%d of %d", start+1, end, total)
}
