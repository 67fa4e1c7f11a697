// Package utils holds page arithmetic and query parsing shared by the
// handlers and services.
package utils

import "strconv"

// DefaultPageSize is used when a caller asks for a non-positive page size.
const DefaultPageSize = 20

// AtoiDefault parses s as a base-10 int and returns def when s is empty or
// not a number. Surrounding whitespace is not trimmed.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Normalize maps a 1-based page and a page size onto valid values.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	return page, size
}

// Offset is the number of rows skipped before a 1-based page.
func Offset(page, size int) int {
	page, size = Normalize(page, size)
	return (page - 1) * size
}

// TotalPages is ceil(total/size), zero when there is nothing to list.
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// PageStart is the offset of the page containing the row at index.
func PageStart(index int64, size int) int {
	if index <= 0 || size <= 0 {
		return 0
	}
	return int(index/int64(size)) * size
}
