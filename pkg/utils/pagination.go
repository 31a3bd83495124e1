package utils

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// PaginationParams 分页参数
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// NewPagination 规范化页码和每页数量
func NewPagination(page, pageSize int) PaginationParams {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	// 偏移量不超过 MaxInt32, 过大的页码落在空页上而不是溢出
	if maxPage := math.MaxInt32/pageSize + 1; page > maxPage {
		page = maxPage
	}
	return PaginationParams{Page: page, PageSize: pageSize, Offset: (page - 1) * pageSize}
}

// GetPaginationParams 从查询参数 page / limit 中读取分页参数
func GetPaginationParams(c *gin.Context, defaultSize int) PaginationParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, err := strconv.Atoi(c.Query("limit"))
	if err != nil || size <= 0 {
		size = defaultSize
	}
	return NewPagination(page, size)
}

// TotalPages 计算 ceil(total / pageSize)
func TotalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
