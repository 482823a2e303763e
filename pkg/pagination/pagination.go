package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// 分页配置
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Params 分页参数
type Params struct {
	Page     int
	PageSize int
}

// Info 分页信息
type Info struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"pageSize"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// Parse 从查询串解析分页参数。未提供page时返回nil，表示不分页
func Parse(c *gin.Context) *Params {
	pageStr, ok := c.GetQuery("page")
	if !ok {
		return nil
	}
	return Normalize(atoi(pageStr), atoi(c.Query("pageSize")))
}

// Normalize 修正越界的页码与每页大小
func Normalize(page, pageSize int) *Params {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Params{Page: page, PageSize: pageSize}
}

// Offset 计算offset
func (p *Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Window 在上限cap内计算本页的offset与limit，超出上限时limit为0
func (p *Params) Window(cap int) (offset, limit int) {
	offset = p.Offset()
	if offset >= cap {
		return offset, 0
	}
	limit = p.PageSize
	if offset+limit > cap {
		limit = cap - offset
	}
	return offset, limit
}

// NewInfo 根据总数计算分页信息
func NewInfo(p *Params, total int64) *Info {
	totalPages := int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	return &Info{
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: totalPages,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
