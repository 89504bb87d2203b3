package common

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageSize is the fixed page length of every paginated listing.
const PageSize = 10

// MaxPage keeps Offset from overflowing.
const MaxPage = math.MaxInt32 / PageSize

// Page reads the 1-based ?page= query parameter; anything invalid is page 1.
func Page(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// Offset returns the number of rows to skip for page.
func Offset(page int) int {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * PageSize
}

// TotalPages is ceil(total / PageSize).
func TotalPages(total int64) int64 {
	return (total + PageSize - 1) / PageSize
}
