package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query      string
		wantPage   int
		wantLimit  int
		wantOffset int
	}{
		{query: "", wantPage: 1, wantLimit: 10, wantOffset: 0},
		{query: "page=3&limit=20", wantPage: 3, wantLimit: 20, wantOffset: 40},
		{query: "page=abc&limit=-4", wantPage: 1, wantLimit: 10, wantOffset: 0},
		{query: "page=2&limit=1000", wantPage: 2, wantLimit: 100, wantOffset: 100},
		{query: "page=0", wantPage: 1, wantLimit: 10, wantOffset: 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/admin/mentors?"+tt.query, nil)

			p := FromQuery(c)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLimit, p.Limit)
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}
