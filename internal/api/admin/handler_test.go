package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"course-ledger/internal/domain/billing"
	"course-ledger/internal/services/ledger"
	"course-ledger/internal/services/payouts"
	"course-ledger/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// countQueries counts SELECTs issued through Find/Count and Scan.
func countQueries(t *testing.T, db *gorm.DB) *atomic.Int32 {
	t.Helper()
	var n atomic.Int32
	inc := func(*gorm.DB) { n.Add(1) }
	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:count_query", inc))
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("test:count_row", inc))
	return &n
}

func statsRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	l := ledger.New(db)
	h := NewHandler(db, l, payouts.New(db, l, nil))
	r := gin.New()
	r.GET("/admin/stats", h.GetAdminStats)
	return r
}

func TestAdminStatsRunsEveryQuery(t *testing.T) {
	db := testutil.NewDB(t)
	queries := countQueries(t, db)

	w := httptest.NewRecorder()
	statsRouter(db).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats AdminStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, AdminStats{}, stats)
	assert.Equal(t, int32(8), queries.Load())
}

func TestAdminStatsStopsAtFirstFailure(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Migrator().DropTable(&billing.Payment{}))
	queries := countQueries(t, db)

	w := httptest.NewRecorder()
	statsRouter(db).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal error"}`, w.Body.String())
	assert.Equal(t, int32(1), queries.Load())
}
