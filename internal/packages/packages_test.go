package packages

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photoshoot-backend/internal/shared/config"
)

var seed = []config.PackageConfig{
	{Name: "Бизнес", Photoshoots: 10, PriceRub: 799},
	{Name: "Стартовый", Photoshoots: 3, PriceRub: 299},
	{Name: "", Photoshoots: 1, PriceRub: 1},
}

func TestSeedIsIdempotentAndListSortsByPrice(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	require.NoError(t, svc.Seed(t.Context(), seed))
	require.NoError(t, svc.Seed(t.Context(), seed))

	items, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Стартовый", items[0].Name)
	assert.Equal(t, 299.0, items[0].PriceRub)
	assert.Equal(t, "Бизнес", items[1].Name)

	got, err := svc.Get(t.Context(), items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.PhotoshootsCount)

	_, err = svc.Get(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPGRepoInsertMissingSkipsConflicts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (name) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "A", 3, 299.0, true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (name) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "B", 10, 799.0, true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	added, err := (&PGRepo{DB: db}).InsertMissing(t.Context(), []Package{
		{ID: "1", Name: "A", PhotoshootsCount: 3, PriceRub: 299, IsActive: true},
		{ID: "2", Name: "B", PhotoshootsCount: 10, PriceRub: 799, IsActive: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryRepo())
	require.NoError(t, svc.Seed(t.Context(), seed))
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/packages"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/packages", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	require.Len(t, items, 2)
	assert.Equal(t, float64(3), items[0]["photoshoots_count"])
}
