package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dynpricing/dashboard-service/internal/api"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestProductsWorkbook(t *testing.T) {
	products := []api.Product{
		{
			ID:             "p-1",
			Name:           "Молоко 3.2% 1л",
			Brand:          strPtr("Домик в деревне"),
			CategoryLevel1: strPtr("Молочные продукты"),
			FavoritesCount: 120,
			LastInStock:    strPtr("2025-05-28"),
			DaysOutOfStock: intPtr(4),
		},
		{
			// All nullable fields absent.
			ID:             "p-2",
			Name:           "Кефир 1%",
			FavoritesCount: 3,
		},
	}

	buf, err := Products(products)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(productsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus one row per product")

	assert.Equal(t, "Название", rows[0][0])
	assert.Equal(t, "Молоко 3.2% 1л", rows[1][0])
	assert.Equal(t, "Домик в деревне", rows[1][1])
	assert.Equal(t, "120", rows[1][4])
	assert.Equal(t, "4", rows[1][6])

	assert.Equal(t, "Кефир 1%", rows[2][0])
	if len(rows[2]) > 1 {
		assert.Empty(t, rows[2][1], "nil brand exports as an empty cell")
	}
}

func TestProductsWorkbookEmpty(t *testing.T) {
	buf, err := Products(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(productsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1, "only the header remains")
}
