package csvio_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/internal/csvio"
)

func TestParse_Basic(t *testing.T) {
	rows, skipped, err := csvio.Parse(strings.NewReader("Item Name,Type,Quantity\nWidget,Tools,5\n"))
	require.NoError(t, err)
	assert.Empty(t, skipped)
	assert.Equal(t, []csvio.Row{{Name: "Widget", Type: "Tools", Quantity: 5}}, rows)
}

func TestParse_HeaderCaseAndExtraColumns(t *testing.T) {
	in := "notes,QUANTITY,item name,TYPE,Supplier\nfragile,7,Lamp,Home,Ikea\n"
	rows, _, err := csvio.Parse(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []csvio.Row{{Name: "Lamp", Type: "Home", Quantity: 7, Supplier: "Ikea"}}, rows)
}

func TestParse_MissingColumns(t *testing.T) {
	_, _, err := csvio.Parse(strings.NewReader("Item Name,Quantity\nWidget,5\n"))
	assert.ErrorIs(t, err, csvio.ErrMissingColumns)
}

func TestParse_SkipsBadRows(t *testing.T) {
	in := strings.Join([]string{
		"Item Name,Type,Quantity",
		"Widget,Tools,5",
		",Tools,3",
		"Gadget,,3",
		"Gizmo,Tools,many",
		"Sprocket,Tools,-2",
		"Cog,Tools,4",
	}, "\n")

	rows, skipped, err := csvio.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, skipped, 4)
	assert.Equal(t, 3, skipped[0].Line)
	assert.Equal(t, 6, skipped[3].Line)
	assert.Equal(t, "quantity is negative", skipped[3].Reason)
}

func TestParse_MergesDuplicateKeys(t *testing.T) {
	in := "Item Name,Type,Quantity\nWidget,Tools,5\nwidget,TOOLS,3\nWidget,Parts,1\n"
	rows, _, err := csvio.Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 8, rows[0].Quantity)
	assert.Equal(t, "Parts", rows[1].Type)
}

func TestParse_NoValidRows(t *testing.T) {
	_, skipped, err := csvio.Parse(strings.NewReader("Item Name,Type,Quantity\nWidget,Tools,x\n"))
	assert.ErrorIs(t, err, csvio.ErrEmpty)
	assert.Len(t, skipped, 1)

	_, _, err = csvio.Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, csvio.ErrEmpty)
}

func TestWriteInventory_Quoting(t *testing.T) {
	items := []models.InventoryItem{
		{Name: "Cable, long", Type: "Electronics", Quantity: 4, Supplier: `Bob's "Best"`},
		{Name: "Plain", Type: "Misc", Quantity: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, csvio.WriteInventory(&buf, items, true))
	assert.Equal(t, "Item Name,Type,Quantity,Supplier\n\"Cable, long\",Electronics,4,\"Bob's \"\"Best\"\"\"\nPlain,Misc,0,\n", buf.String())

	buf.Reset()
	require.NoError(t, csvio.WriteInventory(&buf, items[1:], false))
	assert.Equal(t, "Item Name,Type,Quantity\nPlain,Misc,0\n", buf.String())
}

func TestExportThenImportRoundTrip(t *testing.T) {
	items := []models.InventoryItem{{Name: "Multi\nline", Type: "Odd", Quantity: 2, Supplier: "S"}}
	var buf bytes.Buffer
	require.NoError(t, csvio.WriteInventory(&buf, items, true))

	rows, _, err := csvio.Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, []csvio.Row{{Name: "Multi\nline", Type: "Odd", Quantity: 2, Supplier: "S"}}, rows)
}

func TestWriteOrderRequests(t *testing.T) {
	reqs := []models.OrderRequest{{CustomerName: "ACME", RequestedBy: "u1", OrderDetails: models.NamedList("a", "b")}}
	var buf bytes.Buffer
	require.NoError(t, csvio.WriteOrderRequests(&buf, reqs, func(string) string { return "Osama" }))
	assert.Equal(t, "Customer,Requested By,Details,Notes\nACME,Osama,\"a, b\",\n", buf.String())
}
