// Package csvio reads and writes the inventory CSV format:
//
//	Item Name,Type,Quantity,Supplier
//	Wireless Mouse,Electronics,15,TechSupply
//
// Header names are matched case-insensitively and extra columns are ignored.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/invictusops/invictus/app/models"
)

const (
	colName     = "item name"
	colType     = "type"
	colQuantity = "quantity"
	colSupplier = "supplier"
)

var (
	ErrMissingColumns = errors.New("csv header must contain Item Name, Type and Quantity")
	ErrEmpty          = errors.New("csv file has no data rows")
)

// Row is one valid import line.
type Row struct {
	Name     string
	Type     string
	Quantity int
	Supplier string
}

// Key is the merge key: name and type, case-insensitive.
func (r Row) Key() string {
	return MergeKey(r.Name, r.Type)
}

func MergeKey(name, typ string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(typ))
}

// RowError describes a skipped line. Line numbers are 1-based and count the
// header.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Reason) }

// Parse reads an import file. Rows sharing a merge key are summed into the
// first occurrence. Bad rows are returned in skipped, never as err.
func Parse(r io.Reader) (rows []Row, skipped []RowError, err error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrEmpty
	}
	if err != nil {
		return nil, nil, fmt.Errorf("csvio: header: %w", err)
	}

	cols := indexHeader(header)
	iName, okName := cols[colName]
	iType, okType := cols[colType]
	iQty, okQty := cols[colQuantity]
	iSup, hasSup := cols[colSupplier]
	if !okName || !okType || !okQty {
		return nil, nil, ErrMissingColumns
	}

	index := map[string]int{}
	for {
		record, readErr := cr.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			var perr *csv.ParseError
			if errors.As(readErr, &perr) {
				skipped = append(skipped, RowError{Line: perr.StartLine, Reason: perr.Err.Error()})
				continue
			}
			return nil, skipped, fmt.Errorf("csvio: read: %w", readErr)
		}
		line, _ := cr.FieldPos(0)
		if blank(record) {
			continue
		}

		name, typ := field(record, iName), field(record, iType)
		if name == "" || typ == "" {
			skipped = append(skipped, RowError{Line: line, Reason: "missing item name or type"})
			continue
		}
		qty, convErr := strconv.Atoi(field(record, iQty))
		if convErr != nil {
			skipped = append(skipped, RowError{Line: line, Reason: "quantity is not a whole number"})
			continue
		}
		if qty < 0 {
			skipped = append(skipped, RowError{Line: line, Reason: "quantity is negative"})
			continue
		}

		row := Row{Name: name, Type: typ, Quantity: qty}
		if hasSup {
			row.Supplier = field(record, iSup)
		}

		if at, ok := index[row.Key()]; ok {
			rows[at].Quantity += row.Quantity
			if rows[at].Supplier == "" {
				rows[at].Supplier = row.Supplier
			}
			continue
		}
		index[row.Key()] = len(rows)
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, skipped, ErrEmpty
	}
	return rows, skipped, nil
}

// WriteInventory writes items with the standard header. withSupplier adds
// the Supplier column.
func WriteInventory(w io.Writer, items []models.InventoryItem, withSupplier bool) error {
	cw := csv.NewWriter(w)

	header := []string{"Item Name", "Type", "Quantity"}
	if withSupplier {
		header = append(header, "Supplier")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, it := range items {
		rec := []string{it.Name, it.Type, strconv.Itoa(it.Quantity)}
		if withSupplier {
			rec = append(rec, it.Supplier)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteOrderRequests writes one line per request. names resolves user ids.
func WriteOrderRequests(w io.Writer, requests []models.OrderRequest, names func(id string) string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Customer", "Requested By", "Details", "Notes"}); err != nil {
		return err
	}
	for _, r := range requests {
		if err := cw.Write([]string{r.CustomerName, names(r.RequestedBy), r.OrderDetails.Summary(), r.Notes}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func indexHeader(header []string) map[string]int {
	out := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := out[key]; !dup {
			out[key] = i
		}
	}
	return out
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
