package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// DetailsKind tags which variant an OrderDetails holds.
type DetailsKind string

const (
	DetailsFreeText  DetailsKind = "text"
	DetailsNamedList DetailsKind = "list"
	DetailsLineItems DetailsKind = "items"
)

// LineItem is one requested article.
type LineItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// OrderDetails is the body of an order request or daily order. The variant
// is fixed when the document is written; readers switch on Kind.
type OrderDetails struct {
	Kind  DetailsKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Lines []string    `json:"lines,omitempty"`
	Items []LineItem  `json:"items,omitempty"`
}

func FreeText(text string) OrderDetails {
	return OrderDetails{Kind: DetailsFreeText, Text: text}
}

func NamedList(lines ...string) OrderDetails {
	return OrderDetails{Kind: DetailsNamedList, Lines: lines}
}

func LineItems(items ...LineItem) OrderDetails {
	return OrderDetails{Kind: DetailsLineItems, Items: items}
}

// LineItemList returns the structured items, or nil for the other variants.
func (d OrderDetails) LineItemList() []LineItem {
	if d.Kind != DetailsLineItems {
		return nil
	}
	return d.Items
}

// Summary renders the details on one line. Unknown variants render empty.
func (d OrderDetails) Summary() string {
	switch d.Kind {
	case DetailsFreeText:
		return d.Text
	case DetailsNamedList:
		return strings.Join(d.Lines, ", ")
	case DetailsLineItems:
		parts := make([]string, 0, len(d.Items))
		for _, it := range d.Items {
			parts = append(parts, fmt.Sprintf("%d x %s", it.Quantity, it.Name))
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// Validate reports whether the details hold usable content for their kind.
func (d OrderDetails) Validate() error {
	switch d.Kind {
	case DetailsFreeText:
		if strings.TrimSpace(d.Text) == "" {
			return fmt.Errorf("order details text is empty")
		}
	case DetailsNamedList:
		if len(d.Lines) == 0 {
			return fmt.Errorf("order details list is empty")
		}
	case DetailsLineItems:
		if len(d.Items) == 0 {
			return fmt.Errorf("order details have no line items")
		}
		for _, it := range d.Items {
			if strings.TrimSpace(it.Name) == "" || it.Quantity <= 0 {
				return fmt.Errorf("line item needs a name and a positive quantity")
			}
		}
	default:
		return fmt.Errorf("unknown order details kind %q", d.Kind)
	}
	return nil
}

// UnmarshalJSON accepts only the tagged object form. Anything else decodes
// to the zero value so one bad document does not hide the rest.
func (d *OrderDetails) UnmarshalJSON(data []byte) error {
	*d = OrderDetails{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	type plain OrderDetails
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil
	}
	*d = OrderDetails(p)
	return nil
}
