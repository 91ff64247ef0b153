package controllers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/pkg/bind"
	"github.com/invictusops/invictus/pkg/ctx"
	"github.com/invictusops/invictus/pkg/storage"
)

type InventoryController struct {
	inventory *services.InventoryService
	disk      storage.Disk
}

func NewInventoryController(inventory *services.InventoryService, disk storage.Disk) *InventoryController {
	return &InventoryController{inventory: inventory, disk: disk}
}

type adjustInput struct {
	Delta int `json:"delta" validate:"required,gte=-1,lte=1"`
}

type restockInput struct {
	Amount int `json:"amount"`
}

type archiveInput struct {
	Partition string `json:"partition" validate:"nullable,in=all|stock|reorder"`
}

func (ic *InventoryController) Add(c *ctx.Context) {
	var in services.AddItemInput
	if !c.BindJSON(&in) {
		return
	}
	item, err := ic.inventory.Add(c.Context(), c.UserID(), in)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(item)
}

// Update sets the item's fields absolutely. Concurrent edits: last writer wins.
func (ic *InventoryController) Update(c *ctx.Context) {
	var in services.UpdateItemInput
	if !c.BindJSON(&in) {
		return
	}
	if err := ic.inventory.Update(c.Context(), c.Param("id"), in); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}

func (ic *InventoryController) Adjust(c *ctx.Context) {
	var in adjustInput
	if !c.BindJSON(&in) {
		return
	}
	qty, err := ic.inventory.Adjust(c.Context(), c.Param("id"), in.Delta)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(map[string]int64{"quantity": qty})
}

// Restock accepts an optional {"amount": n}; an empty body restocks
// DefaultRestock units.
func (ic *InventoryController) Restock(c *ctx.Context) {
	in := restockInput{Amount: services.DefaultRestock}
	if errs, err := c.ShouldBindJSON(&in); err != nil && err != bind.ErrEmptyBody {
		c.Error(http.StatusBadRequest, err.Error())
		return
	} else if len(errs) > 0 {
		c.ValidationError(errs)
		return
	}
	qty, err := ic.inventory.Restock(c.Context(), c.Param("id"), in.Amount)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(map[string]int64{"quantity": qty})
}

func (ic *InventoryController) Delete(c *ctx.Context) {
	if err := ic.inventory.Delete(c.Context(), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	c.NoContent()
}

// Import takes either a multipart form with a "file" field or a raw CSV body.
func (ic *InventoryController) Import(c *ctx.Context) {
	body, err := csvBody(c)
	if err != nil {
		c.Error(http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	res, err := ic.inventory.Import(c.Context(), c.UserID(), body)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Success(map[string]any{
		"imported": res.Imported(),
		"created":  res.Created,
		"updated":  res.Updated,
		"skipped":  res.Skipped,
	})
}

func csvBody(c *ctx.Context) (io.ReadCloser, error) {
	c.R.Body = http.MaxBytesReader(c.W, c.R.Body, bind.MaxBodyBytes())
	if strings.HasPrefix(c.Header("Content-Type"), "multipart/form-data") {
		f, _, err := c.R.FormFile("file")
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	return c.R.Body, nil
}

// Export streams the chosen partition as a CSV download.
func (ic *InventoryController) Export(c *ctx.Context) {
	partition := c.DefaultQuery("partition", services.PartitionAll)

	var buf bytes.Buffer
	if err := ic.inventory.Export(c.Context(), &buf, partition); err != nil {
		Fail(c, err)
		return
	}
	c.Attachment("inventory-"+partition+".csv", "text/csv; charset=utf-8")
	c.W.Write(buf.Bytes()) //nolint:errcheck
}

// Archive writes the export to the configured storage disk.
func (ic *InventoryController) Archive(c *ctx.Context) {
	var in archiveInput
	if errs, err := c.ShouldBindJSON(&in); err != nil && err != bind.ErrEmptyBody {
		c.Error(http.StatusBadRequest, err.Error())
		return
	} else if len(errs) > 0 {
		c.ValidationError(errs)
		return
	}
	path, url, err := ic.inventory.Archive(c.Context(), ic.disk, in.Partition)
	if err != nil {
		Fail(c, err)
		return
	}
	c.Created(map[string]string{"path": path, "url": url, "disk": ic.disk.Name()})
}
