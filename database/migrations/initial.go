package migrations

import (
	"gorm.io/gorm"

	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/migration"
)

func init() {
	migration.Register("20260301000000_create_documents_table", &CreateDocumentsTable{})
}

// CreateDocumentsTable holds every collection of the sql document store.
type CreateDocumentsTable struct{}

func (m *CreateDocumentsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&docstore.Record{})
}

func (m *CreateDocumentsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&docstore.Record{})
}
