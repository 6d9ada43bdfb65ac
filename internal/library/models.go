package library

import "time"

// BookType distinguishes folder-of-images books from PDF files.
type BookType string

const (
	// ImageBook is a folder whose files are all images.
	ImageBook BookType = "image_book"
	// PDFBook is a single PDF document.
	PDFBook BookType = "pdf_book"
)

// Strategy is the display optimization hint derived from page dimensions.
type Strategy int

const (
	// StrategyUnknown means the book has not been analysed.
	StrategyUnknown Strategy = 0
	// StrategyOriginal serves pages as they are.
	StrategyOriginal Strategy = 1
	// StrategySuggestCompression serves a downscaled page unless the
	// client asks for the real size.
	StrategySuggestCompression Strategy = 2
	// StrategyForceCompression is reserved for always-downscaled books.
	StrategyForceCompression Strategy = 3
)

// NeedsCompression reports whether pages should be downscaled by default.
func (s Strategy) NeedsCompression() bool {
	return s >= StrategySuggestCompression
}

// RelationType labels a parent/child edge.
type RelationType string

const (
	// CategoryCategory links a category to a sub-category.
	CategoryCategory RelationType = "category_category"
	// CategoryBook links a category to a book it contains.
	CategoryBook RelationType = "category_book"
)

// Category is a folder node in the library tree.
type Category struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Path          string      `json:"path"`
	SubCategories []*Category `json:"sub_categories"`
	Books         []*Book     `json:"books"`
	IsDeleted     bool        `json:"is_deleted"`
	DeletedAt     *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Book is either a PDF file or a folder of page images.
type Book struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Path                 string     `json:"path"`
	Type                 BookType   `json:"type"`
	CoverPath            string     `json:"cover_path"`
	PageCount            int        `json:"page_count"`
	Pages                []string   `json:"pages,omitempty"`
	Inode                string     `json:"inode,omitempty"`
	DeviceID             string     `json:"device_id,omitempty"`
	OptimizationStrategy Strategy   `json:"optimization_strategy"`
	PageDimensionType    string     `json:"page_dimension_type,omitempty"`
	IsFavorite           bool       `json:"is_favorite"`
	IsDeleted            bool       `json:"is_deleted"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsPDF reports whether the book is a PDF document.
func (b *Book) IsPDF() bool {
	return b.Type == PDFBook
}

// PagesEqual reports whether two books list the same page paths in order.
func (b *Book) PagesEqual(other *Book) bool {
	if len(b.Pages) != len(other.Pages) {
		return false
	}
	for i := range b.Pages {
		if b.Pages[i] != other.Pages[i] {
			return false
		}
	}
	return true
}

// Relation is a parent/child edge between two entities.
type Relation struct {
	ParentID string       `json:"parent_id"`
	ChildID  string       `json:"child_id"`
	Type     RelationType `json:"relation_type"`
}

// CustomCategory is a user-curated collection, independent of folders.
type CustomCategory struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BookCount   int       `json:"book_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScanCounts is the number of entities found by a scan or held by the store.
type ScanCounts struct {
	Categories int `json:"categories"`
	Books      int `json:"books"`
}

// SyncCounts is the number of applied changes by kind.
type SyncCounts struct {
	AddedCategories   int `json:"added_categories"`
	DeletedCategories int `json:"deleted_categories"`
	AddedBooks        int `json:"added_books"`
	UpdatedBooks      int `json:"updated_books"`
	DeletedBooks      int `json:"deleted_books"`
}

// Changed reports whether any write was applied.
func (c SyncCounts) Changed() bool {
	return c.AddedCategories+c.DeletedCategories+c.AddedBooks+c.UpdatedBooks+c.DeletedBooks > 0
}

// SyncResult summarises one reconciliation run.
type SyncResult struct {
	Scanned  ScanCounts `json:"scanned"`
	Synced   SyncCounts `json:"synced"`
	Database ScanCounts `json:"database"`
}

// EventType classifies a streamed progress event.
type EventType string

const (
	EventInfo     EventType = "INFO"
	EventSuccess  EventType = "SUCCESS"
	EventWarn     EventType = "WARN"
	EventComplete EventType = "COMPLETE"
)

// Completion statuses carried by EventComplete.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Event is one progress message of a streaming reconciliation.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
	Status  string    `json:"status,omitempty"`
}
