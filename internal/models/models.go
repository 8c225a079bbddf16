// package models defines the data model for the stemx client
package models

import "time"

// Model is a record kept in the local history database.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time

	// Validate reports the first field that cannot be stored.
	Validate() error
}

// Repository is the storage contract shared by history tables.
//
// Delete is a soft delete for records whose server-side files may outlive the row.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error) // criteria keys are table specific
}
