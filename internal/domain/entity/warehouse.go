package entity

// Warehouse bodega donde se almacena inventario.
type Warehouse struct {
	ID     string
	Code   string
	Name   string
	Active bool
	AuditedRecord
}
