package repository

import "context"

// Repos agrupa los repositorios atados a una misma conexión o transacción.
type Repos struct {
	Products    ProductRepository
	Warehouses  WarehouseRepository
	TaxCatalog  TaxCatalog
	Stock       StockRepository
	Movements   InventoryMovementRepository
	Kardex      KardexRepository
	Sales       SaleRepository
	Receivables ReceivableRepository
	Purchases   PurchaseRepository
	Payables    PayableRepository
	Retentions  RetentionRepository
	Sequences   SequenceRepository
	Documents   ElectronicDocumentRepository
	History     DocumentHistoryRepository
	Tasks       SRITaskRepository
	Audit       AuditLogRepository
}

// TxRunner ejecuta fn dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback completo; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repos) error) error
}
