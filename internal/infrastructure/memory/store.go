// Package memory implementa los repositorios en memoria con transacciones por snapshot.
// Se usa con DB_DRIVER=memory y en las pruebas de casos de uso.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
)

var _ repository.TxRunner = (*Store)(nil)

type state struct {
	products    map[string]*entity.Product
	warehouses  map[string]*entity.Warehouse
	taxRates    map[string]*entity.TaxRate
	stock       map[string]*entity.Stock
	movements   map[string]*entity.InventoryMovement
	kardex      []*entity.KardexEntry
	kardexSeq   int64
	sales       map[string]*entity.Sale
	receivables map[string]*entity.Receivable
	purchases   map[string]*entity.Purchase
	payables    map[string]*entity.Payable
	retentions  map[string]*entity.Retention
	sequences   map[string]int64
	documents   map[string]*entity.ElectronicDocument
	history     []*entity.DocumentHistory
	tasks       map[string]*entity.SRITask
	taskOrder   []string
	audit       []*entity.AuditLog
}

func newState() *state {
	return &state{
		products:    map[string]*entity.Product{},
		warehouses:  map[string]*entity.Warehouse{},
		taxRates:    map[string]*entity.TaxRate{},
		stock:       map[string]*entity.Stock{},
		movements:   map[string]*entity.InventoryMovement{},
		sales:       map[string]*entity.Sale{},
		receivables: map[string]*entity.Receivable{},
		purchases:   map[string]*entity.Purchase{},
		payables:    map[string]*entity.Payable{},
		retentions:  map[string]*entity.Retention{},
		sequences:   map[string]int64{},
		documents:   map[string]*entity.ElectronicDocument{},
		tasks:       map[string]*entity.SRITask{},
	}
}

func (s *state) clone() *state {
	c := &state{
		products:    cloneMap(s.products, cloneProduct),
		warehouses:  cloneMap(s.warehouses, plain[entity.Warehouse]),
		taxRates:    cloneMap(s.taxRates, plain[entity.TaxRate]),
		stock:       cloneMap(s.stock, plain[entity.Stock]),
		movements:   cloneMap(s.movements, cloneMovement),
		kardex:      append([]*entity.KardexEntry(nil), s.kardex...),
		kardexSeq:   s.kardexSeq,
		sales:       cloneMap(s.sales, cloneSale),
		receivables: cloneMap(s.receivables, plain[entity.Receivable]),
		purchases:   cloneMap(s.purchases, clonePurchase),
		payables:    cloneMap(s.payables, plain[entity.Payable]),
		retentions:  cloneMap(s.retentions, cloneRetention),
		sequences:   make(map[string]int64, len(s.sequences)),
		documents:   cloneMap(s.documents, cloneDocument),
		history:     append([]*entity.DocumentHistory(nil), s.history...),
		tasks:       cloneMap(s.tasks, cloneTask),
		taskOrder:   append([]string(nil), s.taskOrder...),
		audit:       append([]*entity.AuditLog(nil), s.audit...),
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

// Store base de datos en memoria. Run serializa las transacciones con un mutex global,
// equivalente a bloquear todas las filas tocadas.
type Store struct {
	mu sync.Mutex
	st *state
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Run ejecuta fn con repositorios atados a la "transacción". Si fn falla se restaura el snapshot previo.
func (s *Store) Run(ctx context.Context, fn func(repos repository.Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	if err := fn(s.repos(true)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// Repos devuelve repositorios fuera de transacción (cada llamada toma el mutex).
func (s *Store) Repos() repository.Repos {
	return s.repos(false)
}

// PutTaxRate registra una tarifa en el catálogo.
func (s *Store) PutTaxRate(rate entity.TaxRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rate
	s.st.taxRates[rateKey(rate.TaxCode, rate.RateCode)] = &r
}

func (s *Store) repos(tx bool) repository.Repos {
	h := &handle{s: s, tx: tx}
	return repository.Repos{
		Products:    &productRepo{h},
		Warehouses:  &warehouseRepo{h},
		TaxCatalog:  &taxCatalog{h},
		Stock:       &stockRepo{h},
		Movements:   &movementRepo{h},
		Kardex:      &kardexRepo{h},
		Sales:       &saleRepo{h},
		Receivables: &receivableRepo{h},
		Purchases:   &purchaseRepo{h},
		Payables:    &payableRepo{h},
		Retentions:  &retentionRepo{h},
		Sequences:   &sequenceRepo{h},
		Documents:   &documentRepo{h},
		History:     &historyRepo{h},
		Tasks:       &taskRepo{h},
		Audit:       &auditRepo{h},
	}
}

// handle da acceso al estado: dentro de Run el mutex ya está tomado.
type handle struct {
	s  *Store
	tx bool
}

func (h *handle) do(fn func(st *state) error) error {
	if !h.tx {
		h.s.mu.Lock()
		defer h.s.mu.Unlock()
	}
	return fn(h.s.st)
}

// ── Copias ──────────────────────────────────────────────────────────────────

func cloneMap[T any](m map[string]*T, f func(*T) *T) map[string]*T {
	out := make(map[string]*T, len(m))
	for k, v := range m {
		out[k] = f(v)
	}
	return out
}

func plain[T any](v *T) *T {
	c := *v
	return &c
}

func cloneProduct(p *entity.Product) *entity.Product {
	c := *p
	c.Taxes = append([]entity.ProductTax(nil), p.Taxes...)
	return &c
}

func cloneMovement(m *entity.InventoryMovement) *entity.InventoryMovement {
	c := *m
	c.Lines = append([]entity.MovementLine(nil), m.Lines...)
	return &c
}

func cloneSale(s *entity.Sale) *entity.Sale {
	c := *s
	c.Lines = make([]entity.SaleLine, len(s.Lines))
	for i, l := range s.Lines {
		l.Taxes = append([]entity.TaxSnapshot(nil), l.Taxes...)
		c.Lines[i] = l
	}
	return &c
}

func clonePurchase(p *entity.Purchase) *entity.Purchase {
	c := *p
	c.Lines = make([]entity.PurchaseLine, len(p.Lines))
	for i, l := range p.Lines {
		l.Taxes = append([]entity.TaxSnapshot(nil), l.Taxes...)
		c.Lines[i] = l
	}
	return &c
}

func cloneRetention(r *entity.Retention) *entity.Retention {
	c := *r
	c.Lines = append([]entity.RetentionLine(nil), r.Lines...)
	return &c
}

func cloneDocument(d *entity.ElectronicDocument) *entity.ElectronicDocument {
	c := *d
	return &c
}

func cloneTask(t *entity.SRITask) *entity.SRITask {
	c := *t
	c.Payload = append([]byte(nil), t.Payload...)
	return &c
}

// CountTasks cantidad de tareas (activas o no) registradas para (entidad, tipo).
func (s *Store) CountTasks(entityID, docType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.st.tasks {
		if t.EntityID == entityID && t.DocumentType == docType {
			n++
		}
	}
	return n
}
