package electronic

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	domsri "github.com/jhoicas/osiris-api/internal/domain/sri"
	"github.com/jhoicas/osiris-api/internal/infrastructure/memory"
	"github.com/jhoicas/osiris-api/pkg/sri"
)

const actor = "user-1"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// ── Dobles ──────────────────────────────────────────────────────────────────

type fakeSigner struct {
	err   error
	calls int32
}

func (s *fakeSigner) Sign(_ context.Context, docType string, payload []byte) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	return "<firmado tipo=\"" + docType + "\"/>", nil
}

type step struct {
	resp *GatewayResponse
	err  error
}

// scriptedGateway devuelve los pasos en orden; el último se repite.
type scriptedGateway struct {
	mu    sync.Mutex
	steps []step
	reqs  []SendRequest
}

func (g *scriptedGateway) Send(_ context.Context, req SendRequest) (*GatewayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.reqs = append(g.reqs, req)
	i := len(g.reqs) - 1
	if i >= len(g.steps) {
		i = len(g.steps) - 1
	}
	return g.steps[i].resp, g.steps[i].err
}

func (g *scriptedGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.reqs)
}

func status(s string) step { return step{resp: &GatewayResponse{Status: s}} }

func connRefused() step {
	return step{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
}

type countingHandler struct{ calls int32 }

func (h *countingHandler) OnAuthorized(context.Context, *entity.ElectronicDocument, []byte) error {
	atomic.AddInt32(&h.calls, 1)
	return nil
}

// ── Fixture ─────────────────────────────────────────────────────────────────

type fixture struct {
	store    *memory.Store
	signer   *fakeSigner
	gateway  *scriptedGateway
	emails   *countingHandler
	facturas *QueueService
	orch     *Orchestrator
	clock    time.Time
}

func newFixture(t *testing.T, steps ...step) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		signer:  &fakeSigner{},
		gateway: &scriptedGateway{steps: steps},
		emails:  &countingHandler{},
		clock:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time {
		f.clock = f.clock.Add(time.Second)
		return f.clock
	}
	cfg := QueueConfig{
		Issuer: Issuer{
			Emisor:      sri.Emisor{RUC: "1790012345001", RazonSocial: "OSIRIS S.A.", DireccionMatriz: "Quito"},
			Ambiente:    sri.AmbientePruebas,
			NumericCode: func() string { return "12345678" },
		},
	}
	r := f.store.Repos()
	f.facturas = NewQueueService(f.store, r, FacturaBuilder{}, f.signer, f.gateway, SyncExecutor{}, cfg, zerolog.Nop()).
		WithAuthorizedHandler(f.emails).WithClock(clock)
	retenciones := NewQueueService(f.store, r, RetencionBuilder{}, f.signer, f.gateway, SyncExecutor{}, cfg, zerolog.Nop()).
		WithClock(clock)
	f.orch = NewOrchestrator(r, zerolog.Nop(), f.facturas, retenciones)
	return f
}

func (f *fixture) emittedSale(t *testing.T, id string) *entity.Sale {
	t.Helper()
	ctx := context.Background()
	r := f.store.Repos()
	_ = r.Products.Create(ctx, &entity.Product{ID: "prod-a", Code: "P-001", Name: "Producto A", Active: true})
	sale := &entity.Sale{
		ID:            id,
		CustomerID:    "cli-1",
		Customer:      entity.PartySnapshot{IdentificationType: sri.IdentificacionCedula, Identification: "1710034065", Name: "Juan  Pérez", Email: "juan@example.com"},
		WarehouseID:   "bod-1",
		Status:        entity.SaleStatusEmitida,
		EmissionType:  entity.EmissionTypeElectronica,
		Establishment: "001",
		EmissionPoint: "002",
		Sequential:    "000000123",
		IssueDate:     time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
		Totals: entity.DocumentTotals{
			Subtotal15: d("120.00"), Subtotal: d("120.00"), TotalDiscount: d("0"),
			TotalIVA: d("18.00"), TotalICE: d("0"), Total: d("138.00"),
		},
		Lines: []entity.SaleLine{{
			ID: "lin-1", SaleID: id, ProductID: "prod-a", Quantity: d("2"), UnitPrice: d("60"), Discount: d("0"), Subtotal: d("120.00"),
			Taxes: []entity.TaxSnapshot{{
				ID: "imp-1", LineID: "lin-1", Kind: entity.TaxKindIVA, TaxCode: entity.SRITaxCodeIVA,
				RateCode: entity.IVARateCode15, Rate: d("15"), TaxableBase: d("120.00"), Amount: d("18.00"), Active: true,
			}},
		}},
		Active: true,
	}
	require.NoError(t, r.Sales.Create(ctx, sale))
	return sale
}

func (f *fixture) document(t *testing.T, id string) *entity.ElectronicDocument {
	t.Helper()
	doc, err := f.store.Repos().Documents.GetByID(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func (f *fixture) history(t *testing.T, docID string) []string {
	t.Helper()
	rows, err := f.store.Repos().History.ListByDocument(context.Background(), docID)
	require.NoError(t, err)
	out := make([]string, 0, len(rows))
	for _, h := range rows {
		out = append(out, h.ToStatus)
	}
	return out
}

// ── Encolado ────────────────────────────────────────────────────────────────

func TestEnqueue_CreaDocumentoYTarea(t *testing.T) {
	f := newFixture(t, status(GatewayAutorizado))
	f.emittedSale(t, "venta-1")

	task, err := f.facturas.Enqueue(context.Background(), actor, "venta-1")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusPendiente, task.Status)
	assert.Equal(t, entity.DefaultTaskMaxAttempts, task.MaxAttempts)
	assert.Equal(t, sri.PayloadVersion, task.PayloadVersion)

	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusEnCola, doc.Status)
	assert.Equal(t, "1003202501179001234500110010020000001231234567817", doc.AccessKey)
	assert.NoError(t, sri.ValidarClaveAcceso(doc.AccessKey))
	assert.Equal(t, []string{entity.DocStatusEnCola}, f.history(t, doc.ID))

	p, err := sri.DecodeFactura(task.Payload)
	require.NoError(t, err)
	assert.Equal(t, doc.AccessKey, p.Info.ClaveAcceso)
	assert.Equal(t, "Juan Pérez", p.Comprador.RazonSocial)
	require.Len(t, p.Detalles, 1)
	assert.Equal(t, "P-001", p.Detalles[0].CodigoPrincipal)
	require.Len(t, p.TotalConImpuestos, 1)
	assert.Equal(t, "4", p.TotalConImpuestos[0].CodigoPorcentaje)
	assert.True(t, p.TotalConImpuestos[0].Valor.Equal(d("18")))
	assert.True(t, p.ImporteTotal.Equal(d("138")))
}

func TestEnqueue_Idempotente(t *testing.T) {
	f := newFixture(t, status(GatewayAutorizado))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	first, err := f.orch.Enqueue(ctx, actor, entity.DocumentTypeFactura, "venta-1")
	require.NoError(t, err)
	second, err := f.orch.Enqueue(ctx, actor, entity.DocumentTypeFactura, "venta-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.store.CountTasks("venta-1", entity.DocumentTypeFactura))
}

func TestEnqueue_Errores(t *testing.T) {
	f := newFixture(t, status(GatewayAutorizado))
	ctx := context.Background()

	_, err := f.orch.Enqueue(ctx, actor, entity.DocumentTypeFactura, "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.orch.Enqueue(ctx, actor, "NOTA_CREDITO", "venta-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.orch.Enqueue(ctx, actor, entity.DocumentTypeFactura, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	sale := f.emittedSale(t, "venta-borrador")
	sale.Status = entity.SaleStatusBorrador
	require.NoError(t, f.store.Repos().Sales.UpdateHeader(ctx, sale))
	_, err = f.orch.Enqueue(ctx, actor, entity.DocumentTypeFactura, "venta-borrador")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, 0, f.store.CountTasks("venta-borrador", entity.DocumentTypeFactura))
}

// ── Procesamiento ───────────────────────────────────────────────────────────

func TestProcess_RecibidaLuegoAutorizado(t *testing.T) {
	f := newFixture(t, status(GatewayRecibida), status(GatewayAutorizado))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)

	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusReintentoProgramado, task.Status)
	require.NotNil(t, task.NextRetryAt)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusRecibido, doc.Status)
	assert.Equal(t, domsri.ReceivedBackoff(1), task.NextRetryAt.Sub(f.clock))

	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCompletado, task.Status)
	assert.Equal(t, 2, task.Attempts)

	doc = f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusAutorizado, doc.Status)
	assert.Empty(t, doc.LastError)
	assert.Equal(t, doc.AccessKey, doc.AuthorizationNumber)
	assert.NotEmpty(t, doc.AuthorizedXML)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.emails.calls))
	assert.Equal(t, []string{entity.DocStatusEnCola, entity.DocStatusFirmado, entity.DocStatusRecibido, entity.DocStatusAutorizado},
		f.history(t, doc.ID))

	// El segundo envío solo consulta la autorización.
	require.Len(t, f.gateway.reqs, 2)
	assert.False(t, f.gateway.reqs[0].AlreadyReceived)
	assert.True(t, f.gateway.reqs[1].AlreadyReceived)

	// Terminal: procesar de nuevo no llama al SRI ni repite el correo.
	_, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, f.gateway.calls())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.emails.calls))
}

func TestProcess_FallaDeConexionAgotaIntentos(t *testing.T) {
	f := newFixture(t, connRefused())
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		task, err = f.facturas.Process(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TaskStatusReintentoProgramado, task.Status, "intento %d", i)
		assert.Contains(t, task.LastError, "connection refused")
	}
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	assert.Equal(t, 3, task.Attempts)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusError, doc.Status)
	assert.Equal(t, 3, f.gateway.calls())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.signer.calls), "se firma una sola vez")

	hist := f.history(t, doc.ID)
	assert.Equal(t, []string{entity.DocStatusEnCola, entity.DocStatusFirmado, entity.DocStatusError}, hist)
	assert.NotContains(t, hist, entity.DocStatusAutorizado)
	assert.NotContains(t, hist, entity.DocStatusRechazado)
	assert.Zero(t, atomic.LoadInt32(&f.emails.calls))

	audit, err := f.store.Repos().Audit.ListByEntity(ctx, "documento_electronico", doc.ID)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, entity.DocStatusError, audit[0].AfterState)
}

func TestProcess_BackoffDeRed(t *testing.T) {
	f := newFixture(t, step{err: domain.ErrTransientGateway})
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, task.NextRetryAt)
	assert.Equal(t, time.Second, task.NextRetryAt.Sub(f.clock))

	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, task.NextRetryAt.Sub(f.clock))
}

func TestProcess_Rechazado(t *testing.T) {
	f := newFixture(t, step{resp: &GatewayResponse{Status: GatewayRechazado, Message: "ERROR 35 ARCHIVO NO CUMPLE ESTRUCTURA XML"}})
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusRechazado, doc.Status)
	assert.Equal(t, "ERROR 35 ARCHIVO NO CUMPLE ESTRUCTURA XML", doc.LastError)

	// Absorbente: sin más llamadas.
	_, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.gateway.calls())
}

func TestProcess_RespuestaDesconocida(t *testing.T) {
	f := newFixture(t, status("EN PROCESO"))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusError, doc.Status)
	assert.Contains(t, doc.LastError, "EN PROCESO")
}

func TestProcess_ErrorNoTransitorioFallaCerrado(t *testing.T) {
	f := newFixture(t, step{err: errors.New("certificado inválido")})
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	assert.Equal(t, entity.DocStatusError, f.document(t, task.DocumentID).Status)
}

func TestProcess_ErrorDeFirma(t *testing.T) {
	f := newFixture(t, status(GatewayAutorizado))
	f.signer.err = errors.New("p12 ilegible")
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	task, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)

	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusError, doc.Status)
	assert.Contains(t, doc.LastError, "p12 ilegible")
	assert.Zero(t, f.gateway.calls())
}

func TestProcess_RecibidaSinAutorizacion(t *testing.T) {
	f := newFixture(t, status(GatewayRecibida))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	for i := 0; i < domsri.MaxDocumentAttempts; i++ {
		task, err = f.facturas.Process(ctx, task.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, entity.TaskStatusFallido, task.Status)
	doc := f.document(t, task.DocumentID)
	assert.Equal(t, entity.DocStatusError, doc.Status)
	assert.Equal(t, domsri.MaxDocumentAttempts, doc.Attempts)
}

func TestProcess_RespetaLeaseVigente(t *testing.T) {
	f := newFixture(t, status(GatewayAutorizado))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	task, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)

	// Otro worker la reclamó hace un instante.
	locked := f.clock
	task.Status = entity.TaskStatusProcesando
	task.Attempts = 1
	task.LockedAt = &locked
	require.NoError(t, f.store.Repos().Tasks.Update(ctx, task))

	out, err := f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusProcesando, out.Status)
	assert.Zero(t, f.gateway.calls())

	// Lease vencido: se retoma.
	f.clock = f.clock.Add(DefaultLeaseTimeout)
	out, err = f.facturas.Process(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusCompletado, out.Status)
	assert.Equal(t, 2, out.Attempts)
}

// ── Reenvío ─────────────────────────────────────────────────────────────────

func TestEnqueue_TrasRechazoCreaNuevoDocumento(t *testing.T) {
	f := newFixture(t, status(GatewayRechazado), status(GatewayAutorizado))
	f.emittedSale(t, "venta-1")
	ctx := context.Background()

	first, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	_, err = f.facturas.Process(ctx, first.ID)
	require.NoError(t, err)

	second, err := f.facturas.Enqueue(ctx, actor, "venta-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.DocumentID, second.DocumentID)
	assert.False(t, f.document(t, first.DocumentID).Active)

	_, err = f.facturas.Process(ctx, second.ID)
	require.NoError(t, err)
	doc, err := f.orch.DocumentByReference(ctx, entity.DocumentTypeFactura, "venta-1")
	require.NoError(t, err)
	assert.Equal(t, entity.DocStatusAutorizado, doc.Status)

	_, err = f.facturas.Enqueue(ctx, actor, "venta-1")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}
