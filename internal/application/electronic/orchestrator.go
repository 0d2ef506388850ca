package electronic

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/sri"
)

// DefaultSweepBatch documentos por barrido.
const DefaultSweepBatch = 100

// Orchestrator fachada FE-EC: despacha por tipo de documento y ejecuta el barrido de cola.
type Orchestrator struct {
	repos     repository.Repos
	queues    map[string]*QueueService
	batchSize int
	log       zerolog.Logger
}

// NewOrchestrator registra una cola por tipo de documento.
func NewOrchestrator(repos repository.Repos, log zerolog.Logger, queues ...*QueueService) *Orchestrator {
	o := &Orchestrator{
		repos:     repos,
		queues:    make(map[string]*QueueService, len(queues)),
		batchSize: DefaultSweepBatch,
		log:       log.With().Str("component", "orquestador_fe").Logger(),
	}
	for _, q := range queues {
		o.queues[q.DocumentType()] = q
	}
	return o
}

// WithBatchSize fija el máximo de documentos por barrido.
func (o *Orchestrator) WithBatchSize(n int) *Orchestrator {
	if n > 0 {
		o.batchSize = n
	}
	return o
}

func (o *Orchestrator) queue(docType string) (*QueueService, error) {
	q, ok := o.queues[docType]
	if !ok {
		return nil, fmt.Errorf("%w: tipo de documento %q", domain.ErrInvalidInput, docType)
	}
	return q, nil
}

// Enqueue encola un documento en su propia transacción.
func (o *Orchestrator) Enqueue(ctx context.Context, actor, docType, entityID string) (*entity.SRITask, error) {
	q, err := o.queue(docType)
	if err != nil {
		return nil, err
	}
	return q.Enqueue(ctx, actor, entityID)
}

// EnqueueInTx encola dentro de la transacción del llamador (emisión de venta, retención).
func (o *Orchestrator) EnqueueInTx(ctx context.Context, r repository.Repos, actor, docType, entityID string) (*entity.SRITask, error) {
	q, err := o.queue(docType)
	if err != nil {
		return nil, err
	}
	return q.EnqueueInTx(ctx, r, actor, entityID)
}

// Process procesa la tarea vigente de la entidad. Si no hay tarea activa devuelve la última
// (terminal) sin cambios.
func (o *Orchestrator) Process(ctx context.Context, docType, entityID string) (*entity.SRITask, error) {
	q, err := o.queue(docType)
	if err != nil {
		return nil, err
	}
	task, err := o.repos.Tasks.FindActive(ctx, entityID, docType)
	if err != nil {
		return nil, err
	}
	if task == nil {
		doc, err := o.repos.Documents.GetByReference(ctx, docType, entityID)
		if err != nil {
			return nil, err
		}
		last, err := o.repos.Tasks.LatestByDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if last == nil {
			return nil, fmt.Errorf("%w: no hay tareas para %s %s", domain.ErrNotFound, docType, entityID)
		}
		return last, nil
	}
	return q.Process(ctx, task.ID)
}

// ProcessQueue barre los documentos pendientes (EN_COLA, FIRMADO, RECIBIDO) con intentos
// disponibles y next_retry_at vencido, y los procesa uno a uno. Los errores por documento se
// registran y no detienen el barrido. Solo cuentan las tareas reclamadas en este barrido.
func (o *Orchestrator) ProcessQueue(ctx context.Context, now time.Time) (int, error) {
	docs, err := o.repos.Documents.ListDue(ctx, sri.SweepStatuses, sri.MaxDocumentAttempts, now, o.batchSize)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		log := o.log.With().Str("documento_id", doc.ID).Str("tipo", doc.Type).Logger()
		q, err := o.queue(doc.Type)
		if err != nil {
			log.Error().Err(err).Msg("documento sin cola registrada")
			continue
		}
		task, err := o.repos.Tasks.LatestByDocument(ctx, doc.ID)
		if err != nil {
			log.Error().Err(err).Msg("error leyendo la tarea del documento")
			continue
		}
		if task == nil || task.IsTerminal() {
			log.Warn().Msg("documento pendiente sin tarea activa")
			continue
		}
		_, claimed, err := q.attempt(ctx, task.ID)
		if err != nil {
			log.Error().Err(err).Str("tarea_id", task.ID).Msg("error procesando documento")
			continue
		}
		if claimed {
			processed++
		}
	}
	if processed > 0 {
		o.log.Info().Int("procesados", processed).Int("candidatos", len(docs)).Msg("barrido de cola SRI")
	}
	return processed, nil
}

// Document devuelve un documento electrónico.
func (o *Orchestrator) Document(ctx context.Context, id string) (*entity.ElectronicDocument, error) {
	return o.repos.Documents.GetByID(ctx, id)
}

// DocumentByReference devuelve el documento activo de una venta o retención.
func (o *Orchestrator) DocumentByReference(ctx context.Context, docType, entityID string) (*entity.ElectronicDocument, error) {
	if _, err := o.queue(docType); err != nil {
		return nil, err
	}
	return o.repos.Documents.GetByReference(ctx, docType, entityID)
}

// History devuelve el historial de estados de un documento.
func (o *Orchestrator) History(ctx context.Context, documentID string) ([]*entity.DocumentHistory, error) {
	if _, err := o.repos.Documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	return o.repos.History.ListByDocument(ctx, documentID)
}
