package electronic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/osiris-api/internal/domain"
	"github.com/jhoicas/osiris-api/internal/domain/entity"
	"github.com/jhoicas/osiris-api/internal/domain/repository"
	"github.com/jhoicas/osiris-api/internal/domain/sri"
)

// SystemActor actor de las transiciones ejecutadas por el worker.
const SystemActor = "sistema"

// DefaultLeaseTimeout tiempo tras el cual una tarea PROCESANDO se considera abandonada.
const DefaultLeaseTimeout = 5 * time.Minute

// QueueConfig parámetros de una cola.
type QueueConfig struct {
	Issuer       Issuer
	MaxAttempts  int
	LeaseTimeout time.Duration
}

// QueueService cola SRI de un tipo de documento (factura o retención).
type QueueService struct {
	txRunner     repository.TxRunner
	repos        repository.Repos
	builder      PayloadBuilder
	signer       Signer
	gateway      Gateway
	executor     Executor
	onAuthorized AuthorizedHandler
	issuer       Issuer
	maxAttempts  int
	leaseTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewQueueService construye la cola para el tipo de documento del builder.
func NewQueueService(
	txRunner repository.TxRunner,
	repos repository.Repos,
	builder PayloadBuilder,
	signer Signer,
	gateway Gateway,
	executor Executor,
	cfg QueueConfig,
	log zerolog.Logger,
) *QueueService {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = entity.DefaultTaskMaxAttempts
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = DefaultLeaseTimeout
	}
	if executor == nil {
		executor = SyncExecutor{}
	}
	return &QueueService{
		txRunner:     txRunner,
		repos:        repos,
		builder:      builder,
		signer:       signer,
		gateway:      gateway,
		executor:     executor,
		issuer:       cfg.Issuer,
		maxAttempts:  cfg.MaxAttempts,
		leaseTimeout: cfg.LeaseTimeout,
		log:          log.With().Str("component", "cola_sri").Str("tipo", builder.DocumentType()).Logger(),
		now:          time.Now,
	}
}

// WithAuthorizedHandler registra el efecto secundario de autorización.
func (s *QueueService) WithAuthorizedHandler(h AuthorizedHandler) *QueueService {
	s.onAuthorized = h
	return s
}

// WithClock reemplaza el reloj (pruebas).
func (s *QueueService) WithClock(now func() time.Time) *QueueService {
	s.now = now
	return s
}

// DocumentType tipo de documento que atiende la cola.
func (s *QueueService) DocumentType() string { return s.builder.DocumentType() }

// Enqueue encola en su propia transacción.
func (s *QueueService) Enqueue(ctx context.Context, actor, entityID string) (*entity.SRITask, error) {
	var task *entity.SRITask
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		task, err = s.EnqueueInTx(ctx, r, actor, entityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// EnqueueInTx encola dentro de la transacción del llamador. Si la entidad ya tiene una tarea
// activa se devuelve esa misma tarea sin crear otra.
func (s *QueueService) EnqueueInTx(ctx context.Context, r repository.Repos, actor, entityID string) (*entity.SRITask, error) {
	docType := s.builder.DocumentType()
	if entityID == "" {
		return nil, fmt.Errorf("%w: entidad_id es obligatorio", domain.ErrInvalidInput)
	}
	active, err := r.Tasks.FindActive(ctx, entityID, docType)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	now := s.now()
	doc, err := r.Documents.GetByReference(ctx, docType, entityID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		doc = nil
	case err != nil:
		return nil, err
	case doc.Status == entity.DocStatusAutorizado:
		return nil, fmt.Errorf("%w: el documento %s ya está AUTORIZADO", domain.ErrInvalidState, doc.ID)
	case doc.IsTerminal():
		// Reenvío tras RECHAZADO/ERROR: el documento anterior queda como histórico.
		doc.Active = false
		doc.Touch(actor, now)
		if err := r.Documents.Update(ctx, doc); err != nil {
			return nil, err
		}
		doc = nil
	}

	var payload []byte
	version := 0
	newDoc := doc == nil
	if !newDoc {
		prev, err := r.Tasks.LatestByDocument(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			payload, version = prev.Payload, prev.PayloadVersion
		}
	}
	if payload == nil {
		built, err := s.builder.Build(ctx, r, entityID, s.issuer)
		if err != nil {
			return nil, err
		}
		payload, version = built.Data, built.Version
		if newDoc {
			doc = &entity.ElectronicDocument{
				ID:            uuid.New().String(),
				Type:          docType,
				ReferenceID:   entityID,
				AccessKey:     built.AccessKey,
				Status:        entity.DocStatusEnCola,
				Active:        true,
				AuditedRecord: entity.NewAuditedRecord(actor, now),
			}
		} else {
			doc.AccessKey = built.AccessKey
		}
	}

	task := &entity.SRITask{
		ID:             uuid.New().String(),
		EntityID:       entityID,
		DocumentType:   docType,
		DocumentID:     doc.ID,
		Status:         entity.TaskStatusPendiente,
		MaxAttempts:    s.maxAttempts,
		Payload:        payload,
		PayloadVersion: version,
		Active:         true,
		AuditedRecord:  entity.NewAuditedRecord(actor, now),
	}
	if err := r.Tasks.Create(ctx, task); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			if existing, ferr := r.Tasks.FindActive(ctx, entityID, docType); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	if newDoc {
		if err := r.Documents.Create(ctx, doc); err != nil {
			return nil, err
		}
		if err := r.History.Append(ctx, &entity.DocumentHistory{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			ToStatus:   entity.DocStatusEnCola,
			Reason:     "documento encolado",
			ActorID:    actor,
			CreatedAt:  now,
		}); err != nil {
			return nil, err
		}
	} else {
		doc.Touch(actor, now)
		if err := r.Documents.Update(ctx, doc); err != nil {
			return nil, err
		}
	}

	s.log.Info().Str("tarea_id", task.ID).Str("documento_id", doc.ID).Str("entidad_id", entityID).Msg("documento encolado")
	return task, nil
}

// Process ejecuta un intento de la tarea: reclama, firma, envía al SRI y aplica el resultado.
// Las fallas del SRI quedan registradas en la tarea y no se devuelven como error.
func (s *QueueService) Process(ctx context.Context, taskID string) (*entity.SRITask, error) {
	task, _, err := s.attempt(ctx, taskID)
	return task, err
}

// attempt es Process e informa además si la tarea fue reclamada por este llamador.
func (s *QueueService) attempt(ctx context.Context, taskID string) (*entity.SRITask, bool, error) {
	task, doc, proceed, err := s.claim(ctx, taskID)
	if err != nil {
		return nil, false, err
	}
	if !proceed {
		return task, false, nil
	}

	if doc.Status == entity.DocStatusEnCola {
		signed, err := s.signer.Sign(ctx, task.DocumentType, task.Payload)
		if err != nil {
			out, err := s.finish(ctx, task.ID, func(r repository.Repos, t *entity.SRITask, d *entity.ElectronicDocument, now time.Time) error {
				return s.failTerminal(ctx, r, t, d, entity.DocStatusError, "error al firmar el comprobante: "+err.Error(), now)
			})
			return out, true, err
		}
		if err := s.markSigned(ctx, doc.ID, signed); err != nil {
			return nil, true, err
		}
		doc.SignedXML = signed
		doc.Status = entity.DocStatusFirmado
	}

	resp, sendErr := s.gateway.Send(ctx, SendRequest{
		DocumentType:    task.DocumentType,
		AccessKey:       doc.AccessKey,
		SignedXML:       doc.SignedXML,
		AlreadyReceived: doc.Status == entity.DocStatusRecibido,
	})

	var authorized *entity.ElectronicDocument
	out, err := s.finish(ctx, task.ID, func(r repository.Repos, t *entity.SRITask, d *entity.ElectronicDocument, now time.Time) error {
		ok, err := s.applyOutcome(ctx, r, t, d, resp, sendErr, now)
		if ok {
			authorized = d
		}
		return err
	})
	if err != nil {
		return nil, true, err
	}
	if authorized != nil {
		s.dispatchAuthorized(authorized, out.Payload)
	}
	return out, true, nil
}

// claim marca la tarea PROCESANDO y suma el intento en una transacción corta.
func (s *QueueService) claim(ctx context.Context, taskID string) (*entity.SRITask, *entity.ElectronicDocument, bool, error) {
	var (
		task    *entity.SRITask
		doc     *entity.ElectronicDocument
		proceed bool
	)
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		var err error
		task, err = r.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if !task.Active || task.IsTerminal() {
			return nil
		}
		now := s.now()
		if task.Status == entity.TaskStatusProcesando && task.LockedAt != nil && now.Sub(*task.LockedAt) < s.leaseTimeout {
			s.log.Debug().Str("tarea_id", task.ID).Msg("tarea en proceso por otro worker")
			return nil
		}
		doc, err = r.Documents.GetForUpdate(ctx, task.DocumentID)
		if err != nil {
			return err
		}
		if doc.IsTerminal() {
			s.log.Warn().Str("tarea_id", task.ID).Str("documento_id", doc.ID).Str("estado", doc.Status).
				Msg("documento ya terminal, se omite la tarea")
			return nil
		}

		if task.Status == entity.TaskStatusProcesando {
			// Lease vencido: el intento anterior se dio por perdido.
			if !task.AttemptsLeft() {
				return s.failTerminal(ctx, r, task, doc, entity.DocStatusError, "procesamiento abandonado sin intentos disponibles", now)
			}
		} else if err := task.TransitionTo(entity.TaskStatusProcesando, now); err != nil {
			return err
		}
		task.Attempts++
		task.LockedAt = &now
		task.NextRetryAt = nil
		task.Touch(SystemActor, now)
		doc.Attempts++
		doc.Touch(SystemActor, now)
		if err := r.Tasks.Update(ctx, task); err != nil {
			return err
		}
		if err := r.Documents.Update(ctx, doc); err != nil {
			return err
		}
		proceed = true
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	if proceed {
		s.log.Info().Str("tarea_id", task.ID).Str("documento_id", doc.ID).Int("intentos", task.Attempts).Msg("tarea reclamada")
	}
	return task, doc, proceed, nil
}

func (s *QueueService) markSigned(ctx context.Context, docID, signed string) error {
	return s.txRunner.Run(ctx, func(r repository.Repos) error {
		doc, err := r.Documents.GetForUpdate(ctx, docID)
		if err != nil {
			return err
		}
		now := s.now()
		h, err := doc.TransitionTo(entity.DocStatusFirmado, "comprobante firmado", SystemActor, now)
		if err != nil {
			return err
		}
		doc.SignedXML = signed
		if err := r.Documents.Update(ctx, doc); err != nil {
			return err
		}
		return s.appendHistory(ctx, r, h)
	})
}

type outcomeFunc func(r repository.Repos, task *entity.SRITask, doc *entity.ElectronicDocument, now time.Time) error

// finish aplica fn sobre la tarea y su documento bloqueados, y persiste ambos.
func (s *QueueService) finish(ctx context.Context, taskID string, fn outcomeFunc) (*entity.SRITask, error) {
	var out *entity.SRITask
	err := s.txRunner.Run(ctx, func(r repository.Repos) error {
		task, err := r.Tasks.GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		out = task
		if task.Status != entity.TaskStatusProcesando {
			s.log.Warn().Str("tarea_id", task.ID).Str("estado", task.Status).Msg("la tarea cambió de estado durante el envío; se descarta el resultado")
			return nil
		}
		doc, err := r.Documents.GetForUpdate(ctx, task.DocumentID)
		if err != nil {
			return err
		}
		if err := fn(r, task, doc, s.now()); err != nil {
			return err
		}
		task.LockedAt = nil
		if err := r.Tasks.Update(ctx, task); err != nil {
			return err
		}
		return r.Documents.Update(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyOutcome traduce la respuesta del gateway en transiciones. Devuelve true si el documento quedó AUTORIZADO.
func (s *QueueService) applyOutcome(
	ctx context.Context,
	r repository.Repos,
	task *entity.SRITask,
	doc *entity.ElectronicDocument,
	resp *GatewayResponse,
	sendErr error,
	now time.Time,
) (bool, error) {
	if sendErr != nil {
		if !isTransient(sendErr) {
			return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusError, "error del gateway SRI: "+sendErr.Error(), now)
		}
		msg := "falla de comunicación con el SRI: " + sendErr.Error()
		if !task.AttemptsLeft() {
			return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusError, msg, now)
		}
		return false, s.scheduleRetry(task, doc, sri.NetworkBackoff(task.Attempts), msg, now)
	}
	if resp == nil {
		return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusError, "respuesta vacía del SRI", now)
	}

	switch resp.Status {
	case GatewayRecibida, GatewayRecibido:
		if doc.Status != entity.DocStatusRecibido {
			h, err := doc.TransitionTo(entity.DocStatusRecibido, reasonOr(resp.Message, "recibido por el SRI"), SystemActor, now)
			if err != nil {
				return false, err
			}
			if err := s.appendHistory(ctx, r, h); err != nil {
				return false, err
			}
		}
		if doc.Attempts >= sri.MaxDocumentAttempts {
			return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusError,
				fmt.Sprintf("el SRI no autorizó el comprobante tras %d consultas", doc.Attempts), now)
		}
		return false, s.scheduleRetry(task, doc, sri.ReceivedBackoff(task.Attempts), "", now)

	case GatewayAutorizado:
		if err := task.TransitionTo(entity.TaskStatusCompletado, now); err != nil {
			return false, err
		}
		task.LastError = ""
		task.NextRetryAt = nil
		h, err := doc.TransitionTo(entity.DocStatusAutorizado, reasonOr(resp.Message, "autorizado por el SRI"), SystemActor, now)
		if err != nil {
			return false, err
		}
		xml := resp.AuthorizedXML
		if xml == "" {
			xml = doc.SignedXML
		}
		number := resp.AuthorizationNumber
		if number == "" {
			number = doc.AccessKey
		}
		at := now
		if resp.AuthorizedAt != nil {
			at = *resp.AuthorizedAt
		}
		if err := doc.Authorize(xml, number, at); err != nil {
			return false, err
		}
		doc.NextRetryAt = nil
		if err := s.appendHistory(ctx, r, h); err != nil {
			return false, err
		}
		s.log.Info().Str("tarea_id", task.ID).Str("documento_id", doc.ID).Str("clave_acceso", doc.AccessKey).Msg("comprobante autorizado")
		return true, nil

	case GatewayRechazado:
		return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusRechazado, reasonOr(resp.Message, "rechazado por el SRI"), now)
	}
	return false, s.failTerminal(ctx, r, task, doc, entity.DocStatusError,
		fmt.Sprintf("respuesta desconocida del SRI: estado %q %s", resp.Status, resp.Message), now)
}

func (s *QueueService) scheduleRetry(task *entity.SRITask, doc *entity.ElectronicDocument, wait time.Duration, msg string, now time.Time) error {
	if err := task.TransitionTo(entity.TaskStatusReintentoProgramado, now); err != nil {
		return err
	}
	next := sri.NextRetry(now, wait)
	task.NextRetryAt = &next
	task.LastError = msg
	doc.NextRetryAt = &next
	doc.LastError = msg
	doc.Touch(SystemActor, now)
	s.log.Info().Str("tarea_id", task.ID).Int("intentos", task.Attempts).Time("next_retry_at", next).Str("error", msg).
		Msg("reintento programado")
	return nil
}

// failTerminal deja la tarea FALLIDO y el documento en docStatus (ERROR o RECHAZADO) con historial y auditoría.
func (s *QueueService) failTerminal(
	ctx context.Context,
	r repository.Repos,
	task *entity.SRITask,
	doc *entity.ElectronicDocument,
	docStatus, msg string,
	now time.Time,
) error {
	if err := task.TransitionTo(entity.TaskStatusFallido, now); err != nil {
		return err
	}
	task.LastError = msg
	task.NextRetryAt = nil
	task.LockedAt = nil
	prev := doc.Status
	h, err := doc.TransitionTo(docStatus, msg, SystemActor, now)
	if err != nil {
		return err
	}
	doc.LastError = msg
	doc.NextRetryAt = nil
	if err := r.Tasks.Update(ctx, task); err != nil {
		return err
	}
	if err := r.Documents.Update(ctx, doc); err != nil {
		return err
	}
	if err := s.appendHistory(ctx, r, h); err != nil {
		return err
	}
	s.log.Warn().Str("tarea_id", task.ID).Str("documento_id", doc.ID).Str("estado", docStatus).Int("intentos", task.Attempts).
		Str("error", msg).Msg("tarea SRI fallida")
	return r.Audit.Append(ctx, &entity.AuditLog{
		ID:          uuid.New().String(),
		Entity:      "documento_electronico",
		EntityID:    doc.ID,
		Action:      "FALLO_SRI",
		BeforeState: prev,
		AfterState:  docStatus,
		Actor:       SystemActor,
		Detail:      msg,
		CreatedAt:   now,
	})
}

func (s *QueueService) appendHistory(ctx context.Context, r repository.Repos, h *entity.DocumentHistory) error {
	h.ID = uuid.New().String()
	return r.History.Append(ctx, h)
}

func (s *QueueService) dispatchAuthorized(doc *entity.ElectronicDocument, payload []byte) {
	if s.onAuthorized == nil {
		return
	}
	handler := s.onAuthorized
	log := s.log
	s.executor.Go(func(ctx context.Context) {
		if err := handler.OnAuthorized(ctx, doc, payload); err != nil {
			log.Error().Err(err).Str("documento_id", doc.ID).Msg("error en efectos de autorización")
		}
	})
}

// isTransient clasifica fallas de red: timeouts, conexión rechazada o ErrTransientGateway.
func isTransient(err error) bool {
	if errors.Is(err, domain.ErrTransientGateway) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func reasonOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}
