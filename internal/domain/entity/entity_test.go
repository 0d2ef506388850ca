package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/osiris-api/internal/domain"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// ── Tarea de cola ───────────────────────────────────────────────────────────

func TestSRITask_PendienteNoSaltaATerminal(t *testing.T) {
	for _, to := range []string{TaskStatusCompletado, TaskStatusFallido, TaskStatusReintentoProgramado} {
		task := &SRITask{ID: "t1", Status: TaskStatusPendiente}
		err := task.TransitionTo(to, now)
		assert.ErrorIs(t, err, domain.ErrInvalidState, "PENDIENTE -> %s", to)
		assert.Equal(t, TaskStatusPendiente, task.Status)
	}
}

func TestSRITask_TerminalesAbsorbentes(t *testing.T) {
	all := []string{TaskStatusPendiente, TaskStatusProcesando, TaskStatusReintentoProgramado, TaskStatusCompletado, TaskStatusFallido}
	for _, from := range []string{TaskStatusCompletado, TaskStatusFallido} {
		for _, to := range all {
			task := &SRITask{ID: "t1", Status: from}
			assert.True(t, task.IsTerminal())
			assert.Error(t, task.TransitionTo(to, now), "%s -> %s", from, to)
		}
	}
}

func TestSRITask_CicloReintento(t *testing.T) {
	task := &SRITask{ID: "t1", Status: TaskStatusPendiente, MaxAttempts: DefaultTaskMaxAttempts}
	require.NoError(t, task.TransitionTo(TaskStatusProcesando, now))
	require.NoError(t, task.TransitionTo(TaskStatusReintentoProgramado, now))
	require.NoError(t, task.TransitionTo(TaskStatusProcesando, now))
	require.NoError(t, task.TransitionTo(TaskStatusCompletado, now))
	assert.True(t, task.IsTerminal())
}

func TestSRITask_AttemptsLeft(t *testing.T) {
	task := &SRITask{Attempts: 2, MaxAttempts: 3}
	assert.True(t, task.AttemptsLeft())
	task.Attempts = 3
	assert.False(t, task.AttemptsLeft())
}

// ── Documento electrónico ───────────────────────────────────────────────────

func TestElectronicDocument_TransitionTo(t *testing.T) {
	doc := &ElectronicDocument{ID: "d1", Status: DocStatusEnCola}

	h, err := doc.TransitionTo(DocStatusFirmado, "firmado", "worker", now)
	require.NoError(t, err)
	assert.Equal(t, DocStatusEnCola, h.FromStatus)
	assert.Equal(t, DocStatusFirmado, h.ToStatus)
	assert.Equal(t, "worker", h.ActorID)
	assert.Equal(t, DocStatusFirmado, doc.Status)

	_, err = doc.TransitionTo(DocStatusEnCola, "", "worker", now)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestElectronicDocument_Terminales(t *testing.T) {
	for _, s := range []string{DocStatusAutorizado, DocStatusRechazado, DocStatusError} {
		doc := &ElectronicDocument{ID: "d1", Status: s}
		assert.True(t, doc.IsTerminal())
		_, err := doc.TransitionTo(DocStatusRecibido, "", "", now)
		assert.Error(t, err)
	}
}

func TestElectronicDocument_AuthorizeUnaVez(t *testing.T) {
	doc := &ElectronicDocument{ID: "d1", LastError: "timeout"}
	require.NoError(t, doc.Authorize("<autorizacion/>", "123", now))
	assert.Empty(t, doc.LastError)
	assert.Error(t, doc.Authorize("<otro/>", "456", now))
	assert.Equal(t, "<autorizacion/>", doc.AuthorizedXML)
	assert.Equal(t, "123", doc.AuthorizationNumber)
}

// ── Cuentas ─────────────────────────────────────────────────────────────────

func TestReceivable_Apply(t *testing.T) {
	r := &Receivable{Total: dec("10"), Balance: dec("10"), Status: AccountStatusAbierta}
	assert.False(t, r.HasApplications())
	r.Apply(dec("4"), false)
	r.Apply(dec("6"), true)
	assert.True(t, r.HasApplications())
	assert.True(t, r.Balance.IsZero())
	assert.Equal(t, AccountStatusPagada, r.Status)
}

func TestInventoryMovement_ReferenceID(t *testing.T) {
	m := &InventoryMovement{Reference: RefPrefixVenta + "v-1"}
	id, ok := m.ReferenceID(RefPrefixVenta)
	assert.True(t, ok)
	assert.Equal(t, "v-1", id)
	_, ok = m.ReferenceID(RefPrefixCompra)
	assert.False(t, ok)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
