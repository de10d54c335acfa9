package agent

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/tools"
)

func newTestCheckpointer(t *testing.T) *BoltCheckpointer {
	t.Helper()
	cp, err := NewBoltCheckpointer(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cp.Close() })
	return cp
}

func TestCheckpointRoundtrip(t *testing.T) {
	cp := newTestCheckpointer(t)

	state := NewState("q1", "+5491112345001", "Cuánto debo?")
	state.Node = NodeEvaluate
	state.Cursor = 1
	state.Reports = []models.SpecialistReport{
		{Specialist: models.SpecialistFinancial, Success: true, Summary: "ok"},
	}
	require.NoError(t, cp.Save("+5491112345001", state))

	loaded, ok, err := cp.Load("+5491112345001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NodeEvaluate, loaded.Node)
	assert.Equal(t, 1, loaded.Cursor)
	require.Len(t, loaded.Reports, 1)
	assert.True(t, loaded.Reports[0].Success)
}

func TestCheckpointMissingThread(t *testing.T) {
	cp := newTestCheckpointer(t)

	_, ok, err := cp.Load("+549000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckpointDelete(t *testing.T) {
	cp := newTestCheckpointer(t)

	require.NoError(t, cp.Save("t1", NewState("q", "t1", "hola")))
	require.NoError(t, cp.Delete("t1"))

	_, ok, err := cp.Load("t1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent thread is not an error.
	require.NoError(t, cp.Delete("t1"))
}

func TestNilCheckpointerIsNoOp(t *testing.T) {
	var cp *BoltCheckpointer
	require.NoError(t, cp.Save("t", NewState("q", "t", "x")))
	_, ok, err := cp.Load("t")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, cp.Delete("t"))
	require.NoError(t, cp.Close())
}

func TestRunnerResumesInterruptedRun(t *testing.T) {
	cp := newTestCheckpointer(t)

	// A run interrupted after planning: manager produced a plan, the
	// specialist step never ran.
	interrupted := NewState("q-old", "+5491112345001", "Cuánto debo?")
	interrupted.Node = NodeExecuteSpecialist
	interrupted.Plan = &models.MasterPlan{
		Intent: models.IntentFinancialQuery,
		Steps: []models.PlanStep{
			{Specialist: models.SpecialistFinancial, Goal: "consultar"},
		},
	}
	require.NoError(t, cp.Save("+5491112345001", interrupted))

	model := newScriptedLLM()
	model.responses["financial_plan"] = `{"actions":[{"tool":"consultar_estado_cuenta","params":{}}]}`

	caller := newStubCaller()
	caller.results["consultar_estado_cuenta"] = tools.OK(map[string]interface{}{
		"responsable": "María García",
		"deuda_total": 1000.0,
	})

	runner := NewRunner(model, caller, nil, cp, config.AgentConfig{MaxReplans: 3})

	reply, err := runner.Handle(context.Background(), "q-new", inbound("hola de nuevo"))
	require.NoError(t, err)

	// The interrupted run finished: no new manager call was needed.
	assert.Equal(t, 0, model.callCount(NodeManager))
	assert.Equal(t, "q-old", reply.QueryID)
	assert.NotEmpty(t, reply.Text)

	// Finished runs leave no checkpoint behind.
	_, ok, err := cp.Load("+5491112345001")
	require.NoError(t, err)
	assert.False(t, ok)
}
