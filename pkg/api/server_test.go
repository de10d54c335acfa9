package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colegio-digital/gestor/ent/interaction"
	"github.com/colegio-digital/gestor/ent/notificationsent"
	"github.com/colegio-digital/gestor/pkg/config"
	"github.com/colegio-digital/gestor/pkg/database"
	"github.com/colegio-digital/gestor/pkg/llm"
	"github.com/colegio-digital/gestor/pkg/models"
	"github.com/colegio-digital/gestor/pkg/services"
	"github.com/colegio-digital/gestor/pkg/whatsapp"
	testdb "github.com/colegio-digital/gestor/test/database"
)

// stubAgent answers every inbound message with a fixed reply.
type stubAgent struct {
	reply string
	err   error
	calls int
}

func (a *stubAgent) Handle(ctx context.Context, queryID string, msg models.InboundMessage) (*models.AgentReply, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &models.AgentReply{Text: a.reply, Agent: "hierarchical", QueryID: queryID}, nil
}

// stubCompleter returns canned content for every node.
type stubCompleter struct {
	content string
}

func (s *stubCompleter) Complete(ctx context.Context, node, kind string, messages []llm.Message) (*llm.Response, error) {
	return &llm.Response{Content: s.content, HasUsage: true}, nil
}

type apiFixture struct {
	db    *database.Client
	svc   Services
	agent *stubAgent
	base  string
}

func testConfig() *config.OrchestratorConfig {
	return &config.OrchestratorConfig{
		Port: "0",
		LLM:  config.LLMConfig{Provider: "openai", Model: "test-model"},
		WhatsApp: config.WhatsAppConfig{
			Token:       "dummy-test",
			VerifyToken: "verify-me",
		},
		Agent: config.AgentConfig{RequestTimeout: 5 * time.Second},
	}
}

// newTestFixture wires a server over a real database with the outbound
// transport in simulation mode and background work running inline.
func newTestFixture(t *testing.T) *apiFixture {
	t.Helper()
	client := testdb.NewTestClient(t)

	svc := Services{
		Mirrors:       services.NewMirrorService(client.Client),
		Interactions:  services.NewInteractionService(client.Client),
		Tickets:       services.NewTicketService(client.Client),
		Notifications: services.NewNotificationService(client.Client),
		TokenUsage:    services.NewTokenUsageService(client.Client),
	}
	stub := &stubAgent{reply: "Hola María, tu deuda total es $132.000"}
	wa := whatsapp.NewService(config.WhatsAppConfig{Token: "dummy-test"})
	completer := &stubCompleter{content: "¡Hola! La administración ya resolvió tu gestión."}

	server := NewServer(testConfig(), nil, stub, completer, svc, wa, nil)
	httpSrv := httptest.NewServer(server.Handler())
	t.Cleanup(httpSrv.Close)

	return &apiFixture{db: client, svc: svc, agent: stub, base: httpSrv.URL}
}

// seedFamily mirrors one guardian with one student and one pending
// installment due on the given date.
func (f *apiFixture) seedFamily(t *testing.T, dueDate string) {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.Mirrors.UpsertGuardian(ctx, models.GuardianUpdatedData{
		ID:         "G-001",
		Name:       "María García",
		Phone:      "+5491112345001",
		Relation:   "madre",
		StudentIDs: []string{"A-001"},
	})
	require.NoError(t, err)

	_, err = f.svc.Mirrors.UpsertStudent(ctx, models.StudentUpdatedData{
		ID: "A-001", Name: "Juan García", Grade: "3A", Active: true,
	})
	require.NoError(t, err)

	_, err = f.svc.Mirrors.UpsertInstallment(ctx, models.InstallmentGeneratedData{
		ID:        "C-2026-03",
		StudentID: "A-001",
		Sequence:  3,
		Amount:    66000,
		DueDate:   dueDate,
		State:     "pending",
	})
	require.NoError(t, err)
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func erpEvent(eventType string, data interface{}) models.WebhookEvent {
	raw, _ := json.Marshal(data)
	decoded := map[string]interface{}{}
	_ = json.Unmarshal(raw, &decoded)
	return models.WebhookEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      decoded,
	}
}

func TestVerifyWhatsAppHandshake(t *testing.T) {
	fixture := newTestFixture(t)

	t.Run("matching token echoes integer challenge", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=1158201444")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, "1158201444", string(body))
	})

	t.Run("wrong token is forbidden", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("non-integer challenge is forbidden", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=abc")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("wrong mode is forbidden", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/webhook/whatsapp?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=42")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestInboundWhatsApp(t *testing.T) {
	t.Run("simplified payload runs the agent and records the exchange", func(t *testing.T) {
		fixture := newTestFixture(t)

		resp := postJSON(t, fixture.base+"/webhook/whatsapp", models.InboundMessage{
			FromNumber: "+5491112345001",
			Text:       "cuánto debo?",
		})
		var body map[string]interface{}
		decodeBody(t, resp, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "hierarchical", body["agent"])
		assert.Equal(t, fixture.agent.reply, body["reply"])
		assert.NotEmpty(t, body["query_id"])
		assert.Equal(t, 1, fixture.agent.calls)

		ctx := context.Background()
		inbound, err := fixture.db.Interaction.Query().
			Where(interaction.KindEQ(interaction.KindInbound)).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, inbound, 1)
		assert.Equal(t, "cuánto debo?", inbound[0].Text)

		replies, err := fixture.db.Interaction.Query().
			Where(interaction.KindEQ(interaction.KindBotReply)).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, replies, 1)
		assert.Equal(t, fixture.agent.reply, replies[0].Text)

		usage, err := fixture.svc.TokenUsage.GetUsage(ctx, body["query_id"].(string))
		require.NoError(t, err)
		assert.Equal(t, "+5491112345001", usage.Phone)
		assert.Equal(t, "openai", usage.Provider)
	})

	t.Run("native cloud api envelope is flattened", func(t *testing.T) {
		fixture := newTestFixture(t)

		payload := map[string]interface{}{
			"object": "whatsapp_business_account",
			"entry": []map[string]interface{}{{
				"changes": []map[string]interface{}{{
					"value": map[string]interface{}{
						"messages": []map[string]interface{}{{
							"from": "+5491112345002",
							"id":   "wamid.test",
							"type": "text",
							"text": map[string]string{"body": "hola"},
						}},
					},
				}},
			}},
		}
		resp := postJSON(t, fixture.base+"/webhook/whatsapp", payload)
		var body map[string]interface{}
		decodeBody(t, resp, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	})

	t.Run("payload without a text message is unprocessable", func(t *testing.T) {
		fixture := newTestFixture(t)

		resp := postJSON(t, fixture.base+"/webhook/whatsapp", map[string]string{"object": "whatsapp_business_account"})
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Equal(t, 0, fixture.agent.calls)
	})

	t.Run("agent failure still records the inbound message", func(t *testing.T) {
		fixture := newTestFixture(t)
		fixture.agent.err = errors.New("planner exploded")

		resp := postJSON(t, fixture.base+"/webhook/whatsapp", models.InboundMessage{
			FromNumber: "+5491112345003",
			Text:       "hola",
		})
		var body map[string]interface{}
		decodeBody(t, resp, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["success"])

		ctx := context.Background()
		count, err := fixture.db.Interaction.Query().
			Where(interaction.KindEQ(interaction.KindInbound)).
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		replies, err := fixture.db.Interaction.Query().
			Where(interaction.KindEQ(interaction.KindBotReply)).
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, replies)
	})
}

func TestPaymentConfirmedWebhook(t *testing.T) {
	t.Run("marks the mirror paid and confirms once", func(t *testing.T) {
		fixture := newTestFixture(t)
		fixture.seedFamily(t, "2026-03-10")
		ctx := context.Background()

		event := erpEvent(models.EventPaymentConfirmed, models.PaymentConfirmedData{
			InstallmentID: "C-2026-03",
			StudentID:     "A-001",
			Amount:        66000,
			PaidAt:        time.Now().UTC().Format(time.RFC3339),
		})

		resp := postJSON(t, fixture.base+"/webhook/erp/payment-confirmed", event)
		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ok", body["status"])

		mirror, err := fixture.db.InstallmentMirror.Get(ctx, "C-2026-03")
		require.NoError(t, err)
		assert.Equal(t, "paid", mirror.State)
		require.NotNil(t, mirror.PaidAt)

		count, err := fixture.db.NotificationSent.Query().
			Where(notificationsent.InstallmentIDEQ("C-2026-03")).
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// Redelivery of the same event must not confirm twice.
		resp = postJSON(t, fixture.base+"/webhook/erp/payment-confirmed", event)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		count, err = fixture.db.NotificationSent.Query().
			Where(notificationsent.InstallmentIDEQ("C-2026-03")).
			Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("unknown installment is acknowledged and ignored", func(t *testing.T) {
		fixture := newTestFixture(t)

		event := erpEvent(models.EventPaymentConfirmed, models.PaymentConfirmedData{
			InstallmentID: "C-9999-99",
			StudentID:     "A-404",
			Amount:        1000,
			PaidAt:        time.Now().UTC().Format(time.RFC3339),
		})
		resp := postJSON(t, fixture.base+"/webhook/erp/payment-confirmed", event)
		var body map[string]interface{}
		decodeBody(t, resp, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "ignored", body["status"])
	})

	t.Run("missing installment id is rejected", func(t *testing.T) {
		fixture := newTestFixture(t)

		event := erpEvent(models.EventPaymentConfirmed, map[string]interface{}{"amount": 100})
		resp := postJSON(t, fixture.base+"/webhook/erp/payment-confirmed", event)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestMirrorUpsertWebhooks(t *testing.T) {
	fixture := newTestFixture(t)
	ctx := context.Background()

	t.Run("guardian_updated creates and refreshes the mirror", func(t *testing.T) {
		event := erpEvent(models.EventGuardianUpdated, models.GuardianUpdatedData{
			ID:         "G-010",
			Name:       "Carlos Pérez",
			Phone:      "+5491112345010",
			Relation:   "padre",
			StudentIDs: []string{"A-010", "A-011"},
		})
		resp := postJSON(t, fixture.base+"/webhook/erp/guardian-updated", event)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		guardian, err := fixture.db.GuardianMirror.Get(ctx, "G-010")
		require.NoError(t, err)
		assert.Equal(t, "Carlos Pérez", guardian.Name)
		assert.Equal(t, []string{"A-010", "A-011"}, guardian.Students)

		event = erpEvent(models.EventGuardianUpdated, models.GuardianUpdatedData{
			ID:         "G-010",
			Name:       "Carlos A. Pérez",
			Phone:      "+5491112345010",
			StudentIDs: []string{"A-010"},
		})
		resp = postJSON(t, fixture.base+"/webhook/erp/guardian-updated", event)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		guardian, err = fixture.db.GuardianMirror.Get(ctx, "G-010")
		require.NoError(t, err)
		assert.Equal(t, "Carlos A. Pérez", guardian.Name)
		assert.Equal(t, []string{"A-010"}, guardian.Students)
	})

	t.Run("student_updated creates the mirror", func(t *testing.T) {
		event := erpEvent(models.EventStudentUpdated, models.StudentUpdatedData{
			ID: "A-010", Name: "Lucía Pérez", Grade: "5B", Active: true,
		})
		resp := postJSON(t, fixture.base+"/webhook/erp/student-updated", event)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		student, err := fixture.db.StudentMirror.Get(ctx, "A-010")
		require.NoError(t, err)
		assert.Equal(t, "5B", student.Grade)
	})

	t.Run("installment_generated creates a pending mirror", func(t *testing.T) {
		event := erpEvent(models.EventInstallmentGenerated, models.InstallmentGeneratedData{
			ID:        "C-2026-04",
			StudentID: "A-010",
			Sequence:  4,
			Amount:    66000,
			DueDate:   "2026-04-10",
		})
		resp := postJSON(t, fixture.base+"/webhook/erp/installment-generated", event)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		mirror, err := fixture.db.InstallmentMirror.Get(ctx, "C-2026-04")
		require.NoError(t, err)
		assert.Equal(t, "pending", mirror.State)
	})

	t.Run("missing id fails validation", func(t *testing.T) {
		event := erpEvent(models.EventGuardianUpdated, models.GuardianUpdatedData{Name: "Sin ID"})
		resp := postJSON(t, fixture.base+"/webhook/erp/guardian-updated", event)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestAdminTicketEndpoints(t *testing.T) {
	fixture := newTestFixture(t)
	fixture.seedFamily(t, "2026-03-10")
	ctx := context.Background()

	plan, err := fixture.svc.Tickets.CreateTicket(ctx, models.CreateTicketRequest{
		StudentID: "A-001",
		Category:  "plan_request",
		Reason:    "Pide plan de pago en 3 cuotas",
		Priority:  "high",
	})
	require.NoError(t, err)

	_, err = fixture.svc.Tickets.CreateTicket(ctx, models.CreateTicketRequest{
		StudentID: "A-001",
		Category:  "complaint",
		Reason:    "Queja por recargo",
	})
	require.NoError(t, err)

	t.Run("list returns all tickets", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/api/v1/admin/tickets")
		require.NoError(t, err)
		var body struct {
			Tickets []ticketView `json:"tickets"`
			Count   int          `json:"count"`
		}
		decodeBody(t, resp, &body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, 2, body.Count)
	})

	t.Run("list filters by category", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/api/v1/admin/tickets?categoria=plan_request")
		require.NoError(t, err)
		var body struct {
			Tickets []ticketView `json:"tickets"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Tickets, 1)
		assert.Equal(t, plan.ID, body.Tickets[0].ID)
	})

	t.Run("get accepts the short prefix", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/api/v1/admin/tickets/" + plan.ID[:8])
		require.NoError(t, err)
		var view ticketView
		decodeBody(t, resp, &view)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, plan.ID, view.ID)
		assert.Equal(t, "pending", view.State)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		resp, err := http.Get(fixture.base + "/api/v1/admin/tickets/ffffffff")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("responder resolves and forwards a reformulated reply", func(t *testing.T) {
		resp := postJSON(t, fixture.base+"/api/v1/admin/tickets/"+plan.ID[:8]+"/responder",
			models.RespondTicketRequest{Reply: "Aprobado el plan en 3 cuotas sin interés"})
		var view ticketView
		decodeBody(t, resp, &view)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "resolved", view.State)
		require.NotNil(t, view.AdminReply)
		assert.Equal(t, "Aprobado el plan en 3 cuotas sin interés", *view.AdminReply)
		assert.NotNil(t, view.ResolvedAt)

		rows, err := fixture.db.Interaction.Query().
			Where(
				interaction.KindEQ(interaction.KindAdminReply),
				interaction.PhoneEQ("+5491112345001"),
			).
			All(ctx)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "¡Hola! La administración ya resolvió tu gestión.", rows[0].Text)
		require.NotNil(t, rows[0].Agent)
		assert.Equal(t, "admin", *rows[0].Agent)
	})

	t.Run("responder without reply is rejected", func(t *testing.T) {
		resp := postJSON(t, fixture.base+"/api/v1/admin/tickets/"+plan.ID[:8]+"/responder", map[string]string{})
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})
}

func TestNotificationEndpoints(t *testing.T) {
	t.Run("send delivers in simulation mode and records it", func(t *testing.T) {
		fixture := newTestFixture(t)

		resp := postJSON(t, fixture.base+"/api/v1/notifications/send", sendNotificationRequest{
			Phone: "+5491112345001",
			Text:  "Aviso de prueba",
		})
		var body map[string]interface{}
		decodeBody(t, resp, &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, true, body["simulated"])
		assert.NotEmpty(t, body["message_id"])

		count, err := fixture.db.Interaction.Query().
			Where(interaction.KindEQ(interaction.KindBotReply)).
			Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("register deduplicates by installment and kind", func(t *testing.T) {
		fixture := newTestFixture(t)

		req := registerNotificationRequest{
			InstallmentID: "C-2026-03",
			Phone:         "+5491112345001",
			Kind:          "reminder_d3",
		}
		resp := postJSON(t, fixture.base+"/api/v1/notifications/register", req)
		var body map[string]interface{}
		decodeBody(t, resp, &body)
		assert.Equal(t, true, body["created"])

		resp = postJSON(t, fixture.base+"/api/v1/notifications/register", req)
		decodeBody(t, resp, &body)
		assert.Equal(t, false, body["created"])
	})
}

func TestRunReminders(t *testing.T) {
	fixture := newTestFixture(t)
	dueDate := time.Now().UTC().AddDate(0, 0, 3).Format("2006-01-02")
	fixture.seedFamily(t, dueDate)

	resp := postJSON(t, fixture.base+"/api/v1/notifications/reminders", map[string]string{})
	var body map[string]interface{}
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["scanned"])
	assert.Equal(t, float64(1), body["sent"])

	row, err := fixture.db.NotificationSent.Query().
		Where(notificationsent.InstallmentIDEQ("C-2026-03")).
		Only(context.Background())
	require.NoError(t, err)
	assert.Equal(t, notificationsent.KindReminderD3, row.Kind)

	// A second scan finds the installment again but sends nothing.
	resp = postJSON(t, fixture.base+"/api/v1/notifications/reminders", map[string]string{})
	decodeBody(t, resp, &body)
	assert.Equal(t, float64(1), body["scanned"])
	assert.Equal(t, float64(0), body["sent"])
}

func TestHealthWithoutDatabase(t *testing.T) {
	wa := whatsapp.NewService(config.WhatsAppConfig{Token: "dummy-test"})
	server := NewServer(testConfig(), nil, &stubAgent{reply: "ok"}, nil, Services{}, wa, nil)
	httpSrv := httptest.NewServer(server.Handler())
	defer httpSrv.Close()

	resp, err := http.Get(httpSrv.URL + "/health")
	require.NoError(t, err)
	var body map[string]interface{}
	decodeBody(t, resp, &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "not configured", body["database"])
}
