package erpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/ent/guardian"
	"github.com/colegio-digital/gestor/ent/installment"
)

// SeedDemo loads the demo school into an empty database: two families,
// one payment plan and a mix of paid, pending and overdue installments.
// Idempotent: a database that already holds the demo guardian is left
// untouched.
func SeedDemo(ctx context.Context, client *ent.Client) error {
	exists, err := client.Guardian.Query().Where(guardian.IDEQ("G-001")).Exist(ctx)
	if err != nil {
		return fmt.Errorf("failed to check seed state: %w", err)
	}
	if exists {
		return nil
	}

	tx, err := client.Tx(ctx)
	if err != nil {
		return fmt.Errorf("failed to start seed transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	plans := []struct {
		id     string
		label  string
		count  int
		amount float64
	}{
		{"P-2026-3A", "Arancel 3er grado 2026", 10, 45000},
		{"P-2026-1B", "Arancel 1er grado 2026", 10, 42000},
	}
	for _, p := range plans {
		_, err := tx.PaymentPlan.Create().
			SetID(p.id).
			SetLabel(p.label).
			SetInstallmentCount(p.count).
			SetInstallmentAmount(p.amount).
			SetYear(2026).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", p.id, err)
		}
	}

	guardians := []struct {
		id       string
		name     string
		phone    string
		email    string
		relation guardian.Relation
	}{
		{"G-001", "María García", "+5491112345001", "maria.garcia@email.com", guardian.RelationMother},
		{"G-002", "Carlos López", "+5491112345002", "carlos.lopez@email.com", guardian.RelationFather},
	}
	for _, g := range guardians {
		_, err := tx.Guardian.Create().
			SetID(g.id).
			SetName(g.name).
			SetPhone(g.phone).
			SetEmail(g.email).
			SetRelation(g.relation).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed guardian %s: %w", g.id, err)
		}
	}

	students := []struct {
		id       string
		name     string
		grade    string
		guardian string
	}{
		{"A-001", "Juan García", "3A", "G-001"},
		{"A-002", "Sofía García", "1B", "G-001"},
		{"A-003", "Lucas López", "3A", "G-002"},
	}
	for _, st := range students {
		_, err := tx.Student.Create().
			SetID(st.id).
			SetName(st.name).
			SetGrade(st.grade).
			SetActive(true).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed student %s: %w", st.id, err)
		}
		_, err = tx.GuardianStudent.Create().
			SetGuardianID(st.guardian).
			SetStudentID(st.id).
			Save(ctx)
		if err != nil {
			return fmt.Errorf("failed to link student %s: %w", st.id, err)
		}
	}

	type seedInstallment struct {
		student string
		plan    string
		amount  float64
	}
	families := []seedInstallment{
		{"A-001", "P-2026-3A", 45000},
		{"A-002", "P-2026-1B", 42000},
		{"A-003", "P-2026-3A", 45000},
	}

	now := time.Now().UTC()
	for _, f := range families {
		for seq := 1; seq <= 4; seq++ {
			// Sequences 1-2 are in the past and paid, 3 is due in a
			// week, 4 the month after.
			var dueDate time.Time
			switch {
			case seq <= 2:
				dueDate = now.AddDate(0, seq-3, 0)
			case seq == 3:
				dueDate = now.AddDate(0, 0, 7)
			default:
				dueDate = now.AddDate(0, 1, 7)
			}
			id := fmt.Sprintf("C-%s-%02d", strings.ReplaceAll(f.student, "-", ""), seq)

			create := tx.Installment.Create().
				SetID(id).
				SetStudentID(f.student).
				SetPlanID(f.plan).
				SetSequence(seq).
				SetAmount(f.amount).
				SetDueDate(dueDate).
				SetPayLink("https://pagos.colegio.edu/pay/" + id)

			if seq <= 2 {
				paidAt := dueDate.AddDate(0, 0, -2)
				create = create.SetState(installment.StatePaid).SetPaidAt(paidAt)
			}
			row, err := create.Save(ctx)
			if err != nil {
				return fmt.Errorf("failed to seed installment %s: %w", id, err)
			}

			if seq <= 2 {
				_, err = tx.Payment.Create().
					SetID(NewPaymentID()).
					SetInstallmentID(row.ID).
					SetAmount(f.amount).
					SetPaidAt(*row.PaidAt).
					SetMethod("transfer").
					Save(ctx)
				if err != nil {
					return fmt.Errorf("failed to seed payment for %s: %w", id, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}
