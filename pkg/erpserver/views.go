package erpserver

import (
	"github.com/colegio-digital/gestor/ent"
	"github.com/colegio-digital/gestor/pkg/models"
)

func toStudentView(row *ent.Student, guardians []*ent.Guardian) models.StudentView {
	view := models.StudentView{
		ID:     row.ID,
		Name:   row.Name,
		Grade:  row.Grade,
		Active: row.Active,
	}
	if row.BirthDate != nil {
		view.BirthDate = row.BirthDate.Format("2006-01-02")
	}
	for _, g := range guardians {
		view.Guardians = append(view.Guardians, toGuardianView(g, nil))
	}
	return view
}

func toGuardianView(row *ent.Guardian, students []*ent.Student) models.GuardianView {
	view := models.GuardianView{
		ID:       row.ID,
		Name:     row.Name,
		Phone:    row.Phone,
		Relation: string(row.Relation),
	}
	if row.Email != nil {
		view.Email = *row.Email
	}
	for _, s := range students {
		view.Students = append(view.Students, toStudentView(s, nil))
	}
	return view
}

func toInstallmentView(row *ent.Installment, owner *ent.Student) models.InstallmentView {
	view := models.InstallmentView{
		ID:        row.ID,
		StudentID: row.StudentID,
		PlanID:    row.PlanID,
		Sequence:  row.Sequence,
		Amount:    row.Amount,
		DueDate:   row.DueDate.Format("2006-01-02"),
		State:     string(row.State),
		PaidAt:    row.PaidAt,
	}
	if row.PayLink != nil {
		view.PayLink = *row.PayLink
	}
	if owner != nil {
		student := toStudentView(owner, nil)
		view.Student = &student
	}
	return view
}

func toPaymentView(row *ent.Payment) models.PaymentView {
	view := models.PaymentView{
		ID:            row.ID,
		InstallmentID: row.InstallmentID,
		Amount:        row.Amount,
		PaidAt:        row.PaidAt,
		Method:        row.Method,
	}
	if row.Reference != nil {
		view.Reference = *row.Reference
	}
	return view
}
