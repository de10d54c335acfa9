package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/colegio-digital/gestor/pkg/erp"
	"github.com/colegio-digital/gestor/pkg/models"
)

// ERPToolConfig wires the ERP-backed tools into a registry.
type ERPToolConfig struct {
	Client *erp.Client
	// Mock makes handlers return synthetic payloads without reaching the
	// ERP, independent of per-tool mock responses.
	Mock bool
}

// RegisterERPTools registers the erp category tools.
func RegisterERPTools(r *Registry, cfg ERPToolConfig) {
	r.MustRegister(&Tool{
		Name:        "consultar_estado_cuenta",
		Description: "Consulta la deuda y las cuotas pendientes de todos los alumnos a cargo del responsable.",
		Category:    CategoryERP,
		Params: []ParamSpec{
			{Name: "telefono", Type: "string", Description: "Teléfono del responsable con código de país"},
		},
		Handler: cfg.accountStatus,
	})

	r.MustRegister(&Tool{
		Name:        "obtener_link_pago",
		Description: "Genera el link de pago para una cuota específica.",
		Category:    CategoryERP,
		Params: []ParamSpec{
			{Name: "cuota_id", Type: "string", Description: "Identificador de la cuota"},
		},
		Handler: cfg.paymentLink,
	})

	r.MustRegister(&Tool{
		Name:        "registrar_confirmacion_pago",
		Description: "Registra en el ERP la confirmación de pago de una cuota.",
		Category:    CategoryERP,
		Params: []ParamSpec{
			{Name: "cuota_id", Type: "string", Description: "Identificador de la cuota"},
			{Name: "monto", Type: "number", Description: "Monto abonado"},
			{Name: "referencia", Type: "string", Description: "Referencia externa del pago", Default: ""},
		},
		Handler: cfg.recordPayment,
	})

	r.MustRegister(&Tool{
		Name:        "buscar_alumno",
		Description: "Busca alumnos por nombre.",
		Category:    CategoryERP,
		Params: []ParamSpec{
			{Name: "nombre", Type: "string", Description: "Nombre o parte del nombre"},
		},
		Handler: cfg.searchStudent,
	})

	r.MustRegister(&Tool{
		Name:        "obtener_cuotas_por_vencer",
		Description: "Lista cuotas pendientes que vencen dentro de la ventana de días indicada.",
		Category:    CategoryERP,
		Params: []ParamSpec{
			{Name: "dias", Type: "integer", Description: "Ventana en días", Default: 7},
		},
		Handler: cfg.upcomingInstallments,
	})
}

func (cfg ERPToolConfig) accountStatus(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if cfg.Mock {
		return mockAccountStatus(), nil
	}

	phone, _ := args["telefono"].(string)
	guardian, err := cfg.Client.GetGuardianByHandle(ctx, phone)
	if err != nil {
		return nil, err
	}
	if guardian == nil {
		return nil, fmt.Errorf("no guardian registered for %s", phone)
	}

	students := make([]interface{}, 0, len(guardian.Students))
	var totalDebt float64
	for _, student := range guardian.Students {
		installments, err := cfg.Client.GetStudentInstallments(ctx, student.ID, "")
		if err != nil {
			return nil, err
		}
		pending := make([]interface{}, 0, len(installments))
		var debt float64
		for _, inst := range installments {
			if inst.State == "paid" {
				continue
			}
			pending = append(pending, map[string]interface{}{
				"id":          inst.ID,
				"numero":      inst.Sequence,
				"monto":       inst.Amount,
				"vencimiento": inst.DueDate,
				"estado":      inst.State,
			})
			debt += inst.Amount
		}
		students = append(students, map[string]interface{}{
			"id":                student.ID,
			"nombre":            student.Name,
			"grado":             student.Grade,
			"cuotas_pendientes": pending,
			"deuda":             debt,
		})
		totalDebt += debt
	}

	return map[string]interface{}{
		"responsable": guardian.Name,
		"telefono":    guardian.Phone,
		"alumnos":     students,
		"deuda_total": totalDebt,
	}, nil
}

func (cfg ERPToolConfig) paymentLink(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	installmentID, _ := args["cuota_id"].(string)
	if cfg.Mock {
		return mockPaymentLink(installmentID), nil
	}

	installment, err := cfg.Client.GetInstallment(ctx, installmentID)
	if err != nil {
		return nil, err
	}
	if installment == nil {
		return nil, fmt.Errorf("installment %s not found", installmentID)
	}
	link := installment.PayLink
	if link == "" {
		link = "https://pagos.colegio.edu/pay/" + installment.ID
	}
	return map[string]interface{}{
		"cuota_id": installment.ID,
		"monto":    installment.Amount,
		"link":     link,
	}, nil
}

func (cfg ERPToolConfig) recordPayment(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	installmentID, _ := args["cuota_id"].(string)
	amount, _ := args["monto"].(float64)
	reference, _ := args["referencia"].(string)

	if cfg.Mock {
		return map[string]interface{}{
			"registered": true,
			"payment_id": "PAY-MOCK0001",
			"cuota_id":   installmentID,
			"monto":      amount,
			"referencia": reference,
		}, nil
	}

	resp, err := cfg.Client.ConfirmPayment(ctx, models.ConfirmPaymentRequest{
		InstallmentID: installmentID,
		Amount:        amount,
		Reference:     reference,
	})
	if err != nil {
		// Double confirmation is a business outcome, not a transport failure.
		if errors.Is(err, erp.ErrAlreadyPaid) {
			return map[string]interface{}{
				"registered": false,
				"error":      "already paid",
				"cuota_id":   installmentID,
			}, nil
		}
		return nil, err
	}

	return map[string]interface{}{
		"registered": true,
		"payment_id": resp.Payment.ID,
		"cuota_id":   resp.Installment.ID,
		"monto":      resp.Payment.Amount,
	}, nil
}

func (cfg ERPToolConfig) searchStudent(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if cfg.Mock {
		return mockStudentSearch(), nil
	}

	name, _ := args["nombre"].(string)
	students, err := cfg.Client.SearchStudents(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(students))
	for _, s := range students {
		out = append(out, map[string]interface{}{
			"id":     s.ID,
			"nombre": s.Name,
			"grado":  s.Grade,
			"activo": s.Active,
		})
	}
	return out, nil
}

func (cfg ERPToolConfig) upcomingInstallments(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if cfg.Mock {
		return mockUpcomingInstallments(), nil
	}

	days := 7
	if v, ok := args["dias"].(float64); ok {
		days = int(v)
	} else if v, ok := args["dias"].(int); ok {
		days = v
	}

	installments, err := cfg.Client.GetUpcomingInstallments(ctx, days)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, len(installments))
	for _, inst := range installments {
		out = append(out, map[string]interface{}{
			"id":          inst.ID,
			"alumno_id":   inst.StudentID,
			"monto":       inst.Amount,
			"vencimiento": inst.DueDate,
			"estado":      inst.State,
		})
	}
	return out, nil
}
