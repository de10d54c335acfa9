package tools

// Synthetic fixture family used by handlers when mock mode is active and
// by the seed scenarios. Mirrors the data the agent is prompted about.

func mockAccountStatus() map[string]interface{} {
	return map[string]interface{}{
		"responsable": "María García",
		"telefono":    "+5491112345001",
		"alumnos": []interface{}{
			map[string]interface{}{
				"id":     "A-001",
				"nombre": "Juan García",
				"grado":  "3A",
				"cuotas_pendientes": []interface{}{
					map[string]interface{}{
						"id": "C-A001-03", "numero": 3, "monto": 45000.0,
						"vencimiento": "2026-03-10", "estado": "pending",
					},
					map[string]interface{}{
						"id": "C-A001-04", "numero": 4, "monto": 45000.0,
						"vencimiento": "2026-04-10", "estado": "pending",
					},
				},
				"deuda": 90000.0,
			},
			map[string]interface{}{
				"id":     "A-002",
				"nombre": "Sofía García",
				"grado":  "1B",
				"cuotas_pendientes": []interface{}{
					map[string]interface{}{
						"id": "C-A002-03", "numero": 3, "monto": 42000.0,
						"vencimiento": "2026-03-10", "estado": "pending",
					},
				},
				"deuda": 42000.0,
			},
		},
		"deuda_total": 132000.0,
	}
}

func mockPaymentLink(installmentID string) map[string]interface{} {
	return map[string]interface{}{
		"cuota_id": installmentID,
		"link":     "https://pagos.colegio.edu/pay/" + installmentID,
		"vigencia": "72h",
	}
}

func mockStudentSearch() []interface{} {
	return []interface{}{
		map[string]interface{}{"id": "A-001", "nombre": "Juan García", "grado": "3A", "activo": true},
		map[string]interface{}{"id": "A-002", "nombre": "Sofía García", "grado": "1B", "activo": true},
	}
}

func mockUpcomingInstallments() []interface{} {
	return []interface{}{
		map[string]interface{}{
			"id": "C-A001-03", "alumno_id": "A-001", "monto": 45000.0,
			"vencimiento": "2026-03-10", "estado": "pending",
		},
		map[string]interface{}{
			"id": "C-A002-03", "alumno_id": "A-002", "monto": 42000.0,
			"vencimiento": "2026-03-10", "estado": "pending",
		},
	}
}

func mockPaymentPatterns() map[string]interface{} {
	return map[string]interface{}{
		"perfil_pagador":  "occasional",
		"promedio_atraso": 4.2,
		"patrones":        []interface{}{"paga después del primer recordatorio", "prefiere transferencia"},
	}
}

func mockDesertionRisk() map[string]interface{} {
	return map[string]interface{}{
		"nivel_riesgo": "medium",
		"score":        0.46,
		"factores":     []interface{}{"dos cuotas impagas", "sin interacciones en 30 días"},
	}
}

// institutionalInfo is the static knowledge base served by the
// institutional tools.
var institutionalInfo = map[string]interface{}{
	"horarios": map[string]interface{}{
		"primaria":       "Lunes a viernes 7:45–16:30",
		"secundaria":     "Lunes a viernes 7:30–17:00",
		"administracion": "Lunes a viernes 8:00–15:00",
	},
	"calendario": []interface{}{
		map[string]interface{}{"fecha": "2026-03-02", "evento": "Inicio del ciclo lectivo"},
		map[string]interface{}{"fecha": "2026-07-20", "evento": "Receso invernal (dos semanas)"},
		map[string]interface{}{"fecha": "2026-12-18", "evento": "Cierre del ciclo lectivo"},
	},
	"autoridades": []interface{}{
		map[string]interface{}{"cargo": "Directora General", "nombre": "Lic. Ana Moreno"},
		map[string]interface{}{"cargo": "Director de Primaria", "nombre": "Prof. Carlos Ruiz"},
		map[string]interface{}{"cargo": "Directora de Secundaria", "nombre": "Lic. Paula Sosa"},
	},
	"contacto": map[string]interface{}{
		"telefono":  "+54 11 4555-0100",
		"email":     "administracion@colegio.edu",
		"direccion": "Av. Siempreviva 742, CABA",
	},
	"info_general": map[string]interface{}{
		"uniforme":      "El uniforme es obligatorio de marzo a diciembre.",
		"comedor":       "El servicio de comedor se contrata por mes calendario.",
		"transporte":    "El transporte escolar es tercerizado; consultar en administración.",
		"inscripciones": "Las inscripciones abren en septiembre para el ciclo siguiente.",
	},
}
