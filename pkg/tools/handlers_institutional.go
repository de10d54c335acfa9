package tools

import (
	"context"
	"fmt"
	"strings"
)

// RegisterInstitutionalTools registers the tools backed by the static
// institutional knowledge base.
func RegisterInstitutionalTools(r *Registry) {
	static := func(key string) Handler {
		return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			return institutionalInfo[key], nil
		}
	}

	r.MustRegister(&Tool{
		Name:        "buscar_horarios",
		Description: "Horarios de primaria, secundaria y administración.",
		Category:    CategoryInstitutional,
		Params:      []ParamSpec{},
		Handler:     static("horarios"),
	})
	r.MustRegister(&Tool{
		Name:        "buscar_calendario",
		Description: "Fechas clave del calendario escolar.",
		Category:    CategoryInstitutional,
		Params:      []ParamSpec{},
		Handler:     static("calendario"),
	})
	r.MustRegister(&Tool{
		Name:        "buscar_autoridades",
		Description: "Autoridades del colegio y sus cargos.",
		Category:    CategoryInstitutional,
		Params:      []ParamSpec{},
		Handler:     static("autoridades"),
	})
	r.MustRegister(&Tool{
		Name:        "buscar_contacto",
		Description: "Datos de contacto de la administración.",
		Category:    CategoryInstitutional,
		Params:      []ParamSpec{},
		Handler:     static("contacto"),
	})
	r.MustRegister(&Tool{
		Name:        "buscar_info_general",
		Description: "Información general por tema: uniforme, comedor, transporte, inscripciones.",
		Category:    CategoryInstitutional,
		Params: []ParamSpec{
			{Name: "tema", Type: "string", Description: "Tema a consultar"},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
			topic, _ := args["tema"].(string)
			info, _ := institutionalInfo["info_general"].(map[string]interface{})
			if answer, ok := info[strings.ToLower(topic)]; ok {
				return map[string]interface{}{"tema": topic, "respuesta": answer}, nil
			}
			topics := make([]string, 0, len(info))
			for k := range info {
				topics = append(topics, k)
			}
			return nil, fmt.Errorf("no hay información sobre %q (temas: %s)", topic, strings.Join(topics, ", "))
		},
	})
}
