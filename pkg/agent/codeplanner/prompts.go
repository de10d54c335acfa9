package codeplanner

import (
	"fmt"
	"strings"
)

func planPrompt(text, menu, reflectionReason string, priorErr error) string {
	var feedback strings.Builder
	if reflectionReason != "" {
		fmt.Fprintf(&feedback, "\nEl intento anterior no respondió la pregunta: %s\nGenerá un plan distinto.\n", reflectionReason)
	}
	if priorErr != nil {
		fmt.Fprintf(&feedback, "\nEl intento anterior falló al ejecutarse: %v\nGenerá un plan distinto.\n", priorErr)
	}

	return fmt.Sprintf(`Eres el planificador del asistente del Colegio. Respondé la consulta
del padre/responsable armando un programa JSON de llamadas a herramientas.

CONSULTA: %s

HERRAMIENTAS DISPONIBLES:
%s
FORMATO DEL PROGRAMA (responde SOLO este JSON, sin markdown):
{
    "steps": [
        {"id": "s1", "tool": "nombre_herramienta", "args": {"clave": "valor"}, "save_as": "alias"}
    ],
    "result": {"clave_salida": "$alias.data"}
}

REGLAS:
1. Los pasos se ejecutan en orden.
2. "$alias" o "$alias.campo.subcampo" referencia la salida de un paso anterior.
3. Builtins disponibles: "$phone" (teléfono del remitente) y "$text" (mensaje).
4. "result" define qué datos se usan para la respuesta final.
%s`, text, menu, feedback.String())
}

func correctionPrompt(program, execErr, menu string) string {
	return fmt.Sprintf(`El siguiente programa JSON falló al ejecutarse.

PROGRAMA:
%s

ERROR:
%s

HERRAMIENTAS DISPONIBLES:
%s
Corregí el programa para que ejecute sin errores. Mantené el mismo objetivo.
Responde SOLO con el JSON corregido, sin markdown.
`, program, execErr, menu)
}

func reflectPrompt(text, result string) string {
	return fmt.Sprintf(`Evaluá si estos datos responden la consulta del padre.

CONSULTA: %s

DATOS OBTENIDOS:
%s

Responde SOLO con JSON válido:
{"valid": true/false, "reason": "por qué sí o no"}
`, text, result)
}

func respondPrompt(text, result string) string {
	return fmt.Sprintf(`Eres el asistente del Colegio por WhatsApp.
Formulá la respuesta final para el padre usando los datos obtenidos.

CONSULTA: %s

DATOS:
%s

REGLAS:
1. Respondé cada parte de la consulta.
2. Tono cercano y servicial; negritas para datos importantes.
3. Nunca menciones errores técnicos ni detalles internos.
4. Máximo 3 párrafos cortos.

Respuesta:
`, text, result)
}
