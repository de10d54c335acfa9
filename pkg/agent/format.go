package agent

import (
	"fmt"
	"strings"
)

// FormatMoney renders an amount with dot thousands separators, the way
// amounts are written locally: 132000 -> "132.000".
func FormatMoney(amount float64) string {
	digits := fmt.Sprintf("%.0f", amount)
	negative := strings.HasPrefix(digits, "-")
	if negative {
		digits = digits[1:]
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

// financialSummary renders the financial specialist's combined tool data
// as a WhatsApp-ready message.
func financialSummary(data map[string]interface{}) string {
	var b strings.Builder

	if acct, ok := data["consultar_estado_cuenta"].(map[string]interface{}); ok {
		b.WriteString(formatAccountStatus(acct))
	}
	if link, ok := data["obtener_link_pago"].(map[string]interface{}); ok {
		if url, ok := link["link"].(string); ok {
			fmt.Fprintf(&b, "\n\nPodés pagar desde este link: %s", url)
		}
	}
	if claim, ok := data["registrar_confirmacion_pago"].(map[string]interface{}); ok {
		if registered, ok := claim["registered"].(bool); ok && registered {
			b.WriteString("\n\nRegistré tu aviso de pago; administración lo va a verificar.")
		}
	}
	return strings.TrimSpace(b.String())
}

// administrativeSummary renders ticket tool data, leading with the short
// ticket reference the guardian can quote later.
func administrativeSummary(data map[string]interface{}) string {
	ticket, ok := data["crear_ticket"].(map[string]interface{})
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("Registré tu solicitud para que la revise el equipo administrativo.")
	if prefix, ok := ticket["prefijo"].(string); ok && prefix != "" {
		fmt.Fprintf(&b, " Tu número de gestión es *%s*.", prefix)
	}
	if priority, ok := ticket["prioridad"].(string); ok && priority == "high" {
		b.WriteString(" Lo marqué como prioritario.")
	}
	return b.String()
}
