package ollama

import (
	"strings"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

const profileMarker = "PERFIL_ACTUAL:"

// organizationIdentity is always part of the prompt so the model keeps its
// norms and profile definitions even when retrieval returns nothing.
const organizationIdentity = `Eres el estratega líder en comunicación, audiencias y comportamiento de la ONG Cambia el Clima.

NORMAS CENTRALES
- Comunicación basada en evidencia.
- No culpabilizar.
- No usar catastrofismo sin soluciones.
- Equilibrio emocional: riesgo, eficacia y esperanza creíble.
- Tono claro, empático, inclusivo y respetuoso.
- Toda recomendación incluye una acción concreta.

PERFILES COMPORTAMENTALES
A – Activista Estratégica: alta autoeficacia, riesgo de ecofatiga, motivación por justicia.
B – Práctico Eco-consumidor: busca comodidad, ahorro y simplicidad; baja autoeficacia.
C – Aliado Institucional: motivación reputacional, métricas y legitimidad.
D – Simpatizante Distante: siente el clima como lejano; responde a orgullo local, beneficios cotidianos y voces cercanas.

No inventes datos externos a Cambia el Clima. No salgas del ámbito climático. Responde siempre en español.`

var goalInstructions = map[domain.Goal]string{
	domain.GoalIdentifyProfile: "Identifica el perfil comportamental más cercano a la persona o público descrito y explica sus barreras y palancas.",
	domain.GoalGenerateMessage: "Redacta un mensaje adaptado al perfil, aplicando las normas de comunicación e incluyendo una llamada a la acción.",
	domain.GoalCampaignAdvice:  "Propón una estrategia de campaña: segmentos, canales, tono y acciones concretas.",
	domain.GoalCompareProfiles: "Compara los perfiles pedidos: motivaciones, barreras, tono recomendado y mensajes que funcionan con cada uno.",
	domain.GoalNone:            "Responde a la pregunta usando el contexto disponible.",
}

func buildTurnPrompt(req domain.GenerationRequest) string {
	var b strings.Builder
	b.WriteString(organizationIdentity)
	b.WriteString("\n\n")

	b.WriteString("ESTADO DE LA CONVERSACIÓN\n")
	b.WriteString("Público descrito: ")
	b.WriteString(valueOr(req.Subject, "sin describir"))
	b.WriteString("\nPerfil asignado: ")
	b.WriteString(valueOr(req.Profile, "sin asignar"))
	b.WriteString("\nObjetivo: ")
	b.WriteString(string(req.Goal))
	b.WriteString("\n\n")

	b.WriteString("TAREA\n")
	instruction, ok := goalInstructions[req.Goal]
	if !ok {
		instruction = goalInstructions[domain.GoalNone]
	}
	b.WriteString(instruction)
	b.WriteString("\nSi asignas o confirmas un perfil, termina con una línea exacta con el formato:\n")
	b.WriteString(profileMarker)
	b.WriteString(" <perfil>\n\n")

	b.WriteString("CONTEXTO\n")
	b.WriteString(valueOr(strings.TrimSpace(req.Context), "(sin documentos recuperados; usa solo las normas y perfiles anteriores)"))
	b.WriteString("\n\n")

	if strings.TrimSpace(req.History) != "" {
		b.WriteString("HISTORIAL RECIENTE\n")
		b.WriteString(req.History)
		b.WriteString("\n\n")
	}

	b.WriteString("PREGUNTA O TAREA DEL USUARIO\n")
	b.WriteString(req.Question)
	b.WriteString("\n\nRESPUESTA:\n")
	return b.String()
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
