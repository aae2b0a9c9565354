package heuristics

// User-facing fallback strings keyed by UI language. Only these two messages
// are ever produced by the gateway itself; everything else comes from the
// model.

var loopExhaustedMessages = map[string]string{
	"en": "I'm sorry, I could not gather reliable information after several attempts. Please try rephrasing your question.",
	"fr": "Désolé, je n'ai pas réussi à rassembler des informations fiables après plusieurs tentatives. Merci de reformuler votre question.",
	"de": "Entschuldigung, ich konnte nach mehreren Versuchen keine verlässlichen Informationen sammeln. Bitte formulieren Sie Ihre Frage um.",
	"es": "Lo siento, no pude reunir información fiable tras varios intentos. Por favor, reformula tu pregunta.",
}

var upstreamErrorMessages = map[string]string{
	"en": "The assistant is temporarily unavailable. Please try again in a moment.",
	"fr": "L'assistant est temporairement indisponible. Veuillez réessayer dans un instant.",
	"de": "Der Assistent ist vorübergehend nicht verfügbar. Bitte versuchen Sie es gleich noch einmal.",
	"es": "El asistente no está disponible temporalmente. Inténtalo de nuevo en un momento.",
}

func LoopExhaustedMessage(language string) string {
	if msg, ok := loopExhaustedMessages[normalizeLanguage(language)]; ok {
		return msg
	}
	return loopExhaustedMessages["en"]
}

func UpstreamErrorMessage(language string) string {
	if msg, ok := upstreamErrorMessages[normalizeLanguage(language)]; ok {
		return msg
	}
	return upstreamErrorMessages["en"]
}
