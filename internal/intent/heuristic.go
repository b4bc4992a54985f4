package intent

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Heuristic confidences.
const (
	greetingConfidence      = 0.8
	questionConfidence      = 0.7
	taskConfidence          = 0.6
	managementConfidence    = 0.7
	defaultCasualConfidence = 0.5
	maxGreetingTokens       = 5
	complexTaskTokenMinimum = 10
	maxTaskTitleRunes       = 80
)

// Keyword families, English and Spanish. Matching is on whole lowercase
// tokens, so accents must be spelled out.
var (
	greetingWords = wordSet(
		"hola", "hello", "hi", "hey", "howdy", "greetings", "saludos",
		"buenos", "buenas", "gracias", "thanks",
	)

	interrogativeWords = wordSet(
		"what", "how", "why", "when", "where", "which", "who", "whom", "whose",
		"qué", "cómo", "cuál", "cuáles", "cuándo", "dónde", "quién", "quiénes", "cuánto", "cuántos",
		"explain", "explica", "explícame", "dime",
	)

	taskVerbs = wordSet(
		"create", "build", "make", "write", "generate", "develop", "design", "implement",
		"prepare", "draft", "produce", "compile", "analyze", "analyse", "research", "set", "need",
		"necesito", "crear", "crea", "construir", "construye", "hacer", "haz", "escribir", "escribe",
		"generar", "genera", "desarrollar", "desarrolla", "diseñar", "diseña", "implementar",
		"preparar", "prepara", "redactar", "redacta", "analizar", "analiza", "investigar", "investiga", "quiero",
	)

	complexityWords = wordSet(
		"dashboard", "report", "analysis", "system", "application", "app", "website", "site",
		"platform", "pipeline", "integration", "database", "data", "complete", "full", "multiple",
		"several", "months", "strategy", "architecture", "research",
		"informe", "reporte", "análisis", "sistema", "aplicación", "sitio", "web", "plataforma",
		"integración", "datos", "completo", "completa", "varios", "varias", "meses", "estrategia",
		"arquitectura", "investigación",
	)

	managementActions = map[string]string{
		"status":    "status",
		"progress":  "status",
		"estado":    "status",
		"progreso":  "status",
		"pause":     "pause",
		"pausa":     "pause",
		"pausar":    "pause",
		"resume":    "resume",
		"continue":  "resume",
		"reanudar":  "resume",
		"reanuda":   "resume",
		"continuar": "resume",
		"cancel":    "cancel",
		"stop":      "cancel",
		"abort":     "cancel",
		"cancelar":  "cancel",
		"cancela":   "cancel",
		"detener":   "cancel",
		"detén":     "cancel",
	}

	timeframePattern = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(últimos|últimas|ultimos|ultimas|último|última|próximos|próximas|last|past|next)\s+(\d+)\s+(días|dias|día|dia|semanas|semana|meses|mes|años|anos|año|ano|days|day|weeks|week|months|month|years|year|hours|hour|horas|hora)`)

	urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

	// Leading filler removed when deriving a task title.
	titleFillers = regexp.MustCompile(`(?i)^(?:(?:please|por favor|hey|hola|ok|okay)[,\s]+)*(?:(?:can|could|would) you\s+|(?:i\s+(?:need|want)(?:\s+you)?\s+to\s+)|(?:i'd like (?:you )?to\s+)|necesito que\s+|necesito\s+|quiero que\s+|quiero\s+|me gustaría\s+|puedes\s+|podrías\s+)?`)
)

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// tokenize lowercases s and splits it on anything that is not a letter,
// digit or apostrophe.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsWord(tokens []string, set map[string]struct{}) bool {
	for _, t := range tokens {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// HeuristicClassifier is the deterministic keyword fallback. It needs no
// model and cannot fail.
type HeuristicClassifier struct{}

// NewHeuristicClassifier creates the keyword classifier.
func NewHeuristicClassifier() *HeuristicClassifier {
	return &HeuristicClassifier{}
}

// Classify applies the ordered keyword families to message.
func (h *HeuristicClassifier) Classify(message string) Result {
	category, confidence, reasoning := h.categorize(message)
	return Result{
		Category:          category,
		Confidence:        confidence,
		Reasoning:         reasoning,
		ExtractedEntities: ExtractEntities(message, category),
		SuggestedAction:   suggestedActions[category],
		Source:            SourceHeuristic,
	}
}

func (h *HeuristicClassifier) categorize(message string) (Category, float64, string) {
	tokens := tokenize(message)

	if len(tokens) <= maxGreetingTokens && containsWord(tokens, greetingWords) {
		return CategoryCasual, greetingConfidence, "short greeting"
	}

	if strings.ContainsAny(message, "?¿") || isInterrogative(tokens) {
		return CategoryInformation, questionConfidence, "interrogative marker"
	}

	if containsWord(tokens, taskVerbs) {
		if containsWord(tokens, complexityWords) || len(tokens) > complexTaskTokenMinimum {
			return CategoryComplexTask, taskConfidence, "task verb with complexity indicators"
		}
		return CategorySimpleTask, taskConfidence, "task verb"
	}

	if managementAction(tokens) != "" {
		return CategoryTaskManagement, managementConfidence, "task management keyword"
	}

	return CategoryCasual, defaultCasualConfidence, "no keyword family matched"
}

// isInterrogative checks for a question word opening the message. Question
// words inside a sentence ("build what we discussed") do not count.
func isInterrogative(tokens []string) bool {
	if len(tokens) == 0 {
		return false
	}
	if len(tokens) > 1 && tokens[0] == "por" && tokens[1] == "qué" {
		return true
	}
	_, ok := interrogativeWords[tokens[0]]
	return ok
}

func managementAction(tokens []string) string {
	for _, t := range tokens {
		if action, ok := managementActions[t]; ok {
			return action
		}
	}
	return ""
}

// ExtractEntities derives entities from message for the given category.
// Task categories always carry a task_title.
func ExtractEntities(message string, category Category) Entities {
	var e Entities

	if category.IsTask() {
		e.set("task_title", TaskTitle(message))
	}
	if m := timeframePattern.FindStringSubmatch(message); m != nil {
		e.set("timeframe", strings.ToLower(m[1]+" "+m[2]+" "+m[3]))
	}
	if u := urlPattern.FindString(message); u != "" {
		e.set("url", strings.TrimRight(u, ".,;:!?"))
	}
	if category == CategoryTaskManagement {
		if action := managementAction(tokenize(message)); action != "" {
			e.set("action", action)
		}
	}
	return e
}

// TaskTitle restates message as a short title: leading filler removed,
// first letter capitalized, cut at a word boundary.
func TaskTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	title = titleFillers.ReplaceAllString(title, "")
	title = strings.Trim(title, " .,;:!?¿¡")
	if title == "" {
		title = strings.TrimSpace(message)
	}

	if utf8.RuneCountInString(title) > maxTaskTitleRunes {
		runes := []rune(title)
		cut := string(runes[:maxTaskTitleRunes])
		if i := strings.LastIndex(cut, " "); i > maxTaskTitleRunes/2 {
			cut = cut[:i]
		}
		title = strings.TrimRight(cut, " .,;:") + "..."
	}

	r, size := utf8.DecodeRuneInString(title)
	if r == utf8.RuneError {
		return title
	}
	return string(unicode.ToUpper(r)) + title[size:]
}
