package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/voicenotes-backend/internal/logger"
	"github.com/yungbote/voicenotes-backend/internal/metrics"
	"github.com/yungbote/voicenotes-backend/internal/types"
)

// ServiceError marks a terminal extraction failure: malformed model
// output, an empty result set, or an enum violation. Never retried — LLM
// responses are not idempotent-safe to retry blindly; the caller surfaces
// the error to the user as "try again".
type ServiceError struct {
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extraction: %s: %v", e.Message, e.Err)
	}
	return "extraction: " + e.Message
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ExtractedTask is one structured item produced from free text, with its
// due date already corrected.
type ExtractedTask struct {
	Title       string
	Description string
	Type        string
	Priority    string
	DueDate     *time.Time
}

// GeneratedSticky is one concept card produced for a learning domain.
type GeneratedSticky struct {
	Concept      string
	Definition   string
	Example      string
	RelatedTerms []string
}

type Engine struct {
	log     *logger.Logger
	llm     LLMClient
	metrics *metrics.Metrics

	now func() time.Time
}

func NewEngine(log *logger.Logger, llm LLMClient, m *metrics.Metrics) *Engine {
	return &Engine{
		log:     log.With("service", "ExtractionEngine"),
		llm:     llm,
		metrics: m,
		now:     time.Now,
	}
}

// NewEngineAt pins the engine clock; tests anchor "today" with it.
func NewEngineAt(log *logger.Logger, llm LLMClient, m *metrics.Metrics, now func() time.Time) *Engine {
	e := NewEngine(log, llm, m)
	e.now = now
	return e
}

var taskSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"tasks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":       map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"type":        map[string]any{"type": "string", "enum": []string{"task", "reminder", "note"}},
					"priority":    map[string]any{"type": "string", "enum": []string{"low", "medium", "high", ""}},
					"due_date":    map[string]any{"type": "string"},
				},
				"required":             []string{"title", "type"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"tasks"},
	"additionalProperties": false,
}

const taskSystemPrompt = `You turn a user's free-form note into a list of actionable items.
Each item has a title, optional description, a type (task, reminder, or note),
an optional priority (low, medium, high), and an optional due_date in
ISO format (YYYY-MM-DDTHH:MM:SS). Use the literal dates supplied for
relative references. Extract only what the note actually says.`

// ExtractTasks turns free text into structured tasks. The prompt anchors
// relative dates with literal computed values, and the deterministic
// correction afterwards re-derives tomorrow / day-after-tomorrow from the
// input text regardless of what the model returned.
func (e *Engine) ExtractTasks(ctx context.Context, text string) ([]ExtractedTask, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ServiceError{Message: "empty input text"}
	}

	now := e.now()
	user := fmt.Sprintf(
		"Current date: %s (%s).\nThe date tomorrow is %s.\nThe date the day after tomorrow is %s.\n\nNote:\n%s",
		now.Format("2006-01-02"),
		now.Weekday(),
		now.AddDate(0, 0, 1).Format("2006-01-02"),
		now.AddDate(0, 0, 2).Format("2006-01-02"),
		text,
	)

	obj, err := e.llm.CompleteJSON(ctx, taskSystemPrompt, user, "task_extraction", taskSchema)
	if err != nil {
		return nil, &ServiceError{Message: "completion failed", Err: err}
	}

	rawTasks, ok := obj["tasks"].([]any)
	if !ok || len(rawTasks) == 0 {
		return nil, &ServiceError{Message: "model returned no tasks"}
	}

	out := make([]ExtractedTask, 0, len(rawTasks))
	for i, raw := range rawTasks {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &ServiceError{Message: fmt.Sprintf("task %d is not an object", i)}
		}

		task := ExtractedTask{
			Title:       strings.TrimSpace(stringField(m, "title")),
			Description: strings.TrimSpace(stringField(m, "description")),
			Type:        strings.ToLower(strings.TrimSpace(stringField(m, "type"))),
			Priority:    strings.ToLower(strings.TrimSpace(stringField(m, "priority"))),
		}
		if task.Title == "" {
			return nil, &ServiceError{Message: fmt.Sprintf("task %d has an empty title", i)}
		}
		if task.Type == "" {
			task.Type = types.TaskTypeTask
		}
		if !types.ValidTaskType(task.Type) {
			return nil, &ServiceError{Message: fmt.Sprintf("task %d has invalid type %q", i, task.Type)}
		}
		if !types.ValidTaskPriority(task.Priority) {
			return nil, &ServiceError{Message: fmt.Sprintf("task %d has invalid priority %q", i, task.Priority)}
		}

		modelDue, _ := ParseDueDate(stringField(m, "due_date"), now)
		task.DueDate = CorrectDueDate(text, modelDue, now)

		if task.DueDate != nil && FarFuture(*task.DueDate, now) {
			e.log.Warn("Extracted due date more than two years out",
				"title", task.Title,
				"due_date", task.DueDate.Format(time.RFC3339),
			)
			if e.metrics != nil {
				e.metrics.FarFutureDueDates.Inc()
			}
		}

		out = append(out, task)
	}

	if e.metrics != nil {
		e.metrics.TasksExtracted.Add(float64(len(out)))
	}
	return out, nil
}

var stickySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"domain": map[string]any{"type": "string"},
		"stickies": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"concept":    map[string]any{"type": "string"},
					"definition": map[string]any{"type": "string"},
					"example":    map[string]any{"type": "string"},
					"related_terms": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
					},
				},
				"required":             []string{"concept", "definition"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"domain", "stickies"},
	"additionalProperties": false,
}

const stickySystemPrompt = `You create learning flashcards ("stickies") for a topic the user wants
to learn or prepare for. Respond with a short human-facing area label of
2-4 words naming the topic, and a list of concept cards. Each card has a
concept name, a clear definition, optionally a concrete example, and
optionally related terms.`

// GenerateStickies produces a domain label and concept cards for a
// free-text learning request. The label is deduplicated against the
// user's existing domains so one topic does not fragment across
// near-identical labels.
func (e *Engine) GenerateStickies(ctx context.Context, request string, existingDomains []string) (string, []GeneratedSticky, error) {
	request = strings.TrimSpace(request)
	if request == "" {
		return "", nil, &ServiceError{Message: "empty request text"}
	}

	obj, err := e.llm.CompleteJSON(ctx, stickySystemPrompt, request, "sticky_generation", stickySchema)
	if err != nil {
		return "", nil, &ServiceError{Message: "completion failed", Err: err}
	}

	domain := strings.TrimSpace(stringField(obj, "domain"))
	if domain == "" {
		return "", nil, &ServiceError{Message: "model returned no domain label"}
	}

	rawStickies, ok := obj["stickies"].([]any)
	if !ok || len(rawStickies) == 0 {
		return "", nil, &ServiceError{Message: "model returned no stickies"}
	}

	out := make([]GeneratedSticky, 0, len(rawStickies))
	for i, raw := range rawStickies {
		m, ok := raw.(map[string]any)
		if !ok {
			return "", nil, &ServiceError{Message: fmt.Sprintf("sticky %d is not an object", i)}
		}
		sticky := GeneratedSticky{
			Concept:    strings.TrimSpace(stringField(m, "concept")),
			Definition: strings.TrimSpace(stringField(m, "definition")),
			Example:    strings.TrimSpace(stringField(m, "example")),
		}
		if sticky.Concept == "" || sticky.Definition == "" {
			return "", nil, &ServiceError{Message: fmt.Sprintf("sticky %d missing concept or definition", i)}
		}
		if terms, ok := m["related_terms"].([]any); ok {
			for _, t := range terms {
				if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
					sticky.RelatedTerms = append(sticky.RelatedTerms, strings.TrimSpace(s))
				}
			}
		}
		out = append(out, sticky)
	}

	merged, err := e.dedupeDomain(ctx, domain, existingDomains)
	if err != nil {
		// Dedup is best-effort: a judgment failure must not lose the
		// generated cards, so fall back to the new label.
		e.log.Warn("Domain dedup failed, keeping new label", "domain", domain, "error", err)
		merged = domain
	}

	if e.metrics != nil {
		e.metrics.StickiesGenerated.Add(float64(len(out)))
	}
	return merged, out, nil
}

var judgeSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"match": map[string]any{"type": "string"},
	},
	"required":             []string{"match"},
	"additionalProperties": false,
}

const judgeSystemPrompt = `You judge whether a new topic label duplicates one of a user's existing
topic labels. Labels duplicate when they name the same topic, ignoring
case, wording, or formatting differences ("React Hooks" duplicates
"react hooks"). Respond with the matching existing label verbatim, or an
empty string when none matches.`

// dedupeDomain compares the new label against existing labels: exact
// case-insensitive match first, then, when more than one existing domain
// exists, a model judgment over near-duplicates.
func (e *Engine) dedupeDomain(ctx context.Context, domain string, existing []string) (string, error) {
	for _, d := range existing {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			if e.metrics != nil {
				e.metrics.DomainsMerged.Inc()
			}
			return d, nil
		}
	}

	if len(existing) <= 1 {
		return domain, nil
	}

	user := fmt.Sprintf("New label: %q\nExisting labels:\n- %s", domain, strings.Join(existing, "\n- "))
	obj, err := e.llm.CompleteJSON(ctx, judgeSystemPrompt, user, "domain_judgment", judgeSchema)
	if err != nil {
		return "", err
	}

	match := strings.TrimSpace(stringField(obj, "match"))
	if match == "" {
		return domain, nil
	}
	for _, d := range existing {
		if strings.EqualFold(strings.TrimSpace(d), match) {
			if e.metrics != nil {
				e.metrics.DomainsMerged.Inc()
			}
			return d, nil
		}
	}
	// The judge named a label the user does not have; ignore it.
	return domain, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
