package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const chatbotSystemPrompt = `You are a helpful, friendly, and empathetic AI chatbot named Mamatoto. Your purpose is to provide supportive information and answer questions ONLY about pregnancy and infant health.
IMPORTANT:
- Your name is Mamatoto AI. If asked who created you or what you are, identify yourself as "Mamatoto AI".
- You are not a medical professional. Always preface your answers with a reminder that the user should consult a real healthcare provider for medical advice.
- If the user asks a question that is not about pregnancy or infant health, politely decline and remind them of your purpose.`

const babyUpdatePrompt = `You are a helpful and creative AI pregnancy assistant.
Provide a single, fun, and informative update about the baby's development for week %d of pregnancy.
Respond with a JSON object with these fields:
- "title": a size comparison to a common fruit or vegetable, e.g. "Your baby is the size of a lemon!"
- "description": 2-3 sentences on the most interesting developmental milestones this week.
- "imageHint": a one or two word stock photo hint naming the fruit or vegetable from the title.
The tone should be positive, exciting, and easy to understand.`

const healthTipsPrompt = `You are a helpful and empathetic AI pregnancy health assistant.
Provide three distinct, relevant health tips for week %d of pregnancy, exactly one per category:
1. "Nutrition": specific nutrients, foods, or hydration relevant to this week.
2. "Exercise": safe and appropriate physical activities or stretches.
3. "Emotional Wellness": managing stress, mood changes, or preparing mentally.
Each tip is 1-2 sentences, practical and supportive.
Respond with a JSON object {"tips": [{"category": "...", "tip": "..."}]}.`

const dashboardTipPrompt = `You are a helpful and empathetic AI pregnancy health assistant.
Provide a single, highly relevant, personalized health tip or alert for the user's dashboard.
The user is in week %d of their pregnancy (trimester %d).
Recent symptom and mood logs: %s
Recent weight logs (lbs): %s
If you see a concerning pattern (a symptom that could be serious, rapid weight change), write an alert and set "isUrgent" to true.
Otherwise give one proactive tip relevant to this stage and set "isUrgent" to false.
Focus on ONE takeaway. Be supportive, not alarming unless necessary.
Respond with a JSON object {"title": "...", "description": "...", "isUrgent": false}.`

// BabyUpdate is the weekly development blurb.
type BabyUpdate struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	ImageHint   string `json:"imageHint" validate:"required"`
}

// HealthTip is one categorized tip.
type HealthTip struct {
	Category string `json:"category" validate:"required,oneof=Nutrition Exercise 'Emotional Wellness'"`
	Tip      string `json:"tip" validate:"required"`
}

// HealthTips holds exactly one tip per category.
type HealthTips struct {
	Tips []HealthTip `json:"tips" validate:"len=3,unique=Category,dive"`
}

// DashboardTip is a single personalized tip or alert.
type DashboardTip struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	IsUrgent    bool   `json:"isUrgent"`
}

// SymptomEntry and WeightEntry are the recent log summaries fed to the dashboard tip.
type SymptomEntry struct {
	Date     string   `json:"date"`
	Symptoms []string `json:"symptoms,omitempty"`
	Moods    []string `json:"moods,omitempty"`
}

type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

// DashboardInput is what the dashboard tip is personalized on.
type DashboardInput struct {
	CurrentWeek    int
	Trimester      int
	RecentSymptoms []SymptomEntry
	RecentWeights  []WeightEntry
}

// Turn is a stored chat message, role "user" or "model".
type Turn struct {
	Role    string
	Content string
}

// Observer is notified after every flow call. It may be nil.
type Observer func(flow string, err error)

// Service runs the prompt flows on top of a Generator.
type Service struct {
	gen      Generator
	logger   *zap.Logger
	validate *validator.Validate
	observe  Observer
}

// NewService creates a Service.
func NewService(gen Generator, logger *zap.Logger, observe Observer) *Service {
	if observe == nil {
		observe = func(string, error) {}
	}
	return &Service{
		gen:      gen,
		logger:   logger,
		validate: validator.New(),
		observe:  observe,
	}
}

// BabyUpdate generates the development update for currentWeek.
func (s *Service) BabyUpdate(ctx context.Context, currentWeek int) (*BabyUpdate, error) {
	if currentWeek <= 0 {
		return nil, ErrIncompleteProfile
	}
	var out BabyUpdate
	err := s.structured(ctx, "baby_update", fmt.Sprintf(babyUpdatePrompt, currentWeek), &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// HealthTips generates three categorized tips for currentWeek.
func (s *Service) HealthTips(ctx context.Context, currentWeek int) (*HealthTips, error) {
	if currentWeek <= 0 {
		return nil, ErrIncompleteProfile
	}
	var out HealthTips
	if err := s.structured(ctx, "health_tips", fmt.Sprintf(healthTipsPrompt, currentWeek), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DashboardTip generates one personalized tip from recent logs.
func (s *Service) DashboardTip(ctx context.Context, in DashboardInput) (*DashboardTip, error) {
	if in.CurrentWeek <= 0 {
		return nil, ErrIncompleteProfile
	}

	symptoms := "No recent symptoms logged."
	if len(in.RecentSymptoms) > 0 {
		b, _ := json.Marshal(in.RecentSymptoms)
		symptoms = string(b)
	}
	weights := "No recent weight logged."
	if len(in.RecentWeights) > 0 {
		b, _ := json.Marshal(in.RecentWeights)
		weights = string(b)
	}

	var out DashboardTip
	prompt := fmt.Sprintf(dashboardTipPrompt, in.CurrentWeek, in.Trimester, symptoms, weights)
	if err := s.structured(ctx, "dashboard_tip", prompt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Chat answers question given the prior conversation.
func (s *Service) Chat(ctx context.Context, history []Turn, question string) (string, error) {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: "system", Content: chatbotSystemPrompt})
	for _, t := range history {
		role := "user"
		if t.Role == "model" {
			role = "assistant"
		}
		messages = append(messages, Message{Role: role, Content: t.Content})
	}
	messages = append(messages, Message{Role: "user", Content: question})

	answer, err := s.gen.Complete(ctx, messages, false)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = fmt.Errorf("%w: empty answer", ErrInvalidOutput)
	}
	s.observe("chat", err)
	if err != nil {
		s.logger.Error("Chat completion failed", zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (s *Service) structured(ctx context.Context, flow, prompt string, out interface{}) error {
	messages := []Message{
		{Role: "system", Content: "Reply with a single valid JSON object and nothing else."},
		{Role: "user", Content: prompt},
	}

	raw, err := s.gen.Complete(ctx, messages, true)
	if err == nil {
		err = s.decode(raw, out)
	}
	s.observe(flow, err)
	if err != nil {
		s.logger.Error("Assistant flow failed", zap.String("flow", flow), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) decode(raw string, out interface{}) error {
	raw = stripCodeFence(raw)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := s.validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
