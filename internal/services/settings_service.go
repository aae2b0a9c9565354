package services

// PersonalityProfile supplies the tone knobs a personality selection maps to:
// a system-prompt fragment and an optional sampling temperature override.
type PersonalityProfile struct {
	Name           string
	PromptFragment string
	Temperature    *float64
}

func temp(v float64) *float64 { return &v }

var personalityProfiles = map[string]PersonalityProfile{
	"neutral": {
		Name:           "neutral",
		PromptFragment: "Keep a neutral, factual tone.",
	},
	"friendly": {
		Name:           "friendly",
		PromptFragment: "Keep a warm, conversational tone and address the user directly.",
		Temperature:    temp(0.8),
	},
	"concise": {
		Name:           "concise",
		PromptFragment: "Answer as briefly as possible. Prefer short sentences and skip pleasantries.",
		Temperature:    temp(0.4),
	},
	"analytical": {
		Name:           "analytical",
		PromptFragment: "Reason step by step and make your assumptions explicit before concluding.",
		Temperature:    temp(0.3),
	},
	"creative": {
		Name:           "creative",
		PromptFragment: "Favor vivid language and original framing where the question allows it.",
		Temperature:    temp(1.0),
	},
}

// SettingsService resolves personality selections to concrete profiles.
// Unknown names fall back to neutral so a stale client setting never breaks a
// request.
type SettingsService struct{}

func NewSettingsService() *SettingsService {
	return &SettingsService{}
}

func (s *SettingsService) Profile(personality string) PersonalityProfile {
	if profile, ok := personalityProfiles[personality]; ok {
		return profile
	}
	return personalityProfiles["neutral"]
}
