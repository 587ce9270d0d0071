package negotiator

import "encoding/json"

// Turn is one entry of the trailing conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History speakers.
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

type Offer struct {
	Price        float64 `json:"price"`
	VehiclePrice float64 `json:"vehicle_price"`
	Monthly      float64 `json:"monthly"`
	Duration     int     `json:"duration"`
}

type Vehicle struct {
	Make      string   `json:"make"`
	Model     string   `json:"model"`
	Year      int      `json:"year"`
	Price     float64  `json:"price"`
	Mileage   int      `json:"mileage"`
	Condition string   `json:"condition"`
	Features  []string `json:"features"`
}

type Request struct {
	SessionID           string   `json:"session_id"`
	CustomerMessage     string   `json:"customer_message"`
	ConversationHistory []Turn   `json:"conversation_history"`
	CurrentOffer        *Offer   `json:"current_offer"`
	VehicleContext      *Vehicle `json:"vehicle_context"`
}

type EmotionalAnalysis struct {
	SentimentScore float64  `json:"sentiment_score"`
	PrimaryEmotion string   `json:"primary_emotion"`
	KeyConcerns    []string `json:"key_concerns"`
}

type Response struct {
	AgentMessage      string             `json:"agent_message"`
	NewOffer          *Offer             `json:"new_offer"`
	EmotionalAnalysis *EmotionalAnalysis `json:"emotional_analysis"`
	IntentDetected    string             `json:"intent_detected"`
	Reasoning         string             `json:"reasoning"`
	WinWinScore       *float64           `json:"win_win_score"`
	AgentSteps        []json.RawMessage  `json:"agent_steps"`
}
