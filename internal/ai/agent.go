package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("assistant is not configured")

const maxToolRounds = 4

// Agent answers back-office questions by letting Gemini call read-only tools
// over stock, open bags and settlements.
type Agent struct {
	apiKey string
	model  string
	db     *gorm.DB
}

func NewAgent(apiKey, model string, db *gorm.DB) *Agent {
	if model == "" {
		model = "gemini-2.0-flash-001"
	}
	return &Agent{apiKey: apiKey, model: model, db: db}
}

func (a *Agent) Enabled() bool {
	return a != nil && a.apiKey != ""
}

var tools = []*genai.Tool{
	{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "check_inventory",
				Description: "Get every variant in stock with title, size, color, barcode, stock, price and cost. Use it for ANY stock or price question.",
			},
			{
				Name:        "list_open_consignments",
				Description: "List the bags currently with resellers: id, reseller, items, value and when they were shipped.",
			},
			{
				Name:        "get_settlement_report",
				Description: "Sum sold value, reseller commission and store net for bags closed in a date range.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start_date": {Type: genai.TypeString, Description: "Start date (YYYY-MM-DD)"},
						"end_date":   {Type: genai.TypeString, Description: "End date (YYYY-MM-DD)"},
					},
					Required: []string{"start_date", "end_date"},
				},
			},
		},
	},
}

// Ask runs one question through the model, answering its tool calls until it
// replies with text.
func (a *Agent) Ask(ctx context.Context, userMessage string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(a.apiKey))
	if err != nil {
		return "", err
	}
	defer client.Close()

	model := client.GenerativeModel(a.model)
	model.Tools = tools

	systemPrompt := fmt.Sprintf(`SYSTEM: Today is %s. You are the back-office assistant of a store that ships consignment bags to resellers.

RULES:
1. STOCK or PRICE questions: call 'check_inventory' and read the result. Never say you cannot see prices.
2. Questions about what is with resellers right now: call 'list_open_consignments'.
3. Questions about commissions, sales or what the store received: call 'get_settlement_report'.
4. Money is in BRL. Answer in the user's language.

USER: %s`, time.Now().Format("2006-01-02"), userMessage)

	session := model.StartChat()
	resp, err := session.SendMessage(ctx, genai.Text(systemPrompt))
	if err != nil {
		return "", err
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			return printResponse(resp), nil
		}

		replies := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			log.Debug().Str("tool", call.Name).Msg("assistant tool call")
			replies = append(replies, genai.FunctionResponse{
				Name:     call.Name,
				Response: a.runTool(ctx, call),
			})
		}
		resp, err = session.SendMessage(ctx, replies...)
		if err != nil {
			return "", err
		}
	}
	return printResponse(resp), nil
}

// runTool executes a tool call against the database. Failures are reported
// to the model as data so it can explain them.
func (a *Agent) runTool(ctx context.Context, call genai.FunctionCall) map[string]any {
	switch call.Name {
	case "check_inventory":
		rows, err := database.GetInventory(ctx, a.db)
		if err != nil {
			return map[string]any{"error": "could not read inventory"}
		}
		return map[string]any{"inventory": asJSON(rows)}

	case "list_open_consignments":
		var bags []models.Consignment
		err := a.db.WithContext(ctx).
			Where("status = ?", models.StatusOpen).
			Preload("Reseller", models.WithDeleted).
			Order("created_at").
			Find(&bags).Error
		if err != nil {
			return map[string]any{"error": "could not list consignments"}
		}
		type openBag struct {
			ID       uint   `json:"id"`
			Reseller string `json:"reseller"`
			Items    int    `json:"items"`
			Value    string `json:"value"`
			Shipped  string `json:"shipped"`
		}
		out := make([]openBag, 0, len(bags))
		for _, b := range bags {
			name := ""
			if b.Reseller != nil {
				name = b.Reseller.Name
			}
			out = append(out, openBag{
				ID:       b.ID,
				Reseller: name,
				Items:    b.TotalItems,
				Value:    b.TotalValue.StringFixed(2),
				Shipped:  b.CreatedAt.Format("2006-01-02"),
			})
		}
		return map[string]any{"consignments": asJSON(out)}

	case "get_settlement_report":
		startStr, _ := call.Args["start_date"].(string)
		endStr, _ := call.Args["end_date"].(string)
		start, end, err := database.ParseReportRange(startStr, endStr)
		if err != nil {
			return map[string]any{"error": "dates must be in YYYY-MM-DD format"}
		}
		report, err := database.GetSettlementReport(ctx, a.db, start, end)
		if err != nil {
			return map[string]any{"error": "could not calculate settlements"}
		}
		return map[string]any{
			"closed_bags":      report.ClosedBags,
			"total_sold":       report.TotalSold.StringFixed(2),
			"total_commission": report.TotalCommission.StringFixed(2),
			"total_net":        report.TotalNet.StringFixed(2),
		}
	}
	return map[string]any{"error": "unknown tool " + call.Name}
}

// asJSON flattens structured results; tool responses only carry plain values.
func asJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if fc, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, fc)
		}
	}
	return calls
}

func printResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "I could not produce an answer."
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			return string(txt)
		}
	}
	return "I completed the action."
}
