package coordinator

import (
	"fmt"
	"strings"

	"github.com/barefootzenith/supportmesh/agent"
	"github.com/barefootzenith/supportmesh/internal/util"
	"github.com/barefootzenith/supportmesh/protocol"
)

// Response types a turn can produce.
const (
	ResponseRefundEligible    = "refund_eligible"
	ResponseRefundNotEligible = "refund_not_eligible"
	ResponseRefundProcessed   = "refund_processed"
	ResponseExchangeAvailable = "exchange_available"
	ResponseExchangeReserved  = "exchange_reserved"
	ResponseShippingStatus    = "shipping_status"
	ResponsePolicyInfo        = "policy_info"
	ResponseGeneralInfo       = "general_info"
	ResponseNeedOrderID       = "need_order_id"
	ResponseError             = "error"
)

// ResponseTemplate is the structured user-facing reply every turn produces.
type ResponseTemplate struct {
	ResponseType   string   `json:"response_type" description:"The kind of reply being given"`
	Message        string   `json:"message" description:"Main reply to the customer, friendly and concise"`
	ActionRequired string   `json:"action_required,omitempty" description:"Next step the customer should take, if any"`
	KeyDetails     []string `json:"key_details,omitempty" description:"Short factual bullet points backing the reply"`
}

var responseSchema = func() map[string]any {
	s := util.CreateSchema(ResponseTemplate{})
	util.Property(s, "response_type")["enum"] = []string{
		ResponseRefundEligible, ResponseRefundNotEligible, ResponseRefundProcessed,
		ResponseExchangeAvailable, ResponseExchangeReserved, ResponseShippingStatus,
		ResponsePolicyInfo, ResponseGeneralInfo, ResponseNeedOrderID, ResponseError,
	}
	util.Property(s, "message")["maxLength"] = 1000
	return s
}()

const supportContact = "support@barefootzenith.com"

// fallbackTemplate renders a deterministic reply from the structured agent
// results when the assembly model call fails. It covers every intent with a
// usable, if plain, message.
func fallbackTemplate(intent Intent, results map[protocol.AgentName]protocol.Response) ResponseTemplate {
	switch intent {
	case IntentRefund:
		return fallbackRefund(results)
	case IntentExchange:
		return fallbackExchange(results)
	case IntentShipping:
		return fallbackShipping(results)
	case IntentPolicy:
		return fallbackPolicy(results)
	default:
		return ResponseTemplate{
			ResponseType: ResponseGeneralInfo,
			Message:      "Thanks for reaching out. I can help with refunds, exchanges, shipping questions and store policies.",
		}
	}
}

func fallbackRefund(results map[protocol.AgentName]protocol.Response) ResponseTemplate {
	resp, ok := results[protocol.AgentTransaction]
	if !ok || !resp.OK() {
		return errorTemplate("I couldn't check your order right now.", resp)
	}
	if missing, _ := resp.Result["missing_order_id"].(bool); missing {
		return ResponseTemplate{
			ResponseType:   ResponseNeedOrderID,
			Message:        "I can help with that refund. Could you share your order number? It looks like ORD-12345.",
			ActionRequired: "Provide your order number",
		}
	}
	elig, ok := resp.Result["eligibility"].(agent.Eligibility)
	if !ok {
		return errorTemplate("I couldn't verify refund eligibility.", resp)
	}
	orderID, _ := resp.Result["order_id"].(string)
	if !elig.Eligible {
		return ResponseTemplate{
			ResponseType: ResponseRefundNotEligible,
			Message:      fmt.Sprintf("Order %s is not eligible for a refund (%s).", orderID, strings.ReplaceAll(elig.Reason, "_", " ")),
			KeyDetails:   []string{"Reason: " + elig.Reason},
		}
	}
	amount, _ := resp.Result["amount"].(float64)
	details := []string{fmt.Sprintf("Order: %s", orderID)}
	if amount > 0 {
		details = append(details, fmt.Sprintf("Refund amount: $%.2f", amount))
	}
	if elig.DaysRemaining > 0 {
		details = append(details, fmt.Sprintf("Days remaining in return window: %d", elig.DaysRemaining))
	}
	msg := fmt.Sprintf("Order %s is eligible for a refund", orderID)
	if amount > 0 {
		msg += fmt.Sprintf(" of $%.2f", amount)
	}
	msg += ". Reply 'yes' to confirm and I'll process it."
	return ResponseTemplate{
		ResponseType:   ResponseRefundEligible,
		Message:        msg,
		ActionRequired: "Confirm to process the refund",
		KeyDetails:     details,
	}
}

func fallbackExchange(results map[protocol.AgentName]protocol.Response) ResponseTemplate {
	resp, ok := results[protocol.AgentExchange]
	if !ok || !resp.OK() {
		return errorTemplate("I couldn't check replacement stock right now.", resp)
	}
	if missing, _ := resp.Result["missing_sku"].(bool); missing {
		return ResponseTemplate{
			ResponseType:   ResponseNeedOrderID,
			Message:        "I can set up an exchange. Which product do you want to exchange? A SKU reference like SKU-1042 helps.",
			ActionRequired: "Provide the product SKU",
		}
	}
	sku, _ := resp.Result["sku"].(string)
	if inStock, _ := resp.Result["in_stock"].(bool); !inStock {
		return ResponseTemplate{
			ResponseType: ResponseError,
			Message:      fmt.Sprintf("The replacement %s is currently out of stock.", sku),
			KeyDetails:   []string{"Reason: out_of_stock"},
		}
	}
	return ResponseTemplate{
		ResponseType:   ResponseExchangeAvailable,
		Message:        fmt.Sprintf("A replacement %s is in stock. Reply 'yes' to confirm and I'll reserve it for your exchange.", sku),
		ActionRequired: "Confirm to reserve the replacement",
		KeyDetails:     []string{"SKU: " + sku},
	}
}

func fallbackShipping(results map[protocol.AgentName]protocol.Response) ResponseTemplate {
	resp, ok := results[protocol.AgentShipping]
	if !ok || !resp.OK() {
		return errorTemplate("I couldn't fetch tracking information right now.", resp)
	}
	if missing, _ := resp.Result["missing_order_id"].(bool); missing {
		return ResponseTemplate{
			ResponseType:   ResponseNeedOrderID,
			Message:        "I can look up your delivery. Could you share your order number?",
			ActionRequired: "Provide your order number",
		}
	}
	orderID, _ := resp.Result["order_id"].(string)
	state, _ := resp.Result["state"].(string)
	eta, _ := resp.Result["estimated_delivery"].(string)
	return ResponseTemplate{
		ResponseType: ResponseShippingStatus,
		Message:      fmt.Sprintf("Order %s is %s.", orderID, strings.ReplaceAll(state, "_", " ")),
		KeyDetails:   []string{"Estimated delivery: " + eta},
	}
}

func fallbackPolicy(results map[protocol.AgentName]protocol.Response) ResponseTemplate {
	resp, ok := results[protocol.AgentPolicy]
	if !ok || !resp.OK() {
		return errorTemplate("I couldn't look up that policy right now.", resp)
	}
	text, _ := resp.Result["policy_text"].(string)
	if text == "" {
		return ResponseTemplate{
			ResponseType:   ResponsePolicyInfo,
			Message:        "I couldn't find a specific policy for that. Our support team can help with the details.",
			ActionRequired: "Contact " + supportContact,
		}
	}
	return ResponseTemplate{
		ResponseType: ResponsePolicyInfo,
		Message:      text,
	}
}

// errorTemplate renders the degraded reply for a failed collaborator call.
func errorTemplate(msg string, resp protocol.Response) ResponseTemplate {
	details := []string(nil)
	if resp.Status == protocol.StatusTimeout {
		details = []string{"The service took too long to respond."}
	} else if resp.Error != nil {
		details = []string{"Reason: " + string(resp.Error.Kind)}
	}
	return ResponseTemplate{
		ResponseType:   ResponseError,
		Message:        msg + " Please try again in a moment.",
		ActionRequired: "Contact " + supportContact,
		KeyDetails:     details,
	}
}
