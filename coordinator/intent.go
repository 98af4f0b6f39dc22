package coordinator

import (
	"context"
	"fmt"

	"github.com/barefootzenith/supportmesh/internal/util"
	"github.com/barefootzenith/supportmesh/model"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentRefund   Intent = "refund"
	IntentExchange Intent = "exchange"
	IntentShipping Intent = "shipping_inquiry"
	IntentPolicy   Intent = "policy_question"
	IntentGeneral  Intent = "general"
)

// Valid reports whether the intent belongs to the known set.
func (i Intent) Valid() bool {
	switch i {
	case IntentRefund, IntentExchange, IntentShipping, IntentPolicy, IntentGeneral:
		return true
	}
	return false
}

// Classification is the structured output of the intent classifier.
type Classification struct {
	Intent     Intent  `json:"intent" description:"The customer's intent category"`
	Confidence float64 `json:"confidence" description:"Classification confidence between 0 and 1"`
}

var classificationSchema = func() map[string]any {
	s := util.CreateSchema(Classification{})
	util.Property(s, "intent")["enum"] = []string{
		string(IntentRefund), string(IntentExchange), string(IntentShipping),
		string(IntentPolicy), string(IntentGeneral),
	}
	conf := util.Property(s, "confidence")
	conf["minimum"] = 0
	conf["maximum"] = 1
	return s
}()

const classifyInstructions = `You classify customer support messages for an online retailer.
Pick exactly one intent:
- refund: the customer wants money back for an order
- exchange: the customer wants a replacement product
- shipping_inquiry: the customer asks where an order is or when it arrives
- policy_question: the customer asks about store policies (returns, shipping, warranties)
- general: greetings, thanks, or anything else`

// classify runs one schema-constrained model call. Any failure, from the
// model or from parsing its output, demotes the turn to general with zero
// confidence; classification never aborts a turn.
func (c *Coordinator) classify(ctx context.Context, message, history string) (Classification, int) {
	prompt := fmt.Sprintf("Conversation so far:\n%s\n\nClassify this customer message:\n%s", history, message)
	res, err := c.model.Generate(ctx, model.Request{
		Instructions: classifyInstructions,
		Prompt:       prompt,
		Schema:       classificationSchema,
	})
	if err != nil {
		c.logger.Warn("intent classification failed", "error", err.Error())
		return Classification{Intent: IntentGeneral, Confidence: 0}, 0
	}
	cls, err := model.ParseStructured[Classification](res.Text)
	if err != nil || !cls.Intent.Valid() {
		c.logger.Warn("intent classification unparseable", "raw", res.Text)
		return Classification{Intent: IntentGeneral, Confidence: 0}, res.Usage.TotalTokens
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	return cls, res.Usage.TotalTokens
}
