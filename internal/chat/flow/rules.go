package flow

import "regexp"

// RuleEffect is the state side effect attached to a rule.
type RuleEffect int

const (
	RuleReplyOnly RuleEffect = iota
	// RuleBeginCallFlow moves an idle session to awaiting-language.
	RuleBeginCallFlow
)

// Rule maps a case-insensitive pattern to a canned reply. Rules are evaluated
// in slice order and the first match wins.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Reply   string
	Effect  RuleEffect
}

const (
	FallbackReply     = "Sorry, I didn't quite get that. You can ask about our courses, fees, certificates, refunds or payments, or ask us to call you back."
	LanguageReply     = "Thanks! You'd like to talk in %s. Please share your phone number so we can call you."
	InvalidPhoneReply = "That doesn't look like a valid phone number. Please enter 10 to 15 digits, for example +91 98765 43210."
	ConfirmReply      = "Done! Our counsellor will call you at %s and speak in %s. Anything else I can help with?"
	EndedReply        = "Chat ended. Thanks for reaching out, have a great day!"
	WelcomeReply      = "Hi there! I'm the course assistant. Ask me about courses, fees or certificates, or type \"talk to agent\" to request a call."
)

func mustRule(name, pattern, reply string, effect RuleEffect) Rule {
	return Rule{Name: name, Pattern: regexp.MustCompile(`(?i)` + pattern), Reply: reply, Effect: effect}
}

// DefaultRules is the storefront FAQ table. The call request rule comes first
// so "call me about fees" starts a callback rather than answering fees.
func DefaultRules() []Rule {
	return []Rule{
		mustRule("call-request",
			`\b(talk|speak|chat|connect)\s+(to|with)\s+(an?\s+|the\s+|your\s+)?(human|agent|person|someone|representative|counsell?or|advisor)\b|\bcall\s*(me|back)\b|\bcallback\b|\brequest\s+(a\s+)?call\b|\bhuman\b`,
			"Sure, I can arrange a call with one of our counsellors. Which language would you prefer to talk in?",
			RuleBeginCallFlow),
		mustRule("greeting",
			`^\s*(hi|hello|hey|namaste|good\s+(morning|afternoon|evening))\b`,
			"Hello! How can I help you today? You can ask about courses, fees, certificates or refunds.",
			RuleReplyOnly),
		mustRule("courses",
			`\b(course|courses|program|programs|syllabus|curriculum|catalog)\b`,
			"We offer courses across development, data science, design and marketing. Browse the catalog to see every course and its syllabus.",
			RuleReplyOnly),
		mustRule("fees",
			`\b(fee|fees|price|prices|pricing|cost|costs|how\s+much|discount)\b`,
			"Course fees are listed on each course page. A 10% tax is added at checkout.",
			RuleReplyOnly),
		mustRule("payment",
			`\b(pay|payment|payments|upi|card|emi|checkout)\b`,
			"You can pay by card, UPI or net banking at checkout. EMI options are available on selected courses.",
			RuleReplyOnly),
		mustRule("refund",
			`\b(refund|refunds|cancel|cancellation|money\s+back)\b`,
			"You can request a full refund within 7 days of purchase if you have completed less than 20% of the course.",
			RuleReplyOnly),
		mustRule("certificate",
			`\b(certificate|certificates|certification|certified)\b`,
			"Every course comes with a shareable certificate of completion once you finish all modules.",
			RuleReplyOnly),
		mustRule("duration",
			`\b(duration|how\s+long|weeks|months|schedule|timing|timings)\b`,
			"Most courses are self-paced and take 4 to 12 weeks. Live batches list their schedule on the course page.",
			RuleReplyOnly),
		mustRule("brochure",
			`\b(brochure|pdf|details\s+by\s+email|email\s+me)\b`,
			"You can download the brochure from any course page, and we'll email a copy to you as well.",
			RuleReplyOnly),
		mustRule("thanks",
			`\b(thanks|thank\s+you|thx)\b`,
			"You're welcome! Anything else I can help with?",
			RuleReplyOnly),
	}
}
