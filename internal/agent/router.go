package agent

import (
	"context"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/caseflow-ai/caseflow/internal/search"
)

const classificationCacheSize = 512

// Router classifies queries. Casual and obviously simple queries are
// classified by pattern matching alone; only product queries without a
// recognizable shape reach the classifier collaborator, and those
// verdicts are cached so repeated queries don't pay for a second call.
type Router struct {
	classifier IntentClassifier
	decisions  *lru.Cache[string, Classification]
	logger     *slog.Logger
}

// NewRouter creates a router. The classifier may be nil, in which case
// unmatched queries get standard/general defaults.
func NewRouter(classifier IntentClassifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	decisions, _ := lru.New[string, Classification](classificationCacheSize)
	return &Router{classifier: classifier, decisions: decisions, logger: logger}
}

var greetings = phraseSet(
	"hi", "hello", "hey", "hiya", "howdy", "greetings", "yo", "sup",
	"good morning", "good afternoon", "good evening", "good night",
	"morning", "afternoon", "evening", "hola", "bonjour", "ciao",
	"what's up", "whats up", "wassup", "wazzup", "g'day", "aloha",
)

var greetingStarters = phraseSet("hi", "hello", "hey", "hiya", "howdy", "yo", "sup")

var farewells = phraseSet(
	"bye", "goodbye", "farewell", "see you", "see ya", "later",
	"take care", "have a nice day", "have a good one", "cya",
	"thanks bye", "thank you bye", "ok bye", "gtg", "gotta go",
	"talk later", "catch you later", "peace", "cheers",
)

var appreciation = phraseSet(
	"thanks", "thank you", "thx", "ty", "thank u", "appreciate it",
	"thanks a lot", "thank you so much", "many thanks", "grateful",
	"much appreciated", "thanks for your help", "thanks for helping",
)

var smallTalk = phraseSet(
	"how are you", "how r u", "how are u", "hows it going",
	"how's it going", "what's new", "whats new", "how do you do",
	"nice to meet you", "pleasure", "how's your day", "hows your day",
	"are you a bot", "are you real", "are you human", "who are you",
	"what are you", "what's your name", "whats your name", "your name",
	"who made you", "who created you", "are you ai",
	"can you help", "can you help me", "i need help", "help me",
	"help please", "please help", "need assistance", "assist me",
)

var offTopic = phraseSet(
	"tell me a joke", "joke", "funny", "weather", "whats the weather",
	"what time is it", "time", "date", "what day is it", "today",
	"tell me something", "interesting", "fun fact", "bored", "boring",
	"random", "anything", "whatever", "idk", "i dont know", "dunno",
	"nothing", "nevermind", "nvm", "forget it", "ok", "okay", "k",
	"cool", "nice", "great", "awesome", "sure", "alright", "fine",
	"yes", "no", "yeah", "yep", "nope", "maybe", "perhaps", "lol",
	"haha", "hehe", "lmao", "rofl", "omg", "wow", "hmm", "umm", "uh",
)

var productKeywords = []string{
	"account", "billing", "subscription", "payment", "invoice", "plan",
	"feature", "integration", "api", "setup", "configure", "settings",
	"error", "issue", "problem", "bug", "broken", "not working", "fix",
	"how to", "how do i", "can i", "is it possible", "tutorial", "guide",
	"password", "login", "sign in", "sign up", "register", "upgrade",
	"cancel", "refund", "pricing", "cost", "charge", "trial", "demo",
	"workspace", "project", "task", "team", "member", "admin", "user",
	"notification", "email", "sync", "export", "import", "data", "backup",
}

var commonQuestionPrefixes = []string{
	"how to", "what is", "what are", "how do", "how can",
	"where is", "where can", "when can", "can i", "can you",
	"tell me", "show me", "help me", "get started", "getting started",
}

func phraseSet(phrases ...string) map[string]bool {
	set := make(map[string]bool, len(phrases))
	for _, p := range phrases {
		set[p] = true
	}
	return set
}

// matchesPhrases reports an exact match, or a multi-word phrase
// appearing anywhere in the query.
func matchesPhrases(query string, set map[string]bool) bool {
	if set[query] {
		return true
	}
	for phrase := range set {
		if strings.Contains(phrase, " ") && strings.Contains(query, phrase) {
			return true
		}
	}
	return false
}

// matchesPhrasesLoose additionally accepts single-word phrases when
// they appear as a whole word anywhere in the query.
func matchesPhrasesLoose(query string, words []string, set map[string]bool) bool {
	if matchesPhrases(query, set) {
		return true
	}
	for _, w := range words {
		if set[strings.Trim(w, ".,!?")] {
			return true
		}
	}
	return false
}

// Route classifies the request in place. Pattern fast paths never call
// the classifier; classifier failures fall back to safe defaults.
func (r *Router) Route(ctx context.Context, req *Request) {
	query := strings.TrimSpace(strings.ToLower(req.Query))
	words := strings.Fields(query)

	// Small talk first, so "can you help" isn't mistaken for a greeting.
	switch {
	case matchesPhrases(query, smallTalk):
		setClassification(req, IntentSmallTalk, search.ComplexitySimple, "general", 0.2, 0.6)
		return

	case matchesPhrases(query, greetings),
		len(words) > 0 && greetingStarters[words[0]],
		len(query) <= 3 && query != "who" && query != "why" && query != "how" && query != "what":
		setClassification(req, IntentGreeting, search.ComplexitySimple, "general", 0.1, 0.8)
		return

	case matchesPhrasesLoose(query, words, farewells):
		setClassification(req, IntentFarewell, search.ComplexitySimple, "general", 0.1, 0.7)
		return

	case matchesPhrasesLoose(query, words, appreciation):
		setClassification(req, IntentAppreciation, search.ComplexitySimple, "general", 0.1, 0.9)
		return

	case matchesPhrasesLoose(query, words, offTopic) && len(words) <= 5:
		setClassification(req, IntentChitchat, search.ComplexitySimple, "general", 0.1, 0.5)
		return
	}

	hasProductKeyword := false
	for _, kw := range productKeywords {
		if strings.Contains(query, kw) {
			hasProductKeyword = true
			break
		}
	}

	// Short queries with no product vocabulary don't need retrieval depth.
	if len(words) <= 4 && !hasProductKeyword {
		setClassification(req, IntentQuestion, search.ComplexitySimple, "general", 0.3, 0.5)
		return
	}

	// Common question shapes skip the classifier entirely.
	for _, p := range commonQuestionPrefixes {
		if strings.HasPrefix(query, p) || strings.Contains(query, p) {
			setClassification(req, IntentQuestion, search.ComplexityStandard, "support", 0.4, 0.5)
			return
		}
	}

	r.classify(ctx, req)
}

// classify consults the classifier collaborator, falling back to
// standard/general defaults when it fails or returns garbage.
func (r *Router) classify(ctx context.Context, req *Request) {
	if r.classifier == nil {
		setClassification(req, IntentQuestion, search.ComplexityStandard, "general", 0.5, 0.5)
		return
	}

	key := strings.ToLower(strings.TrimSpace(req.Query))
	if cached, ok := r.decisions.Get(key); ok {
		setClassification(req, cached.Intent, cached.Complexity, cached.Category, cached.Urgency, cached.Sentiment)
		return
	}

	c, err := r.classifier.Classify(ctx, req.Query)
	if err != nil || c == nil {
		if err != nil {
			r.logger.Warn("classification_failed",
				slog.String("request_id", req.ID),
				slog.String("error", err.Error()))
		}
		setClassification(req, IntentQuestion, search.ComplexityStandard, "general", 0.5, 0.5)
		return
	}

	intent := c.Intent
	if intent == "" {
		intent = IntentQuestion
	}
	complexity := c.Complexity
	switch complexity {
	case search.ComplexitySimple, search.ComplexityStandard, search.ComplexityComplex, search.ComplexitySpecialized:
	default:
		complexity = search.ComplexityStandard
	}
	category := c.Category
	if category == "" {
		category = "general"
	}

	verdict := Classification{
		Intent:     intent,
		Complexity: complexity,
		Category:   category,
		Urgency:    clamp01(c.Urgency),
		Sentiment:  clamp01(c.Sentiment),
	}
	r.decisions.Add(key, verdict)
	setClassification(req, verdict.Intent, verdict.Complexity, verdict.Category, verdict.Urgency, verdict.Sentiment)
}

// ShouldEscalateImmediately reports whether routing alone demands a
// human: extreme urgency, very negative sentiment, or explicit urgency
// words in the query.
func (r *Router) ShouldEscalateImmediately(req *Request) bool {
	if req.Urgency > 0.9 {
		return true
	}
	if req.Sentiment < 0.2 {
		return true
	}
	lower := strings.ToLower(req.Query)
	return strings.Contains(lower, "urgent") || strings.Contains(lower, "emergency")
}

func setClassification(req *Request, intent string, complexity search.QueryComplexity, category string, urgency, sentiment float64) {
	req.Intent = intent
	req.Complexity = complexity
	req.Category = category
	req.Urgency = urgency
	req.Sentiment = sentiment
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
