package nlweb

// Spoken messages. Each empty or failed outcome has its own wording so a
// listener can tell "nothing relevant" apart from "found but not summarized".
const (
	// MsgNoRelevantEpisodes answers a retrieval count of zero.
	MsgNoRelevantEpisodes = "I couldn't find any relevant episodes in the podcast database. Try asking about technology topics, Microsoft, AI, or specific companies."

	// MsgNoInformation answers a stream that produced nothing usable.
	MsgNoInformation = "I couldn't find any relevant information. Try asking about technology topics or specific podcast episodes."

	// MsgFoundNoSummary is formatted with the retrieval count.
	MsgFoundNoSummary = "I found %d relevant episodes but couldn't generate a summary. The language model might be having issues."

	// MsgFoundNoFormat is formatted with the retrieval count (retrieval tier).
	MsgFoundNoFormat = "I found %d relevant episodes but couldn't format them properly. The search is working, but there's a processing issue."

	// MsgUnreachable answers transport failures.
	MsgUnreachable = "Sorry, I couldn't connect to the knowledge base. Please check if the service is running."

	// MsgTimedOut answers a timeout on the last tier.
	MsgTimedOut = "Sorry, the knowledge base is taking too long to respond. Please try again in a moment."

	// MsgCancelled answers a request abandoned by the caller.
	MsgCancelled = "Okay, never mind."

	// MsgEmptyQuery answers blank input.
	MsgEmptyQuery = "I didn't catch a question. Could you say that again?"

	// RecommendationsLead introduces the enumerated list of the full answer.
	RecommendationsLead = "Here are relevant podcast episodes:"

	// TopMatchesLead introduces the shorter retrieval tier list.
	TopMatchesLead = "Here are the top matches:"

	// SearchLead introduces the search tier list.
	SearchLead = "I found these episodes:"
)

// tierFailure holds the apology spoken when a tier answers with a non-200 status.
var tierFailure = map[Tier]string{
	TierPrimary:   "Sorry, I encountered an API error while asking the knowledge base. The service might be busy.",
	TierRetrieval: "Sorry, I found some episodes but the quick retrieval request failed.",
	TierSearch:    "Sorry, the episode search failed as well. Please try again later.",
}

// TierFailureMessage returns the apology for a failed tier.
func TierFailureMessage(t Tier) string {
	if msg, ok := tierFailure[t]; ok {
		return msg
	}
	return "Sorry, I'm having technical difficulties processing your request."
}
