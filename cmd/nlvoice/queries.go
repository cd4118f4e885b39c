package main

// testQueries are the canned query sets for the test mode.
var testQueries = map[string][]string{
	"quick": {
		"What podcasts do you have?",
		"Tell me about Microsoft",
	},
	"full": {
		"What podcasts are available in the database?",
		"Tell me about Behind the Tech episodes",
		"What topics does the Decoder podcast cover?",
		"Find episodes about artificial intelligence",
		"Show me technology company interviews",
	},
	"debug": {
		"What podcasts are available?",
		"Microsoft",
		"machine learning",
	},
}
