package search

import (
	"strconv"
	"strings"
)

// Query represents the structured parameters for a room search.
// It decouples the raw chat input from the actual index engine requirements.
type Query struct {
	RawInput string // The original input from the user
	Terms    string // The actual text to search in Bluge
	RoomID   string // Target room for the search
	Author   string // Restrict hits to one display name
	Offset   int    // Pagination: results to skip
	Limit    int    // Pagination: number of results
}

// ParseQuery parses a raw string to extract command-line style arguments.
// Example: /find "popcorn" --author Bob --limit 5
func ParseQuery(input string) *Query {
	query := &Query{
		RawInput: input,
	}

	parts := strings.Fields(input)
	var textTerms []string

	for i := 0; i < len(parts); i++ {
		part := parts[i]

		// Handle flags like --room 2b1c or --limit 5
		if strings.HasPrefix(part, "--") && i+1 < len(parts) {
			key := strings.TrimPrefix(part, "--")
			val := parts[i+1]

			switch key {
			case "room":
				query.RoomID = val
			case "author":
				query.Author = strings.Trim(val, `"`)
			case "limit":
				if n, err := strconv.Atoi(val); err == nil {
					query.Limit = n
				}
			case "offset":
				if n, err := strconv.Atoi(val); err == nil {
					query.Offset = n
				}
			}
			i++ // Skip the value part in next iteration
			continue
		}

		// If it's not a flag, it's a search term
		if !strings.HasPrefix(part, "/") {
			textTerms = append(textTerms, strings.Trim(part, `"`))
		}
	}

	query.Terms = strings.Join(textTerms, " ")
	return query
}
