package main

import (
	"io"

	"github.com/goccy/go-json"
)

type tokenRecord struct {
	Type  TokenType `json:"type"`
	Value string    `json:"value"`
	Line  int       `json:"line"`
}

// writeTokens writes the token stream as an indented JSON array. String
// constants are written without their quotes.
func writeTokens(w io.Writer, tokens []Token) error {
	records := make([]tokenRecord, 0, len(tokens))
	for _, token := range tokens {
		value := token.terminal
		if token.tokenType == StringConstant {
			value = token.StringVal()
		}
		records = append(records, tokenRecord{Type: token.tokenType, Value: value, Line: token.line})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
