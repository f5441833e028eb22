package helper

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// RequestID keeps a caller supplied id when it is a UUID, otherwise it makes a new one.
func RequestID(supplied string) string {
	if id, err := uuid.Parse(strings.TrimSpace(supplied)); err == nil {
		return id.String()
	}
	id, err := GenerateUUID()
	if err != nil {
		log.Warn().Err(err).Msg("Falling back to nil request id")
		return uuid.Nil.String()
	}
	return id
}

// pretty print
func PrettyPrint(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Msg("Error pretty printing")
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
