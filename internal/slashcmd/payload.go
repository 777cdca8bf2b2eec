package slashcmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// ErrMalformedPayload is returned when a verified body cannot be decoded.
var ErrMalformedPayload = errors.New("malformed command payload")

// Payload is a decoded slash command invocation.
type Payload struct {
	Command     string `json:"command"`
	Text        string `json:"text"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	ChannelID   string `json:"channel_id"`
	TeamID      string `json:"team_id"`
	ResponseURL string `json:"response_url"`
	TriggerID   string `json:"trigger_id"`
}

// DecodePayload parses body as JSON or form-urlencoded data, chosen by the
// Content-Type media type. Without a usable media type the body is sniffed:
// a leading '{' means JSON.
func DecodePayload(contentType string, body []byte) (Payload, error) {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = mt
		}
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return decodeJSON(body)
	case mediaType == "application/x-www-form-urlencoded":
		return decodeForm(body)
	case bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")):
		return decodeJSON(body)
	default:
		return decodeForm(body)
	}
}

func decodeJSON(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

func decodeForm(body []byte) (Payload, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return Payload{
		Command:     values.Get("command"),
		Text:        values.Get("text"),
		UserID:      values.Get("user_id"),
		UserName:    values.Get("user_name"),
		ChannelID:   values.Get("channel_id"),
		TeamID:      values.Get("team_id"),
		ResponseURL: values.Get("response_url"),
		TriggerID:   values.Get("trigger_id"),
	}, nil
}

// validate checks the fields a rollback hand-off needs. Text is not
// checked here: an empty argument gets a usage reply, not an error.
func (p Payload) validate() error {
	if p.UserID == "" {
		return fmt.Errorf("%w: user_id missing", ErrMalformedPayload)
	}
	if p.ChannelID == "" {
		return fmt.Errorf("%w: channel_id missing", ErrMalformedPayload)
	}
	return nil
}
