package models

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is a fully read API response.
type Response struct {
	StatusCode int
	Header     http.Header
	Data       []byte
	// FromCache is set when the body was served from the local cache
	// because the server could not be reached.
	FromCache bool
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
