package api

import "fmt"

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status code: %d, response: %s", e.Code, e.Body)
}

// SettingsUpdateError reports a failed settings call. Local state is left
// untouched; the server's view stands until the next snapshot says
// otherwise.
type SettingsUpdateError struct {
	SessionID string
	Err       error
}

func (e *SettingsUpdateError) Error() string {
	return fmt.Sprintf("settings update for session %s failed: %v", e.SessionID, e.Err)
}

func (e *SettingsUpdateError) Unwrap() error {
	return e.Err
}
