package care

// Result is the outcome of a care resolution as seen by callers.
type Result struct {
	Success bool     `json:"success"`
	Source  Source   `json:"source"`
	Data    *Details `json:"data"`
	Message string   `json:"message,omitempty"`
}

// Found builds a successful result.
func Found(source Source, data *Details) Result {
	return Result{
		Success: true,
		Source:  source,
		Data:    data,
	}
}

// NotFound builds a failed result with a message.
func NotFound(message string) Result {
	return Result{
		Success: false,
		Source:  SourceNone,
		Data:    nil,
		Message: message,
	}
}
