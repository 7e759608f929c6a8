package models

// Result is the envelope every orchestrator step returns. Callers check
// Success before trusting Data.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(message string, data interface{}) Result {
	return Result{Success: true, Message: message, Data: data}
}

func Fail(message string, data interface{}) Result {
	return Result{Success: false, Message: message, Data: data}
}
