package model

// Response is the envelope for every JSON answer of the widget API.
type Response struct {
	Data    any     `json:"data,omitempty"`
	Error   *string `json:"error,omitempty"`
	Message string  `json:"message"`
}

func SuccessResponse(data any) Response {
	return Response{Data: data, Message: "Success"}
}

func ErrorResponse(msg string) Response {
	return Response{Error: &msg, Message: "Error"}
}
