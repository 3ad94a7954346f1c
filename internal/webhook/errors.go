package webhook

// BadRequestError marks protocol violations a caller should see as
// HTTP 400: malformed envelopes, unknown routes, failed handshakes.
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// badRequest builds a BadRequestError.
func badRequest(message string) error {
	return &BadRequestError{Message: message}
}

// errMalformatted is raised for envelopes violating the exactly-one
// entry/change contract. Batched deliveries are rejected rather than
// partially processed; see ReadMessaging.
func errMalformatted() error {
	return badRequest("Malformatted request.")
}
