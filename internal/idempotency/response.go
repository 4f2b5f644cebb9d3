package idempotency

import (
	"net/http"

	"github.com/soumil-kumar17/MailMaven/pkg/types"
)

// Response is a stored HTTP response. It carries no framework types so it can
// be persisted and replayed byte for byte.
type Response struct {
	StatusCode int16
	Headers    types.HeaderPairs
	Body       []byte
}

// SeeOther builds a 303 redirect to location with an empty body.
func SeeOther(location string) Response {
	return Response{
		StatusCode: http.StatusSeeOther,
		Headers:    types.HeaderPairs{{Name: "Location", Value: []byte(location)}},
		Body:       []byte{},
	}
}

// HeaderValues returns every value stored under name, in order.
func (r Response) HeaderValues(name string) [][]byte {
	var values [][]byte
	canonical := http.CanonicalHeaderKey(name)
	for _, pair := range r.Headers {
		if http.CanonicalHeaderKey(pair.Name) == canonical {
			values = append(values, pair.Value)
		}
	}
	return values
}

func (r Response) valid() bool {
	return r.StatusCode >= 100 && r.StatusCode <= 599
}
