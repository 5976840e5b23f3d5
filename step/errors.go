package step

import "fmt"

// PublishError reports a failure to reach the broker or to get a message
// accepted by it. Template problems are reported as *template.DataFormatError
// instead.
type PublishError struct {
	Profile    string
	Exchange   string
	RoutingKey string
	Err        error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s (exchange %q, routing key %q) failed: %v",
		e.Profile, e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
