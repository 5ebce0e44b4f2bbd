package extract

import (
	"fmt"
	"strings"
)

// StrategyError labels the failure of one strategy.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// AggregateError is returned when every strategy failed. Causes are in
// cascade order and are each a *StrategyError.
type AggregateError struct {
	Archive string
	Causes  []error
}

func (e *AggregateError) Error() string {
	if len(e.Causes) == 0 {
		return fmt.Sprintf("extract %s: no extraction strategy configured", e.Archive)
	}
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("extract %s: %s", e.Archive, strings.Join(msgs, "; "))
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error { return e.Causes }
