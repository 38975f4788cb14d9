package events

import (
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"gopkg.in/yaml.v3"
)

// StepPrinterFunc returns a watermill handler that renders a turn's event
// stream to w. Partial deltas are written as they arrive; tool calls are
// printed as YAML blocks.
func StepPrinterFunc(name string, w io.Writer) func(msg *message.Message) error {
	isFirst := true

	return func(msg *message.Message) error {
		defer msg.Ack()

		e, err := NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		switch p := e.(type) {
		case *EventError:
			_, err = fmt.Fprintf(w, "\nerror: %s\n", p.ErrorString)
			if err != nil {
				return err
			}

		case *EventPartialCompletion:
			if isFirst && name != "" {
				isFirst = false
				if _, err = fmt.Fprintf(w, "\n%s: \n", name); err != nil {
					return err
				}
			}
			if _, err = fmt.Fprintf(w, "%s", p.Delta); err != nil {
				return err
			}

		case *EventFinal:
			if !strings.HasSuffix(p.Text, "\n") {
				if _, err = fmt.Fprintf(w, "\n"); err != nil {
					return err
				}
			}

		case *EventInterrupt:
			if _, err = fmt.Fprintf(w, "\n[interrupted]\n"); err != nil {
				return err
			}

		case *EventToolCallStarted:
			v, err := yaml.Marshal(p.ToolCall)
			if err != nil {
				return err
			}
			if _, err = fmt.Fprintf(w, "\nrunning tool:\n%s", v); err != nil {
				return err
			}

		case *EventToolCallCompleted:
			if _, err = fmt.Fprintf(w, "tool %s: %s\n", p.ToolCall.Name, p.Result); err != nil {
				return err
			}

		case *EventToolCallFailed:
			if _, err = fmt.Fprintf(w, "tool %s failed: %s\n", p.ToolCall.Name, p.Error); err != nil {
				return err
			}
		}

		return nil
	}
}
