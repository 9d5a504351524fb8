package session

const (
	MessageError   = "error"
	MessageWarning = "warning"
	MessageSuccess = "success"
)

// Message is one banner queued for the storefront, scoped to a page stack
// such as "checkout_payment" or "header".
type Message struct {
	Stack string `json:"stack"`
	Class string `json:"class"`
	Text  string `json:"text"`
}

func (d *Data) AddMessage(stack, class, text string) {
	d.Messages = append(d.Messages, Message{Stack: stack, Class: class, Text: text})
}

// TakeMessages returns and clears every queued message.
func (d *Data) TakeMessages() []Message {
	messages := d.Messages
	d.Messages = nil
	return messages
}

func (d *Data) HasErrors(stack string) bool {
	for _, m := range d.Messages {
		if m.Stack == stack && m.Class == MessageError {
			return true
		}
	}
	return false
}
