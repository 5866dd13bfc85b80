package emotion

import "fmt"

// DefaultMessages is the narrative shown for the dominant "after" emotion.
var DefaultMessages = map[Label]string{
	Happy:    "The session was motivating: most students looked happy by the end of the class.",
	Sad:      "The session raised some concern: several students felt sad by the end of the class.",
	Angry:    "The session frustrated some students, who showed signs of anger by the end.",
	Fear:     "The session caused anxiety: several students showed fear by the end of the class.",
	Surprise: "The session came as a surprise to most students.",
	Neutral:  "A neutral atmosphere was kept among the students throughout the session.",
}

var defaultInterpreter *Interpreter

func init() {
	interp, err := NewInterpreter(DefaultMessages)
	if err != nil {
		panic(err)
	}
	defaultInterpreter = interp
}

// ConfigurationError reports a label without an interpretation message.
type ConfigurationError struct {
	Label Label
}

func (err *ConfigurationError) Error() string {
	return fmt.Sprintf("no interpretation message for emotion %q", err.Label)
}

type Interpreter struct {
	messages map[Label]string
}

// NewInterpreter checks that every label has a message.
func NewInterpreter(messages map[Label]string) (*Interpreter, error) {
	msgs := make(map[Label]string, len(messages))
	for _, l := range Labels {
		msg, ok := messages[l]
		if !ok || msg == "" {
			return nil, &ConfigurationError{Label: l}
		}
		msgs[l] = msg
	}
	return &Interpreter{messages: msgs}, nil
}

func DefaultInterpreter() *Interpreter {
	return defaultInterpreter
}

func (i *Interpreter) Message(l Label) string {
	return i.messages[l]
}
