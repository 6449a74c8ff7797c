package assistant

// Settings are the per-conversation texts loaded from assistant.yaml.
type Settings struct {
	Greeting      string `yaml:"greeting"`
	FailureNotice string `yaml:"failure_notice"`
}

func (s Settings) withDefaults() Settings {
	if s.Greeting == "" {
		s.Greeting = DefaultGreeting
	}
	if s.FailureNotice == "" {
		s.FailureNotice = DefaultFailureNotice
	}
	return s
}
