package transport

// Fake is a scripted Source for tests.
type Fake struct {
	// SourceName is returned by Name. Defaults to "fake".
	SourceName string

	// Pending records, returned by Poll in order.
	Pending [][]byte

	// Replies contains every Reply call in order.
	Replies []string

	// ReplyError, if set, will be returned by Reply.
	ReplyError error
}

// NewFake creates a Fake with the given pending records.
func NewFake(lines ...string) *Fake {
	f := &Fake{}
	for _, l := range lines {
		f.Send(l)
	}
	return f
}

// Send queues a record.
func (f *Fake) Send(line string) {
	f.Pending = append(f.Pending, []byte(line))
}

// Name returns SourceName.
func (f *Fake) Name() string {
	if f.SourceName == "" {
		return "fake"
	}
	return f.SourceName
}

// Poll pops the first pending record.
func (f *Fake) Poll() ([]byte, bool) {
	if len(f.Pending) == 0 {
		return nil, false
	}
	line := f.Pending[0]
	f.Pending = f.Pending[1:]
	return line, true
}

// Reply records text.
func (f *Fake) Reply(text string) error {
	if f.ReplyError != nil {
		return f.ReplyError
	}
	f.Replies = append(f.Replies, text)
	return nil
}

// LastReply returns the most recent reply, or "".
func (f *Fake) LastReply() string {
	if len(f.Replies) == 0 {
		return ""
	}
	return f.Replies[len(f.Replies)-1]
}
