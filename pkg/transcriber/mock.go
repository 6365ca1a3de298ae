package transcriber

import "context"

// MockTranscriber returns a fixed transcript. Useful for wiring tests and
// for running the bot without a transcription service.
type MockTranscriber struct {
	Response string
	Err      error
}

// Transcribe implements Transcriber.
func (m *MockTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

// Close implements Transcriber.
func (m *MockTranscriber) Close() error { return nil }
