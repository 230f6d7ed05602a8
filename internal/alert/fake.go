package alert

import "context"

// Alert is a notification recorded by FakeNotifier.
type Alert struct {
	Subject string
	Body    string
}

// FakeNotifier records alerts for test assertions.
type FakeNotifier struct {
	Alerts []Alert

	// NotifyError, if set, will be returned by Notify.
	NotifyError error
}

// NewFakeNotifier creates an empty FakeNotifier.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// Notify records the alert.
func (f *FakeNotifier) Notify(_ context.Context, subject, htmlBody string) error {
	if f.NotifyError != nil {
		return f.NotifyError
	}
	f.Alerts = append(f.Alerts, Alert{Subject: subject, Body: htmlBody})
	return nil
}
