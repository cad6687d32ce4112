package pkevents

import "time"

type nullEventManager struct{}

// NewNullEventManager creates an EventManager that discards every event. It is used when analytics
// are disabled or the client is offline.
func NewNullEventManager() EventManager {
	return nullEventManager{}
}

func (n nullEventManager) AddEvent(Event, string) {}

func (n nullEventManager) ScheduleUpload(Priority) {}

func (n nullEventManager) Flush() {}

func (n nullEventManager) CancelUpload() {}

func (n nullEventManager) DeleteAllEvents() {}

func (n nullEventManager) SetUploadsEnabled(bool) {}

func (n nullEventManager) LastSendTime() time.Time { return time.Time{} }

func (n nullEventManager) Close() error { return nil }
