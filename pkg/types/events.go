package types

import "time"

type AlertEventRecorded struct {
	AlertEventID   uint      `json:"alertEventID"`
	DeviceID       uint      `json:"deviceID"`
	DeviceName     string    `json:"deviceName"`
	OrganizationID uint      `json:"organizationID"`
	AlertRuleID    uint      `json:"alertRuleID"`
	AlertRule      string    `json:"alertRule"`
	Severity       string    `json:"severity"`
	Message        string    `json:"message,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (a *AlertEventRecorded) ContentType() string {
	return "application/json"
}

func (a *AlertEventRecorded) TopicName() string {
	return "alert-event.recorded"
}
