package domain

import (
	"encoding/json"
	"time"
)

type MailType string

const (
	MailTypeResetPassword    MailType = "reset_password"
	MailTypeRequestSubmitted MailType = "request_submitted"
	MailTypeStatusChanged    MailType = "status_changed"
	MailTypeRevokedStaff     MailType = "revoked_staff"
	MailTypeRevokedManager   MailType = "revoked_manager"
)

type MailMessage struct {
	ID   string   `json:"id"`
	Type MailType `json:"type"`
	To   string   `json:"to"`
	Data any      `json:"data"`
}

// RawMailMessage 用于消费端反序列化，Data 需要根据 Type 再次解析
type RawMailMessage struct {
	ID   string          `json:"id"`
	Type MailType        `json:"type"`
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type RequestSubmittedMailData struct {
	RequestID    int64       `json:"requestID"`
	StaffID      int64       `json:"staffID"`
	EmployeeName string      `json:"employeeName"`
	Timeslot     Timeslot    `json:"timeslot"`
	Dates        []time.Time `json:"dates"`
	Reason       string      `json:"reason"`
}

type StatusChangedMailData struct {
	RequestID int64         `json:"requestID"`
	Status    RequestStatus `json:"status"`
	Remark    string        `json:"remark"`
}

type RevocationMailData struct {
	TaskID     string           `json:"taskID"`
	StaffID    int64            `json:"staffID"`
	StaffEmail string           `json:"staffEmail"`
	Items      []RevocationItem `json:"items"`
	Reason     string           `json:"reason"`
}
