package dto

import "time"

// NoticeResponse 通知列表页的单条通知
type NoticeResponse struct {
	ID         uint      `json:"id"`
	Label      string    `json:"label"`
	Display    string    `json:"display"`
	SenderPath string    `json:"sender_path,omitempty"`
	Unseen     bool      `json:"unseen"`
	Added      time.Time `json:"added"`
}
