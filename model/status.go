package model

import (
	"fmt"
	"strings"
)

// Status はタスクの保存されるステータスです。
type Status string

const (
	StatusPending Status = "PENDING"
	StatusDone    Status = "DONE"
	StatusOverdue Status = "OVERDUE"
)

// ParseStatus は大文字小文字を区別せずにステータスを解析します。
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusDone:
		return StatusDone, nil
	case StatusOverdue:
		return StatusOverdue, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsValid は既知のステータスかどうかを返します。
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusDone, StatusOverdue:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Transition はクライアントが明示的に要求できるステータスの変更です。
type Transition int

const (
	TransitionPending Transition = iota + 1
	TransitionDone
)

// ParseTransition は要求されたステータスを大文字小文字を区別せずに解析します。
// 要求できるのはPENDINGとDONEのみで、OVERDUEはスイープでのみ設定されます。
func ParseTransition(s string) (Transition, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(StatusPending):
		return TransitionPending, true
	case string(StatusDone):
		return TransitionDone, true
	}
	return 0, false
}

func (t Transition) String() string {
	switch t {
	case TransitionPending:
		return string(StatusPending)
	case TransitionDone:
		return string(StatusDone)
	}
	return fmt.Sprintf("Transition(%d)", int(t))
}
