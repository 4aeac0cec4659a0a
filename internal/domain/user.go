// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strconv"
)

var ErrBadUserID = errors.New("bad user id")

type UserID int64

func (id UserID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseUserID accepts the decimal form carried in token subjects.
func ParseUserID(s string) (UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrBadUserID
	}
	return UserID(n), nil
}

// User is the raw record returned by the user directory.
type User struct {
	ID       UserID `json:"id" mapstructure:"id"`
	Email    string `json:"email" mapstructure:"email"`
	Username string `json:"username,omitempty" mapstructure:"username"`
}

// Identity is produced only by successful token verification.
// It is never built from client payload fields.
type Identity struct {
	UserID UserID `json:"userId"`
	Email  string `json:"email,omitempty"`
}

func (i Identity) IsZero() bool { return i.UserID == 0 }
