package rest

import (
	"encoding/json"
	"fmt"
	"time"
)

// BanType is the server discriminator selecting a Ban variant.
type BanType int

const (
	BanTypeUser BanType = 0
	BanTypeBot  BanType = 1
)

// BanInfo holds the fields common to every ban.
type BanInfo struct {
	Type         BanType   `json:"type"`
	ExecutorID   *string   `json:"executorId,omitempty"`
	Reason       *string   `json:"reason,omitempty"`
	CreationDate time.Time `json:"creationDate"`
}

// Ban is one of *UserBan, *BotBan or *UnknownBan.
type Ban interface {
	Info() BanInfo
	isBan()
}

// UserBan bans a standard user account.
type UserBan struct {
	BanInfo
	TargetID string `json:"targetId"`
}

// BotBan bans a bot account.
type BotBan struct {
	BanInfo
	TargetID string `json:"targetId"`
}

// UnknownBan is a ban whose type this client does not recognize.
type UnknownBan struct {
	BanInfo
	Raw json.RawMessage `json:"-"`
}

func (b *UserBan) Info() BanInfo    { return b.BanInfo }
func (b *BotBan) Info() BanInfo     { return b.BanInfo }
func (b *UnknownBan) Info() BanInfo { return b.BanInfo }

func (*UserBan) isBan()    {}
func (*BotBan) isBan()     {}
func (*UnknownBan) isBan() {}

// DecodeBan decodes a ban document into its variant.
func DecodeBan(data []byte) (Ban, error) {
	var info BanInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode ban: %w", err)
	}

	switch info.Type {
	case BanTypeUser:
		var ban UserBan
		if err := json.Unmarshal(data, &ban); err != nil {
			return nil, fmt.Errorf("decode user ban: %w", err)
		}
		return &ban, nil
	case BanTypeBot:
		var ban BotBan
		if err := json.Unmarshal(data, &ban); err != nil {
			return nil, fmt.Errorf("decode bot ban: %w", err)
		}
		return &ban, nil
	default:
		return &UnknownBan{BanInfo: info, Raw: append(json.RawMessage(nil), data...)}, nil
	}
}

// DecodeBans decodes a JSON array of bans.
func DecodeBans(data []byte) ([]Ban, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bans: %w", err)
	}
	bans := make([]Ban, 0, len(raw))
	for _, r := range raw {
		ban, err := DecodeBan(r)
		if err != nil {
			return nil, err
		}
		bans = append(bans, ban)
	}
	return bans, nil
}
