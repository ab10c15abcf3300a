package transfer

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Request identifies a single message to relay. Peer is either a public
// @username or the stringified supergroup-space id of a private channel
// (the raw id subtracted from -10^12); MessageID is the message within it.
type Request struct {
	Link      string
	Peer      string
	ChannelID int64 // raw channel id for c/ links, 0 for username links
	MessageID int
	Target    int64 // chat the relayed media is delivered to
}

// channelIDPrefix converts a bare channel id into the supergroup id space.
const channelIDPrefix = -1_000_000_000_000

// ParseMessageLink extracts a Request from a t.me message link. Two forms
// are accepted:
//
//	https://t.me/<username>/<message_id>
//	https://t.me/c/<channel_id>/<message_id>
//
// A link without a message id is rejected so bare channel links never reach
// the fetch stage.
func ParseMessageLink(raw string) (Request, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Request{}, fmt.Errorf("parsing link: %w", err)
	}

	if host := strings.TrimPrefix(u.Host, "www."); host != "t.me" && host != "telegram.me" {
		return Request{}, fmt.Errorf("not a t.me link: %q", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	if len(parts) >= 1 && parts[0] == "c" {
		if len(parts) < 3 {
			return Request{}, fmt.Errorf("link %q is missing a message id", raw)
		}
		channelID, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || channelID <= 0 {
			return Request{}, fmt.Errorf("invalid channel id in link %q", raw)
		}
		msgID, err := strconv.Atoi(parts[2])
		if err != nil || msgID <= 0 {
			return Request{}, fmt.Errorf("invalid message id in link %q", raw)
		}
		return Request{
			Link:      raw,
			Peer:      strconv.FormatInt(channelIDPrefix-channelID, 10),
			ChannelID: channelID,
			MessageID: msgID,
		}, nil
	}

	if len(parts) < 2 || parts[0] == "" {
		return Request{}, fmt.Errorf("link %q is missing a message id", raw)
	}
	msgID, err := strconv.Atoi(parts[1])
	if err != nil || msgID <= 0 {
		return Request{}, fmt.Errorf("invalid message id in link %q", raw)
	}
	return Request{
		Link:      raw,
		Peer:      "@" + parts[0],
		MessageID: msgID,
	}, nil
}

// FindMessageLink scans free text for the first t.me message link and parses
// it. Returns false when the text contains no parseable link.
func FindMessageLink(text string) (Request, bool) {
	for _, field := range strings.Fields(text) {
		if !strings.Contains(field, "t.me/") {
			continue
		}
		if !strings.HasPrefix(field, "http://") && !strings.HasPrefix(field, "https://") {
			field = "https://" + field
		}
		if req, err := ParseMessageLink(field); err == nil {
			return req, true
		}
	}
	return Request{}, false
}
