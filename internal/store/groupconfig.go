// Package store persists per-group configuration and user blacklists as
// JSON records on disk, fronted by a TTL cache.
package store

// GroupConfig is the full persisted configuration of one group. Every
// field has a deterministic default; records loaded from partial or
// corrupted storage merge with DefaultGroupConfig rather than fail.
type GroupConfig struct {
	Board              string                 `json:"board"`
	BoardMsgID         string                 `json:"boardMsgId"`
	UsePublicBlacklist bool                   `json:"usePublicBlacklist"`
	UseGroupBlacklist  bool                   `json:"useGroupBlacklist"`
	UseSharedBlacklist bool                   `json:"useSharedBlacklist"`
	BoundGroups        []string               `json:"boundGroups"`
	Blacklist          []string               `json:"blacklist"`
	BlockedWords       BlockedWordsConfig     `json:"blockedWords"`
	CrossGroup         CrossGroupConfig       `json:"crossGroupMessaging"`
	VoteMute           VoteMuteConfig         `json:"voteMute"`
	Scheduled          ScheduledMessageConfig `json:"scheduledMessage"`
	GroupMessages      GroupMessagesConfig    `json:"groupMessages"`
	Subscription       SubscriptionConfig     `json:"blacklistSubscription"`
}

// BlockedWordsConfig holds the per-group banned-word settings.
// DisabledWords are exemptions from the global banned-word list, not a
// list of banned words.
type BlockedWordsConfig struct {
	Disabled      bool     `json:"disabled"`
	DisabledWords []string `json:"disabledWords"`
}

// CrossGroupConfig holds the cross-group message relay settings.
type CrossGroupConfig struct {
	Enabled      bool     `json:"enabled"`
	LinkedGroups []string `json:"linkedGroups"`
}

// VoteMuteConfig holds the vote-mute settings. Threshold is a percent
// of the admin count, always clamped to [1,100].
type VoteMuteConfig struct {
	Enabled    bool     `json:"enabled"`
	Admins     []string `json:"admins"`
	MutedUsers []string `json:"mutedUsers"`
	Threshold  int      `json:"threshold"`
}

// ScheduledMessageConfig is the durable half of a scheduled broadcast.
type ScheduledMessageConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval int    `json:"interval"` // minutes
	Content  string `json:"content"`
}

// GroupMessage is a templated welcome or goodbye message.
type GroupMessage struct {
	Content string `json:"content"`
	Format  string `json:"format"` // text | markdown
}

// GroupMessagesConfig holds the join/leave message templates.
type GroupMessagesConfig struct {
	Welcome GroupMessage `json:"welcome"`
	Goodbye GroupMessage `json:"goodbye"`
}

// SubscriptionConfig lists the named blacklists this group subscribes to.
type SubscriptionConfig struct {
	Enabled bool     `json:"enabled"`
	List    []string `json:"list"`
}

// DefaultGroupConfig returns a fully populated default config.
func DefaultGroupConfig() *GroupConfig {
	return &GroupConfig{
		BoundGroups: []string{},
		Blacklist:   []string{},
		BlockedWords: BlockedWordsConfig{
			DisabledWords: []string{},
		},
		CrossGroup: CrossGroupConfig{
			LinkedGroups: []string{},
		},
		VoteMute: VoteMuteConfig{
			Admins:     []string{},
			MutedUsers: []string{},
			Threshold:  60,
		},
		GroupMessages: GroupMessagesConfig{
			Welcome: GroupMessage{Content: "Welcome {nickname} ({userId})!", Format: "markdown"},
			Goodbye: GroupMessage{Content: "{nickname} ({userId}) left the group.", Format: "text"},
		},
		Subscription: SubscriptionConfig{
			List: []string{},
		},
	}
}

// Normalize clamps values into their valid ranges and replaces nil
// slices so a config loaded from partial storage behaves like a fresh
// default.
func (c *GroupConfig) Normalize() {
	if c.VoteMute.Threshold < 1 {
		c.VoteMute.Threshold = 1
	}
	if c.VoteMute.Threshold > 100 {
		c.VoteMute.Threshold = 100
	}
	if c.Scheduled.Interval < 0 {
		c.Scheduled.Interval = 0
	}
	if c.GroupMessages.Welcome.Format == "" {
		c.GroupMessages.Welcome.Format = "markdown"
	}
	if c.GroupMessages.Goodbye.Format == "" {
		c.GroupMessages.Goodbye.Format = "text"
	}
	if c.BoundGroups == nil {
		c.BoundGroups = []string{}
	}
	if c.Blacklist == nil {
		c.Blacklist = []string{}
	}
	if c.BlockedWords.DisabledWords == nil {
		c.BlockedWords.DisabledWords = []string{}
	}
	if c.CrossGroup.LinkedGroups == nil {
		c.CrossGroup.LinkedGroups = []string{}
	}
	if c.VoteMute.Admins == nil {
		c.VoteMute.Admins = []string{}
	}
	if c.VoteMute.MutedUsers == nil {
		c.VoteMute.MutedUsers = []string{}
	}
	if c.Subscription.List == nil {
		c.Subscription.List = []string{}
	}
}

// Clone returns a deep copy so cached configs can be handed out without
// aliasing the cache.
func (c *GroupConfig) Clone() *GroupConfig {
	out := *c
	out.BoundGroups = append([]string(nil), c.BoundGroups...)
	out.Blacklist = append([]string(nil), c.Blacklist...)
	out.BlockedWords.DisabledWords = append([]string(nil), c.BlockedWords.DisabledWords...)
	out.CrossGroup.LinkedGroups = append([]string(nil), c.CrossGroup.LinkedGroups...)
	out.VoteMute.Admins = append([]string(nil), c.VoteMute.Admins...)
	out.VoteMute.MutedUsers = append([]string(nil), c.VoteMute.MutedUsers...)
	out.Subscription.List = append([]string(nil), c.Subscription.List...)
	out.Normalize()
	return &out
}

// Contains reports whether id is present in list. Lists here are small;
// a linear scan is fine.
func Contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

// Add appends id if absent and reports whether the list changed.
func Add(list []string, id string) ([]string, bool) {
	if Contains(list, id) {
		return list, false
	}
	return append(list, id), true
}

// Remove deletes id if present and reports whether the list changed.
func Remove(list []string, id string) ([]string, bool) {
	for i, v := range list {
		if v == id {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
