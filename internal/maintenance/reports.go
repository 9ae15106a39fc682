package maintenance

import "encoding/json"

// Tables lists the tables covered by TableStatus, in dependency order.
var Tables = []string{"profiles", "friendships", "chat_rooms", "chat_participants", "messages"}

type TableReport struct {
	Table  string            `json:"table"`
	Rows   int64             `json:"rows"`
	Sample []json.RawMessage `json:"sample"`
}

type DuplicateReport struct {
	Friendships  []string `json:"friendships"`
	Participants []string `json:"participants"`
}

type InvalidReport struct {
	ProfilesMissingEmail []string `json:"profiles_missing_email"`
	ProfilesMissingName  []string `json:"profiles_missing_name"`
	SelfFriendships      []string `json:"self_friendships"`
	EmptyMessages        []string `json:"empty_messages"`
}

type OrphanReport struct {
	Friendships  []string `json:"friendships"`
	Participants []string `json:"participants"`
	Messages     []string `json:"messages"`
	EmptyRooms   []string `json:"empty_rooms"`
}

// CleanupResult counts deleted (or, on a dry run, deletable) rows per category.
type CleanupResult struct {
	DryRun  bool           `json:"dry_run"`
	Deleted map[string]int `json:"deleted"`
}

// Total sums all categories.
func (r CleanupResult) Total() int {
	total := 0
	for _, n := range r.Deleted {
		total += n
	}
	return total
}
