package models

// FreeRun is a contiguous stretch of common-free blocks.
type FreeRun struct {
	StartBlock int    `json:"start_block"`
	EndBlock   int    `json:"end_block"` // exclusive
	Start      string `json:"start"`
	End        string `json:"end"`
	Minutes    int    `json:"minutes"`
}

// CommonFreeResult lists every block free for all selected users on one day.
type CommonFreeResult struct {
	Day       Weekday   `json:"day"`
	Usernames []string  `json:"usernames"`
	Blocks    []int     `json:"blocks"`
	Runs      []FreeRun `json:"runs"`
	// MeetingRuns keeps only runs long enough for a one-hour meeting.
	MeetingRuns []FreeRun `json:"meeting_runs"`
}

// HourSuggestion scores one hour-aligned window by how many users it excludes.
type HourSuggestion struct {
	Hour              int      `json:"hour"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	ConflictCount     int      `json:"conflict_count"`
	ConflictUsernames []string `json:"conflict_usernames"`
}

// BestHourResult carries the minimum-conflict window(s) for one day.
type BestHourResult struct {
	Day         Weekday          `json:"day"`
	Usernames   []string         `json:"usernames"`
	Suggestions []HourSuggestion `json:"suggestions"`
}
