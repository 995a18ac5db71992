package service

import (
	"github.com/gpt400/schedule-gap-api/internal/models"
)

// daySnapshot pairs a username with an immutable copy of one day's grid.
// Snapshots are built once per comparison call so concurrent edits never
// show a half-updated schedule to the engine.
type daySnapshot struct {
	Username string
	Blocks   models.DaySchedule
}

// commonFreeBlocks returns the ordered block indices where every user is free.
func commonFreeBlocks(days []daySnapshot) []int {
	free := make([]int, 0, models.BlocksPerDay)
	for b := 0; b < models.BlocksPerDay; b++ {
		clear := true
		for _, day := range days {
			if day.Blocks[b] {
				clear = false
				break
			}
		}
		if clear {
			free = append(free, b)
		}
	}
	return free
}

// freeRuns groups consecutive common-free blocks into labelled runs and keeps
// those spanning at least minBlocks. The original comparison view reported
// both 30-minute (2 blocks) and one-hour (4 blocks) runs.
func freeRuns(blocks []int, minBlocks int) []models.FreeRun {
	runs := make([]models.FreeRun, 0)
	if minBlocks < 1 {
		minBlocks = 1
	}

	for i := 0; i < len(blocks); {
		j := i
		for j+1 < len(blocks) && blocks[j+1] == blocks[j]+1 {
			j++
		}
		length := j - i + 1
		if length >= minBlocks {
			start, end := blocks[i], blocks[j]+1
			runs = append(runs, models.FreeRun{
				StartBlock: start,
				EndBlock:   end,
				Start:      models.BlockLabel(start),
				End:        models.BlockLabel(end),
				Minutes:    length * models.BlockMinutes,
			})
		}
		i = j + 1
	}
	return runs
}

// bestHourWindows scores every hour-aligned 4-block window by the number of
// users with at least one busy block inside it. A partially busy user counts
// as a full conflict since the deliverable is a whole one-hour meeting slot.
// The minimum-conflict window(s) come back in ascending hour order, so the
// first entry is always the deterministic single-best suggestion — even when
// every user is busy everywhere.
func bestHourWindows(days []daySnapshot, allTies bool) []models.HourSuggestion {
	best := make([]models.HourSuggestion, 0, models.HoursPerDay)
	minConflicts := len(days) + 1

	for h := 0; h < models.HoursPerDay; h++ {
		conflicting := make([]string, 0)
		for _, day := range days {
			for b := h * models.BlocksPerHour; b < (h+1)*models.BlocksPerHour; b++ {
				if day.Blocks[b] {
					conflicting = append(conflicting, day.Username)
					break
				}
			}
		}

		if len(conflicting) > minConflicts {
			continue
		}
		suggestion := models.HourSuggestion{
			Hour:              h,
			Start:             models.HourLabel(h),
			End:               models.HourLabel(h + 1),
			ConflictCount:     len(conflicting),
			ConflictUsernames: conflicting,
		}
		if len(conflicting) < minConflicts {
			minConflicts = len(conflicting)
			best = best[:0]
		}
		best = append(best, suggestion)
	}

	if !allTies && len(best) > 1 {
		best = best[:1]
	}
	return best
}
