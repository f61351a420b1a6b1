package services

import "github.com/raptaro/meditrakk-sub001/internal/queue/models"

// SelectLane derives the current / next1 / next2 view of a lane from its
// live entries, which must already be in admission order.
//
// Current is the in-progress entry, or the earliest waiting one when nobody
// is being served. Next1 and Next2 are the first two waiting entries admitted
// after Current. Waiting lists every waiting entry other than Current, so a
// patient the desk skipped over stays visible.
func SelectLane(lane models.Lane, live []*models.QueueEntry) models.LaneView {
	view := models.LaneView{Lane: lane, Waiting: []models.OperatorEntry{}}

	current := -1
	for i, e := range live {
		if e.Status == models.StatusInProgress {
			current = i
			break
		}
	}
	if current < 0 {
		for i, e := range live {
			if e.Status == models.StatusWaiting {
				current = i
				break
			}
		}
	}
	if current < 0 {
		return view
	}
	view.Current = models.NewOperatorEntry(live[current])

	for i, e := range live {
		if i == current || e.Status != models.StatusWaiting {
			continue
		}
		view.Waiting = append(view.Waiting, *models.NewOperatorEntry(e))
		if i < current {
			continue
		}
		switch {
		case view.Next1 == nil:
			view.Next1 = models.NewOperatorEntry(e)
		case view.Next2 == nil:
			view.Next2 = models.NewOperatorEntry(e)
		}
	}
	return view
}

// DisplayList flattens live entries into the waiting-room shape.
func DisplayList(live []*models.QueueEntry) []models.DisplayEntry {
	out := make([]models.DisplayEntry, 0, len(live))
	for _, e := range live {
		out = append(out, models.NewDisplayEntry(e))
	}
	return out
}
