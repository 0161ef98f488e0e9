// Package notification orders the user's notification feed and fans new
// notifications out to Web Push subscribers.
package notification

import (
	"context"
	"sort"
	"sync"

	"rotary-ams-gateway/internal/logging"
	"rotary-ams-gateway/internal/model"
)

// Source is the part of the AMS API behind the notifications screen.
type Source interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationsSeen(ctx context.Context) error
	ClearSeenNotifications(ctx context.Context) error
}

// Sort returns a copy of list ordered by SentAt, newest first.
// Records with equal timestamps keep their relative order.
func Sort(list []model.Notification) []model.Notification {
	sorted := make([]model.Notification, len(list))
	copy(sorted, list)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SentAt.After(sorted[j].SentAt.Time)
	})
	return sorted
}

// UnseenCount counts the records not yet seen.
func UnseenCount(list []model.Notification) int {
	n := 0
	for _, item := range list {
		if !item.Seen {
			n++
		}
	}
	return n
}

// View is what the notifications screen shows.
type View struct {
	Notifications []model.Notification `json:"notifications"`
	UnseenCount   int                  `json:"unseen_count"`
}

// Feed holds the last successfully loaded view for one session.
// A failed call leaves the view untouched.
type Feed struct {
	source   Source
	reporter *logging.Reporter

	mu   sync.Mutex
	view View
	wg   sync.WaitGroup
}

func NewFeed(source Source, reporter *logging.Reporter) *Feed {
	return &Feed{
		source:   source,
		reporter: reporter,
		view:     View{Notifications: []model.Notification{}},
	}
}

// View returns the current state.
func (f *Feed) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view
}

// Load fetches the feed, replaces the view with it sorted, and then marks every
// notification as seen in the background. The returned view still carries the
// unseen count observed before marking.
func (f *Feed) Load(ctx context.Context) (View, error) {
	list, err := f.source.Notifications(ctx)
	if f.reporter.Failed("load notifications", err) {
		return f.View(), err
	}

	view := View{Notifications: Sort(list), UnseenCount: UnseenCount(list)}
	f.mu.Lock()
	f.view = view
	f.mu.Unlock()

	bg := context.WithoutCancel(ctx)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.reporter.Failed("mark notifications seen", f.source.MarkNotificationsSeen(bg))
	}()

	return view, nil
}

// Clear deletes the seen notifications once the user confirmed it. Without
// confirmation nothing is sent and the view is returned as is. After a
// successful delete the view is the re-fetched list with no unseen records.
func (f *Feed) Clear(ctx context.Context, confirmed bool) (View, error) {
	if !confirmed {
		return f.View(), nil
	}

	if err := f.source.ClearSeenNotifications(ctx); f.reporter.Failed("clear seen notifications", err) {
		return f.View(), err
	}

	list, err := f.source.Notifications(ctx)
	if f.reporter.Failed("reload notifications", err) {
		return f.View(), err
	}

	view := View{Notifications: Sort(list), UnseenCount: 0}
	f.mu.Lock()
	f.view = view
	f.mu.Unlock()
	return view, nil
}

// Wait blocks until background mark-as-seen calls have finished.
func (f *Feed) Wait() {
	f.wg.Wait()
}
