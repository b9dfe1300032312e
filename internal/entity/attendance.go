package entity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/blurt/internal/listset"
	"github.com/user/blurt/internal/types"
)

// RecordAttendance stores the calendar reference for an event and adds the
// user to its attendance list in one update.
func (s *Store) RecordAttendance(ctx context.Context, eventID, calendarRef, userID string) error {
	err := s.docs.Update(ctx, types.CollectionAttendance, eventID, func(cur json.RawMessage) (json.RawMessage, error) {
		var a types.Attendance
		if cur != nil && string(cur) != "null" {
			if err := json.Unmarshal(cur, &a); err != nil {
				return nil, fmt.Errorf("decode attendance %s: %w", eventID, err)
			}
		}
		a.CalendarEventID = calendarRef
		a.Attendance = listset.Add(a.Attendance, userID)
		return json.Marshal(&a)
	})
	if err != nil {
		return fmt.Errorf("record attendance %s: %w", eventID, err)
	}
	return nil
}
