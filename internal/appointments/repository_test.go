package appointments

import (
	"testing"
	"time"

	"evms-backend/internal/schedule"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
)

func TestConflictFilterShape(t *testing.T) {
	booking := time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC)
	window := schedule.ConflictWindow(booking)

	got := conflictFilter("a1", []string{"t1", "t2"}, window)

	assert.Equal(t, bson.M{"$ne": "a1"}, got["_id"])
	assert.Equal(t, bson.M{"$in": BusyStatuses}, got["status"])
	assert.Equal(t, bson.M{"$gte": booking.Add(-30 * time.Minute), "$lte": booking.Add(2 * time.Hour)}, got["bookingTime"])
	assert.Equal(t, bson.A{
		bson.M{"technicianLeadId": bson.M{"$in": []string{"t1", "t2"}}},
		bson.M{"technicianSupport1Id": bson.M{"$in": []string{"t1", "t2"}}},
		bson.M{"technicianSupport2Id": bson.M{"$in": []string{"t1", "t2"}}},
	}, got["$or"])
}

func TestFilterToBSON(t *testing.T) {
	assert.Equal(t, bson.M{}, filterToBSON(ListFilter{}))

	loc := time.FixedZone("ICT", 7*3600)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	got := filterToBSON(ListFilter{
		UserID:       "u1",
		TechnicianID: "t1",
		Statuses:     []string{StatusPending},
		From:         &from,
	})
	assert.Equal(t, "u1", got["userId"])
	assert.Equal(t, bson.M{"$in": []string{StatusPending}}, got["status"])
	assert.Len(t, got["$or"], 3)
	assert.Equal(t, bson.M{"$gte": from.UTC()}, got["bookingTime"])
	assert.NotContains(t, got, "vehicleId")
}

func TestStampTruncatesToMillisecond(t *testing.T) {
	in := time.Date(2026, 3, 2, 15, 4, 5, 678912345, time.FixedZone("ICT", 7*3600))
	out := stamp(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 678000000, out.Nanosecond())
	assert.True(t, out.Equal(in.Truncate(time.Millisecond)))
}
