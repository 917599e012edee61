package booking

import (
	"testing"

	"timpbot/internal/timp"
)

func TestFindSlot(t *testing.T) {
	t.Parallel()

	slots := []timp.Slot{
		{ID: 100, Status: "booked", Hours: "17:00 - 18:00", Professional: timp.Professional{ID: 44640}},
		{ID: 101, Status: "available", Hours: "17:00 - 18:00", Professional: timp.Professional{ID: 44640, Name: "Ana"}},
		{ID: 102, Status: "available", Hours: "17:00 - 18:00", Professional: timp.Professional{ID: 99}},
		{ID: 103, Status: "available", Hours: "18:00 - 19:00", Professional: timp.Professional{ID: 44640}},
	}

	tests := []struct {
		name   string
		c      Criteria
		wantID int
		wantOK bool
	}{
		{name: "exact match skips booked", c: Criteria{Hours: "17:00 - 18:00", ProfessionalID: 44640}, wantID: 101, wantOK: true},
		{name: "hours only takes first available", c: Criteria{Hours: "17:00 - 18:00"}, wantID: 101, wantOK: true},
		{name: "professional only", c: Criteria{ProfessionalID: 99}, wantID: 102, wantOK: true},
		{name: "no criteria takes first available", c: Criteria{}, wantID: 101, wantOK: true},
		{name: "hours case and space insensitive", c: Criteria{Hours: " 17:00 - 18:00 "}, wantID: 101, wantOK: true},
		{name: "no match", c: Criteria{Hours: "09:00 - 10:00"}, wantOK: false},
		{name: "wrong professional for hours", c: Criteria{Hours: "18:00 - 19:00", ProfessionalID: 99}, wantOK: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := FindSlot(slots, tt.c)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got.ID != tt.wantID {
				t.Fatalf("slot ID = %d, want %d", got.ID, tt.wantID)
			}
		})
	}
}

func TestFindSlotEmptyList(t *testing.T) {
	t.Parallel()
	if _, ok := FindSlot(nil, Criteria{Hours: "17:00 - 18:00"}); ok {
		t.Fatal("expected no match on empty list")
	}
}
