package merge_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dalemusser/campusdesk/internal/app/system/merge"
)

type student struct {
	ID   string
	Name string
}

type clearance struct {
	StudentID string
	Cleared   bool
}

func studentID(s student) string      { return s.ID }
func clearanceFor(c clearance) string { return c.StudentID }

func TestByKey_LeftJoinPreservesOrder(t *testing.T) {
	students := []student{{"3", "Cy"}, {"1", "Ada"}, {"2", "Bo"}}
	clearances := []clearance{{"1", true}, {"3", false}}

	got, err := merge.ByKey(students, clearances, studentID, clearanceFor)
	if err != nil {
		t.Fatalf("ByKey failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 pairs, got %d", len(got))
	}
	for i, want := range []string{"3", "1", "2"} {
		if got[i].Left.ID != want {
			t.Errorf("pair %d: expected left %s, got %s", i, want, got[i].Left.ID)
		}
	}
	if got[0].Right == nil || got[0].Right.Cleared {
		t.Errorf("expected Cy matched with uncleared, got %+v", got[0].Right)
	}
	if got[1].Right == nil || !got[1].Right.Cleared {
		t.Errorf("expected Ada matched with cleared, got %+v", got[1].Right)
	}
	if got[2].Right != nil {
		t.Errorf("expected Bo unmatched, got %+v", got[2].Right)
	}
}

func TestByKey_DuplicateRightKey(t *testing.T) {
	_, err := merge.ByKey(
		[]student{{"1", "Ada"}},
		[]clearance{{"1", true}, {"1", false}},
		studentID, clearanceFor,
	)
	if !errors.Is(err, merge.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if !strings.HasSuffix(err.Error(), " 1") {
		t.Errorf("expected the key in the message, got %q", err.Error())
	}
}

func TestByKey_DuplicateLeftKeysAllowed(t *testing.T) {
	got, err := merge.ByKey(
		[]student{{"1", "Ada"}, {"1", "Ada again"}},
		[]clearance{{"1", true}},
		studentID, clearanceFor,
	)
	if err != nil {
		t.Fatalf("ByKey failed: %v", err)
	}
	if got[0].Right == nil || got[1].Right == nil {
		t.Error("expected both left rows matched")
	}
}

func TestByKey_Empty(t *testing.T) {
	got, err := merge.ByKey[student, clearance](nil, nil, studentID, clearanceFor)
	if err != nil {
		t.Fatalf("ByKey failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no pairs, got %d", len(got))
	}
}

func TestInner(t *testing.T) {
	got, err := merge.Inner(
		[]student{{"1", "Ada"}, {"2", "Bo"}},
		[]clearance{{"2", true}},
		studentID, clearanceFor,
	)
	if err != nil {
		t.Fatalf("Inner failed: %v", err)
	}
	if len(got) != 1 || got[0].Left.ID != "2" {
		t.Errorf("expected only Bo, got %+v", got)
	}
}
