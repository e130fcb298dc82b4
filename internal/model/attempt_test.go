package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestAttemptFinalized(t *testing.T) {
	a := Attempt{}
	if a.Finalized() {
		t.Error("attempt without submitted_at reported finalized")
	}
	now := time.Now()
	a.SubmittedAt = &now
	if !a.Finalized() {
		t.Error("attempt with submitted_at not reported finalized")
	}
}

func TestAttemptIsAssigned(t *testing.T) {
	assigned := uuid.New()
	a := Attempt{AssignedQuestions: []uuid.UUID{assigned, uuid.New()}}

	if !a.IsAssigned(assigned) {
		t.Error("assigned question reported unassigned")
	}
	if a.IsAssigned(uuid.New()) {
		t.Error("foreign question reported assigned")
	}
}

func TestOptionCorrectnessNeverSerialized(t *testing.T) {
	opt := Option{ID: uuid.New(), OptionText: "4", IsCorrect: true}

	raw, err := json.Marshal(opt)
	if err != nil {
		t.Fatalf("marshal option: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal option: %v", err)
	}
	for key := range decoded {
		if key == "is_correct" {
			t.Fatal("is_correct leaked into JSON")
		}
	}
}

func TestQuestionOptionLookup(t *testing.T) {
	q := Question{ID: uuid.New()}
	o1 := Option{ID: uuid.New(), QuestionID: q.ID}
	o2 := Option{ID: uuid.New(), QuestionID: q.ID, IsCorrect: true}
	q.Options = []Option{o1, o2}

	if !q.HasOption(o1.ID) || !q.HasOption(o2.ID) {
		t.Error("question does not recognize its own options")
	}
	if q.HasOption(uuid.New()) {
		t.Error("question claims a foreign option")
	}
	if got := q.OptionByID(o2.ID); got == nil || !got.IsCorrect {
		t.Errorf("OptionByID = %+v", got)
	}
	if q.OptionByID(uuid.New()) != nil {
		t.Error("OptionByID returned a value for an unknown ID")
	}
}
