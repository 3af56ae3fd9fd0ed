package todo

import (
	"testing"
	"time"
)

func TestTaskInput_Normalize(t *testing.T) {
	tests := []struct {
		name         string
		input        TaskInput
		wantErr      bool
		wantTitle    string
		wantPriority Priority
	}{
		{
			name:         "trims title",
			input:        TaskInput{Title: "  Buy milk  ", Priority: PriorityHigh},
			wantTitle:    "Buy milk",
			wantPriority: PriorityHigh,
		},
		{
			name:         "defaults priority to medium",
			input:        TaskInput{Title: "Buy milk"},
			wantTitle:    "Buy milk",
			wantPriority: PriorityMedium,
		},
		{
			name:    "rejects empty title",
			input:   TaskInput{Title: ""},
			wantErr: true,
		},
		{
			name:    "rejects whitespace-only title",
			input:   TaskInput{Title: "   \t "},
			wantErr: true,
		},
		{
			name:    "rejects unknown priority",
			input:   TaskInput{Title: "Buy milk", Priority: "urgent"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Normalize()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if tt.input.Title != tt.wantTitle {
				t.Errorf("expected title %q, got %q", tt.wantTitle, tt.input.Title)
			}
			if tt.input.Priority != tt.wantPriority {
				t.Errorf("expected priority %q, got %q", tt.wantPriority, tt.input.Priority)
			}
		})
	}
}

func TestTaskInput_Normalize_EmptyTitleSentinel(t *testing.T) {
	input := TaskInput{Title: "   "}
	if err := input.Normalize(); err != ErrEmptyTitle {
		t.Errorf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestPriority_Rank(t *testing.T) {
	if !(PriorityHigh.Rank() < PriorityMedium.Rank() && PriorityMedium.Rank() < PriorityLow.Rank()) {
		t.Errorf("expected high < medium < low, got %d %d %d",
			PriorityHigh.Rank(), PriorityMedium.Rank(), PriorityLow.Rank())
	}
	if Priority("bogus").Rank() <= PriorityLow.Rank() {
		t.Error("unknown priorities must rank after low")
	}
}

func TestTaskPatch_Empty(t *testing.T) {
	title := "x"
	completed := true
	now := time.Now()

	tests := []struct {
		name  string
		patch TaskPatch
		want  bool
	}{
		{"zero patch", TaskPatch{}, true},
		{"title only", TaskPatch{Title: &title}, false},
		{"completed only", TaskPatch{Completed: &completed}, false},
		{"due date cleared", TaskPatch{DueDateSet: true}, false},
		{"due date set", TaskPatch{DueDate: &now, DueDateSet: true}, false},
		{"due date pointer without flag", TaskPatch{DueDate: &now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.patch.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}
