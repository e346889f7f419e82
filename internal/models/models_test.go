package models

import "testing"

func TestCandidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		want      string
		primary   string
	}{
		{
			name:      "single artist",
			candidate: Candidate{ID: "1", Title: "One More Time", Artists: []string{"Daft Punk"}},
			want:      "Daft Punk - One More Time",
			primary:   "Daft Punk",
		},
		{
			name:      "featured artists are space joined",
			candidate: Candidate{ID: "2", Title: "Get Lucky", Artists: []string{"Daft Punk", "Pharrell Williams", "Nile Rodgers"}},
			want:      "Daft Punk Pharrell Williams Nile Rodgers - Get Lucky",
			primary:   "Daft Punk",
		},
		{
			name:      "no artists",
			candidate: Candidate{ID: "3", Title: "Untitled"},
			want:      " - Untitled",
			primary:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.candidate.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
			if got := tt.candidate.PrimaryArtist(); got != tt.primary {
				t.Errorf("PrimaryArtist() = %q, want %q", got, tt.primary)
			}
		})
	}
}

func TestMatchDecision(t *testing.T) {
	if NoMatch().IsMatch() {
		t.Error("NoMatch should not be a match")
	}
	if !Selected(0).IsMatch() {
		t.Error("Selected(0) should be a match")
	}
}

func TestOutcomeString(t *testing.T) {
	for outcome, want := range map[Outcome]string{
		Pending:        "pending",
		Added:          "added",
		NoMatchFound:   "not_found",
		Unknown:        "unknown_song",
		NoMusicIgnored: "ignored",
		Failed:         "failed",
	} {
		if got := outcome.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", outcome, got, want)
		}
	}
}

func TestOutcomeZeroValue(t *testing.T) {
	var o Outcome
	if o != Pending {
		t.Errorf("zero Outcome = %s, want pending", o)
	}
	if o == Added {
		t.Error("zero Outcome must not count as added")
	}
}
