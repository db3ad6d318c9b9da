package domain

import "testing"

func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobCreated, JobProcessing, true},
		{JobCreated, JobComplete, false},
		{JobCreated, JobFailed, false},
		{JobProcessing, JobComplete, true},
		{JobProcessing, JobFailed, true},
		{JobProcessing, JobCreated, false},
		{JobComplete, JobProcessing, false},
		{JobFailed, JobProcessing, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: got %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobCreated.Terminal() || JobProcessing.Terminal() {
		t.Fatalf("non-terminal statuses reported terminal")
	}
	if !JobComplete.Terminal() || !JobFailed.Terminal() {
		t.Fatalf("terminal statuses not reported terminal")
	}
}
