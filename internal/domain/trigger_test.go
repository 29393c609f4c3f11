package domain

import (
	"errors"
	"testing"
)

func TestParseTrigger(t *testing.T) {
	cases := []struct {
		in      string
		want    Trigger
		wantErr bool
	}{
		{"start", TriggerStart, false},
		{"Complete", TriggerComplete, false},
		{" cancel ", TriggerCancel, false},
		{"block", TriggerBlock, false},
		{"hold", TriggerHold, false},
		{"resume", TriggerResume, false},
		{"pause", "", true},
	}
	for _, c := range cases {
		got, err := ParseTrigger(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrUnknownTrigger) {
				t.Errorf("ParseTrigger(%q): expected ErrUnknownTrigger, got %v", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("ParseTrigger(%q) = %q, %v; want %q, nil", c.in, got, err, c.want)
		}
	}
}

func TestIsBlockTrigger(t *testing.T) {
	if !IsBlockTrigger(TriggerBlock) || !IsBlockTrigger(TriggerHold) {
		t.Error("block and hold must both report as block triggers")
	}
	if IsBlockTrigger(TriggerStart) {
		t.Error("start must not report as a block trigger")
	}
}
