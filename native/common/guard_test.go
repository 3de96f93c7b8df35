package common

import (
	"errors"
	"testing"
)

type pauseMap map[string]bool

func (p pauseMap) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	cases := []struct {
		name   string
		pauses PauseView
		module string
		want   error
	}{
		{"nil view", nil, "jobs", nil},
		{"unpaused", pauseMap{}, "jobs", nil},
		{"module paused", pauseMap{"jobs": true}, "jobs", ErrModulePaused},
		{"other module paused", pauseMap{"escrow": true}, "jobs", nil},
		{"global paused", pauseMap{GlobalModule: true}, "escrow", ErrModulePaused},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Guard(tc.pauses, tc.module); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
