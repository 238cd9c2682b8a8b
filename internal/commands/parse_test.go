package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoshutdown/internal/scheduler"
	"autoshutdown/internal/types"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{line: "sdtimer enable true", want: Command{Verb: VerbEnableTimer, Enabled: true}},
		{line: "  SDTIMER Enable false ", want: Command{Verb: VerbEnableTimer, Enabled: false}},
		{line: "sdtimer set 04:30:00", want: Command{Verb: VerbSetTimer, Arg: "04:30:00"}},
		{line: "sddelay enable 1", want: Command{Verb: VerbEnableDelay, Enabled: true}},
		{line: "sddelay set 0-45-0", want: Command{Verb: VerbSetDelay, Arg: "0-45-0"}},
		{line: "sdstatus", want: Command{Verb: VerbStatus}},
		{line: "help", want: Command{Verb: VerbHelp}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		line string
		code types.ErrorCode
	}{
		{line: "", code: types.ErrCodeValidationCommand},
		{line: "shutdown now", code: types.ErrCodeValidationCommand},
		{line: "sdtimer", code: types.ErrCodeValidationCommand},
		{line: "sdtimer set", code: types.ErrCodeValidationCommand},
		{line: "sdtimer start 01:00:00", code: types.ErrCodeValidationCommand},
		{line: "sdtimer set 01:00:00 extra", code: types.ErrCodeValidationCommand},
		{line: "sdstatus now", code: types.ErrCodeValidationCommand},
		{line: "sdtimer enable yes", code: types.ErrCodeValidationInvalidBool},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := Parse(tt.line)
			assert.Equal(t, tt.code, types.CodeOf(err))
			assert.Equal(t, 400, types.CodeOf(err).HTTPStatus())
		})
	}
}

func TestExecute(t *testing.T) {
	f := newFixture(t)

	cmd, err := Parse("sdtimer set 06:00:00")
	require.NoError(t, err)
	res, err := f.svc.Execute(operatorCtx(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "timer set to 06:00:00", res.Message)

	cmd, err = Parse("sdtimer enable true")
	require.NoError(t, err)
	_, err = f.svc.Execute(operatorCtx(), cmd)
	require.NoError(t, err)

	res, err = f.svc.Execute(context.Background(), Command{Verb: VerbStatus})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "timer: on at 06:00:00")
	assert.Contains(t, res.Message, "in 2h 0m 0s")

	res, err = f.svc.Execute(context.Background(), Command{Verb: VerbHelp})
	require.NoError(t, err)
	assert.Equal(t, Usage, res.Message)

	_, err = f.svc.Execute(context.Background(), Command{})
	assert.Equal(t, types.ErrCodeValidationCommand, types.CodeOf(err))
}

func TestFormatStatus(t *testing.T) {
	next := time.Date(2026, 3, 15, 4, 0, 0, 0, time.UTC)

	idle := FormatStatus(scheduler.Status{State: "IDLE", Timer: "04:00:00", Delay: "00:00:00"})
	assert.Equal(t, "state: IDLE\ntimer: off at 04:00:00\ndelay: off for 00:00:00\nno shutdown scheduled", idle)

	armed := FormatStatus(scheduler.Status{
		State:           "ARMED",
		TimerEnabled:    true,
		Timer:           "04:00:00",
		NextTimer:       &next,
		Delay:           "00:00:00",
		Deadline:        &next,
		Remaining:       "0h 9m 0s",
		FiredThresholds: []string{"10m0s"},
	})
	lines := strings.Split(armed, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "timer: on at 04:00:00 (next 2026-03-15 04:00:00)", lines[1])
	assert.Equal(t, "shutdown at 2026-03-15 04:00:00, in 0h 9m 0s", lines[3])
	assert.Equal(t, "warned: 10m0s", lines[4])
}
