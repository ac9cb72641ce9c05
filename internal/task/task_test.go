package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTaskFinishesOnNilReturn(t *testing.T) {
	var states []State
	done := make(chan struct{})
	tk := New(func(ctl *Control) error {
		return nil
	}, func(s State) {
		states = append(states, s)
		if s == Finished {
			close(done)
		}
	}, nil)

	tk.Start()
	<-done
	tk.Wait()
	require.Equal(t, Finished, tk.State())
	require.Contains(t, states, Running)
	require.Contains(t, states, Finished)
}

func TestTaskFailsOnError(t *testing.T) {
	boom := errors.New("boom")
	tk := New(func(ctl *Control) error {
		return boom
	}, nil, nil)

	tk.Start()
	tk.Wait()
	require.Equal(t, Failed, tk.State())
}

func TestTaskStopIsCooperativeAndIdempotent(t *testing.T) {
	started := make(chan struct{})
	tk := New(func(ctl *Control) error {
		close(started)
		for !ctl.StopRequested() {
			time.Sleep(time.Millisecond)
		}
		return nil
	}, nil, nil)

	tk.Start()
	<-started
	tk.Stop()
	tk.Stop() // idempotent
	tk.Wait()
	require.Equal(t, Stopped, tk.State())
}

func TestTaskPauseResumeRoundTrips(t *testing.T) {
	resumed := make(chan struct{})
	tk := New(func(ctl *Control) error {
		if ctl.WaitPause() {
			return nil
		}
		close(resumed)
		return nil
	}, nil, nil)

	tk.Start()
	tk.Pause()
	// Give the worker a chance to observe the pause request before resuming.
	time.Sleep(10 * time.Millisecond)
	tk.Start() // resumes from Paused
	<-resumed
	tk.Wait()
	require.Equal(t, Finished, tk.State())
}

func TestStartAfterFinishedRunsBodyAgain(t *testing.T) {
	runs := 0
	tk := New(func(ctl *Control) error {
		runs++
		return nil
	}, nil, nil)

	tk.Start()
	tk.Wait()
	require.Equal(t, Finished, tk.State())

	tk.Start()
	tk.Wait()
	require.Equal(t, Finished, tk.State())
	require.Equal(t, 2, runs)
}

func TestControlProgressDropsDuplicates(t *testing.T) {
	var reports []int
	done := make(chan struct{})
	tk := New(func(ctl *Control) error {
		ctl.Progress(10)
		ctl.Progress(10)
		ctl.Progress(20)
		return nil
	}, func(s State) {
		if s == Finished {
			close(done)
		}
	}, func(p int) {
		reports = append(reports, p)
	})

	tk.Start()
	<-done
	tk.Wait()
	require.Equal(t, []int{10, 20}, reports)
}
