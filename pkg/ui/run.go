// Package ui shows transfer progress in the terminal.
package ui

import (
	"context"
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rescp17/serialFileSharer/pkg/transfer"
)

// ErrAborted is returned when the user quits the view before the job ends.
var ErrAborted = errors.New("transfer aborted by user")

// Job is a transfer that reports through the given callback.
type Job func(ctx context.Context, progress transfer.ProgressCallback) error

// Run executes job while rendering its progress, and returns the job's error.
// Quitting the view cancels the job's context; the job is still waited for.
func Run(ctx context.Context, title string, job Job) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(title), tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	result := make(chan error, 1)
	go func() {
		err := job(jobCtx, func(pr transfer.Progress) {
			p.Send(progressMsg(pr))
		})
		result <- err
		p.Send(jobDoneMsg{err: err})
	}()

	final, runErr := p.Run()
	cancel()
	jobErr := <-result

	if m, ok := final.(model); ok && m.quitting && !m.done {
		return errors.Join(ErrAborted, jobErr)
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return errors.Join(runErr, jobErr)
	}
	return jobErr
}
