package main

import (
	stderrors "errors"

	"github.com/manifoldco/promptui"
)

// confirm asks a yes/no question. Interrupting the prompt or running
// without a terminal counts as "no".
func confirm(label string, defaultYes bool) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	if defaultYes {
		prompt.Default = "y"
	}

	_, err := prompt.Run()
	if err != nil {
		if stderrors.Is(err, promptui.ErrAbort) || stderrors.Is(err, promptui.ErrInterrupt) || stderrors.Is(err, promptui.ErrEOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func confirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return confirm(label, false)
}
