package retry

import (
	"time"

	"github.com/pkg/errors"
)

// Action defines the prototype of action function, function as a value
type Action func(attempt uint) error

// Model defines the schema, contains all the attributes need for retry
type Model struct {
	retry     uint
	waitTime  time.Duration
	retryable func(error) bool
}

// Times is used to define the retry count
// it will run if the instance of model is not present before
func Times(retry uint) *Model {
	model := Model{}
	return model.Times(retry)
}

// Times is used to define the retry count
// it will run if the instance of model is already present
func (model *Model) Times(retry uint) *Model {
	model.retry = retry
	return model
}

// Wait is used to define the wait duration after each failed iteration of retry
// it will run if the instance of model is not present before
func Wait(waitTime time.Duration) *Model {
	model := Model{}
	return model.Wait(waitTime)
}

// Wait is used to define the wait duration after each failed iteration of retry
// it will run if the instance of model is already present
func (model *Model) Wait(waitTime time.Duration) *Model {
	model.waitTime = waitTime
	return model
}

// If restricts the retries to the errors accepted by the predicate,
// any other error is returned immediately
func (model *Model) If(retryable func(error) bool) *Model {
	model.retryable = retryable
	return model
}

// Try is used to run a action with retries and some delay after each failed iteration
func (model Model) Try(action Action) error {
	if action == nil {
		return errors.Errorf("no action specified")
	}

	var err error
	for attempt := uint(0); attempt == 0 || attempt < model.retry; attempt++ {
		if err = action(attempt); err == nil {
			return nil
		}
		if model.retryable != nil && !model.retryable(err) {
			return err
		}
		if model.waitTime > 0 && attempt+1 < model.retry {
			time.Sleep(model.waitTime)
		}
	}
	return err
}
