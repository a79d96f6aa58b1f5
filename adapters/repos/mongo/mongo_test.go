package mongo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ATNoG/eclipse-ditto/usecases/writer"
)

func TestClassifyPermanentWriteError(t *testing.T) {
	err := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{
			{Code: 11000, Message: "duplicate key"},
		},
	}
	result := classify(err)
	assert.Equal(t, writer.OutcomePermanentError, result.Outcome)
}

func TestClassifyPermanentCommandError(t *testing.T) {
	err := mongo.CommandError{Code: 121, Message: "document failed validation"}
	result := classify(err)
	assert.Equal(t, writer.OutcomePermanentError, result.Outcome)
}

func TestClassifyTimeoutIsTransient(t *testing.T) {
	err := context.DeadlineExceeded
	result := classify(err)
	assert.Equal(t, writer.OutcomeTransientError, result.Outcome)
}

func TestClassifyUnknownErrorDefaultsTransient(t *testing.T) {
	err := mongo.WriteException{
		WriteErrors: mongo.WriteErrors{
			{Code: 9999, Message: "some other failure"},
		},
	}
	result := classify(err)
	assert.Equal(t, writer.OutcomeTransientError, result.Outcome)
}
